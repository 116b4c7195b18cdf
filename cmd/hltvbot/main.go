// Package main provides hltvbot, a chat bot answering CS2 esports queries
// from HLTV.org. The serve command runs it against the terminal; the other
// commands exercise single pieces of the pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/entrhq/hltvquery/pkg/config"
	"github.com/entrhq/hltvquery/pkg/logging"
)

const version = "0.1.0"

var (
	// Global flags
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hltvbot",
	Short: "HLTV query bot",
	Long: `hltvbot answers chat commands about team rankings, matches, results and
players with text summaries and composite screenshots taken from HLTV.org.

Run "hltvbot serve" to chat with it in the terminal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Logging.Level = logLevel
		}
		if err := logging.SetLevel(loaded.Logging.Level); err != nil {
			return err
		}
		if loaded.Logging.Dir != "" {
			logging.SetDirectory(loaded.Logging.Dir)
		}
		if err := loaded.EnsureDirs(); err != nil {
			return err
		}

		// NewLogger falls back to stderr on error, which is good enough
		logger, _ = logging.NewLogger("hltvbot")
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Close()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hltvbot v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(serveCmd, fetchCmd, captureCmd, teamsCmd, versionCmd)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nShutting down gracefully...")
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}
