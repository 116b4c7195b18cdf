package main

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"

	"github.com/entrhq/hltvquery/pkg/executor/cli"
	"github.com/entrhq/hltvquery/pkg/fetch"
)

var (
	sessionID  string
	keepImages bool
	printHTML  bool
	width      int
	refresh    bool
	findTeam   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Chat with the bot in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		b, err := a.bot()
		if err != nil {
			return err
		}

		executor := cli.NewExecutor(b,
			cli.WithSessionID(sessionID),
			cli.WithKeepImages(keepImages),
			cli.WithWriter(cmd.OutOrStdout()),
			cli.WithReader(cmd.InOrStdin()),
			cli.WithLogger(logger.Named("console")),
		)
		return executor.Run(cmd.Context())
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Fetch a page and print its title, or its cleaned HTML with --html",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		doc, err := a.fetcher.FetchPage(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if printHTML {
			html, err := goquery.OuterHtml(doc.Selection)
			if err != nil {
				return fmt.Errorf("failed to render document: %w", err)
			}
			fmt.Fprintln(out, html)
			return nil
		}
		fmt.Fprintf(out, "title: %s\n", strings.TrimSpace(doc.Find("title").First().Text()))
		fmt.Fprintf(out, "elements: %d\n", doc.Find("*").Length())
		return nil
	},
}

var captureCmd = &cobra.Command{
	Use:   "capture <url> <selector>...",
	Short: "Screenshot page regions and stack them into one image",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		req := fetch.CaptureRequest{URL: args[0], Purpose: "capture", EntityID: "0"}
		for i, selector := range args[1:] {
			req.Regions = append(req.Regions, fetch.Region{
				Name:     fmt.Sprintf("region%d", i+1),
				Selector: selector,
			})
		}

		regions, err := a.fetcher.CapturePage(cmd.Context(), req)
		if err != nil {
			return err
		}
		path, err := a.composer.Compose(regions, width, "capture")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var teamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "Load the team catalog and print it, or look one team up with --find",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if refresh {
			if _, err := a.catalog.Refresh(ctx); err != nil {
				return err
			}
		}

		if findTeam != "" {
			team, ok, err := a.catalog.Find(ctx, findTeam)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("team %q not found", findTeam)
			}
			fmt.Fprintf(out, "%d\t%s\t%s\n", team.ID, team.Name, team.URL)
			return nil
		}

		teams, err := a.catalog.Teams(ctx)
		if err != nil {
			return err
		}
		for _, team := range teams {
			fmt.Fprintf(out, "%d\t%s\t%s\n", team.ID, team.Name, team.URL)
		}
		fmt.Fprintf(out, "%d teams\n", len(teams))
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&sessionID, "session", cli.DefaultSessionID, "Initial chat session ID")
	serveCmd.Flags().BoolVar(&keepImages, "keep-images", false, "Keep composites on disk after printing them")

	fetchCmd.Flags().BoolVar(&printHTML, "html", false, "Print the cleaned HTML")

	captureCmd.Flags().IntVar(&width, "width", 645, "Composite width in pixels")

	teamsCmd.Flags().BoolVar(&refresh, "refresh", false, "Re-fetch the team list and rewrite the cache")
	teamsCmd.Flags().StringVar(&findTeam, "find", "", "Print only the team with this name")
}
