// Package cli provides a console host for the chat bot. Each input line is
// a chat message; replies are printed and delivered images are removed
// afterwards, the way a chat platform adapter would.
//
// Example usage:
//
//	b, _ := bot.New(deps)
//	executor := cli.NewExecutor(b, cli.WithSessionID("console"))
//	if err := executor.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/entrhq/hltvquery/pkg/bot"
	"github.com/entrhq/hltvquery/pkg/logging"
)

// DefaultSessionID is the session messages belong to until /as switches it.
const DefaultSessionID = "console"

// Handler answers chat messages. *bot.Bot satisfies it.
type Handler interface {
	Handle(ctx context.Context, msg bot.Message, reply bot.ReplyFunc) bool
}

// Executor reads messages from a terminal and prints the bot's replies.
type Executor struct {
	handler Handler
	reader  *bufio.Reader
	writer  io.Writer
	log     *logging.Logger

	sessionID  string
	keepImages bool
}

// ExecutorOption is a function that configures an Executor.
type ExecutorOption func(*Executor)

// WithReader sets a custom input reader (default is os.Stdin).
func WithReader(r io.Reader) ExecutorOption {
	return func(e *Executor) {
		e.reader = bufio.NewReader(r)
	}
}

// WithWriter sets a custom output writer (default is os.Stdout).
func WithWriter(w io.Writer) ExecutorOption {
	return func(e *Executor) {
		e.writer = w
	}
}

// WithSessionID sets the initial chat session.
func WithSessionID(id string) ExecutorOption {
	return func(e *Executor) {
		if id != "" {
			e.sessionID = id
		}
	}
}

// WithKeepImages leaves delivered composites on disk.
func WithKeepImages(keep bool) ExecutorOption {
	return func(e *Executor) {
		e.keepImages = keep
	}
}

// WithLogger sets the executor's logger.
func WithLogger(l *logging.Logger) ExecutorOption {
	return func(e *Executor) {
		e.log = l
	}
}

// NewExecutor creates a console host for handler.
func NewExecutor(handler Handler, opts ...ExecutorOption) *Executor {
	e := &Executor{
		handler:   handler,
		reader:    bufio.NewReader(os.Stdin),
		writer:    os.Stdout,
		log:       logging.NewNop(),
		sessionID: DefaultSessionID,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// SessionID returns the session new messages are sent as.
func (e *Executor) SessionID() string {
	return e.sessionID
}

// Run reads messages until EOF, "exit" or "quit", or until ctx is done.
func (e *Executor) Run(ctx context.Context) error {
	fmt.Fprintln(e.writer, "HLTV Query")
	fmt.Fprintln(e.writer, "Type /hltv_help for commands, /as <name> to switch chat session, 'exit' to quit.")
	fmt.Fprintln(e.writer)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fmt.Fprintf(e.writer, "[%s]> ", e.sessionID)
		input, err := e.reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read input: %w", err)
		}
		eof := errors.Is(err, io.EOF)

		input = strings.TrimSpace(input)
		switch {
		case input == "exit" || input == "quit":
			return nil
		case input == "":
		case input == "/as" || strings.HasPrefix(input, "/as "):
			e.switchSession(input)
		default:
			e.dispatch(ctx, input)
		}

		if eof {
			return nil
		}
	}
}

func (e *Executor) switchSession(input string) {
	id := strings.TrimSpace(strings.TrimPrefix(input, "/as"))
	if id == "" {
		fmt.Fprintln(e.writer, "usage: /as <session>")
		return
	}
	e.sessionID = id
	fmt.Fprintf(e.writer, "now chatting as %s\n", id)
}

func (e *Executor) dispatch(ctx context.Context, input string) {
	msg := bot.Message{SessionID: e.sessionID, Text: input}
	if !e.handler.Handle(ctx, msg, e.deliver) {
		e.log.Debugf("message from %s not handled: %q", msg.SessionID, input)
	}
}

// deliver prints a reply. Images are shown as their path and then removed.
func (e *Executor) deliver(r bot.Reply) {
	if r.Text != "" {
		fmt.Fprintln(e.writer, r.Text)
	}
	if r.ImagePath == "" {
		return
	}

	fmt.Fprintf(e.writer, "🖼️ %s\n", r.ImagePath)
	if e.keepImages {
		return
	}
	if err := os.Remove(r.ImagePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.log.Warnf("failed to remove delivered image %s: %v", r.ImagePath, err)
	}
}
