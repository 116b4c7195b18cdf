package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Message is an incoming chat message.
type Message struct {
	SessionID string
	Text      string
}

// Reply is an outgoing chat message. When ImagePath is set the host sends
// the image and then deletes the file.
type Reply struct {
	Text      string
	ImagePath string
}

// ReplyFunc delivers a reply to the chat. Commands may call it several
// times, e.g. a progress note followed by the result.
type ReplyFunc func(Reply)

// Request carries a parsed command invocation.
type Request struct {
	SessionID string
	Args      string
}

// Command is a slash command the bot answers.
type Command interface {
	// Name returns the primary command word without the slash
	Name() string

	// Aliases returns alternative command words
	Aliases() []string

	// Usage returns an example invocation
	Usage() string

	// Description returns a one-line summary for the help text
	Description() string

	// Execute runs the command. Returned errors are turned into a short
	// user-facing message by the bot.
	Execute(ctx context.Context, req Request, reply ReplyFunc) error
}

// Registry maps command words to commands.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]Command
	commands []Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Command)}
}

// Register adds cmd under its name and aliases.
func (r *Registry) Register(cmd Command) error {
	if cmd == nil {
		return fmt.Errorf("command cannot be nil")
	}
	names := append([]string{cmd.Name()}, cmd.Aliases()...)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		if name == "" {
			return fmt.Errorf("command name cannot be empty")
		}
		if _, exists := r.byName[name]; exists {
			return fmt.Errorf("command already registered: %s", name)
		}
	}
	for _, name := range names {
		r.byName[name] = cmd
	}
	r.commands = append(r.commands, cmd)
	return nil
}

// Lookup finds the command registered under name. Matching is
// case-insensitive for ASCII names.
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cmd, ok := r.byName[name]; ok {
		return cmd, true
	}
	cmd, ok := r.byName[strings.ToLower(name)]
	return cmd, ok
}

// Commands returns the registered commands in registration order.
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Command(nil), r.commands...)
}

// parseCommand splits "/name args..." into name and args.
func parseCommand(text string) (string, string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	text = strings.TrimPrefix(text, "/")
	name, args, _ := strings.Cut(text, " ")
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(args), true
}
