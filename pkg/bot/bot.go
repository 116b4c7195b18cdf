// Package bot turns chat messages into site queries: slash commands are
// dispatched to their handlers and short follow-up tokens pick an entry of
// the listing the session was shown last.
package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/entrhq/hltvquery/pkg/catalog"
	"github.com/entrhq/hltvquery/pkg/fetch"
	"github.com/entrhq/hltvquery/pkg/hltv"
	"github.com/entrhq/hltvquery/pkg/imaging"
	"github.com/entrhq/hltvquery/pkg/logging"
	"github.com/entrhq/hltvquery/pkg/selection"
)

// PageFetcher loads pages. *fetch.Fetcher satisfies it.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (*goquery.Document, error)
	CapturePage(ctx context.Context, req fetch.CaptureRequest) ([]imaging.RegionCapture, error)
}

// Composer stacks region captures into one image. *imaging.Composer
// satisfies it.
type Composer interface {
	Compose(regions []imaging.RegionCapture, targetWidth int, name string) (string, error)
}

// TeamFinder looks teams up by name. *catalog.Catalog satisfies it.
type TeamFinder interface {
	Find(ctx context.Context, name string) (catalog.TeamRecord, bool, error)
}

// Selections stores listings awaiting a follow-up token.
// *selection.Registry satisfies it.
type Selections interface {
	Register(sessionID string, kind selection.Kind, candidates []selection.Candidate) error
	Route(sessionID, text string) (selection.Resolution, bool)
}

// Deps are the collaborators the commands use.
type Deps struct {
	Site       *hltv.Site
	Fetcher    PageFetcher
	Composer   Composer
	Teams      TeamFinder
	Selections Selections
	Logger     *logging.Logger
}

// Bot dispatches chat messages.
type Bot struct {
	registry *Registry
	deps     Deps
	log      *logging.Logger
}

// New creates a bot with every built-in command registered.
func New(deps Deps) (*Bot, error) {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	b := &Bot{
		registry: NewRegistry(),
		deps:     deps,
		log:      deps.Logger,
	}

	commands := []Command{
		&helpCommand{registry: b.registry},
		&topTeamsCommand{deps: deps},
		&teamInfoCommand{deps: deps},
		&matchesCommand{deps: deps},
		&resultsCommand{deps: deps},
		&topPlayersCommand{deps: deps},
		&searchPlayerCommand{deps: deps},
		&playerDetailCommand{deps: deps},
	}
	for _, cmd := range commands {
		if err := b.registry.Register(cmd); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Registry returns the bot's command registry.
func (b *Bot) Registry() *Registry {
	return b.registry
}

// Handle processes one message and reports whether the bot answered it.
// Slash commands go to their handler; a follow-up token goes to the
// listing pending for the session; anything else is left alone.
func (b *Bot) Handle(ctx context.Context, msg Message, reply ReplyFunc) bool {
	if name, args, ok := parseCommand(msg.Text); ok {
		cmd, found := b.registry.Lookup(name)
		if !found {
			b.log.Debugf("session %s: unknown command /%s", msg.SessionID, name)
			return false
		}

		b.log.Infof("session %s: /%s %s", msg.SessionID, cmd.Name(), args)
		if err := cmd.Execute(ctx, Request{SessionID: msg.SessionID, Args: args}, reply); err != nil {
			b.log.Errorf("/%s failed: %v", cmd.Name(), err)
			reply(Reply{Text: userMessage(err)})
		}
		return true
	}

	res, ok := b.deps.Selections.Route(msg.SessionID, msg.Text)
	if !ok {
		return false
	}

	var err error
	switch candidate := res.Candidate.(type) {
	case hltv.SearchHit:
		err = showPlayer(ctx, b.deps, candidate.ID, candidate.Nickname, candidate.URL, reply)
	case hltv.MatchResult:
		err = showMatch(ctx, b.deps, candidate, reply)
	default:
		err = fmt.Errorf("unexpected %s candidate %T", res.Kind, res.Candidate)
	}
	if err != nil {
		b.log.Errorf("session %s: %s follow-up failed: %v", msg.SessionID, res.Kind, err)
		reply(Reply{Text: userMessage(err)})
	}
	return true
}

// ErrNothingFound means a page loaded but held none of the expected entries.
var ErrNothingFound = errors.New("nothing found")

type usageError struct {
	usage string
}

func (e *usageError) Error() string { return "usage: " + e.usage }

// userMessage maps a failure to the short text shown in chat.
func userMessage(err error) string {
	var usage *usageError
	switch {
	case errors.As(err, &usage):
		return "❌ 用法: " + usage.usage
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "❌ 查询超时，请稍后重试"
	case errors.Is(err, fetch.ErrNavigationFailed):
		return "❌ 页面加载失败，请稍后重试"
	case errors.Is(err, fetch.ErrPageEmpty):
		return "❌ 页面内容为空，请稍后重试"
	case errors.Is(err, fetch.ErrNoRegionsCaptured):
		return "❌ 未能截取到相关数据，请稍后重试"
	case errors.Is(err, imaging.ErrCompositionFailed):
		return "❌ 图片合成失败，请稍后重试"
	case errors.Is(err, catalog.ErrCatalogEmpty):
		return "❌ 获取战队列表失败，请稍后重试"
	case errors.Is(err, ErrNothingFound):
		return "❌ 未找到相关信息"
	default:
		return "❌ 查询失败，请稍后重试"
	}
}
