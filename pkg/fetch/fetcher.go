// Package fetch loads pages from the statistics site through a browser
// session, either as a parsed document or as region screenshots.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"github.com/entrhq/hltvquery/pkg/browser"
	"github.com/entrhq/hltvquery/pkg/config"
	"github.com/entrhq/hltvquery/pkg/logging"
)

// Mode selects what a fetch returns.
type Mode string

const (
	ModeDocument Mode = "document"
	ModeCapture  Mode = "capture"
)

// State is a step of a fetch's navigation.
type State string

const (
	StateNavigating State = "navigating"
	StateRetrying   State = "retrying"
	StateReady      State = "ready"
	StateFailed     State = "failed"
)

// Transition is reported to observers each time a fetch changes state.
type Transition struct {
	URL     string
	Mode    Mode
	State   State
	Attempt int
	Status  int
	Err     error
}

// Sessions hands out single-use browser sessions. *browser.Manager
// satisfies it.
type Sessions interface {
	WithSession(ctx context.Context, opts browser.SessionOptions, fn func(*browser.Session) error) error
}

// Options controls sessions, timeouts and the retry policy.
type Options struct {
	Headless        bool
	UserAgent       string
	LaunchArgs      []string
	Viewport        browser.Viewport
	CaptureViewport browser.Viewport
	DocumentTimeout time.Duration
	CaptureTimeout  time.Duration
	MaxAttempts     int
	RetryBaseDelay  time.Duration
	SettleDelay     time.Duration
	ScreenshotDir   string

	// HTTPDocuments serves document fetches over plain HTTP instead of the
	// browser. Captures always use the browser.
	HTTPDocuments bool
}

// OptionsFromConfig maps the fetch-related sections of cfg to Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Headless:   cfg.Browser.Headless,
		UserAgent:  cfg.Browser.UserAgent,
		LaunchArgs: cfg.Browser.LaunchArgs,
		Viewport: browser.Viewport{
			Width:  cfg.Browser.ViewportWidth,
			Height: cfg.Browser.ViewportHeight,
		},
		CaptureViewport: browser.Viewport{
			Width:  cfg.Browser.CaptureWidth,
			Height: cfg.Browser.ViewportHeight,
		},
		DocumentTimeout: cfg.Fetch.DocumentTimeout,
		CaptureTimeout:  cfg.Fetch.CaptureTimeout,
		MaxAttempts:     cfg.Fetch.MaxAttempts,
		RetryBaseDelay:  cfg.Fetch.RetryBaseDelay,
		SettleDelay:     cfg.Fetch.SettleDelay,
		ScreenshotDir:   cfg.Capture.ScreenshotDir,
		HTTPDocuments:   cfg.Fetch.Engine == config.EngineHTTP,
	}
}

// Fetcher is safe for concurrent use; every call owns its own session.
type Fetcher struct {
	sessions Sessions
	opts     Options
	http     *resty.Client
	observer func(Transition)
	log      *logging.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithObserver registers fn to receive every state transition.
func WithObserver(fn func(Transition)) Option {
	return func(f *Fetcher) {
		f.observer = fn
	}
}

// WithLogger sets the fetcher's logger.
func WithLogger(l *logging.Logger) Option {
	return func(f *Fetcher) {
		f.log = l
	}
}

// New creates a fetcher backed by sessions.
func New(sessions Sessions, opts Options, options ...Option) *Fetcher {
	f := &Fetcher{
		sessions: sessions,
		opts:     opts,
		log:      logging.NewNop(),
	}
	for _, o := range options {
		o(f)
	}
	if opts.HTTPDocuments {
		f.http = newHTTPClient(opts)
	}
	return f
}

// FetchPage loads url and returns its parsed DOM. Document fetches are
// attempted once.
func (f *Fetcher) FetchPage(ctx context.Context, url string) (*goquery.Document, error) {
	if f.http != nil {
		return f.fetchHTTP(ctx, url)
	}

	var content string
	err := f.sessions.WithSession(ctx, f.sessionOptions(ModeDocument), func(s *browser.Session) error {
		if err := f.navigate(ctx, s, url, ModeDocument); err != nil {
			return err
		}
		f.cleanup(s)

		html, err := s.Content()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPageEmpty, err)
		}
		content = html
		return nil
	})
	if err != nil {
		return nil, err
	}

	return parseDocument(content)
}

func (f *Fetcher) sessionOptions(mode Mode) browser.SessionOptions {
	opts := browser.SessionOptions{
		Headless:     f.opts.Headless,
		UserAgent:    f.opts.UserAgent,
		LaunchArgs:   f.opts.LaunchArgs,
		Permissive:   true,
		ExtraHeaders: browser.DefaultHeaders,
		Timeout:      millis(f.timeout(mode)),
	}
	vp := f.opts.Viewport
	if mode == ModeCapture {
		vp = f.opts.CaptureViewport
	}
	if vp.Width > 0 && vp.Height > 0 {
		opts.Viewport = &browser.Viewport{Width: vp.Width, Height: vp.Height}
	}
	return opts
}

func (f *Fetcher) timeout(mode Mode) time.Duration {
	if mode == ModeCapture {
		return f.opts.CaptureTimeout
	}
	return f.opts.DocumentTimeout
}

// navigate loads url on s until a 200 arrives or the mode's retry policy
// gives up.
func (f *Fetcher) navigate(ctx context.Context, s *browser.Session, url string, mode Mode) error {
	var (
		attempt    int
		lastStatus int
	)
	timeout := millis(f.timeout(mode))

	op := func() error {
		attempt++
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		f.emit(Transition{URL: url, Mode: mode, State: StateNavigating, Attempt: attempt})

		status, err := s.Navigate(url, browser.NavigateOptions{
			WaitUntil: browser.WaitDOMContentLoaded,
			Timeout:   timeout,
		})
		lastStatus = status
		if err != nil {
			return &transientError{err: err}
		}
		if status != 200 {
			return &transientError{status: status}
		}

		// Long-poll widgets keep some pages from ever going idle; DOM
		// content loaded is enough for those.
		if err := s.WaitForLoad(browser.WaitNetworkIdle, timeout); err != nil {
			f.log.Debugf("%s never reached network idle, continuing: %v", url, err)
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		f.log.Warnf("attempt %d for %s failed: %v; retrying in %s", attempt, url, err, wait)
		f.emit(Transition{URL: url, Mode: mode, State: StateRetrying, Attempt: attempt, Status: lastStatus, Err: err})
	}

	b := backoff.WithContext(policy(mode, f.opts.MaxAttempts, f.opts.RetryBaseDelay), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		f.emit(Transition{URL: url, Mode: mode, State: StateFailed, Attempt: attempt, Status: lastStatus, Err: err})
		f.log.Errorf("giving up on %s after %d attempt(s): %v", url, attempt, err)

		var transient *transientError
		if errors.As(err, &transient) {
			err = transient.err
		}
		return &NavigationError{URL: url, Status: lastStatus, Attempts: attempt, Err: err}
	}

	if err := sleep(ctx, f.opts.SettleDelay); err != nil {
		return &NavigationError{URL: url, Status: lastStatus, Attempts: attempt, Err: err}
	}

	f.emit(Transition{URL: url, Mode: mode, State: StateReady, Attempt: attempt, Status: lastStatus})
	return nil
}

func (f *Fetcher) cleanup(s *browser.Session) {
	removed, err := s.Cleanup()
	if err != nil {
		f.log.Warnf("overlay cleanup on %s: %v", s.CurrentURL, err)
		return
	}
	if removed > 0 {
		f.log.Debugf("removed %d overlay nodes from %s", removed, s.CurrentURL)
	}
}

func (f *Fetcher) emit(t Transition) {
	if f.observer != nil {
		f.observer(t)
	}
}

func millis(d time.Duration) float64 {
	return float64(d / time.Millisecond)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
