package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"golang.org/x/sync/semaphore"

	"github.com/entrhq/hltvquery/pkg/logging"
)

// Launcher starts browser engine processes. playwright.BrowserType
// satisfies it; tests substitute a fake.
type Launcher interface {
	Launch(options ...playwright.BrowserTypeLaunchOptions) (playwright.Browser, error)
}

// Manager launches and tears down single-use browser sessions. It is the
// only component that starts browser processes. Sessions are never pooled:
// each Acquire launches a fresh engine and Release closes it.
type Manager struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	launcher    Launcher
	slots       *semaphore.Weighted
	maxSessions int
	active      int
	install     bool
	initialized bool
	log         *logging.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLauncher uses l instead of a Playwright driver. The manager is
// considered initialized.
func WithLauncher(l Launcher) ManagerOption {
	return func(m *Manager) {
		m.launcher = l
		m.initialized = true
	}
}

// WithMaxSessions bounds how many sessions may be live at once. Further
// Acquire calls wait for a slot.
func WithMaxSessions(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

// WithInstall controls whether Initialize downloads the driver and browsers.
func WithInstall(install bool) ManagerOption {
	return func(m *Manager) {
		m.install = install
	}
}

// WithLogger sets the manager's logger.
func WithLogger(l *logging.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = l
	}
}

// NewManager creates a new session manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		maxSessions: DefaultMaxSessions,
		install:     true,
		log:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.slots = semaphore.NewWeighted(int64(m.maxSessions))
	return m
}

// Initialize starts the Playwright driver.
// This must be called before acquiring sessions unless a Launcher was supplied.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	// Keep driver chatter out of the chat host's stdout
	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}

	if m.install {
		if err := playwright.Install(opts); err != nil {
			return fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.launcher = pw.Chromium
	m.initialized = true
	return nil
}

// Acquire launches a browser, opens one isolated context with the
// anti-detection init script, and opens one page. The caller must pass the
// session to Release exactly once; WithSession does that automatically.
func (m *Manager) Acquire(ctx context.Context, opts SessionOptions) (*Session, error) {
	m.mu.Lock()
	launcher := m.launcher
	m.mu.Unlock()
	if launcher == nil {
		return nil, fmt.Errorf("session manager not initialized")
	}

	if err := m.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for browser slot: %w", err)
	}

	session, err := m.open(launcher, withDefaults(opts))
	if err != nil {
		m.slots.Release(1)
		return nil, err
	}

	m.mu.Lock()
	m.active++
	m.mu.Unlock()

	m.log.Debugf("session %s acquired", session.ID)
	return session, nil
}

func (m *Manager) open(launcher Launcher, opts SessionOptions) (*Session, error) {
	browser, err := launcher.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     opts.LaunchArgs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(contextOptions(opts))
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(initScript)}); err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("failed to add init script: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.SetDefaultTimeout(opts.Timeout)

	return &Session{
		ID:         uuid.New().String(),
		Browser:    browser,
		Context:    bctx,
		Page:       page,
		CreatedAt:  time.Now(),
		CurrentURL: "about:blank",
	}, nil
}

func withDefaults(opts SessionOptions) SessionOptions {
	if opts.Viewport == nil {
		opts.Viewport = &Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	return opts
}

func contextOptions(opts SessionOptions) playwright.BrowserNewContextOptions {
	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
	}
	if opts.UserAgent != "" {
		contextOpts.UserAgent = playwright.String(opts.UserAgent)
	}
	if opts.Permissive {
		contextOpts.IgnoreHttpsErrors = playwright.Bool(true)
		contextOpts.BypassCSP = playwright.Bool(true)
		contextOpts.JavaScriptEnabled = playwright.Bool(true)
		contextOpts.AcceptDownloads = playwright.Bool(true)
		contextOpts.Permissions = []string{"notifications", "geolocation"}
	}
	if len(opts.ExtraHeaders) > 0 {
		contextOpts.ExtraHttpHeaders = opts.ExtraHeaders
	}
	return contextOpts
}

// Release closes the page, the context and the browser, in that order.
// Every close is attempted even if an earlier one fails. Calling Release
// more than once returns the first result.
func (m *Manager) Release(s *Session) error {
	if s == nil {
		return nil
	}

	s.releaseOnce.Do(func() {
		var errs []error
		if err := s.Page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
		if err := s.Context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close context: %w", err))
		}
		if err := s.Browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		s.releaseErr = errors.Join(errs...)

		m.mu.Lock()
		m.active--
		m.mu.Unlock()
		m.slots.Release(1)

		m.log.Debugf("session %s released after %s", s.ID, time.Since(s.CreatedAt).Round(time.Millisecond))
	})

	return s.releaseErr
}

// WithSession acquires a session, runs fn, and releases the session on
// every exit path, including a panic in fn.
func (m *Manager) WithSession(ctx context.Context, opts SessionOptions, fn func(*Session) error) error {
	session, err := m.Acquire(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Release(session); err != nil {
			m.log.Warnf("session %s teardown: %v", session.ID, err)
		}
	}()

	return fn(session)
}

// Active returns the number of sessions currently live.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Shutdown stops the Playwright driver. Live sessions are owned by their
// requests and are not touched.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		m.playwright = nil
		m.launcher = nil
		m.initialized = false
	}
	return nil
}
