package browser

import (
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Session is a single-use browser session: one engine, one isolated context
// and one page. It is owned by exactly one request and released when that
// request ends.
type Session struct {
	// ID identifies the session in logs
	ID string

	// Browser is the Playwright browser instance
	Browser playwright.Browser

	// Context is the browser context (isolated session)
	Context playwright.BrowserContext

	// Page is the only page of this session
	Page playwright.Page

	// CreatedAt is the timestamp when the session was created
	CreatedAt time.Time

	// CurrentURL is the URL of the page after the last navigation
	CurrentURL string

	releaseOnce sync.Once
	releaseErr  error
}

// SessionOptions configures a new browser session.
type SessionOptions struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Viewport sets the viewport size; nil means 1920x1080
	Viewport *Viewport

	// UserAgent overrides the engine's user agent string
	UserAgent string

	// Timeout sets the default timeout for page operations (in milliseconds)
	Timeout float64

	// LaunchArgs are passed to the Chromium process
	LaunchArgs []string

	// Permissive relaxes HTTPS, CSP and permission checks so third-party
	// widgets render the way they do in a desktop browser
	Permissive bool

	// ExtraHeaders are sent with every request of the context
	ExtraHeaders map[string]string
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// NavigateOptions configures page navigation behavior.
type NavigateOptions struct {
	// WaitUntil specifies when to consider navigation successful
	// Valid values: "load", "domcontentloaded", "networkidle"
	WaitUntil string

	// Timeout in milliseconds (0 means the page default)
	Timeout float64
}

// Readiness signals accepted by NavigateOptions.WaitUntil
const (
	WaitLoad             = "load"
	WaitDOMContentLoaded = "domcontentloaded"
	WaitNetworkIdle      = "networkidle"
)

// Default values for session setup
const (
	DefaultTimeout        = 60000.0 // 60 seconds in milliseconds
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080
	DefaultMaxSessions    = 4
)

// DefaultHeaders mirror a desktop browser's request headers.
var DefaultHeaders = map[string]string{
	"Accept":          "*/*",
	"Accept-Language": "en-US,en;q=0.9",
	"Accept-Encoding": "gzip, deflate, br",
}
