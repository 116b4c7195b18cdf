// Package browser provides headless Chromium sessions through Playwright.
//
// Every fetch runs in its own session: one engine process, one isolated
// context and one page. Sessions are never pooled or reused across
// requests, so no cookies, storage or navigation history leak from one
// command to the next.
//
// # Session Lifecycle
//
//  1. Acquire: launch Chromium, open a context with the anti-detection init
//     script, open a page
//  2. Use: Navigate, Cleanup, Content and Screenshot operate on the page
//  3. Release: close the page, then the context, then the browser
//
// WithSession wraps the lifecycle and guarantees Release on every exit path.
//
// # Concurrency
//
// The manager bounds the number of live sessions with a weighted semaphore
// (DefaultMaxSessions unless configured). Acquire blocks until a slot is
// free or the context is done.
//
// # Testing
//
// The browsertest package supplies fakes for the Playwright objects so that
// callers can exercise the lifecycle without a browser install:
//
//	launcher := browsertest.NewLauncher(browsertest.PageScript{HTML: "<html></html>"})
//	manager := browser.NewManager(browser.WithLauncher(launcher))
package browser
