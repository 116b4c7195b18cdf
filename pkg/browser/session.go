package browser

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// Navigate navigates the session's page to url and returns the HTTP status
// of the main response. A status of 0 means no response was received
// (for example a same-document navigation or an aborted load).
func (s *Session) Navigate(url string, opts NavigateOptions) (int, error) {
	playwrightOpts := playwright.PageGotoOptions{}

	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		playwrightOpts.WaitUntil = &waitUntil
	}

	if opts.Timeout > 0 {
		playwrightOpts.Timeout = playwright.Float(opts.Timeout)
	}

	resp, err := s.Page.Goto(url, playwrightOpts)
	if err != nil {
		return 0, fmt.Errorf("navigation failed: %w", err)
	}

	s.CurrentURL = s.Page.URL()
	if resp == nil {
		return 0, nil
	}
	return resp.Status(), nil
}

// WaitForLoad waits until the page reaches the given load state.
func (s *Session) WaitForLoad(state string, timeout float64) error {
	loadState := playwright.LoadState(state)
	opts := playwright.PageWaitForLoadStateOptions{State: &loadState}
	if timeout > 0 {
		opts.Timeout = playwright.Float(timeout)
	}
	if err := s.Page.WaitForLoadState(opts); err != nil {
		return fmt.Errorf("wait for %s failed: %w", state, err)
	}
	return nil
}

// Cleanup strips consent overlays from the live DOM and keeps them hidden
// if the site re-inserts them. It returns the number of nodes removed.
func (s *Session) Cleanup() (int, error) {
	result, err := s.Page.Evaluate(cleanupScript, OverlaySelectors)
	if err != nil {
		return 0, fmt.Errorf("overlay cleanup failed: %w", err)
	}

	switch n := result.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, nil
	}
}

// Content serializes the live DOM to HTML.
func (s *Session) Content() (string, error) {
	content, err := s.Page.Content()
	if err != nil {
		return "", fmt.Errorf("content extraction failed: %w", err)
	}
	return content, nil
}

// ScreenshotOptions configures an element screenshot.
type ScreenshotOptions struct {
	// Selector identifies the element to capture
	Selector string

	// Path is where the PNG is written
	Path string

	// Wait waits for the element to attach instead of querying once
	Wait bool

	// Timeout in milliseconds for the wait and the screenshot
	Timeout float64
}

// Screenshot captures the first element matching the selector to a PNG
// file. It reports false when no element matches.
func (s *Session) Screenshot(opts ScreenshotOptions) (bool, error) {
	var (
		element playwright.ElementHandle
		err     error
	)

	if opts.Wait {
		waitOpts := playwright.PageWaitForSelectorOptions{}
		if opts.Timeout > 0 {
			waitOpts.Timeout = playwright.Float(opts.Timeout)
		}
		element, err = s.Page.WaitForSelector(opts.Selector, waitOpts)
	} else {
		element, err = s.Page.QuerySelector(opts.Selector)
	}
	if err != nil {
		return false, fmt.Errorf("selector query failed: %w", err)
	}
	if element == nil {
		return false, nil
	}

	shotOpts := playwright.ElementHandleScreenshotOptions{
		Path: playwright.String(opts.Path),
		Type: playwright.ScreenshotTypePng,
	}
	if opts.Timeout > 0 {
		shotOpts.Timeout = playwright.Float(opts.Timeout)
	}
	if _, err := element.Screenshot(shotOpts); err != nil {
		return false, fmt.Errorf("screenshot of %s failed: %w", opts.Selector, err)
	}
	return true, nil
}
