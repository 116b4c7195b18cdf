package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrNavigationFailed means the page never produced a 200 response
	// within the allowed attempts.
	ErrNavigationFailed = errors.New("navigation failed")

	// ErrPageEmpty means the page loaded but yielded no usable document.
	ErrPageEmpty = errors.New("page empty")

	// ErrNoRegionsCaptured means none of the requested regions were found
	// on the page.
	ErrNoRegionsCaptured = errors.New("no regions captured")
)

// NavigationError describes a navigation that failed after every attempt.
// It matches ErrNavigationFailed with errors.Is.
type NavigationError struct {
	URL      string
	Status   int // last HTTP status; 0 when no response arrived
	Attempts int
	Err      error
}

func (e *NavigationError) Error() string {
	msg := fmt.Sprintf("navigation to %s failed after %d attempt(s)", e.URL, e.Attempts)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NavigationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNavigationFailed}
	}
	return []error{ErrNavigationFailed, e.Err}
}

// transientError marks an attempt outcome that is worth retrying.
type transientError struct {
	status int
	err    error
}

func (e *transientError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	if e.status == 0 {
		return "no response"
	}
	return fmt.Sprintf("unexpected status %d", e.status)
}

func (e *transientError) Unwrap() error { return e.err }
