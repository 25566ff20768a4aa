// Package automation drives the vendor portal UI from login to export
// capture. Each interactive step tries an ordered list of locator
// strategies; exhausting a list is fatal for the whole run.
package automation

import (
	"fmt"
	"strings"
	"time"
)

// AuthenticationError means a credential or session step failed. It is
// never retried, to avoid account lockout.
type AuthenticationError struct {
	Step string
	Err  error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed at %q: %v", e.Step, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// NavigationError means a UI element or state was unreachable after every
// fallback strategy for the step was exhausted.
type NavigationError struct {
	Step     string
	Attempts []string
	Err      error
}

func (e *NavigationError) Error() string {
	if len(e.Attempts) > 0 {
		return fmt.Sprintf("navigation failed at %q after strategies [%s]: %v",
			e.Step, strings.Join(e.Attempts, ", "), e.Err)
	}
	return fmt.Sprintf("navigation failed at %q: %v", e.Step, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ExportTimeoutError means no matching attachment response was observed
// within the bounded wait after triggering the download.
type ExportTimeoutError struct {
	Timeout time.Duration
}

func (e *ExportTimeoutError) Error() string {
	return fmt.Sprintf("no export response detected within %s", e.Timeout)
}
