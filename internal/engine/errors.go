package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAction reports a step whose action kind the engine cannot
// dispatch.
var ErrUnknownAction = errors.New("unknown action kind")

// ErrSessionActive reports an ExecuteTest call while a previous test is
// still running on the same engine instance.
var ErrSessionActive = errors.New("a test session is already active on this engine")

// VerificationError carries what a verify step expected against what the
// page actually showed.
type VerificationError struct {
	Aspect   string // "title", "text", or "value"
	Expected string
	Actual   string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification mismatch on %s: expected %q, got %q", e.Aspect, e.Expected, e.Actual)
}

// refreshWorthy decides whether a failed attempt looks like a navigation or
// timing problem that a page refresh could clear. It is a substring
// heuristic over the error text, centralized here so recovery has one
// opinion.
func refreshWorthy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"navigation", "timeout", "timed out", "net::", "deadline exceeded", "page load"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
