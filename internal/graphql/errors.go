package graphql

import (
	"fmt"
	"strings"
)

// TransportError is returned when the remote API answers with a non-2xx
// status or the call never produced a readable response. Callers may retry
// by resubmitting.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("transport error: status %d: %v", e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("transport error: %v", e.Err)
	default:
		return fmt.Sprintf("transport error: status %d: %s", e.StatusCode, truncate(e.Body, 200))
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// GraphQLError is returned when the API accepted the call but reported one
// or more errors. It is a failure even when data is also present.
type GraphQLError struct {
	Messages []string
	Codes    []string
}

func (e *GraphQLError) Error() string {
	if len(e.Messages) == 0 {
		return "graphql error"
	}
	return "graphql error: " + strings.Join(e.Messages, "; ")
}

// HasCode reports whether any error entry carries the given extension code.
func (e *GraphQLError) HasCode(code string) bool {
	for _, c := range e.Codes {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
