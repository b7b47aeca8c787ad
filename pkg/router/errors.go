package router

import (
	"fmt"
	"strings"
)

// StatusError is returned when the router answers with a non-2xx status.
// The router reports failures as HTML pages, so the body is the diagnostic.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	}
	return body
}
