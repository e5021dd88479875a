package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hupe1980/agentproxy/core"
)

// ErrRouteNotFound is returned for requests matching no route.
var ErrRouteNotFound = errors.New("route not found")

// HTTPError carries the status code a failure is answered with.
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	switch {
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	default:
		return e.Message + ": " + e.Err.Error()
	}
}

func (e *HTTPError) Unwrap() error { return e.Err }

func badRequest(format string, args ...any) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// statusOf maps an error to its HTTP status. Explicit HTTPErrors win;
// run failures are classified by their sentinel.
func statusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) && he.Status != 0 {
		return he.Status
	}

	switch {
	case errors.Is(err, ErrRouteNotFound), errors.Is(err, core.ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrModelCall), errors.Is(err, core.ErrUnrecognizedResponse):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrRunCancelled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// messageOf returns the client-facing message: the error text, so run
// failures reach the caller with their cause.
func messageOf(err error) string {
	var he *HTTPError
	if errors.As(err, &he) && he.Message != "" {
		return he.Message
	}

	switch {
	case errors.Is(err, ErrRouteNotFound):
		return "Page not found"
	case errors.Is(err, core.ErrConversationNotFound):
		return "Chat not found"
	default:
		return err.Error()
	}
}
