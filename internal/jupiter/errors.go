package jupiter

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for provider responses.
var (
	ErrNoRoute       = errors.New("no route found")
	ErrRateLimited   = errors.New("provider rate limit exceeded")
	ErrTokenNotFound = errors.New("token not found")
)

// APIError is a non-2xx response that maps to no sentinel.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("jupiter api %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("jupiter api %d: %s", e.StatusCode, e.Message)
}

type errorBody struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

var noRouteCodes = map[string]bool{
	"COULD_NOT_FIND_ANY_ROUTE": true,
	"NO_ROUTES_FOUND":          true,
	"TOKEN_NOT_TRADABLE":       true,
}

func mapError(status int, body errorBody) error {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case noRouteCodes[body.ErrorCode],
		status == http.StatusBadRequest && strings.Contains(strings.ToLower(body.Error), "route"):
		return fmt.Errorf("%w: %s", ErrNoRoute, body.Error)
	}
	msg := body.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Code: body.ErrorCode, Message: msg}
}
