package authsession

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
)

// Machine-readable codes the backend attaches to authoritative rejections.
const (
	CodeTokenExpired        = "token_expired"
	CodeInvalidToken        = "invalid_token"
	CodeInvalidCredentials  = "invalid_credentials"
	CodeInvalidRefreshToken = "invalid_refresh_token"
	CodeValidationError     = "validation_error"
)

// Session lifecycle errors. The messages of ErrInvalidCredentials and
// ErrCancelled are surfaced verbatim as inline UI text.
var (
	ErrNoCredential       = errors.New("no authentication token available")
	ErrCancelled          = errors.New("Sign in was cancelled")
	ErrInvalidCredentials = errors.New("Invalid email or password")
)

// APIError is an authoritative answer from the backend: the request reached
// the server and was rejected with a status and usually a code. It is never
// classified as transient.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return fmt.Sprintf("%s (status %d)", e.Code, e.Status)
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// ValidationError aggregates per-field signup errors into one message.
type ValidationError struct {
	Fields map[string][]string
}

// Error renders "field: msg, msg; field: msg" with fields sorted for a
// stable message.
func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(e.Fields[field], ", "))
	}
	return strings.Join(parts, "; ")
}

// isExpiry reports whether err is the backend saying the access credential
// expired specifically, as opposed to being generally invalid.
func isExpiry(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusUnauthorized && ae.Code == CodeTokenExpired
}

// isAuthoritative reports whether err is a definitive rejection of the
// credential (unauthorized or forbidden).
func isAuthoritative(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Status == http.StatusUnauthorized || ae.Status == http.StatusForbidden
}

// isRetryable classifies transient failures: timeouts, connection and DNS
// errors, and server-side statuses that say nothing about the credential.
// Authoritative rejections and local non-network errors are not retryable.
func isRetryable(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		switch ae.Status {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
			return false
		}
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
