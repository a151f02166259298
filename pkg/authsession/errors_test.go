package authsession

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

// timeoutErr mimics a transport-level timeout.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsExpiry(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"expired token", &APIError{Status: http.StatusUnauthorized, Code: CodeTokenExpired}, true},
		{"generally invalid", &APIError{Status: http.StatusUnauthorized, Code: CodeInvalidToken}, false},
		{"expired code on wrong status", &APIError{Status: http.StatusForbidden, Code: CodeTokenExpired}, false},
		{"wrapped", fmt.Errorf("verify: %w", &APIError{Status: http.StatusUnauthorized, Code: CodeTokenExpired}), true},
		{"not an api error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := isExpiry(tc.err); got != tc.want {
			t.Errorf("%s: isExpiry = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsAuthoritative(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"401", &APIError{Status: http.StatusUnauthorized}, true},
		{"403", &APIError{Status: http.StatusForbidden}, true},
		{"500", &APIError{Status: http.StatusInternalServerError}, false},
		{"network", timeoutErr{}, false},
	}
	for _, tc := range cases {
		if got := isAuthoritative(tc.err); got != tc.want {
			t.Errorf("%s: isAuthoritative = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout", timeoutErr{}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"500", &APIError{Status: http.StatusInternalServerError}, true},
		{"503", &APIError{Status: http.StatusServiceUnavailable}, true},
		{"429", &APIError{Status: http.StatusTooManyRequests}, true},
		{"401", &APIError{Status: http.StatusUnauthorized}, false},
		{"403", &APIError{Status: http.StatusForbidden}, false},
		{"422", &APIError{Status: http.StatusUnprocessableEntity}, false},
		{"local error", errors.New("json: cannot unmarshal"), false},
		{"cancellation", context.Canceled, false},
	}
	for _, tc := range cases {
		if got := isRetryable(tc.err); got != tc.want {
			t.Errorf("%s: isRetryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestAPIErrorMessage(t *testing.T) {
	e := &APIError{Status: 401, Code: CodeInvalidToken, Message: "Token is invalid"}
	if e.Error() != "Token is invalid" {
		t.Errorf("Error() = %q", e.Error())
	}

	e = &APIError{Status: 401, Code: CodeInvalidToken}
	if e.Error() != "invalid_token (status 401)" {
		t.Errorf("Error() = %q", e.Error())
	}

	e = &APIError{Status: 500}
	if e.Error() != "request failed with status 500" {
		t.Errorf("Error() = %q", e.Error())
	}
}

func TestValidationErrorMessage(t *testing.T) {
	e := &ValidationError{Fields: map[string][]string{
		"password": {"is too short"},
		"email":    {"is already taken", "is invalid"},
	}}
	want := "email: is already taken, is invalid; password: is too short"
	if got := e.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
