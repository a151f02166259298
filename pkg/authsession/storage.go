package authsession

import (
	"context"
	"errors"
)

// Storage keys for persisted credentials. Values are plain strings; the
// session itself is never persisted, only the credential pair and the
// onboarding flag.
const (
	KeyAuthToken           = "authToken"
	KeyRefreshToken        = "refreshToken"
	KeyOnboardingCompleted = "onboardingCompleted"

	keyInstallationID = "installationId"
)

// ErrNotFound is returned by Storage implementations when a key is absent.
var ErrNotFound = errors.New("key not found")

// Storage defines the interface for credential persistence backends.
// Implementations can use files, SQLite, Redis, OS keychains, etc. Calls are
// single-shot; no transactional scope is required.
type Storage interface {
	// Get retrieves the value for key, or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, overwriting any previous value
	Set(ctx context.Context, key, value string) error

	// Delete removes key; absent keys are not an error
	Delete(ctx context.Context, key string) error

	// Close cleans up storage resources
	Close() error
}
