package authsession

import "context"

// OutcomeKind tags the result of a social authorization attempt.
type OutcomeKind int

const (
	// OutcomeToken: the provider returned an identity token to exchange
	OutcomeToken OutcomeKind = iota
	// OutcomeCode: the provider returned an authorization code instead
	OutcomeCode
	// OutcomeCancelled: the user backed out of the flow
	OutcomeCancelled
	// OutcomeError: the provider itself failed
	OutcomeError
)

// AuthOutcome is the normalized result of a provider flow. Exactly one of
// Token or Code is set on success; Err carries the provider's message for
// OutcomeError. FirstName/LastName are set only by providers that share
// them, and only on the user's first authorization.
type AuthOutcome struct {
	Kind      OutcomeKind
	Token     string
	Code      string
	FirstName string
	LastName  string
	Err       string
}

// SocialProvider runs an external identity flow and reports one of the four
// outcomes. It never talks to the Langua backend itself; the manager
// exchanges the token or code through the unified social-auth endpoint.
type SocialProvider interface {
	// Name is the provider identifier sent to the backend, e.g. "google"
	Name() string

	// Authorize runs the flow. The error return is for infrastructure
	// failures (a listener that would not start); user-facing outcomes,
	// including cancellation, travel in the AuthOutcome.
	Authorize(ctx context.Context) (AuthOutcome, error)
}
