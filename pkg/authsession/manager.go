package authsession

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"

	"github.com/languatalk/langua-go/internal/logger"
)

// verifyAttempts bounds boot verification. Exhausting it without an
// authoritative answer keeps the user signed in.
const verifyAttempts = 3

// CleanupReason records why a session was cleared.
type CleanupReason string

const (
	ReasonManualLogout        CleanupReason = "manual_logout"
	ReasonInvalidToken        CleanupReason = "invalid_token"
	ReasonTokenExpired        CleanupReason = "token_expired"
	ReasonInvalidRefreshToken CleanupReason = "invalid_refresh_token"
	ReasonNetworkError        CleanupReason = "network_error"
	ReasonNonNetworkError     CleanupReason = "non_network_error"
	ReasonInitializationError CleanupReason = "initialization_error"
)

// Manager owns the session lifecycle. Operations are safe for concurrent
// use; the session itself is mutated only through its named transitions.
type Manager struct {
	api      *apiClient
	storage  Storage
	platform Platform
	recorder Recorder
	google   SocialProvider
	apple    SocialProvider
	validate *validator.Validate

	verifyTimeout time.Duration
	backoffBase   time.Duration
	backoffCap    time.Duration

	// refreshMu serializes credential refreshes so two racing requests
	// cannot interleave the two storage writes
	refreshMu sync.Mutex

	httpClient *http.Client
	session    *sessionState
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient sets the client used for all backend calls.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

// WithPlatform overrides the device identity source.
func WithPlatform(p Platform) Option {
	return func(m *Manager) { m.platform = p }
}

// WithRecorder sets the observability sink. Defaults to LogRecorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithGoogleProvider wires the Google sign-in flow.
func WithGoogleProvider(p SocialProvider) Option {
	return func(m *Manager) { m.google = p }
}

// WithAppleProvider wires the Apple sign-in flow.
func WithAppleProvider(p SocialProvider) Option {
	return func(m *Manager) { m.apple = p }
}

// WithVerifyTimeout bounds each boot verification attempt. Defaults to 10s.
func WithVerifyTimeout(d time.Duration) Option {
	return func(m *Manager) { m.verifyTimeout = d }
}

// WithBackoff sets the verification retry backoff: base doubles per attempt
// up to cap. Defaults to 1s base, 5s cap.
func WithBackoff(base, cap time.Duration) Option {
	return func(m *Manager) {
		m.backoffBase = base
		m.backoffCap = cap
	}
}

// NewManager creates a session manager for the backend at apiBaseURL,
// persisting credentials through storage. The session starts loading; call
// Initialize to settle it.
func NewManager(apiBaseURL string, storage Storage, opts ...Option) *Manager {
	m := &Manager{
		storage:       storage,
		recorder:      LogRecorder{},
		validate:      validator.New(),
		verifyTimeout: 10 * time.Second,
		backoffBase:   time.Second,
		backoffCap:    5 * time.Second,
		httpClient:    &http.Client{},
		session:       newSessionState(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.api = newAPIClient(apiBaseURL, m.httpClient)
	if m.platform == nil {
		m.platform = NewHostPlatform(storage)
	}
	return m
}

// Snapshot returns the current session view.
func (m *Manager) Snapshot() Snapshot {
	return m.session.Snapshot()
}

// Subscribe registers fn to receive every session transition. The returned
// function cancels the subscription.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	return m.session.Subscribe(fn)
}

// IsAuthenticated reports whether a session exists, verified or not.
func (m *Manager) IsAuthenticated() bool {
	return m.session.Snapshot().Authenticated
}

// IsLoading reports whether boot initialization is still settling.
func (m *Manager) IsLoading() bool {
	return m.session.Snapshot().Loading
}

// Token returns the current access credential, or "".
func (m *Manager) Token() string {
	return m.session.currentToken()
}

// User returns the verified profile, or nil while unverified or signed out.
func (m *Manager) User() *User {
	return m.session.Snapshot().User
}

// OnboardingCompleted reports the persisted onboarding flag.
func (m *Manager) OnboardingCompleted(ctx context.Context) bool {
	v, err := m.storage.Get(ctx, KeyOnboardingCompleted)
	return err == nil && v == "true"
}

// Initialize settles the session from the persisted credential. It never
// returns an error: every failure mode maps onto a session state. Loading
// stays true until the outcome is settled, and is cleared exactly once.
//
// Transient failures are retried up to verifyAttempts times with
// exponential backoff. If every attempt fails without an authoritative
// answer, the credential is kept and the session marked unverified rather
// than logging the user out over an outage.
func (m *Manager) Initialize(ctx context.Context) {
	defer m.session.finishLoading()

	token, err := m.storage.Get(ctx, KeyAuthToken)
	if errors.Is(err, ErrNotFound) || (err == nil && token == "") {
		m.session.setUnauthenticated()
		return
	}
	if err != nil {
		logger.Error("reading stored credential failed", "error", err)
		m.cleanup(ctx, ReasonInitializationError)
		return
	}

	m.session.beginVerifying()

	var user *User
	attempts := 0
	verify := func() error {
		attempts++
		u, verr := m.verifyOnce(ctx, token)
		if verr == nil {
			user = u
			return nil
		}
		if isRetryable(verr) {
			logger.Warn("identity verification attempt failed", "attempt", attempts, "error", verr)
			return verr
		}
		return backoff.Permanent(verr)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.backoffBase
	b.Multiplier = 2
	b.MaxInterval = m.backoffCap
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	err = backoff.Retry(verify, backoff.WithContext(backoff.WithMaxRetries(b, verifyAttempts-1), ctx))

	switch {
	case err == nil:
		m.session.setAuthenticated(token, user)
		m.identify(ctx, user)

	case isExpiry(err):
		// One refresh-and-retry cycle; retry policy stays at this layer,
		// the refresh itself is a single attempt
		m.session.beginRefreshing()
		if newToken, ok := m.refreshCredentials(ctx); ok {
			if u, verr := m.verifyOnce(ctx, newToken); verr == nil {
				m.session.setAuthenticated(newToken, u)
				m.identify(ctx, u)
				return
			}
		}
		m.cleanup(ctx, ReasonTokenExpired)

	case isAuthoritative(err):
		m.cleanup(ctx, cleanupReasonFor(err))

	case isRetryable(err) || errors.Is(err, context.Canceled):
		logger.Warn("identity verification failed after retries, keeping user signed in",
			"attempts", attempts, "error", err)
		m.session.setUnverified(token)
		m.record(ctx, Event{
			Name:     EventUnverified,
			Attempts: attempts,
			HadToken: true,
			Platform: m.platform.OS(),
			Detail:   err.Error(),
		})

	default:
		logger.Error("identity verification failed with non-network error", "error", err)
		m.cleanup(ctx, ReasonNonNetworkError)
	}
}

// verifyOnce asks the backend who the credential belongs to, bounded by the
// per-attempt timeout so a hung network cannot stall boot.
func (m *Manager) verifyOnce(ctx context.Context, token string) (*User, error) {
	cctx, cancel := context.WithTimeout(ctx, m.verifyTimeout)
	defer cancel()
	return m.api.me(cctx, token)
}

// refreshCredentials exchanges the stored refresh credential for a new
// access credential. A single attempt, no backoff: callers own their retry
// policy, which keeps backoff from compounding across layers. Both
// credentials are written to storage before the in-memory token moves, so
// storage and session never diverge after a successful refresh.
func (m *Manager) refreshCredentials(ctx context.Context) (string, bool) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	refreshToken, err := m.storage.Get(ctx, KeyRefreshToken)
	if err != nil || refreshToken == "" {
		return "", false
	}

	deviceID, err := m.platform.DeviceID(ctx)
	if err != nil {
		logger.Warn("device id unavailable for refresh", "error", err)
		deviceID = "unknown"
	}

	payload, err := m.api.refreshToken(ctx, refreshToken, deviceID, m.platform.DeviceName())
	if err != nil {
		logger.Warn("credential refresh failed", "error", err)
		return "", false
	}
	if payload.AccessToken == "" {
		logger.Warn("credential refresh returned no access token")
		return "", false
	}

	if err := m.storage.Set(ctx, KeyAuthToken, payload.AccessToken); err != nil {
		logger.Error("persisting refreshed access credential failed", "error", err)
		return "", false
	}
	if payload.RefreshToken != "" {
		if err := m.storage.Set(ctx, KeyRefreshToken, payload.RefreshToken); err != nil {
			logger.Error("persisting rotated refresh credential failed", "error", err)
		}
	}

	m.session.setToken(payload.AccessToken)
	return payload.AccessToken, true
}

// Login exchanges email and password for a session. On failure the session
// is left untouched.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	payload, err := m.api.signIn(ctx, email, password)
	if err != nil {
		var ae *APIError
		if errors.As(err, &ae) && ae.Code == CodeInvalidCredentials {
			err = ErrInvalidCredentials
		}
		m.record(ctx, Event{Name: EventLoginFailed, Platform: m.platform.OS(), Detail: err.Error()})
		return err
	}
	return m.completeAuth(ctx, payload)
}

// SignupParams are the fields posted to the sign-up endpoint. The local
// checks catch obviously malformed input before a round trip; the backend
// remains the authority on uniqueness and password policy.
type SignupParams struct {
	Name             string `validate:"required"`
	Email            string `validate:"required,email"`
	Password         string `validate:"required"`
	AcceptsMarketing bool
}

// Signup creates an account and signs it in. Backend field-level rejections
// come back as a single ValidationError.
func (m *Manager) Signup(ctx context.Context, params SignupParams) error {
	if err := m.validate.Struct(params); err != nil {
		return fmt.Errorf("invalid signup details: %w", err)
	}
	payload, err := m.api.signUp(ctx, params)
	if err != nil {
		m.record(ctx, Event{Name: EventSignupFailed, Platform: m.platform.OS(), Detail: err.Error()})
		return err
	}
	return m.completeAuth(ctx, payload)
}

// GoogleSignIn runs the configured Google provider flow.
func (m *Manager) GoogleSignIn(ctx context.Context) error {
	return m.socialSignIn(ctx, m.google)
}

// AppleSignIn runs the configured Apple provider flow.
func (m *Manager) AppleSignIn(ctx context.Context) error {
	return m.socialSignIn(ctx, m.apple)
}

func (m *Manager) socialSignIn(ctx context.Context, provider SocialProvider) error {
	if provider == nil {
		return errors.New("social provider not configured")
	}

	outcome, err := provider.Authorize(ctx)
	if err != nil {
		return fmt.Errorf("%s sign in: %w", provider.Name(), err)
	}

	var credential string
	switch outcome.Kind {
	case OutcomeCancelled:
		return ErrCancelled
	case OutcomeError:
		return fmt.Errorf("%s sign in failed: %s", provider.Name(), outcome.Err)
	case OutcomeToken:
		credential = outcome.Token
	case OutcomeCode:
		credential = outcome.Code
	}

	payload, err := m.api.socialAuth(ctx, socialAuthRequest{
		Token:     credential,
		Provider:  provider.Name(),
		Platform:  m.platform.OS(),
		FirstName: outcome.FirstName,
		LastName:  outcome.LastName,
	})
	if err != nil {
		var ae *APIError
		if errors.As(err, &ae) && ae.Status == http.StatusUnauthorized {
			return fmt.Errorf("authentication failed, please try again or use a different sign-in method")
		}
		return err
	}
	return m.completeAuth(ctx, payload)
}

// completeAuth persists the returned credential pair and onboarding flag,
// then moves the session to authenticated. Storage is written before the
// session so the two never diverge on success.
func (m *Manager) completeAuth(ctx context.Context, payload *authPayload) error {
	token := payload.credential()
	if token == "" {
		return errors.New("no token received in response")
	}

	if err := m.storage.Set(ctx, KeyAuthToken, token); err != nil {
		return fmt.Errorf("persisting access credential: %w", err)
	}
	if payload.RefreshToken != "" {
		if err := m.storage.Set(ctx, KeyRefreshToken, payload.RefreshToken); err != nil {
			return fmt.Errorf("persisting refresh credential: %w", err)
		}
	}
	if err := m.storage.Set(ctx, KeyOnboardingCompleted, strconv.FormatBool(payload.OnboardingCompleted)); err != nil {
		logger.Warn("persisting onboarding flag failed", "error", err)
	}

	user := payload.asUser()
	m.session.setAuthenticated(token, user)
	m.identify(ctx, user)
	return nil
}

// Logout revokes the refresh credential and calls the legacy sign-out
// endpoint, both best effort, then always clears local state. Safe to call
// when already signed out.
func (m *Manager) Logout(ctx context.Context) error {
	token := m.session.currentToken()
	if token == "" {
		if t, err := m.storage.Get(ctx, KeyAuthToken); err == nil {
			token = t
		}
	}
	refreshToken, _ := m.storage.Get(ctx, KeyRefreshToken)

	if token != "" && refreshToken != "" {
		if err := m.api.revokeToken(ctx, token, refreshToken); err != nil {
			logger.Warn("refresh credential revoke failed", "error", err)
		}
	}
	// Older backends invalidate the access credential through sign_out
	if token != "" {
		if err := m.api.signOut(ctx, token); err != nil {
			logger.Warn("legacy sign out failed", "error", err)
		}
	}

	m.cleanup(ctx, ReasonManualLogout)
	return nil
}

// cleanup clears both stored credentials and resets the session. Manual
// logout is routine and not reported; every other reason emits exactly one
// observability event.
func (m *Manager) cleanup(ctx context.Context, reason CleanupReason) {
	hadToken := m.session.currentToken() != ""

	if err := m.storage.Delete(ctx, KeyAuthToken); err != nil && !errors.Is(err, ErrNotFound) {
		logger.Error("clearing access credential failed", "error", err)
	}
	if err := m.storage.Delete(ctx, KeyRefreshToken); err != nil && !errors.Is(err, ErrNotFound) {
		logger.Error("clearing refresh credential failed", "error", err)
	}

	m.session.setUnauthenticated()
	logger.Info("session cleared", "reason", string(reason))

	if reason != ReasonManualLogout {
		m.record(ctx, Event{
			Name:     EventLogout,
			Reason:   reason,
			HadToken: hadToken,
			Platform: m.platform.OS(),
		})
	}
}

// cleanupReasonFor maps an authoritative rejection onto a reason code.
func cleanupReasonFor(err error) CleanupReason {
	var ae *APIError
	if errors.As(err, &ae) {
		switch ae.Code {
		case CodeTokenExpired:
			return ReasonTokenExpired
		case CodeInvalidRefreshToken:
			return ReasonInvalidRefreshToken
		}
	}
	return ReasonInvalidToken
}

// record delivers an event to the recorder. Recorder failures must never
// reach session state.
func (m *Manager) record(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("recorder panicked", "panic", r)
		}
	}()
	m.recorder.AuthEvent(ctx, ev)
}

// identify notifies analytics/revenue sinks of the signed-in user.
func (m *Manager) identify(ctx context.Context, user *User) {
	if user == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("recorder panicked during identify", "panic", r)
		}
	}()
	m.recorder.Identify(ctx, Identity{UUID: user.UUID, Email: user.Email})
}
