package authsession

import "sync"

// State identifies where the session is in its lifecycle.
type State int

const (
	// StateIdle: constructed, Initialize not yet run
	StateIdle State = iota
	// StateVerifying: boot verification against the backend in progress
	StateVerifying
	// StateRefreshing: boot verification is exchanging the refresh credential
	StateRefreshing
	// StateAuthenticated: identity verified, user populated
	StateAuthenticated
	// StateUnverified: credential kept despite an unreachable backend
	StateUnverified
	// StateUnauthenticated: no session
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateVerifying:
		return "verifying"
	case StateRefreshing:
		return "refreshing"
	case StateAuthenticated:
		return "authenticated"
	case StateUnverified:
		return "unverified"
	case StateUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// User is the profile the backend returns once identity is established.
type User struct {
	ID                  int64  `json:"id"`
	UUID                string `json:"uuid"`
	Email               string `json:"email"`
	FirstName           string `json:"first_name,omitempty"`
	LastName            string `json:"last_name,omitempty"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
}

// Snapshot is an immutable view of the session, handed to subscribers on
// every transition. Authenticated is true for both verified and unverified
// sessions; User is nil while unverified.
type Snapshot struct {
	State         State
	Authenticated bool
	Loading       bool
	Token         string
	User          *User
}

// sessionState owns the mutable session. All writes go through the named
// transitions below so every change publishes exactly one snapshot, and so
// the invariants hold structurally: an authenticated state always carries a
// token, and a user is only ever set together with StateAuthenticated.
type sessionState struct {
	mu      sync.Mutex
	state   State
	loading bool
	token   string
	user    *User

	subs    map[int]func(Snapshot)
	nextSub int
}

func newSessionState() *sessionState {
	return &sessionState{
		state:   StateIdle,
		loading: true,
		subs:    make(map[int]func(Snapshot)),
	}
}

// Snapshot returns a copy of the current session.
func (s *sessionState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *sessionState) snapshotLocked() Snapshot {
	var user *User
	if s.user != nil {
		u := *s.user
		user = &u
	}
	return Snapshot{
		State:         s.state,
		Authenticated: s.state == StateAuthenticated || s.state == StateUnverified,
		Loading:       s.loading,
		Token:         s.token,
		User:          user,
	}
}

// Subscribe registers fn to receive every subsequent transition. The
// returned function cancels the subscription.
func (s *sessionState) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// apply runs mutate under the lock, then publishes the resulting snapshot.
// Subscribers are invoked outside the lock so they may re-read the session.
func (s *sessionState) apply(mutate func()) {
	s.mu.Lock()
	mutate()
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *sessionState) currentToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *sessionState) beginVerifying() {
	s.apply(func() { s.state = StateVerifying })
}

func (s *sessionState) beginRefreshing() {
	s.apply(func() { s.state = StateRefreshing })
}

func (s *sessionState) setAuthenticated(token string, user *User) {
	s.apply(func() {
		s.state = StateAuthenticated
		s.token = token
		s.user = user
	})
}

// setUnverified keeps the session alive without a user: the credential
// exists but the backend could not confirm it.
func (s *sessionState) setUnverified(token string) {
	s.apply(func() {
		s.state = StateUnverified
		s.token = token
		s.user = nil
	})
}

func (s *sessionState) setUnauthenticated() {
	s.apply(func() {
		s.state = StateUnauthenticated
		s.token = ""
		s.user = nil
	})
}

// setToken swaps the access credential in place after a refresh without
// touching the rest of the session.
func (s *sessionState) setToken(token string) {
	s.apply(func() { s.token = token })
}

// finishLoading marks boot settled; it fires once, at the end of
// initialization, and loading never becomes true again.
func (s *sessionState) finishLoading() {
	s.apply(func() { s.loading = false })
}
