package authsession

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/languatalk/langua-go/internal/logger"
)

// Event names emitted by the manager.
const (
	// EventUnverified: boot verification exhausted its retries and the
	// session was kept alive without proof of identity
	EventUnverified = "verification_unverified"
	// EventLogout: the session was cleared for a non-manual reason
	EventLogout = "logout"
	// EventLoginFailed / EventSignupFailed: a credential flow was rejected
	EventLoginFailed  = "login_failed"
	EventSignupFailed = "signup_failed"
)

// Event is a structured auth lifecycle event.
type Event struct {
	Name     string
	Reason   CleanupReason
	Attempts int
	HadToken bool
	Platform string
	Detail   string
}

// Identity identifies the signed-in user to analytics and revenue sinks.
type Identity struct {
	UUID  string
	Email string
}

// Recorder receives lifecycle events and identity notifications,
// fire-and-forget. The manager swallows recorder panics: a broken sink must
// never affect session state.
type Recorder interface {
	AuthEvent(ctx context.Context, ev Event)
	Identify(ctx context.Context, id Identity)
}

// LogRecorder writes events to the default logger. It is the manager's
// default sink.
type LogRecorder struct{}

func (LogRecorder) AuthEvent(ctx context.Context, ev Event) {
	logger.Warn("auth event",
		"event", ev.Name,
		"reason", string(ev.Reason),
		"attempts", ev.Attempts,
		"had_token", ev.HadToken,
		"platform", ev.Platform,
		"detail", ev.Detail,
	)
}

func (LogRecorder) Identify(ctx context.Context, id Identity) {
	logger.Debug("identified user", "uuid", id.UUID)
}

// PrometheusRecorder counts events. Labels carry only event names and
// reason codes, never identity.
type PrometheusRecorder struct {
	events     *prometheus.CounterVec
	identifies prometheus.Counter
}

// NewPrometheusRecorder creates a recorder registered against reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "langua_auth_events_total",
			Help: "Auth lifecycle events by name and reason.",
		}, []string{"event", "reason"}),
		identifies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "langua_auth_identify_total",
			Help: "User identifications delivered to analytics sinks.",
		}),
	}
	reg.MustRegister(r.events, r.identifies)
	return r
}

func (r *PrometheusRecorder) AuthEvent(ctx context.Context, ev Event) {
	r.events.WithLabelValues(ev.Name, string(ev.Reason)).Inc()
}

func (r *PrometheusRecorder) Identify(ctx context.Context, id Identity) {
	r.identifies.Inc()
}

// MultiRecorder fans out to several sinks.
type MultiRecorder []Recorder

func (m MultiRecorder) AuthEvent(ctx context.Context, ev Event) {
	for _, r := range m {
		r.AuthEvent(ctx, ev)
	}
}

func (m MultiRecorder) Identify(ctx context.Context, id Identity) {
	for _, r := range m {
		r.Identify(ctx, id)
	}
}
