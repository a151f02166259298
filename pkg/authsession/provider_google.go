package authsession

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/languatalk/langua-go/internal/logger"
)

// GoogleProvider runs the Google OAuth authorization-code flow against a
// loopback redirect. The code is not exchanged locally: it is handed to the
// backend, which owns the client secret verification and token issuance.
type GoogleProvider struct {
	cfg     *oauth2.Config
	addr    string
	openURL func(url string) error
}

// GoogleOption configures a GoogleProvider.
type GoogleOption func(*GoogleProvider)

// WithLoopbackAddr sets the listen address for the redirect endpoint.
// Defaults to an ephemeral port on 127.0.0.1.
func WithLoopbackAddr(addr string) GoogleOption {
	return func(g *GoogleProvider) { g.addr = addr }
}

// WithBrowserOpener sets how the authorization URL reaches the user. The
// default logs the URL and waits.
func WithBrowserOpener(fn func(url string) error) GoogleOption {
	return func(g *GoogleProvider) { g.openURL = fn }
}

// NewGoogleProvider creates a Google sign-in provider.
func NewGoogleProvider(clientID, clientSecret string, opts ...GoogleOption) *GoogleProvider {
	g := &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		addr: "127.0.0.1:0",
		openURL: func(url string) error {
			logger.Info("Open this URL to sign in with Google", "url", url)
			return nil
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the provider identifier.
func (g *GoogleProvider) Name() string {
	return "google"
}

// Authorize starts a loopback listener, sends the user to Google, and waits
// for the redirect. A denied consent screen maps to OutcomeCancelled, any
// other provider error to OutcomeError.
func (g *GoogleProvider) Authorize(ctx context.Context) (AuthOutcome, error) {
	ln, err := net.Listen("tcp", g.addr)
	if err != nil {
		return AuthOutcome{}, fmt.Errorf("failed to start redirect listener: %w", err)
	}

	state, err := randomState()
	if err != nil {
		ln.Close()
		return AuthOutcome{}, err
	}

	cfg := *g.cfg
	cfg.RedirectURL = "http://" + ln.Addr().String() + "/callback"

	type callback struct {
		code     string
		errParam string
	}
	results := make(chan callback, 1)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		cb := callback{code: q.Get("code"), errParam: q.Get("error")}
		if q.Get("state") != state {
			cb = callback{errParam: "state_mismatch"}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "Sign in complete. You can close this window.")
		select {
		case results <- cb:
		default:
		}
	})}
	go func() {
		// Serve returns ErrServerClosed on shutdown; the listener owns the error path
		_ = srv.Serve(ln)
	}()
	defer srv.Close()

	if err := g.openURL(cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)); err != nil {
		return AuthOutcome{Kind: OutcomeError, Err: err.Error()}, nil
	}

	select {
	case <-ctx.Done():
		return AuthOutcome{Kind: OutcomeCancelled}, nil
	case cb := <-results:
		switch {
		case cb.errParam == "access_denied":
			return AuthOutcome{Kind: OutcomeCancelled}, nil
		case cb.errParam != "":
			return AuthOutcome{Kind: OutcomeError, Err: cb.errParam}, nil
		case cb.code == "":
			return AuthOutcome{Kind: OutcomeError, Err: "no authorization code received"}, nil
		}
		return AuthOutcome{Kind: OutcomeCode, Code: cb.code}, nil
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
