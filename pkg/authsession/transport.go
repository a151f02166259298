package authsession

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// Do sends req with the current access credential attached and performs at
// most one transparent refresh-and-retry when the backend answers 401 with
// code token_expired. Every other outcome, including the retry's, is
// returned to the caller untouched with a readable body; there is no retry
// loop here.
//
// Concurrent callers racing a stale credential may each trigger a refresh.
// Redundant refreshes are idempotent on the backend, and the refresh itself
// is serialized, so this is wasteful but not unsafe.
func (m *Manager) Do(req *http.Request) (*http.Response, error) {
	token := m.session.currentToken()
	if token == "" {
		if t, err := m.storage.Get(req.Context(), KeyAuthToken); err == nil {
			token = t
		}
	}
	if token == "" {
		return nil, ErrNoCredential
	}

	resp, err := m.send(req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	code, raw := readErrorCode(resp)
	if code != CodeTokenExpired {
		// Generic invalidity is the caller's to handle
		resp.Body = io.NopCloser(bytes.NewReader(raw))
		return resp, nil
	}

	newToken, ok := m.refreshCredentials(req.Context())
	if !ok {
		resp.Body = io.NopCloser(bytes.NewReader(raw))
		return resp, nil
	}
	return m.send(req, newToken)
}

// send clones req so the original stays replayable for the retry, attaches
// the bearer header, and dispatches on the manager's HTTP client. Requests
// whose body cannot be re-materialized (no GetBody) are retried with
// whatever remains of the original body.
func (m *Manager) send(req *http.Request, token string) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	clone.Header.Set("Authorization", "Bearer "+token)
	return m.httpClient.Do(clone)
}

// readErrorCode drains a 401 body far enough to learn why the request was
// rejected. Older backend deploys answer without a code; those count as
// generally invalid.
func readErrorCode(resp *http.Response) (string, []byte) {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()

	var e struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(raw, &e); err != nil || e.Code == "" {
		return CodeInvalidToken, raw
	}
	return e.Code, raw
}

// NewRequest builds a request against the backend base URL, for consumers
// that address endpoints by path rather than absolute URL.
func (m *Manager) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, m.api.url(path), body)
}

// Transport is an http.RoundTripper that funnels requests through Do, so
// any http.Client user picks up credential injection and expiry handling.
type Transport struct {
	m *Manager
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.m.Do(req)
}

// Client returns an http.Client whose requests carry the session
// credential.
func (m *Manager) Client() *http.Client {
	return &http.Client{Transport: &Transport{m: m}}
}
