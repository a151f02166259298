package authsession

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDoWithoutCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent without a credential")
	}))
	defer srv.Close()

	mgr, _ := newTestManager(t, srv.URL, NewMemoryStorage())
	req, err := mgr.NewRequest(context.Background(), http.MethodGet, "/lessons", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}

	if _, err := mgr.Do(req); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("err = %v, want ErrNoCredential", err)
	}
}

func TestDoAttachesStoredCredential(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/lessons", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer stored-token" {
			t.Errorf("Authorization = %q", got)
		}
		writeJSON(w, 200, map[string]string{"ok": "yes"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// Token is read from storage when the session has none yet
	storage := NewMemoryStorage()
	seedCredentials(t, storage, "stored-token", "")

	mgr, _ := newTestManager(t, srv.URL, storage)
	req, _ := mgr.NewRequest(context.Background(), http.MethodGet, "/lessons", nil)
	resp, err := mgr.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestDoRefreshesExpiredCredentialOnce(t *testing.T) {
	var lessonCalls, refreshCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/lessons", func(w http.ResponseWriter, r *http.Request) {
		lessonCalls++
		if r.Header.Get("Authorization") == "Bearer fresh-token" {
			writeJSON(w, 200, map[string]string{"ok": "yes"})
			return
		}
		writeJSON(w, 401, map[string]string{"code": CodeTokenExpired})
	})
	mux.HandleFunc("/token/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		writeJSON(w, 200, refreshPayload{AccessToken: "fresh-token", RefreshToken: "fresh-refresh"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	storage := NewMemoryStorage()
	seedCredentials(t, storage, "stale-token", "stored-refresh")

	mgr, _ := newTestManager(t, srv.URL, storage)
	req, _ := mgr.NewRequest(context.Background(), http.MethodGet, "/lessons", nil)
	resp, err := mgr.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200 after transparent refresh", resp.StatusCode)
	}
	if lessonCalls != 2 {
		t.Errorf("endpoint hit %d times, want 2", lessonCalls)
	}
	if refreshCalls != 1 {
		t.Errorf("refresh called %d times, want 1", refreshCalls)
	}
	if tok, _ := storage.Get(context.Background(), KeyAuthToken); tok != "fresh-token" {
		t.Errorf("stored token = %q", tok)
	}
}

func TestDoRetriesAtMostOnce(t *testing.T) {
	var lessonCalls, refreshCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/lessons", func(w http.ResponseWriter, r *http.Request) {
		lessonCalls++
		// Always expired, even with the refreshed credential
		writeJSON(w, 401, map[string]string{"code": CodeTokenExpired})
	})
	mux.HandleFunc("/token/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		writeJSON(w, 200, refreshPayload{AccessToken: "fresh-token"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	storage := NewMemoryStorage()
	seedCredentials(t, storage, "stale-token", "stored-refresh")

	mgr, _ := newTestManager(t, srv.URL, storage)
	req, _ := mgr.NewRequest(context.Background(), http.MethodGet, "/lessons", nil)
	resp, err := mgr.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 401 {
		t.Errorf("status = %d, want the retry's 401 surfaced", resp.StatusCode)
	}
	if lessonCalls != 2 {
		t.Errorf("endpoint hit %d times, want exactly 2", lessonCalls)
	}
	if refreshCalls != 1 {
		t.Errorf("refresh called %d times, want exactly 1", refreshCalls)
	}
}

func TestDoSurfacesNonExpiryRejection(t *testing.T) {
	var refreshCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/lessons", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, map[string]string{"code": CodeInvalidToken, "message": "Token is invalid"})
	})
	mux.HandleFunc("/token/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	storage := NewMemoryStorage()
	seedCredentials(t, storage, "bad-token", "stored-refresh")

	mgr, _ := newTestManager(t, srv.URL, storage)
	req, _ := mgr.NewRequest(context.Background(), http.MethodGet, "/lessons", nil)
	resp, err := mgr.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	if refreshCalls != 0 {
		t.Errorf("refresh called %d times, want 0", refreshCalls)
	}
	if resp.StatusCode != 401 {
		t.Errorf("status = %d", resp.StatusCode)
	}

	// The 401 body must still be readable after code sniffing
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("reading surfaced body: %v", err)
	}
	if body.Message != "Token is invalid" {
		t.Errorf("body message = %q", body.Message)
	}
}

func TestDoReplaysRequestBodyOnRetry(t *testing.T) {
	var bodies []string
	mux := http.NewServeMux()
	mux.HandleFunc("/notes", func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(raw))
		if r.Header.Get("Authorization") == "Bearer fresh-token" {
			w.WriteHeader(201)
			return
		}
		writeJSON(w, 401, map[string]string{"code": CodeTokenExpired})
	})
	mux.HandleFunc("/token/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, refreshPayload{AccessToken: "fresh-token"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	storage := NewMemoryStorage()
	seedCredentials(t, storage, "stale-token", "stored-refresh")

	mgr, _ := newTestManager(t, srv.URL, storage)
	req, _ := mgr.NewRequest(context.Background(), http.MethodPost, "/notes", strings.NewReader(`{"text":"hi"}`))
	resp, err := mgr.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	resp.Body.Close()

	if len(bodies) != 2 {
		t.Fatalf("endpoint hit %d times, want 2", len(bodies))
	}
	if bodies[0] != `{"text":"hi"}` || bodies[1] != `{"text":"hi"}` {
		t.Errorf("bodies = %q", bodies)
	}
}

func TestClientRoundTrips(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/lessons", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer stored-token" {
			t.Errorf("Authorization = %q", got)
		}
		w.WriteHeader(200)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	storage := NewMemoryStorage()
	seedCredentials(t, storage, "stored-token", "")

	mgr, _ := newTestManager(t, srv.URL, storage)
	resp, err := mgr.Client().Get(srv.URL + "/lessons")
	if err != nil {
		t.Fatalf("Get through session client failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestReadErrorCodeWithUnparseableBody(t *testing.T) {
	resp := &http.Response{Body: io.NopCloser(strings.NewReader("Unauthorized"))}
	code, raw := readErrorCode(resp)
	if code != CodeInvalidToken {
		t.Errorf("code = %q, want invalid_token for codeless bodies", code)
	}
	if string(raw) != "Unauthorized" {
		t.Errorf("raw = %q", raw)
	}
}
