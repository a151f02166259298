package authsession

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// apiClient speaks the backend's auth surface. It does no retrying and no
// credential management of its own; that belongs to the Manager.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, client *http.Client) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
	}
}

func (c *apiClient) url(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// authPayload is the success shape shared by sign-in, sign-up, and
// social-auth responses.
type authPayload struct {
	Token               string `json:"token"`
	AccessToken         string `json:"access_token"`
	RefreshToken        string `json:"refresh_token"`
	ID                  int64  `json:"id"`
	UUID                string `json:"uuid"`
	Email               string `json:"email"`
	FirstName           string `json:"first_name"`
	LastName            string `json:"last_name"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
}

// credential returns the access token, falling back to the legacy field
// still sent by older backend deploys.
func (p *authPayload) credential() string {
	if p.AccessToken != "" {
		return p.AccessToken
	}
	return p.Token
}

func (p *authPayload) asUser() *User {
	return &User{
		ID:                  p.ID,
		UUID:                p.UUID,
		Email:               p.Email,
		FirstName:           p.FirstName,
		LastName:            p.LastName,
		OnboardingCompleted: p.OnboardingCompleted,
	}
}

type refreshPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type socialAuthRequest struct {
	Token     string `json:"token"`
	Provider  string `json:"provider"`
	Platform  string `json:"platform"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

func (c *apiClient) signIn(ctx context.Context, email, password string) (*authPayload, error) {
	body := map[string]any{
		"user": map[string]any{
			"email":    email,
			"password": password,
		},
	}
	var payload authPayload
	if err := c.call(ctx, http.MethodPost, "sign_in", "", body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *apiClient) signUp(ctx context.Context, params SignupParams) (*authPayload, error) {
	body := map[string]any{
		"user": map[string]any{
			"email":             params.Email,
			"password":          params.Password,
			"first_name":        params.Name,
			"accepts_marketing": params.AcceptsMarketing,
		},
	}
	var payload authPayload
	if err := c.call(ctx, http.MethodPost, "sign_up", "", body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *apiClient) socialAuth(ctx context.Context, req socialAuthRequest) (*authPayload, error) {
	body := map[string]any{"social_auth": req}
	var payload authPayload
	if err := c.call(ctx, http.MethodPost, "auth/"+req.Provider, "", body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *apiClient) me(ctx context.Context, token string) (*User, error) {
	var user User
	if err := c.call(ctx, http.MethodGet, "me", token, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *apiClient) refreshToken(ctx context.Context, refreshToken, deviceID, deviceName string) (*refreshPayload, error) {
	body := map[string]any{
		"refresh_token": refreshToken,
		"device_id":     deviceID,
		"device_name":   deviceName,
	}
	var payload refreshPayload
	if err := c.call(ctx, http.MethodPost, "token/refresh", "", body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *apiClient) revokeToken(ctx context.Context, token, refreshToken string) error {
	body := map[string]any{"refresh_token": refreshToken}
	return c.call(ctx, http.MethodPost, "token/revoke", token, body, nil)
}

// signOut hits the legacy logout endpoint kept for older backend deploys.
func (c *apiClient) signOut(ctx context.Context, token string) error {
	return c.call(ctx, http.MethodDelete, "sign_out", token, nil, nil)
}

// call issues one request. Transport failures come back as-is (they carry
// net.Error semantics for classification); non-2xx answers are decoded into
// APIError or ValidationError.
func (c *apiClient) call(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("invalid response from server: %w", err)
		}
	}
	return nil
}

// decodeError maps a non-2xx body onto the error taxonomy. Older deploys
// answer 401 without a code; those are treated as generally invalid.
func decodeError(status int, raw []byte) error {
	var e struct {
		Code    string              `json:"code"`
		Message string              `json:"message"`
		Err     string              `json:"error"`
		Errors  map[string][]string `json:"errors"`
	}
	_ = json.Unmarshal(raw, &e)

	if e.Code == CodeValidationError && len(e.Errors) > 0 {
		return &ValidationError{Fields: e.Errors}
	}

	msg := e.Message
	if msg == "" {
		msg = e.Err
	}
	code := e.Code
	if code == "" && status == http.StatusUnauthorized {
		code = CodeInvalidToken
	}
	return &APIError{Status: status, Code: code, Message: msg}
}
