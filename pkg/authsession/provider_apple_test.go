package authsession

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// unsignedToken builds a compact JWT with a garbage signature; the provider
// never verifies signatures, only parses claims.
func unsignedToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	header, _ := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshaling claims: %v", err)
	}
	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + "." + enc.EncodeToString([]byte("sig"))
}

func TestAppleProviderForwardsIdentityToken(t *testing.T) {
	token := unsignedToken(t, map[string]any{
		"sub":   "001234.abcdef",
		"iss":   "https://appleid.apple.com",
		"email": "a@privaterelay.appleid.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	provider := NewAppleProvider(func(ctx context.Context) (*AppleCredential, error) {
		return &AppleCredential{
			IdentityToken: token,
			GivenName:     "Ada",
			FamilyName:    "Lovelace",
		}, nil
	})

	outcome, err := provider.Authorize(context.Background())
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if outcome.Kind != OutcomeToken {
		t.Fatalf("kind = %v, want OutcomeToken", outcome.Kind)
	}
	if outcome.Token != token {
		t.Error("identity token not forwarded verbatim")
	}
	if outcome.FirstName != "Ada" || outcome.LastName != "Lovelace" {
		t.Errorf("name = %q %q", outcome.FirstName, outcome.LastName)
	}
}

func TestAppleProviderCancellation(t *testing.T) {
	for _, signerErr := range []error{ErrCancelled, context.Canceled} {
		provider := NewAppleProvider(func(ctx context.Context) (*AppleCredential, error) {
			return nil, signerErr
		})
		outcome, err := provider.Authorize(context.Background())
		if err != nil {
			t.Fatalf("Authorize failed: %v", err)
		}
		if outcome.Kind != OutcomeCancelled {
			t.Errorf("signer error %v: kind = %v, want OutcomeCancelled", signerErr, outcome.Kind)
		}
	}
}

func TestAppleProviderSignerFailure(t *testing.T) {
	provider := NewAppleProvider(func(ctx context.Context) (*AppleCredential, error) {
		return nil, errors.New("ASAuthorizationError 1000")
	})
	outcome, err := provider.Authorize(context.Background())
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if outcome.Kind != OutcomeError || outcome.Err == "" {
		t.Errorf("outcome = %+v, want OutcomeError with detail", outcome)
	}
}

func TestAppleProviderMalformedToken(t *testing.T) {
	provider := NewAppleProvider(func(ctx context.Context) (*AppleCredential, error) {
		return &AppleCredential{IdentityToken: "not-a-jwt"}, nil
	})
	outcome, err := provider.Authorize(context.Background())
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if outcome.Kind != OutcomeError {
		t.Errorf("kind = %v, want OutcomeError", outcome.Kind)
	}
}

func TestAppleProviderEmptyCredential(t *testing.T) {
	provider := NewAppleProvider(func(ctx context.Context) (*AppleCredential, error) {
		return &AppleCredential{}, nil
	})
	outcome, err := provider.Authorize(context.Background())
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if outcome.Kind != OutcomeError {
		t.Errorf("kind = %v, want OutcomeError", outcome.Kind)
	}
}

func TestAppleProviderCodeOnlyCredential(t *testing.T) {
	provider := NewAppleProvider(func(ctx context.Context) (*AppleCredential, error) {
		return &AppleCredential{AuthorizationCode: "c_abc123"}, nil
	})
	outcome, err := provider.Authorize(context.Background())
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if outcome.Kind != OutcomeCode || outcome.Code != "c_abc123" {
		t.Errorf("outcome = %+v, want code forwarded", outcome)
	}
}

func TestPeekTokenClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := unsignedToken(t, map[string]any{
		"sub":   "001234.abcdef",
		"iss":   "https://appleid.apple.com",
		"email": "a@b.com",
		"exp":   exp.Unix(),
	})

	claims, err := peekTokenClaims(raw)
	if err != nil {
		t.Fatalf("peekTokenClaims failed: %v", err)
	}
	if claims.Subject != "001234.abcdef" {
		t.Errorf("subject = %q", claims.Subject)
	}
	if claims.Issuer != "https://appleid.apple.com" {
		t.Errorf("issuer = %q", claims.Issuer)
	}
	if claims.Email != "a@b.com" {
		t.Errorf("email = %q", claims.Email)
	}
	if claims.ExpiresAt != exp.Unix() {
		t.Errorf("exp = %d, want %d", claims.ExpiresAt, exp.Unix())
	}
}
