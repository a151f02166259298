package authsession

import (
	"context"
	"errors"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/languatalk/langua-go/internal/logger"
)

// AppleCredential is what a platform-native Sign in with Apple flow hands
// back. GivenName and FamilyName are only present on the user's first
// authorization; later sign-ins return just the identity token.
type AppleCredential struct {
	IdentityToken     string
	AuthorizationCode string
	GivenName         string
	FamilyName        string
}

// AppleSigner invokes the platform-native sign-in UI and returns the
// resulting credential. Implementations should return ErrCancelled (or a
// wrapped context.Canceled) when the user dismisses the sheet.
type AppleSigner func(ctx context.Context) (*AppleCredential, error)

// AppleProvider adapts a native Apple sign-in flow to the SocialProvider
// contract. The identity token's signature is the backend's to verify;
// this provider only checks that the token parses and forwards it.
type AppleProvider struct {
	signer AppleSigner
}

// NewAppleProvider creates an Apple sign-in provider around signer.
func NewAppleProvider(signer AppleSigner) *AppleProvider {
	return &AppleProvider{signer: signer}
}

// Name returns the provider identifier.
func (a *AppleProvider) Name() string {
	return "apple"
}

// Authorize runs the native flow and normalizes its result.
func (a *AppleProvider) Authorize(ctx context.Context) (AuthOutcome, error) {
	if a.signer == nil {
		return AuthOutcome{Kind: OutcomeError, Err: "no native Apple signer configured"}, nil
	}

	cred, err := a.signer(ctx)
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
		return AuthOutcome{Kind: OutcomeCancelled}, nil
	}
	if err != nil {
		return AuthOutcome{Kind: OutcomeError, Err: err.Error()}, nil
	}
	if cred == nil || (cred.IdentityToken == "" && cred.AuthorizationCode == "") {
		return AuthOutcome{Kind: OutcomeError, Err: "no identity token received"}, nil
	}

	outcome := AuthOutcome{
		FirstName: cred.GivenName,
		LastName:  cred.FamilyName,
	}

	if cred.IdentityToken == "" {
		outcome.Kind = OutcomeCode
		outcome.Code = cred.AuthorizationCode
		return outcome, nil
	}

	claims, err := peekTokenClaims(cred.IdentityToken)
	if err != nil {
		return AuthOutcome{Kind: OutcomeError, Err: "malformed identity token: " + err.Error()}, nil
	}
	logger.Debug("apple identity token received", "subject", claims.Subject, "issuer", claims.Issuer)

	outcome.Kind = OutcomeToken
	outcome.Token = cred.IdentityToken
	return outcome, nil
}

// tokenClaims are the claims peeked from an identity token.
type tokenClaims struct {
	Subject   string
	Issuer    string
	Email     string
	ExpiresAt int64
}

// peekTokenClaims extracts claims without verifying the signature; the
// backend owns cryptographic verification.
func peekTokenClaims(raw string) (*tokenClaims, error) {
	token, err := jwt.Parse([]byte(raw), jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return nil, err
	}

	claims := &tokenClaims{
		Subject: token.Subject(),
		Issuer:  token.Issuer(),
	}
	if !token.Expiration().IsZero() {
		claims.ExpiresAt = token.Expiration().Unix()
	}
	if emailClaim, ok := token.Get("email"); ok {
		if email, ok := emailClaim.(string); ok {
			claims.Email = email
		}
	}
	return claims, nil
}
