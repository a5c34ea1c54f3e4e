package sso

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/residenciauni/residencia/pkg/identity"
)

// GoogleIssuer is the issuer of Google ID tokens
const GoogleIssuer = "https://accounts.google.com"

var (
	// ErrMissingClientID is returned when no OAuth client id is configured
	ErrMissingClientID = errors.New("google client id is required")
	// ErrEmailNotVerified is returned for Google accounts without a verified email
	ErrEmailNotVerified = errors.New("google account email is not verified")
)

// GoogleUser holds the claims of a verified Google ID token
type GoogleUser struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Verifier checks a raw ID token
type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) (GoogleUser, error)
}

// Authenticator exchanges a verified Google ID token for a backend session
type Authenticator interface {
	GoogleLogin(ctx context.Context, googleIDToken string) (identity.Identity, error)
}

// GoogleVerifier verifies Google ID tokens for one OAuth client
type GoogleVerifier struct {
	verifier *oidc.IDTokenVerifier
	clientID string
}

// NewGoogleVerifier discovers the issuer's signing keys
func NewGoogleVerifier(ctx context.Context, issuer, clientID string) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, ErrMissingClientID
	}
	if issuer == "" {
		issuer = GoogleIssuer
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	return &GoogleVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		clientID: clientID,
	}, nil
}

// NewGoogleVerifierWithKeys verifies against a fixed key set without discovery
func NewGoogleVerifierWithKeys(issuer, clientID string, keys oidc.KeySet) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, ErrMissingClientID
	}
	if issuer == "" {
		issuer = GoogleIssuer
	}
	return &GoogleVerifier{
		verifier: oidc.NewVerifier(issuer, keys, &oidc.Config{ClientID: clientID}),
		clientID: clientID,
	}, nil
}

// ClientID returns the expected audience
func (v *GoogleVerifier) ClientID() string {
	return v.clientID
}

// Verify checks signature, issuer, audience, and expiry, and requires a verified email
func (v *GoogleVerifier) Verify(ctx context.Context, rawIDToken string) (GoogleUser, error) {
	rawIDToken = strings.TrimSpace(rawIDToken)
	if rawIDToken == "" {
		return GoogleUser{}, fmt.Errorf("missing ID token")
	}

	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return GoogleUser{}, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified *bool  `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return GoogleUser{}, fmt.Errorf("failed to parse claims: %w", err)
	}

	user := GoogleUser{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified == nil || *claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}
	if user.Email == "" {
		return GoogleUser{}, fmt.Errorf("missing email in ID token")
	}
	if !user.EmailVerified {
		return GoogleUser{}, ErrEmailNotVerified
	}
	return user, nil
}

// SignIn verifies rawIDToken and exchanges it for a backend session
func SignIn(ctx context.Context, v Verifier, auth Authenticator, rawIDToken string) (identity.Identity, GoogleUser, error) {
	user, err := v.Verify(ctx, rawIDToken)
	if err != nil {
		return identity.Identity{}, GoogleUser{}, err
	}
	id, err := auth.GoogleLogin(ctx, rawIDToken)
	if err != nil {
		return identity.Identity{}, user, err
	}
	if id.Email == "" {
		id.Email = user.Email
	}
	if id.FullName == "" {
		id.FullName = user.Name
	}
	return id, user, nil
}
