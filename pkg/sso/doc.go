// Package sso implements Google sign-in for the residence client.
//
// # Overview
//
// The user obtains a Google ID token (for example from a browser flow).
// GoogleVerifier checks its signature, issuer, audience, and expiry with
// OpenID Connect discovery, then SignIn posts it to the backend's
// /auth/google endpoint and returns the resulting session identity.
//
// # Usage Example
//
//	verifier, err := sso.NewGoogleVerifier(ctx, sso.GoogleIssuer, clientID)
//	if err != nil {
//		return err
//	}
//	id, user, err := sso.SignIn(ctx, verifier, apiClient, rawIDToken)
//
// # Related Packages
//
//   - pkg/client: GoogleLogin exchanges the verified token
//   - pkg/identity: the session identity and its stores
package sso
