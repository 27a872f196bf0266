package cloud

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// TokenClaims is the subset of a bearer token's claims the agent cares about
// for local status display (spec §6 get_cloud_status: exp/sub), read
// without a network round trip.
type TokenClaims struct {
	Subject string
	Expiry  time.Time
}

// IntrospectToken decodes exp/sub from a bearer token without verifying its
// signature: the token was already trusted when the backend received it
// from /login or /signup, so this is local introspection for display only,
// never an authorization decision.
func IntrospectToken(token string) (*TokenClaims, error) {
	parser := jwt.NewParser()

	claims := jwt.MapClaims{}

	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("cloud: parsing token claims: %w", err)
	}

	out := &TokenClaims{}

	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.Expiry = exp.Time
	}

	return out, nil
}

// oauth2TokenSource adapts an oauth2.TokenSource into the package's
// TokenSource, so a bearer token obtained from Login/Signup can be refreshed
// the same way the teacher refreshes Graph API tokens.
type oauth2TokenSource struct {
	src oauth2.TokenSource
}

// NewOAuth2TokenSource wraps an oauth2.TokenSource (e.g.
// oauth2.StaticTokenSource seeded from AuthToken, or a refreshing source
// backed by a token endpoint) as a cloud.TokenSource.
func NewOAuth2TokenSource(src oauth2.TokenSource) TokenSource {
	return &oauth2TokenSource{src: src}
}

func (o *oauth2TokenSource) Token() string {
	tok, err := o.src.Token()
	if err != nil {
		return ""
	}

	return tok.AccessToken
}

// StaticOAuth2TokenSource builds an oauth2.TokenSource around a fixed
// AuthToken, the common case right after Login/Signup succeeds before any
// refresh flow exists.
func StaticOAuth2TokenSource(auth AuthToken) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: auth.Token})
}
