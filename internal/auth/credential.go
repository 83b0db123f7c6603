// Package auth obtains and persists the OAuth2 credential used to call the
// Classroom API. A Store loads the saved token, refreshes it when it is
// expired or about to expire, and falls back to the browser-based
// authorization code + PKCE flow when no usable refresh token exists.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"golang.org/x/oauth2"
)

// Sentinel errors.
var (
	// ErrAuthConfig means the client-secret file needed to run a grant flow
	// is missing or cannot be parsed. It is fatal to the calling process.
	ErrAuthConfig = errors.New("auth: client secret missing or invalid")

	ErrNotLoggedIn       = errors.New("auth: not logged in")
	ErrCredentialExpired = errors.New("auth: credential expired")
)

// Credential is an access token that was usable when it was acquired.
// It satisfies the classroom TokenSource interface. Once the token passes
// its expiry Token returns ErrCredentialExpired and the caller must
// Acquire a new one and rebuild its client.
type Credential struct {
	token  *oauth2.Token
	scopes []string
	now    func() time.Time
}

// Token returns the bearer token.
func (c *Credential) Token() (string, error) {
	if c.expired() {
		return "", fmt.Errorf("%w at %s", ErrCredentialExpired, c.token.Expiry.Format(time.RFC3339))
	}

	return c.token.AccessToken, nil
}

// Expiry is the instant the access token stops being accepted. Zero means
// the server did not report one.
func (c *Credential) Expiry() time.Time {
	return c.token.Expiry
}

// Scopes returns the scopes the credential was granted for.
func (c *Credential) Scopes() []string {
	return slices.Clone(c.scopes)
}

func (c *Credential) expired() bool {
	return !c.token.Expiry.IsZero() && !c.now().Before(c.token.Expiry)
}

// usable reports whether tok can be handed out at now: it has an access
// token and, when the expiry is known, more than margin left.
func usable(tok *oauth2.Token, now time.Time, margin time.Duration) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}

	if tok.Expiry.IsZero() {
		return true
	}

	return tok.Expiry.Sub(now) > margin
}
