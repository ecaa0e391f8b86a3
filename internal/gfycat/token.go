package gfycat

import (
	"time"

	"golang.org/x/oauth2"
)

// expiryMargin allows for the time a request takes to reach the API.
const expiryMargin = 5 * time.Second

// Token is the token endpoint response, stamped locally with the instant it
// was received. A Token is never modified: refreshing produces a new value.
type Token struct {
	TokenType             string `json:"token_type"`
	AccessToken           string `json:"access_token"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
	Scope                 string `json:"scope"`
	ResourceOwner         string `json:"resource_owner"`

	// IssuedAt is the local receipt time, the only basis for validity checks.
	IssuedAt time.Time `json:"-"`
}

// AccessValid reports whether the access token can still be used at now.
func (t Token) AccessValid(now time.Time) bool {
	return t.valid(now, t.ExpiresIn)
}

// RefreshValid reports whether the refresh token can still be exchanged at
// now.
func (t Token) RefreshValid(now time.Time) bool {
	return t.valid(now, t.RefreshTokenExpiresIn)
}

func (t Token) valid(now time.Time, lifetimeSeconds int64) bool {
	elapsed := int64(now.Sub(t.IssuedAt) / time.Second)
	return elapsed+int64(expiryMargin/time.Second) < lifetimeSeconds
}

// OAuth2 converts the token for use with golang.org/x/oauth2 helpers. The
// remote API always issues bearer tokens, whatever token_type it reports.
func (t Token) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: t.RefreshToken,
		Expiry:       t.IssuedAt.Add(time.Duration(t.ExpiresIn)*time.Second - expiryMargin),
	}
}
