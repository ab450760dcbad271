package credentials

import (
	"errors"
	"time"
)

// Credential is the access/refresh token triple for one session. Either all
// fields are set or none are.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// IsZero reports whether c holds no credential at all.
func (c Credential) IsZero() bool {
	return c.AccessToken == "" && c.RefreshToken == "" && c.ExpiresAt.IsZero()
}

func (c Credential) complete() bool {
	return c.AccessToken != "" && c.RefreshToken != "" && !c.ExpiresAt.IsZero()
}

// TokenResponse is the body returned by POST /auth/login.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiryDate   Expiry `json:"expiry_date"`
}

// AccessTokenResponse is the body returned by POST /auth/refresh. The API
// may omit expiry_date.
type AccessTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiryDate  Expiry `json:"expiry_date,omitempty"`
}

// Persistence keys, matching what the web client wrote to session storage
// and the refresh_token cookie.
const (
	KeyAccessToken  = "access_token"
	KeyAccessExpiry = "access_token_expiry"
	KeyRefreshToken = "refresh_token"
)

// ErrIncompleteCredential is returned by Store.Set for a partially populated triple.
var ErrIncompleteCredential = errors.New("credential must have access token, refresh token and expiry set together")
