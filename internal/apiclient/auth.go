package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dvcrn/authclient/internal/credentials"
)

const (
	StatusLoggedIn           = "Logged in successfully"
	StatusInvalidCredentials = "Invalid credentials"
)

// LoginResult is the outcome of Login. Invalid credentials are a normal
// unsuccessful result, not an error.
type LoginResult struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}

// loginBody sends exactly one of email or username.
type loginBody struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

func newLoginBody(credential, password string) loginBody {
	if strings.Contains(credential, "@") {
		return loginBody{Email: credential, Password: password}
	}
	return loginBody{Username: credential, Password: password}
}

// Login authenticates with an email address or username and stores the
// returned credential. The request is sent without a bearer token and a
// rejection is never refreshed. Transport failures return a non-nil error
// alongside an unsuccessful result.
func (c *Client) Login(ctx context.Context, credential, password string) (LoginResult, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" || password == "" {
		return LoginResult{Status: StatusInvalidCredentials}, nil
	}

	spec := NewRequest("/auth/login",
		WithMethod(http.MethodPost),
		WithBody(newLoginBody(credential, password)),
	)
	resp, err := c.send(ctx, spec, "")
	if err != nil {
		return failedLogin(err), err
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		c.log.Info().Int("status", resp.StatusCode).Msg("Login rejected")
		return LoginResult{Status: StatusInvalidCredentials}, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		err := &TransportError{
			Method:     spec.Method(),
			Path:       spec.Path(),
			StatusCode: resp.StatusCode,
			Body:       bodyPreview(resp.Body),
			Response:   resp,
		}
		return failedLogin(err), err
	}

	var tokens credentials.TokenResponse
	if err := resp.Decode(&tokens); err != nil {
		return failedLogin(err), err
	}
	if tokens.AccessToken == "" {
		return LoginResult{Status: StatusInvalidCredentials}, nil
	}
	if tokens.RefreshToken == "" {
		err := fmt.Errorf("%w: missing refresh_token", ErrMalformedResponse)
		return failedLogin(err), err
	}

	expiresAt := tokens.ExpiryDate.Time
	if expiresAt.IsZero() {
		exp, ok := credentials.ExpiryFromToken(tokens.AccessToken)
		if !ok {
			err := fmt.Errorf("%w: missing expiry_date", ErrMalformedResponse)
			return failedLogin(err), err
		}
		expiresAt = exp
	}

	if err := c.store.Set(ctx, tokens.AccessToken, tokens.RefreshToken, expiresAt); err != nil {
		c.log.Warn().Err(err).Msg("Failed to persist credentials after login")
	}
	c.log.Info().Time("expires_at", expiresAt).Msg("Logged in")
	return LoginResult{Success: true, Status: StatusLoggedIn}, nil
}

func failedLogin(err error) LoginResult {
	return LoginResult{Status: fmt.Sprintf("Failed to log in: %v", err)}
}

// Logout revokes the refresh token remotely and then clears the local
// credential. The local session always ends; a remote failure is still
// returned so it can be reported.
func (c *Client) Logout(ctx context.Context) error {
	refresh := c.store.Snapshot().RefreshToken
	_, remoteErr := c.Execute(ctx, NewRequest("/auth/logout",
		WithMethod(http.MethodPost),
		WithHeader(RefreshTokenHeader, refresh),
	))
	if remoteErr != nil {
		c.log.Warn().Err(remoteErr).Msg("Remote logout failed, clearing local session anyway")
	}

	if err := c.store.Clear(context.WithoutCancel(ctx)); err != nil {
		c.log.Warn().Err(err).Msg("Failed to remove persisted credentials")
	}
	return remoteErr
}
