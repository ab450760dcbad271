package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dvcrn/authclient/internal/credentials"
	"github.com/dvcrn/authclient/internal/metrics"
)

// refreshKey is the single slot in refreshGroup; at most one refresh is in
// flight per client.
const refreshKey = "refresh"

// renewAccessToken returns an access token to retry with after failed was
// rejected. Concurrent callers share one refresh. The refresh itself runs
// detached from ctx: a caller that gives up stops waiting, but the refresh
// still completes for the others.
func (c *Client) renewAccessToken(ctx context.Context, failed string) (string, error) {
	leader := false
	ch := c.refreshGroup.DoChan(refreshKey, func() (interface{}, error) {
		leader = true
		return c.refresh(context.WithoutCancel(ctx), failed)
	})

	select {
	case res := <-ch:
		if !leader {
			c.metrics.IncrementRefreshWaiters()
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// refresh runs inside the refresh slot. If the access token already moved
// on from failed, another caller renewed it and no network call is made.
// Every failure is a denial: the credential is cleared and every waiter gets
// ErrAuthenticationRequired; the reason is only logged.
func (c *Client) refresh(ctx context.Context, failed string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
	defer cancel()

	cur := c.store.Snapshot()
	if cur.AccessToken != "" && cur.AccessToken != failed {
		c.metrics.ObserveRefresh(metrics.OutcomeReused)
		return cur.AccessToken, nil
	}
	if cur.RefreshToken == "" {
		return "", c.deny(ctx, "no refresh token")
	}

	spec := NewRequest("/auth/refresh",
		WithMethod(http.MethodPost),
		WithHeader(RefreshTokenHeader, cur.RefreshToken),
	)

	start := time.Now()
	resp, err := c.send(ctx, spec, cur.AccessToken)
	c.metrics.ObserveRefreshCall(start)
	if err != nil {
		return "", c.deny(ctx, err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", c.deny(ctx, fmt.Sprintf("refresh failed with status %d: %s", resp.StatusCode, bodyPreview(resp.Body)))
	}

	var body credentials.AccessTokenResponse
	if err := resp.Decode(&body); err != nil {
		return "", c.deny(ctx, err.Error())
	}
	if body.AccessToken == "" {
		return "", c.deny(ctx, "refresh response has no access_token")
	}

	expiresAt := c.renewedExpiry(body, cur)
	replaced, err := c.store.ReplaceAccess(ctx, cur.RefreshToken, body.AccessToken, expiresAt)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to persist refreshed access token")
	}
	if !replaced {
		// The session was logged out or replaced while the refresh was in flight.
		if now := c.store.Snapshot(); now.AccessToken != "" {
			return now.AccessToken, nil
		}
		c.log.Warn().Msg("Session ended while refreshing access token")
		return "", ErrAuthenticationRequired
	}

	c.metrics.ObserveRefresh(metrics.OutcomeRenewed)
	c.log.Info().Time("expires_at", expiresAt).Msg("Successfully refreshed access token")
	return body.AccessToken, nil
}

// renewedExpiry picks the expiry of a refreshed token: the response field,
// then the token's own claims, then the previous expiry. With none of those
// it is stamped as expiring now so IsAuthenticated fails closed.
func (c *Client) renewedExpiry(body credentials.AccessTokenResponse, prev credentials.Credential) time.Time {
	if !body.ExpiryDate.IsZero() {
		return body.ExpiryDate.Time
	}
	if exp, ok := credentials.ExpiryFromToken(body.AccessToken); ok {
		return exp
	}
	if !prev.ExpiresAt.IsZero() {
		return prev.ExpiresAt
	}
	return c.now()
}

func (c *Client) deny(ctx context.Context, reason string) error {
	c.metrics.ObserveRefresh(metrics.OutcomeDenied)
	c.log.Warn().Str("reason", reason).Msg("Token refresh denied, clearing credentials")
	if err := c.store.Clear(context.WithoutCancel(ctx)); err != nil {
		c.log.Warn().Err(err).Msg("Failed to remove persisted credentials")
	}
	return ErrAuthenticationRequired
}
