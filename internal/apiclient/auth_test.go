package apiclient

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginChoosesCredentialField(t *testing.T) {
	testCases := []struct {
		name       string
		credential string
		expected   map[string]string
	}{
		{
			name:       "email",
			credential: "user@example.com",
			expected:   map[string]string{"email": "user@example.com", "password": "pw"},
		},
		{
			name:       "username",
			credential: "alice",
			expected:   map[string]string{"username": "alice", "password": "pw"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			api := newFakeAPI(t)
			c := newTestClient(t, api, "")

			result, err := c.Login(context.Background(), tc.credential, "pw")
			require.NoError(t, err)
			assert.Equal(t, LoginResult{Success: true, Status: StatusLoggedIn}, result)

			require.Len(t, api.loginBodies, 1)
			assert.Equal(t, tc.expected, api.loginBodies[0])

			snap := c.Store().Snapshot()
			assert.Equal(t, "fresh", snap.AccessToken)
			assert.Equal(t, "refresh-1", snap.RefreshToken)
			assert.True(t, c.Store().IsAuthenticated())
		})
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(t, api, "")

	result, err := c.Login(context.Background(), "alice", "wrong")
	require.NoError(t, err)
	assert.Equal(t, LoginResult{Success: false, Status: StatusInvalidCredentials}, result)
	assert.True(t, c.Store().Snapshot().IsZero())
	assert.Equal(t, int32(0), api.refreshCalls.Load(), "a rejected login is never refreshed")
}

func TestLoginRejectsEmptyShape(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(t, api, "")

	for _, creds := range [][2]string{{"", "pw"}, {"alice", ""}, {"   ", "pw"}} {
		result, err := c.Login(context.Background(), creds[0], creds[1])
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, StatusInvalidCredentials, result.Status)
	}
	assert.Empty(t, api.loginBodies)
}

func TestLoginTransportFailure(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		api := newFakeAPI(t)
		c := newTestClient(t, api, "")
		api.server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		})

		result, err := c.Login(context.Background(), "alice", "pw")
		require.Error(t, err)
		assert.False(t, result.Success)
		assert.Contains(t, result.Status, "Failed to log in")

		var transportErr *TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.Equal(t, http.StatusInternalServerError, transportErr.StatusCode)
	})

	t.Run("network", func(t *testing.T) {
		api := newFakeAPI(t)
		c := newTestClient(t, api, "")
		api.server.Close()

		result, err := c.Login(context.Background(), "alice", "pw")
		require.Error(t, err)
		assert.False(t, result.Success)
	})
}

func TestLoginMissingExpiryIsMalformed(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(t, api, "")
	api.server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "opaque", "refresh_token": "r"})
	})

	result, err := c.Login(context.Background(), "alice", "pw")
	require.ErrorIs(t, err, ErrMalformedResponse)
	assert.False(t, result.Success)
	assert.True(t, c.Store().Snapshot().IsZero())
}

func TestLogoutSendsRefreshTokenAndClears(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(t, api, "fresh")

	require.NoError(t, c.Logout(context.Background()))
	assert.Equal(t, []string{"refresh-1"}, api.logoutHeaders)
	assert.True(t, c.Store().Snapshot().IsZero())
}

func TestLogoutClearsEvenWhenRemoteFails(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		api := newFakeAPI(t)
		api.logoutStatus = http.StatusInternalServerError
		c := newTestClient(t, api, "fresh")

		err := c.Logout(context.Background())
		var transportErr *TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.Equal(t, http.StatusInternalServerError, transportErr.StatusCode)
		assert.True(t, c.Store().Snapshot().IsZero())
	})

	t.Run("network", func(t *testing.T) {
		api := newFakeAPI(t)
		c := newTestClient(t, api, "fresh")
		api.server.Close()

		require.Error(t, c.Logout(context.Background()))
		assert.True(t, c.Store().Snapshot().IsZero())
	})
}
