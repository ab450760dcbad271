package credentials

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	f, err := NewFileBackend(path)
	require.NoError(t, err)

	_, ok, err := f.Get(ctx, KeyRefreshToken)
	require.NoError(t, err)
	assert.False(t, ok, "missing file reads as empty")

	require.NoError(t, f.Set(ctx, KeyRefreshToken, "r", refreshAttributes))
	v, ok, err := f.Get(ctx, KeyRefreshToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "r", v)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"same_site": "strict"`)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	require.NoError(t, f.Remove(ctx, KeyRefreshToken))
	require.NoError(t, f.Remove(ctx, KeyRefreshToken))
	_, ok, err = f.Get(ctx, KeyRefreshToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileBackendCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	f, err := NewFileBackend(path)
	require.NoError(t, err)
	_, _, err = f.Get(context.Background(), KeyRefreshToken)
	assert.Error(t, err)
}

func TestFileBackendDefaultPathFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "from-env.json")
	t.Setenv("AUTHCLIENT_CREDS_PATH", path)

	f, err := NewFileBackend("")
	require.NoError(t, err)
	assert.Equal(t, "FileBackend("+path+")", f.Name())
}

func TestStoreSurvivesRestartWithFileBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	session, err := NewFileBackend(filepath.Join(dir, "session.json"))
	require.NoError(t, err)
	durable, err := NewFileBackend(filepath.Join(dir, "durable.json"))
	require.NoError(t, err)

	expiry := time.Now().Add(time.Hour).Truncate(time.Second).UTC()
	require.NoError(t, NewStore(session, durable).Set(ctx, "a", "r", expiry))

	restored := NewStore(session, durable)
	require.NoError(t, restored.Restore(ctx))
	assert.Equal(t, Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: expiry}, restored.Snapshot())
	assert.True(t, restored.IsAuthenticated())
}
