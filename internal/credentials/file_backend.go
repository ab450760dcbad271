package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/dvcrn/authclient/internal/env"
)

type fileEntry struct {
	Value    string `json:"value"`
	Secure   bool   `json:"secure,omitempty"`
	SameSite string `json:"same_site,omitempty"`
}

// FileBackend implements Backend as a single JSON document on disk. The file
// is always written 0600, so Attributes.Secure needs no extra handling.
type FileBackend struct {
	filePath string
	mu       sync.Mutex
}

// NewFileBackend creates a file backend. An empty path resolves to
// AUTHCLIENT_CREDS_PATH or ~/.config/authclient/credentials.json.
func NewFileBackend(path string) (*FileBackend, error) {
	if path == "" {
		var err error
		if path, err = defaultFilePath(); err != nil {
			return nil, err
		}
	}
	return &FileBackend{filePath: path}, nil
}

func defaultFilePath() (string, error) {
	if credsPath, ok := env.Get("AUTHCLIENT_CREDS_PATH"); ok {
		return credsPath, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "authclient", "credentials.json"), nil
}

func (f *FileBackend) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return "", false, err
	}
	e, ok := entries[key]
	return e.Value, ok, nil
}

func (f *FileBackend) Set(_ context.Context, key, value string, attrs Attributes) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}
	entries[key] = fileEntry{Value: value, Secure: attrs.Secure, SameSite: sameSiteName(attrs.SameSite)}
	return f.save(entries)
}

func (f *FileBackend) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return f.save(entries)
}

func (f *FileBackend) Name() string {
	return fmt.Sprintf("FileBackend(%s)", f.filePath)
}

func (f *FileBackend) load() (map[string]fileEntry, error) {
	entries := make(map[string]fileEntry)
	data, err := os.ReadFile(f.filePath)
	if os.IsNotExist(err) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse credentials from file: %w", err)
	}
	return entries, nil
}

// save writes through a temp file and rename so readers never see a torn file.
func (f *FileBackend) save(entries map[string]fileEntry) error {
	dir := filepath.Dir(f.filePath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod %s: %w", tmp.Name(), err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credentials to %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), f.filePath); err != nil {
		return fmt.Errorf("failed to write credentials to %s: %w", f.filePath, err)
	}
	return nil
}

func sameSiteName(s http.SameSite) string {
	switch s {
	case http.SameSiteStrictMode:
		return "strict"
	case http.SameSiteLaxMode:
		return "lax"
	case http.SameSiteNoneMode:
		return "none"
	default:
		return ""
	}
}
