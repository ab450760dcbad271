package credentials

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// restoredExpired stands in for a missing or unparsable persisted expiry. It
// keeps the triple fully populated while failing closed.
var restoredExpired = time.Unix(0, 0).UTC()

// Store holds the authoritative Credential for one client. Reads are
// lock-free; writes replace the whole triple at once and are then mirrored
// to the session and durable backends.
//
// The access token and its expiry go to the session backend, the refresh
// token to the durable backend.
type Store struct {
	current atomic.Pointer[Credential]

	// mu serializes writers so mirrored writes land in the same order as
	// the in-memory swaps.
	mu      sync.Mutex
	session Backend
	durable Backend
	now     func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty Store. Nil backends default to in-memory ones.
func NewStore(session, durable Backend, opts ...StoreOption) *Store {
	if session == nil {
		session = NewMemoryBackend("session")
	}
	if durable == nil {
		durable = NewMemoryBackend("durable")
	}
	s := &Store{
		session: session,
		durable: durable,
		now:     time.Now,
	}
	s.current.Store(&Credential{})
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current credential.
func (s *Store) Snapshot() Credential {
	return *s.current.Load()
}

// IsAuthenticated reports whether the access token is unexpired. A missing
// expiry counts as expired.
func (s *Store) IsAuthenticated() bool {
	c := s.Snapshot()
	if c.AccessToken == "" || c.ExpiresAt.IsZero() {
		return false
	}
	return s.now().Before(c.ExpiresAt)
}

// Set replaces the credential and mirrors it to the backends. The returned
// error only reports mirroring failures; the in-memory value is updated
// regardless. Passing all-empty values is equivalent to Clear.
func (s *Store) Set(ctx context.Context, access, refresh string, expiresAt time.Time) error {
	next := Credential{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt}
	if next.IsZero() {
		return s.Clear(ctx)
	}
	if !next.complete() {
		return ErrIncompleteCredential
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Store(&next)
	return errors.Join(
		s.put(ctx, s.session, KeyAccessToken, next.AccessToken, Attributes{}),
		s.put(ctx, s.session, KeyAccessExpiry, FormatExpiry(next.ExpiresAt), Attributes{}),
		s.put(ctx, s.durable, KeyRefreshToken, next.RefreshToken, refreshAttributes),
	)
}

// Clear empties the credential and removes it from the backends, with the
// same error policy as Set.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Store(&Credential{})
	return errors.Join(
		s.remove(ctx, s.session, KeyAccessToken),
		s.remove(ctx, s.session, KeyAccessExpiry),
		s.remove(ctx, s.durable, KeyRefreshToken),
	)
}

// ReplaceAccess swaps in a renewed access token, but only while refresh is
// still the current refresh token. It reports whether the swap happened, so
// a refresh that finishes after a logout or re-login is discarded.
func (s *Store) ReplaceAccess(ctx context.Context, refresh, access string, expiresAt time.Time) (bool, error) {
	if access == "" || expiresAt.IsZero() {
		return false, ErrIncompleteCredential
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	if refresh == "" || cur.RefreshToken != refresh {
		return false, nil
	}
	next := Credential{AccessToken: access, RefreshToken: cur.RefreshToken, ExpiresAt: expiresAt}
	s.current.Store(&next)
	return true, errors.Join(
		s.put(ctx, s.session, KeyAccessToken, next.AccessToken, Attributes{}),
		s.put(ctx, s.session, KeyAccessExpiry, FormatExpiry(next.ExpiresAt), Attributes{}),
	)
}

// Restore loads a previously mirrored credential from the backends. Nothing
// is loaded unless both tokens are present. An unparsable expiry is loaded as
// restoredExpired, which IsAuthenticated treats as expired; the refresh token
// can still renew it.
func (s *Store) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	access, accessOK, err := s.get(ctx, s.session, KeyAccessToken)
	errs = append(errs, err)
	rawExpiry, _, err := s.get(ctx, s.session, KeyAccessExpiry)
	errs = append(errs, err)
	refresh, refreshOK, err := s.get(ctx, s.durable, KeyRefreshToken)
	errs = append(errs, err)

	if accessOK && refreshOK && access != "" && refresh != "" {
		expiresAt, perr := ParseExpiry(rawExpiry)
		if perr != nil || expiresAt.IsZero() {
			expiresAt = restoredExpired
		}
		s.current.Store(&Credential{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt})
	}
	return errors.Join(errs...)
}

// Backends returns the session and durable backends, for logging.
func (s *Store) Backends() (session, durable string) {
	return s.session.Name(), s.durable.Name()
}

func (s *Store) get(ctx context.Context, b Backend, key string) (string, bool, error) {
	v, ok, err := b.Get(ctx, key)
	if err != nil {
		return "", false, &StoreError{Operation: "get", Key: key, Backend: b.Name(), Cause: err}
	}
	return v, ok, nil
}

func (s *Store) put(ctx context.Context, b Backend, key, value string, attrs Attributes) error {
	if err := b.Set(ctx, key, value, attrs); err != nil {
		return &StoreError{Operation: "set", Key: key, Backend: b.Name(), Cause: err}
	}
	return nil
}

func (s *Store) remove(ctx context.Context, b Backend, key string) error {
	if err := b.Remove(ctx, key); err != nil {
		return &StoreError{Operation: "remove", Key: key, Backend: b.Name(), Cause: err}
	}
	return nil
}
