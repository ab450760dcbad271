package apiclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dvcrn/authclient/internal/credentials"
	"github.com/dvcrn/authclient/internal/metrics"
)

// fakeAPI mimics the auth endpoints of the kanban API and one protected
// resource, /items.
type fakeAPI struct {
	server *httptest.Server

	mu            sync.Mutex
	validToken    string
	refreshToken  string
	nextToken     string
	refreshBody   map[string]interface{}
	refreshStatus int
	logoutStatus  int
	rejectAll     bool
	loginBodies   []map[string]string
	logoutHeaders []string
	authHeaders   []string

	// refreshGate, when set, is waited on before answering a refresh.
	refreshGate chan struct{}
	// waitFor401s, when positive, holds a refresh until that many 401s were served.
	waitFor401s int32

	refreshCalls atomic.Int32
	itemCalls    atomic.Int32
	unauthorized atomic.Int32
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		validToken:   "fresh",
		refreshToken: "refresh-1",
		nextToken:    "fresh",
	}

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", f.login)
		r.Post("/auth/refresh", f.refresh)
		r.Post("/auth/logout", f.logout)
		r.Get("/items", f.items)
		r.Post("/items", f.items)
		r.Get("/empty", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		})
	})

	f.server = httptest.NewServer(r)
	t.Cleanup(f.server.Close)
	return f
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	f.mu.Lock()
	f.loginBodies = append(f.loginBodies, body)
	f.mu.Unlock()

	if body["password"] != "pw" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token":  "fresh",
		"refresh_token": "refresh-1",
		"expiry_date":   time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
}

func (f *fakeAPI) refresh(w http.ResponseWriter, r *http.Request) {
	f.refreshCalls.Add(1)

	if f.refreshGate != nil {
		<-f.refreshGate
	}
	if n := f.waitFor401s; n > 0 {
		deadline := time.Now().Add(5 * time.Second)
		for f.unauthorized.Load() < n && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshStatus != 0 {
		writeJSON(w, f.refreshStatus, map[string]string{"error": "refresh token expired"})
		return
	}
	if r.Header.Get(RefreshTokenHeader) != f.refreshToken {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "refresh token not found"})
		return
	}
	f.validToken = f.nextToken
	body := f.refreshBody
	if body == nil {
		body = map[string]interface{}{"access_token": f.nextToken}
	}
	writeJSON(w, http.StatusOK, body)
}

func (f *fakeAPI) logout(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.logoutHeaders = append(f.logoutHeaders, r.Header.Get(RefreshTokenHeader))
	status := f.logoutStatus
	f.mu.Unlock()

	if status != 0 {
		writeJSON(w, status, map[string]string{"error": "failed to log out"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

func (f *fakeAPI) items(w http.ResponseWriter, r *http.Request) {
	f.itemCalls.Add(1)
	auth := r.Header.Get("Authorization")

	f.mu.Lock()
	ok := !f.rejectAll && auth == "Bearer "+f.validToken
	if ok {
		f.authHeaders = append(f.authHeaders, auth)
	}
	f.mu.Unlock()

	if !ok {
		f.unauthorized.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
		return
	}

	var body interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":        []string{"Seven Samurai", "Ikiru"},
		"query":        r.URL.RawQuery,
		"content_type": r.Header.Get("Content-Type"),
		"request_id":   r.Header.Get(RequestIDHeader),
		"body":         body,
	})
}

type testClient struct {
	*Client
	reg *prometheus.Registry
	m   *metrics.Metrics
}

// newTestClient returns a client pointed at f whose store already holds
// access, refresh-1 and a one hour expiry, unless access is empty.
func newTestClient(t *testing.T, f *fakeAPI, access string) testClient {
	t.Helper()
	store := credentials.NewStore(nil, nil)
	if access != "" {
		if err := store.Set(t.Context(), access, "refresh-1", time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("seeding store: %v", err)
		}
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := New(store,
		WithBaseURL(f.server.URL),
		WithHTTPClient(f.server.Client()),
		WithMetrics(m),
		WithRefreshTimeout(10*time.Second),
	)
	return testClient{Client: c, reg: reg, m: m}
}
