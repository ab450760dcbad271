package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvcrn/authclient/internal/apiclient"
	"github.com/dvcrn/authclient/internal/logger"
)

// Server is a local proxy that forwards /api/* through an authenticated
// client and exposes admin endpoints for its session.
type Server struct {
	client   *apiclient.Client
	router   chi.Router
	adminKey string
	metrics  http.Handler
	log      zerolog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAdminAPIKey sets the key required on /admin routes. Without one the
// admin API answers 500.
func WithAdminAPIKey(key string) Option {
	return func(s *Server) {
		s.adminKey = key
	}
}

// WithMetricsHandler serves h on /admin/metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewServer creates a new server instance around client.
func NewServer(client *apiclient.Client, opts ...Option) *Server {
	s := &Server{
		client: client,
		router: chi.NewRouter(),
		log:    logger.Component("server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()

	return s
}

// Start launches the proxy server on addr and shuts it down when ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.logSession()

	s.log.Info().Msgf("Starting proxy server on %s", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down proxy server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logSession() {
	store := s.client.Store()
	snap := store.Snapshot()
	session, durable := store.Backends()
	switch {
	case snap.IsZero():
		s.log.Warn().Msg("No credentials loaded, log in via /admin/login")
	case store.IsAuthenticated():
		s.log.Info().
			Dur("valid_for", time.Until(snap.ExpiresAt).Round(time.Second)).
			Str("session_backend", session).
			Str("durable_backend", durable).
			Msg("Access token valid")
	default:
		s.log.Info().Msg("Access token expired, it will be refreshed on first use")
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(loggingMiddleware)

	s.router.Route("/admin", func(r chi.Router) {
		r.Use(s.adminMiddleware)
		r.Post("/credentials", s.credentialsHandler)
		r.Get("/credentials/status", s.credentialsStatusHandler)
		r.Post("/login", s.loginHandler)
		r.Post("/logout", s.logoutHandler)
		if s.metrics != nil {
			r.Handle("/metrics", s.metrics)
		}
	})

	s.router.HandleFunc("/api/*", s.proxyHandler)
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
