package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dvcrn/authclient/internal/credentials"
)

// adminMiddleware checks for valid admin API key from either
// 'Authorization: Bearer <key>' or 'X-API-Key: <key>' headers.
func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey == "" {
			s.log.Error().Msg("ADMIN_API_KEY environment variable not set")
			http.Error(w, "Admin API not configured", http.StatusInternalServerError)
			return
		}

		var providedToken string
		authHeader := r.Header.Get("Authorization")
		xAPIKeyHeader := r.Header.Get("X-API-Key")

		if authHeader != "" {
			// Expect "Bearer <token>" format, case-insensitive
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				s.log.Warn().Str("method", r.Method).Str("uri", r.RequestURI).Str("remote_addr", r.RemoteAddr).
					Msg("Invalid Authorization header format for admin endpoint")
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}
			providedToken = parts[1]
		} else if xAPIKeyHeader != "" {
			providedToken = xAPIKeyHeader
		} else {
			s.log.Warn().Str("method", r.Method).Str("uri", r.RequestURI).Str("remote_addr", r.RemoteAddr).
				Msg("Missing required Authorization or X-API-Key header for admin endpoint")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if providedToken != s.adminKey {
			s.log.Warn().Str("method", r.Method).Str("uri", r.RequestURI).Str("remote_addr", r.RemoteAddr).
				Msg("Invalid admin API key provided")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		s.log.Debug().Str("method", r.Method).Str("uri", r.RequestURI).Msg("Admin request authorized")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// credentialsHandler handles POST /admin/credentials. The body uses the
// same fields as a login response.
func (s *Server) credentialsHandler(w http.ResponseWriter, r *http.Request) {
	var creds credentials.TokenResponse
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		s.log.Error().Err(err).Msg("Failed to decode credentials request")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := s.client.Store().Set(r.Context(), creds.AccessToken, creds.RefreshToken, creds.ExpiryDate.Time)
	if errors.Is(err, credentials.ErrIncompleteCredential) {
		http.Error(w, "access_token, refresh_token and expiry_date are required", http.StatusBadRequest)
		return
	}

	// The session is live even when mirroring to a backend failed.
	response := map[string]interface{}{
		"success": true,
		"message": "Credentials saved successfully",
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist credentials")
		response["persist_error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, response)
}

// credentialsStatusHandler handles GET /admin/credentials/status
func (s *Server) credentialsStatusHandler(w http.ResponseWriter, r *http.Request) {
	store := s.client.Store()
	snap := store.Snapshot()
	session, durable := store.Backends()

	response := map[string]interface{}{
		"authenticated":     store.IsAuthenticated(),
		"has_credentials":   !snap.IsZero(),
		"has_refresh_token": snap.RefreshToken != "",
		"session_backend":   session,
		"durable_backend":   durable,
	}
	if !snap.ExpiresAt.IsZero() {
		response["expiry_date"] = snap.ExpiresAt.UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, response)
}

type loginRequest struct {
	Credential string `json:"credential"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

func (l loginRequest) identifier() string {
	switch {
	case l.Credential != "":
		return l.Credential
	case l.Email != "":
		return l.Email
	default:
		return l.Username
	}
}

// loginHandler handles POST /admin/login
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.client.Login(r.Context(), req.identifier(), req.Password)
	switch {
	case err != nil:
		s.log.Error().Err(err).Msg("Login failed")
		writeJSON(w, http.StatusBadGateway, result)
	case !result.Success:
		writeJSON(w, http.StatusUnauthorized, result)
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// logoutHandler handles POST /admin/logout. The local session always ends;
// a failed remote revocation is reported alongside.
func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"success": true,
		"message": "Logged out",
	}
	if err := s.client.Logout(r.Context()); err != nil {
		response["remote_error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, response)
}
