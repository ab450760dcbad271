package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dvcrn/authclient/internal/apiclient"
)

const maxProxyBody = 4 << 20

// proxyHandler forwards /api/<path> to <base><prefix>/<path> with the
// session's bearer token. Request bodies must be JSON.
func (s *Server) proxyHandler(w http.ResponseWriter, r *http.Request) {
	opts := []apiclient.RequestOption{apiclient.WithMethod(r.Method)}
	for key, values := range r.URL.Query() {
		for _, v := range values {
			opts = append(opts, apiclient.WithQuery(key, v))
		}
	}
	if id := r.Header.Get(apiclient.RequestIDHeader); id != "" {
		opts = append(opts, apiclient.WithHeader(apiclient.RequestIDHeader, id))
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBody))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if !json.Valid(body) {
			http.Error(w, "Request body must be JSON", http.StatusBadRequest)
			return
		}
		opts = append(opts, apiclient.WithBody(json.RawMessage(body)))
	}

	resp, err := s.client.Execute(r.Context(), apiclient.NewRequest("/"+chi.URLParam(r, "*"), opts...))
	if err != nil {
		s.writeProxyError(w, err)
		return
	}

	writeUpstream(w, resp)
}

func writeUpstream(w http.ResponseWriter, resp *apiclient.Response) {
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func (s *Server) writeProxyError(w http.ResponseWriter, err error) {
	var transportErr *apiclient.TransportError
	switch {
	case errors.Is(err, apiclient.ErrAuthenticationRequired):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.As(err, &transportErr) && transportErr.Response != nil:
		writeUpstream(w, transportErr.Response)
	default:
		s.log.Error().Err(err).Msg("Proxy request failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
}
