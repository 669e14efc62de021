package server

import (
	"encoding/json"
	"net/http"

	"github.com/alfredjeanlab/dynfilter/internal/session"
)

// NewHTTPHandler returns an http.Handler with all routes registered. Filter
// routes run inside the session middleware backed by sessions.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *FilterServer) NewHTTPHandler(authToken string, sessions session.Backend, opts session.Options) http.Handler {
	withSession := func(h http.HandlerFunc) http.Handler {
		return session.Middleware(sessions, opts, h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/filters", s.handleListFilters)
	mux.Handle("GET /v1/filters/{name}", withSession(s.handleFilter))
	mux.Handle("POST /v1/filters/{name}", withSession(s.handleFilter))
	return LoggingMiddleware(RecoveryMiddleware(AuthMiddleware(authToken, mux)))
}

// handleHealth handles GET /v1/health.
func (s *FilterServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
