// ABOUTME: HTTP API server wiring routes, middleware, and JSON helpers
// ABOUTME: Serves accounts, password recovery, and measurement endpoints

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/darzihq/darzi/internal/auth"
	"github.com/darzihq/darzi/internal/mailer"
	"github.com/darzihq/darzi/internal/ratelimit"
	"github.com/darzihq/darzi/internal/store"
)

// resetCodeTTL is how long a mailed reset code stays valid.
const resetCodeTTL = 10 * time.Minute

// resetRequestWindow is the minimum gap between reset-code requests for
// one email address. Requests inside the window get the usual 202 but no
// new code is generated or mailed.
const resetRequestWindow = time.Minute

// Server handles API routes for the darzi backend.
type Server struct {
	store        store.Store
	verifier     *auth.JWTVerifier
	sender       mailer.Sender
	tokenTTL     time.Duration
	resetLimiter *ratelimit.Limiter
	logger       *slog.Logger
}

// NewServer creates an API server over the given collaborators.
func NewServer(s store.Store, verifier *auth.JWTVerifier, sender mailer.Sender, tokenTTL time.Duration) *Server {
	return &Server{
		store:        s,
		verifier:     verifier,
		sender:       sender,
		tokenTTL:     tokenTTL,
		resetLimiter: ratelimit.New(resetRequestWindow, 10000),
		logger:       slog.Default().With("component", "api"),
	}
}

// Close releases server-owned background resources. The store is owned by
// the caller and is not closed here.
func (s *Server) Close() {
	s.resetLimiter.Close()
}

// Routes returns the HTTP handler with all endpoints registered.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/signup", s.handleSignup)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/password/forgot", s.handleForgotPassword)
	mux.HandleFunc("POST /api/password/reset", s.handleResetPassword)

	// Authenticated routes
	authMiddleware := auth.HTTPAuthMiddleware(s.store, s.verifier)
	authed := http.NewServeMux()
	authed.HandleFunc("GET /api/measurements", s.handleListMeasurements)
	authed.HandleFunc("GET /api/measurements/fields", s.handleDefaultFields)
	authed.HandleFunc("POST /api/measurements", s.handleCreateMeasurement)
	authed.HandleFunc("GET /api/measurements/{id}", s.handleGetMeasurement)
	authed.HandleFunc("PUT /api/measurements/{id}", s.handleUpdateMeasurement)
	authed.HandleFunc("DELETE /api/measurements/{id}", s.handleDeleteMeasurement)
	mux.Handle("/api/measurements", authMiddleware(authed))
	mux.Handle("/api/measurements/", authMiddleware(authed))

	return mux
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// errorResponse is the JSON body for all error replies.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps store errors onto HTTP statuses and emits a JSON body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, store.ErrEmailExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "email already registered"})
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// decodeJSON parses a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
