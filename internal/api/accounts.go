// ABOUTME: Account endpoints: signup, login, and password recovery
// ABOUTME: Issues JWTs and drives the email reset code flow

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/darzihq/darzi/internal/auth"
	"github.com/darzihq/darzi/internal/store"
)

// SignupRequest is the JSON request body for POST /api/signup.
type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest is the JSON request body for POST /api/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the JSON shape of an account.
type UserResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	CreatedAt   string `json:"created_at"`
}

// SessionResponse is the JSON response for signup and login.
type SessionResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// ForgotPasswordRequest is the JSON request body for POST /api/password/forgot.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the JSON request body for POST /api/password/reset.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func userResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// handleSignup handles POST /api/signup.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "a valid email is required"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	user := &store.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		DisplayName:  req.DisplayName,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		s.writeError(w, err)
		return
	}

	token, err := s.verifier.Generate(user.ID, s.tokenTTL)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("user signed up", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, SessionResponse{Token: token, User: userResponse(user)})
}

// handleLogin handles POST /api/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		// Same reply for unknown email and wrong password
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
		return
	}

	token, err := s.verifier.Generate(user.ID, s.tokenTTL)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, SessionResponse{Token: token, User: userResponse(user)})
}

// handleForgotPassword handles POST /api/password/forgot. It always
// replies 202 so the endpoint cannot be used to probe which emails have
// accounts.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	accepted := func() {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	}

	// Sweep stale pending codes so the table does not grow without
	// bound; a failed sweep never blocks issuing a new code.
	if err := s.store.DeleteExpiredResetCodes(r.Context()); err != nil {
		s.logger.Error("sweeping expired reset codes failed", "error", err)
	}

	if _, err := s.store.GetUserByEmail(r.Context(), email); err != nil {
		accepted()
		return
	}

	if !s.resetLimiter.Allow(email) {
		// Throttled addresses get the same reply as everyone else.
		accepted()
		return
	}

	code, err := auth.GenerateResetCode()
	if err != nil {
		s.writeError(w, err)
		return
	}

	now := time.Now().UTC()
	rc := &store.ResetCode{
		ID:        uuid.New().String(),
		Email:     email,
		CodeHash:  auth.HashResetCode(code),
		Status:    store.ResetCodeStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(resetCodeTTL),
	}
	if err := s.store.CreateResetCode(r.Context(), rc); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.sender.SendResetCode(r.Context(), email, code); err != nil {
		// The code is stored; a retry of the mail can follow. Do not leak
		// delivery problems to the caller.
		s.logger.Error("sending reset code failed", "error", err)
	}

	accepted()
}

// handleResetPassword handles POST /api/password/reset.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if err := s.store.ConsumeResetCode(r.Context(), email, auth.HashResetCode(req.Code)); err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid or expired code"})
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.UpdateUserPassword(r.Context(), user.ID, hash); err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("password reset", "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}
