package api

import (
	"encoding/json"
	"net/http"

	"github.com/hearthops/hearth-core/internal/auth"
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int        `json:"expires_in"` // seconds
	User        *auth.User `json:"user"`
}

// handleLogin authenticates a user and returns a JWT access token.
//
// All failure modes — unknown email, wrong password, deactivated account —
// return the same 401 so the endpoint cannot be used to enumerate accounts.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}

	if !s.loginLimiter.Allow(req.Email) {
		writeRateLimited(w, "too many login attempts")
		return
	}

	user, err := s.userRepo.GetByEmail(r.Context(), req.Email)
	if err != nil || !user.IsActive {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	ok, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		s.logger.Error("password verification failed", "error", err)
		writeInternalError(w, "login failed")
		return
	}
	if !ok {
		s.securityEvent(user.HouseholdID, "login", "failure")
		writeUnauthorized(w, "invalid credentials")
		return
	}

	s.loginLimiter.Reset(req.Email)

	ttl := s.secCfg.JWT.AccessTokenTTL
	token, err := auth.GenerateAccessToken(user, s.secCfg.JWT.Secret, ttl)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		writeInternalError(w, "login failed")
		return
	}
	if ttl <= 0 {
		ttl = 15
	}

	s.auditTrail(user.HouseholdID, user.ID, "auth.login", "user", user.ID, nil)
	s.securityEvent(user.HouseholdID, "login", "success")

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   ttl * 60,
		User:        user,
	})
}

// handleLogout discards the caller's vault unlock sessions. The JWT itself
// stays valid until expiry (no server-side token state); clients drop it.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	s.sessions.LockAllForUser(claims.Subject)
	w.WriteHeader(http.StatusNoContent)
}

// handleMe returns the authenticated caller's account.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	user, err := s.userRepo.GetByID(r.Context(), claims.Subject)
	if err != nil {
		writeNotFound(w, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, user)
}
