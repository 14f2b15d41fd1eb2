package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearthops/hearth-core/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/auth/me", s.handleMe)

			// Vault endpoints
			r.Route("/vault", func(r chi.Router) {
				r.With(s.requireRole(auth.RoleOwner)).Put("/pin", s.handleSetVaultPin)
				r.With(s.requireRole(auth.RoleMember)).Post("/unlock", s.handleVaultUnlock)
				r.With(s.requireRole(auth.RoleMember)).Post("/lock", s.handleVaultLock)
				r.With(s.requireRole(auth.RoleMember)).Get("/settings", s.handleGetVaultSettings)
				r.With(s.requireRole(auth.RoleOwner)).Patch("/settings", s.handleUpdateVaultSettings)

				r.Route("/secrets", func(r chi.Router) {
					r.With(s.requireRole(auth.RoleMember)).Get("/", s.handleListSecrets)
					r.With(s.requireRole(auth.RoleOwner)).Post("/", s.handleCreateSecret)
					r.With(s.requireRole(auth.RoleMember)).Get("/{id}", s.handleGetSecret)
					r.With(s.requireRole(auth.RoleOwner)).Patch("/{id}", s.handleUpdateSecret)
					r.With(s.requireRole(auth.RoleOwner)).Delete("/{id}", s.handleDeleteSecret)
				})
			})

			// Guest access grants
			r.Route("/grants", func(r chi.Router) {
				r.With(s.requireRole(auth.RoleOwner)).Post("/", s.handleCreateGrant)
				r.With(s.requireRole(auth.RoleMember)).Get("/", s.handleListGrants)
				r.Get("/mine", s.handleMyGrants)
				r.Post("/accept", s.handleAcceptGrant)
				r.With(s.requireRole(auth.RoleMember)).Get("/{id}", s.handleGetGrant)
				r.With(s.requireRole(auth.RoleOwner)).Post("/{id}/revoke", s.handleRevokeGrant)
			})

			// Audit trail
			r.With(s.requireRole(auth.RoleOwner)).Get("/audit", s.handleListAudit)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
