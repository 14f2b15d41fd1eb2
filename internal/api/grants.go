package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hearthops/hearth-core/internal/grant"
)

// ─── Request/Response Types ────────────────────────────────────────

type createGrantRequest struct {
	GuestEmail  string             `json:"guest_email"`
	AccessLevel grant.AccessLevel  `json:"access_level"`
	Permissions []grant.Capability `json:"permissions,omitempty"` // overrides preset when set
	Purpose     string             `json:"purpose,omitempty"`
	StartsAt    *time.Time         `json:"starts_at,omitempty"` // defaults to now
	ExpiresAt   time.Time          `json:"expires_at"`
}

// createGrantResponse carries the raw invite token exactly once. It is not
// recoverable afterwards — only its hash is stored.
type createGrantResponse struct {
	Grant       *grant.AccessGrant `json:"grant"`
	InviteToken string             `json:"invite_token"`
}

type acceptGrantRequest struct {
	Token string `json:"token"`
}

type revokeGrantRequest struct {
	Reason string `json:"reason"`
}

// grantView is an AccessGrant with its status derived at response time, so
// clients never see a stale "active" on an elapsed grant.
type grantView struct {
	*grant.AccessGrant
	Status grant.Status `json:"status"`
}

func viewOf(g *grant.AccessGrant, now time.Time) grantView {
	return grantView{AccessGrant: g, Status: g.EffectiveStatus(now)}
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleCreateGrant invites a guest. Owner only.
func (s *Server) handleCreateGrant(w http.ResponseWriter, r *http.Request) {
	var req createGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.GuestEmail == "" || req.AccessLevel == "" || req.ExpiresAt.IsZero() {
		writeBadRequest(w, "guest_email, access_level, and expires_at are required")
		return
	}

	claims := claimsFromContext(r.Context())

	startsAt := time.Now()
	if req.StartsAt != nil {
		startsAt = *req.StartsAt
	}

	g, token, err := s.grants.Invite(r.Context(), grant.InviteParams{
		HouseholdID: claims.HouseholdID,
		InvitedBy:   claims.Subject,
		GuestEmail:  req.GuestEmail,
		AccessLevel: req.AccessLevel,
		Permissions: req.Permissions,
		Purpose:     req.Purpose,
		StartsAt:    startsAt,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, grant.ErrInvalidWindow):
			writeValidationError(w, "expires_at must be after starts_at")
		case errors.Is(err, grant.ErrInvalidAccessLevel):
			writeValidationError(w, "access_level must be view_only, limited, standard, or full")
		case errors.Is(err, grant.ErrInvalidEmail), errors.Is(err, grant.ErrInvalidCapability):
			writeValidationError(w, err.Error())
		default:
			s.logger.Error("create grant failed", "error", err)
			writeInternalError(w, "failed to create grant")
		}
		return
	}

	s.securityEvent(claims.HouseholdID, "grant_invite", "success")

	writeJSON(w, http.StatusCreated, createGrantResponse{Grant: g, InviteToken: token})
}

// handleListGrants returns all grants for the household with derived status.
func (s *Server) handleListGrants(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	grants, err := s.grantRepo.ListByHousehold(r.Context(), claims.HouseholdID)
	if err != nil {
		s.logger.Error("list grants failed", "error", err)
		writeInternalError(w, "failed to list grants")
		return
	}

	now := time.Now()
	views := make([]grantView, 0, len(grants))
	for _, g := range grants {
		views = append(views, viewOf(g, now))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"grants": views,
		"count":  len(views),
	})
}

// handleGetGrant returns one grant with derived status.
func (s *Server) handleGetGrant(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	g, err := s.grantRepo.GetByID(r.Context(), claims.HouseholdID, chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "grant not found")
		return
	}

	writeJSON(w, http.StatusOK, viewOf(g, time.Now()))
}

// handleAcceptGrant redeems an invite token and binds the caller's identity
// to the grant. An unknown token gets a 401, not a 404, so the endpoint
// can't confirm which tokens exist.
func (s *Server) handleAcceptGrant(w http.ResponseWriter, r *http.Request) {
	var req acceptGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Token == "" {
		writeBadRequest(w, "token is required")
		return
	}

	claims := claimsFromContext(r.Context())

	g, err := s.grants.Accept(r.Context(), req.Token, claims.Subject)
	if err != nil {
		switch {
		case errors.Is(err, grant.ErrGrantNotFound):
			writeUnauthorized(w, "invalid invite token")
		case errors.Is(err, grant.ErrTokenExpired):
			writeGone(w, "invite token expired")
		case errors.Is(err, grant.ErrTokenConsumed):
			writeConflict(w, "invite already used or withdrawn")
		default:
			s.logger.Error("accept grant failed", "error", err)
			writeInternalError(w, "failed to accept invite")
		}
		return
	}

	s.securityEvent(g.HouseholdID, "grant_accept", "success")

	writeJSON(w, http.StatusOK, viewOf(g, time.Now()))
}

// handleRevokeGrant revokes a pending or active grant. Owner only. Takes
// effect immediately: every capability check re-reads grant state.
func (s *Server) handleRevokeGrant(w http.ResponseWriter, r *http.Request) {
	var req revokeGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	claims := claimsFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.grants.Revoke(r.Context(), claims.HouseholdID, id, claims.Subject, req.Reason); err != nil {
		switch {
		case errors.Is(err, grant.ErrGrantNotFound):
			writeNotFound(w, "grant not found")
		case errors.Is(err, grant.ErrTerminalState):
			writeConflict(w, "grant is already expired or revoked")
		default:
			s.logger.Error("revoke grant failed", "error", err)
			writeInternalError(w, "failed to revoke grant")
		}
		return
	}

	s.securityEvent(claims.HouseholdID, "grant_revoke", "success")

	w.WriteHeader(http.StatusNoContent)
}

// handleMyGrants returns the grants bound to the calling guest, with derived
// status and the capability set each one currently permits. Guest apps use
// this to decide which views to render; the server still re-checks every
// capability on each guest-scoped request.
func (s *Server) handleMyGrants(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	grants, err := s.grantRepo.ListByGuest(r.Context(), claims.Subject)
	if err != nil {
		s.logger.Error("list guest grants failed", "error", err)
		writeInternalError(w, "failed to list grants")
		return
	}

	now := time.Now()
	type guestGrant struct {
		grantView
		Capabilities []grant.Capability `json:"capabilities"`
	}

	views := make([]guestGrant, 0, len(grants))
	for _, g := range grants {
		caps := []grant.Capability{}
		for _, c := range g.Permissions {
			if grant.Check(g, c, now) {
				caps = append(caps, c)
			}
		}
		views = append(views, guestGrant{grantView: viewOf(g, now), Capabilities: caps})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"grants": views,
		"count":  len(views),
	})
}
