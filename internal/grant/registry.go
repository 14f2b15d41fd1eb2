package grant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hearthops/hearth-core/internal/audit"
	"github.com/hearthops/hearth-core/internal/auth"
)

// Audit actions emitted by the registry.
const (
	ActionInvite = "grant.invite"
	ActionAccept = "grant.accept"
	ActionRevoke = "grant.revoke"
)

// Notifier delivers grant lifecycle events to guests. Delivery is
// best-effort: a failed send never fails the operation — the owner can
// re-share an invite token out of band, and a revoked grant is already dead
// server-side whether or not the guest's app hears about it.
type Notifier interface {
	SendGrantInvite(ctx context.Context, g *AccessGrant, token string) error
	SendGrantRevoked(ctx context.Context, g *AccessGrant) error
}

// InviteParams describes a new guest invitation.
type InviteParams struct {
	HouseholdID string
	InvitedBy   string
	GuestEmail  string
	AccessLevel AccessLevel
	// Permissions overrides the preset's capability set when non-nil.
	Permissions []Capability
	Purpose     string
	StartsAt    time.Time
	ExpiresAt   time.Time
}

// Registry drives the grant state machine: invite, accept, revoke. Expiry
// never goes through the registry — it is derived at read time.
//
// Revocations are compliance-critical: their audit appends are synchronous
// and failures propagate, unlike the invite and accept trail which is
// best-effort.
type Registry struct {
	repo     Repository
	auditor  audit.Repository
	notifier Notifier
	logger   *slog.Logger

	now func() time.Time // injectable for tests
}

// NewRegistry creates a grant registry. notifier may be nil when no delivery
// channel is configured.
func NewRegistry(repo Repository, auditor audit.Repository, notifier Notifier, logger *slog.Logger) *Registry {
	return &Registry{
		repo:     repo,
		auditor:  auditor,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Invite creates a pending grant with a single-use invite token and
// dispatches the invitation. Returns the grant and the raw token; the token
// is not recoverable afterwards, only its hash is stored.
func (r *Registry) Invite(ctx context.Context, params InviteParams) (*AccessGrant, string, error) {
	if !auth.IsValidEmail(params.GuestEmail) {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidEmail, params.GuestEmail)
	}
	if !IsValidAccessLevel(params.AccessLevel) {
		return nil, "", ErrInvalidAccessLevel
	}
	if !params.ExpiresAt.After(params.StartsAt) {
		return nil, "", ErrInvalidWindow
	}

	permissions := params.Permissions
	if permissions == nil {
		var err error
		permissions, err = PresetCapabilities(params.AccessLevel)
		if err != nil {
			return nil, "", err
		}
	} else {
		for _, c := range permissions {
			if !IsValidCapability(c) {
				return nil, "", fmt.Errorf("%w: %q", ErrInvalidCapability, c)
			}
		}
	}

	token, err := NewInviteToken()
	if err != nil {
		return nil, "", err
	}

	g := &AccessGrant{
		HouseholdID:     params.HouseholdID,
		InvitedBy:       params.InvitedBy,
		GuestEmail:      params.GuestEmail,
		AccessLevel:     params.AccessLevel,
		Permissions:     permissions,
		Purpose:         params.Purpose,
		StartsAt:        params.StartsAt,
		ExpiresAt:       params.ExpiresAt,
		Status:          StatusPending,
		InviteTokenHash: HashToken(token),
	}

	if err := r.repo.Create(ctx, g); err != nil {
		return nil, "", err
	}

	r.recordTrail(ctx, g, params.InvitedBy, ActionInvite, map[string]any{
		"guest_email":  g.GuestEmail,
		"access_level": string(g.AccessLevel),
	})

	if r.notifier != nil {
		if err := r.notifier.SendGrantInvite(ctx, g, token); err != nil {
			r.logger.Warn("grant invite notification failed",
				"grant_id", g.ID, "error", err)
		}
	}

	return g, token, nil
}

// Accept redeems an invite token, binding the guest's identity and
// activating the grant. Fails with ErrTokenExpired past the grant window and
// ErrTokenConsumed when the grant already left the pending state (accepted
// earlier, or revoked before acceptance).
func (r *Registry) Accept(ctx context.Context, token, guestUserID string) (*AccessGrant, error) {
	g, err := r.repo.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		return nil, err
	}

	now := r.now()
	if now.After(g.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	if g.Status != StatusPending {
		return nil, ErrTokenConsumed
	}

	if err := r.repo.MarkAccepted(ctx, g.ID, guestUserID, now); err != nil {
		return nil, err
	}

	g.Status = StatusActive
	g.GuestUserID = guestUserID
	g.AcceptedAt = &now

	r.recordTrail(ctx, g, guestUserID, ActionAccept, nil)

	return g, nil
}

// Revoke transitions a pending or active grant to revoked, effective
// immediately: every authorization check re-reads grant state, so no cached
// permission survives past this call.
func (r *Registry) Revoke(ctx context.Context, householdID, id, actorID, reason string) error {
	now := r.now()

	// Apply the derived status first so an already-elapsed grant reports
	// terminal rather than revoking cleanly.
	g, err := r.repo.GetByID(ctx, householdID, id)
	if err != nil {
		return err
	}
	if g.EffectiveStatus(now).IsTerminal() {
		return ErrTerminalState
	}

	if err := r.repo.MarkRevoked(ctx, householdID, id, reason, now); err != nil {
		return err
	}

	if err := r.auditor.Create(ctx, &audit.Entry{
		HouseholdID: householdID,
		ActorID:     actorID,
		Action:      ActionRevoke,
		EntityType:  "grant",
		EntityID:    id,
		Outcome:     audit.OutcomeSuccess,
		Details:     map[string]any{"reason": reason},
	}); err != nil {
		return fmt.Errorf("recording grant revocation: %w", err)
	}

	if r.notifier != nil {
		g.Status = StatusRevoked
		g.RevokedAt = &now
		g.RevokeReason = reason
		if err := r.notifier.SendGrantRevoked(ctx, g); err != nil {
			r.logger.Warn("grant revocation notification failed",
				"grant_id", g.ID, "error", err)
		}
	}

	return nil
}

// recordTrail appends a best-effort audit entry for non-critical grant
// events.
func (r *Registry) recordTrail(ctx context.Context, g *AccessGrant, actorID, action string, details map[string]any) {
	err := r.auditor.Create(ctx, &audit.Entry{
		HouseholdID: g.HouseholdID,
		ActorID:     actorID,
		Action:      action,
		EntityType:  "grant",
		EntityID:    g.ID,
		Outcome:     audit.OutcomeSuccess,
		Details:     details,
	})
	if err != nil {
		r.logger.Warn("grant audit append failed", "action", action, "grant_id", g.ID, "error", err)
	}
}
