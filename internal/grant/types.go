package grant

import (
	"errors"
	"time"
)

// AccessLevel is a named preset bundle of capabilities.
type AccessLevel string

// Access level presets, ordered by containment.
const (
	AccessViewOnly AccessLevel = "view_only"
	AccessLimited  AccessLevel = "limited"
	AccessStandard AccessLevel = "standard"
	AccessFull     AccessLevel = "full"
)

// ValidAccessLevels lists all defined presets.
var ValidAccessLevels = []AccessLevel{AccessViewOnly, AccessLimited, AccessStandard, AccessFull}

// IsValidAccessLevel checks if a level is one of the defined presets.
func IsValidAccessLevel(level AccessLevel) bool {
	for _, l := range ValidAccessLevels {
		if l == level {
			return true
		}
	}
	return false
}

// Status is a grant's lifecycle state.
type Status string

// Grant lifecycle states. Transitions are monotonic:
// pending→{active,revoked}, active→{expired,revoked}; expired and revoked
// are terminal.
const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// IsTerminal reports whether no further transitions may leave this status.
func (s Status) IsTerminal() bool {
	return s == StatusExpired || s == StatusRevoked
}

// Sentinel errors for grant operations.
var (
	// ErrGrantNotFound is returned when a grant doesn't exist or belongs to
	// another household.
	ErrGrantNotFound = errors.New("grant not found")

	// ErrTokenExpired is returned when accepting an invite past the grant's
	// expiry.
	ErrTokenExpired = errors.New("invite token expired")

	// ErrTokenConsumed is returned when accepting an invite that has
	// already been used, revoked, or otherwise left the pending state.
	ErrTokenConsumed = errors.New("invite token already consumed")

	// ErrTerminalState is returned when mutating a revoked or expired
	// grant.
	ErrTerminalState = errors.New("grant is in a terminal state")

	// ErrInvalidWindow is returned when a grant's expiry is not after its
	// start.
	ErrInvalidWindow = errors.New("grant window is invalid")

	// ErrInvalidAccessLevel is returned for an unknown preset name.
	ErrInvalidAccessLevel = errors.New("invalid access level")

	// ErrInvalidEmail is returned for a malformed guest email address.
	ErrInvalidEmail = errors.New("invalid guest email")

	// ErrInvalidCapability is returned for an unknown capability in a
	// permission override.
	ErrInvalidCapability = errors.New("unknown capability")
)

// AccessGrant is one delegated authorization for a guest. GuestUserID is
// empty until the guest accepts the invite and binds their identity.
// InviteTokenHash stores a SHA-256 of the single-use token; the raw token
// exists only in the invitation itself.
type AccessGrant struct {
	ID              string       `json:"id"`
	HouseholdID     string       `json:"household_id"`
	InvitedBy       string       `json:"invited_by"`
	GuestEmail      string       `json:"guest_email"`
	GuestUserID     string       `json:"guest_user_id,omitempty"`
	AccessLevel     AccessLevel  `json:"access_level"`
	Permissions     []Capability `json:"permissions"`
	Purpose         string       `json:"purpose,omitempty"`
	StartsAt        time.Time    `json:"starts_at"`
	ExpiresAt       time.Time    `json:"expires_at"`
	Status          Status       `json:"status"`
	InviteTokenHash string       `json:"-"`
	AcceptedAt      *time.Time   `json:"accepted_at,omitempty"`
	RevokedAt       *time.Time   `json:"revoked_at,omitempty"`
	RevokeReason    string       `json:"revoke_reason,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// DeriveStatus computes the effective status at a point in time. The stored
// status alone is not authoritative: an active grant whose window has closed
// is expired regardless of what the row says. Pure function, invoked at
// every authorization checkpoint.
func DeriveStatus(stored Status, now, expiresAt time.Time) Status {
	if stored == StatusActive && now.After(expiresAt) {
		return StatusExpired
	}
	return stored
}

// EffectiveStatus is DeriveStatus applied to the grant itself.
func (g *AccessGrant) EffectiveStatus(now time.Time) Status {
	return DeriveStatus(g.Status, now, g.ExpiresAt)
}
