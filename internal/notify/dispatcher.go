// Package notify bridges domain events onto the MQTT notification transport.
// The notification service consumes these events and handles actual delivery
// (email, push); Core publishes and forgets.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hearthops/hearth-core/internal/grant"
	"github.com/hearthops/hearth-core/internal/infrastructure/mqtt"
)

// notifyQoS is at-least-once: duplicate notifications are harmless,
// dropped ones are annoying.
const notifyQoS = 1

// Dispatcher publishes notification events. It satisfies grant.Notifier;
// the registry decides how delivery failures are handled.
type Dispatcher struct {
	client *mqtt.Client
	topics mqtt.Topics
}

// NewDispatcher creates a dispatcher over a connected MQTT client.
func NewDispatcher(client *mqtt.Client) *Dispatcher {
	return &Dispatcher{client: client}
}

// grantInviteEvent is the payload for guest invitation notifications. The
// raw invite token travels here and nowhere else; the notification service
// embeds it in the acceptance link.
type grantInviteEvent struct {
	GrantID     string    `json:"grant_id"`
	HouseholdID string    `json:"household_id"`
	GuestEmail  string    `json:"guest_email"`
	AccessLevel string    `json:"access_level"`
	Purpose     string    `json:"purpose,omitempty"`
	InviteToken string    `json:"invite_token"`
	StartsAt    time.Time `json:"starts_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SendGrantInvite publishes a guest invitation event.
func (d *Dispatcher) SendGrantInvite(_ context.Context, g *grant.AccessGrant, token string) error {
	event := grantInviteEvent{
		GrantID:     g.ID,
		HouseholdID: g.HouseholdID,
		GuestEmail:  g.GuestEmail,
		AccessLevel: string(g.AccessLevel),
		Purpose:     g.Purpose,
		InviteToken: token,
		StartsAt:    g.StartsAt,
		ExpiresAt:   g.ExpiresAt,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling invite event: %w", err)
	}

	return d.client.Publish(d.topics.GrantInvite(g.HouseholdID), payload, notifyQoS, false)
}

// SendGrantRevoked publishes a revocation event so the guest's app can drop
// its local state. Authorization checks already deny the revoked grant
// server-side, so the registry treats a failed send as log-and-continue.
func (d *Dispatcher) SendGrantRevoked(_ context.Context, g *grant.AccessGrant) error {
	payload, err := json.Marshal(map[string]any{
		"grant_id":     g.ID,
		"household_id": g.HouseholdID,
		"revoked_at":   g.RevokedAt,
	})
	if err != nil {
		return fmt.Errorf("marshalling revocation event: %w", err)
	}

	return d.client.Publish(d.topics.GrantRevoked(g.HouseholdID), payload, notifyQoS, false)
}
