package grant

import "time"

// Capability is a single named permission bit. The enumeration deliberately
// contains no destructive capabilities — delete, PIN change, payment — so no
// preset or custom override can ever hand one to a guest.
type Capability string

// Guest-grantable capabilities.
const (
	CapViewTasks    Capability = "view_tasks"
	CapViewCalendar Capability = "view_calendar"
	CapViewVendors  Capability = "view_vendors"
	CapViewFiles    Capability = "view_files"
	CapSendMessages Capability = "send_messages"
	CapCreateTasks  Capability = "create_tasks"
)

// AllCapabilities lists every grantable capability.
var AllCapabilities = []Capability{
	CapViewTasks, CapViewCalendar, CapViewVendors,
	CapViewFiles, CapSendMessages, CapCreateTasks,
}

// IsValidCapability checks membership in the capability enumeration.
func IsValidCapability(c Capability) bool {
	for _, v := range AllCapabilities {
		if v == c {
			return true
		}
	}
	return false
}

// presetCapabilities maps each access level to its default capability set.
// The presets form a containment chain: view_only ⊂ limited ⊂ standard ⊆
// full. Custom grants may flip individual bits independent of this ordering.
var presetCapabilities = map[AccessLevel][]Capability{
	AccessViewOnly: {CapViewTasks, CapViewCalendar},
	AccessLimited:  {CapViewTasks, CapViewCalendar, CapViewVendors},
	AccessStandard: {CapViewTasks, CapViewCalendar, CapViewVendors, CapViewFiles, CapSendMessages},
	AccessFull:     {CapViewTasks, CapViewCalendar, CapViewVendors, CapViewFiles, CapSendMessages, CapCreateTasks},
}

// PresetCapabilities returns a copy of the default capability set for a
// preset.
func PresetCapabilities(level AccessLevel) ([]Capability, error) {
	caps, ok := presetCapabilities[level]
	if !ok {
		return nil, ErrInvalidAccessLevel
	}
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out, nil
}

// Check reports whether the grant permits a capability at a point in time.
// It guards every guest-facing request: the grant must be effectively active
// (derived status, not stored), the window must have opened, and the
// capability must be in the grant's set.
func Check(g *AccessGrant, capability Capability, now time.Time) bool {
	if g == nil {
		return false
	}
	if g.EffectiveStatus(now) != StatusActive {
		return false
	}
	if now.Before(g.StartsAt) {
		return false
	}
	for _, c := range g.Permissions {
		if c == capability {
			return true
		}
	}
	return false
}
