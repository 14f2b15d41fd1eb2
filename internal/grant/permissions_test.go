package grant

import (
	"testing"
	"time"
)

func TestPresetCapabilities_Containment(t *testing.T) {
	// Each preset must contain everything the one below it grants.
	chain := []AccessLevel{AccessViewOnly, AccessLimited, AccessStandard, AccessFull}

	for i := 1; i < len(chain); i++ {
		lower, err := PresetCapabilities(chain[i-1])
		if err != nil {
			t.Fatalf("PresetCapabilities(%s) error = %v", chain[i-1], err)
		}
		higher, err := PresetCapabilities(chain[i])
		if err != nil {
			t.Fatalf("PresetCapabilities(%s) error = %v", chain[i], err)
		}

		set := make(map[Capability]bool, len(higher))
		for _, c := range higher {
			set[c] = true
		}
		for _, c := range lower {
			if !set[c] {
				t.Errorf("%s grants %s but %s does not", chain[i-1], c, chain[i])
			}
		}
	}
}

func TestPresetCapabilities_FullGrantsEverything(t *testing.T) {
	caps, err := PresetCapabilities(AccessFull)
	if err != nil {
		t.Fatalf("PresetCapabilities(full) error = %v", err)
	}
	if len(caps) != len(AllCapabilities) {
		t.Errorf("full preset grants %d capabilities, want all %d", len(caps), len(AllCapabilities))
	}
}

func TestPresetCapabilities_NoDestructiveCapabilities(t *testing.T) {
	// The enumeration itself excludes destructive operations, so no preset
	// can ever hand one out.
	forbidden := []Capability{"delete_tasks", "change_pin", "manage_payments", "delete_files"}
	for _, c := range forbidden {
		if IsValidCapability(c) {
			t.Errorf("capability %s must not exist", c)
		}
	}
}

func TestPresetCapabilities_InvalidLevel(t *testing.T) {
	if _, err := PresetCapabilities("root"); err == nil {
		t.Error("PresetCapabilities should reject unknown levels")
	}
}

func TestPresetCapabilities_ReturnsCopy(t *testing.T) {
	caps, err := PresetCapabilities(AccessViewOnly)
	if err != nil {
		t.Fatalf("PresetCapabilities() error = %v", err)
	}
	caps[0] = "tampered"

	fresh, err := PresetCapabilities(AccessViewOnly)
	if err != nil {
		t.Fatalf("PresetCapabilities() error = %v", err)
	}
	if fresh[0] == "tampered" {
		t.Error("mutating the returned slice must not affect the preset")
	}
}

func TestCheck(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	active := func() *AccessGrant {
		return &AccessGrant{
			Status:      StatusActive,
			Permissions: []Capability{CapViewTasks, CapViewCalendar},
			StartsAt:    now.Add(-24 * time.Hour),
			ExpiresAt:   now.Add(24 * time.Hour),
		}
	}

	t.Run("granted capability", func(t *testing.T) {
		if !Check(active(), CapViewTasks, now) {
			t.Error("Check() = false, want true")
		}
	})

	t.Run("ungranted capability", func(t *testing.T) {
		if Check(active(), CapSendMessages, now) {
			t.Error("Check() = true for a capability outside the grant's set")
		}
	})

	t.Run("nil grant", func(t *testing.T) {
		if Check(nil, CapViewTasks, now) {
			t.Error("Check(nil) = true, want false")
		}
	})

	t.Run("pending grant", func(t *testing.T) {
		g := active()
		g.Status = StatusPending
		if Check(g, CapViewTasks, now) {
			t.Error("a pending grant must not authorize anything")
		}
	})

	t.Run("revoked grant", func(t *testing.T) {
		g := active()
		g.Status = StatusRevoked
		if Check(g, CapViewTasks, now) {
			t.Error("a revoked grant must not authorize anything")
		}
	})

	t.Run("window not yet open", func(t *testing.T) {
		g := active()
		g.StartsAt = now.Add(time.Hour)
		if Check(g, CapViewTasks, now) {
			t.Error("a grant must not authorize before its window opens")
		}
	})

	t.Run("window closed", func(t *testing.T) {
		// The stored row still says active; derivation catches the elapsed
		// window.
		g := active()
		g.ExpiresAt = now.Add(-time.Minute)
		if Check(g, CapViewTasks, now) {
			t.Error("a grant past its window must not authorize anything")
		}
	})
}
