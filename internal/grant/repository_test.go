package grant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRepository_CreateAndGetByID(t *testing.T) {
	db := testDB(t)
	seedHousehold(t, db, "hh-1")
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	g := testGrant(t, "hh-1")
	g.Purpose = "house sitting"
	if err := repo.Create(ctx, g); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !strings.HasPrefix(g.ID, "gnt-") {
		t.Errorf("ID = %q, want gnt- prefix", g.ID)
	}
	if g.Status != StatusPending {
		t.Errorf("Status = %s, want pending default", g.Status)
	}

	got, err := repo.GetByID(ctx, "hh-1", g.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.GuestEmail != "guest@example.com" {
		t.Errorf("GuestEmail = %q, want %q", got.GuestEmail, "guest@example.com")
	}
	if got.AccessLevel != AccessViewOnly {
		t.Errorf("AccessLevel = %s, want %s", got.AccessLevel, AccessViewOnly)
	}
	if got.Purpose != "house sitting" {
		t.Errorf("Purpose = %q, want %q", got.Purpose, "house sitting")
	}
	if len(got.Permissions) != 2 || got.Permissions[0] != CapViewTasks {
		t.Errorf("Permissions = %v, want round-tripped capability set", got.Permissions)
	}
	if got.GuestUserID != "" {
		t.Error("GuestUserID should be empty before acceptance")
	}
	if got.AcceptedAt != nil || got.RevokedAt != nil {
		t.Error("timestamps should be nil before any transition")
	}
}

func TestRepository_GetByID_Scoping(t *testing.T) {
	db := testDB(t)
	seedHousehold(t, db, "hh-1")
	seedHousehold(t, db, "hh-2")
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	g := testGrant(t, "hh-1")
	if err := repo.Create(ctx, g); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err := repo.GetByID(ctx, "hh-2", g.ID)
	if !errors.Is(err, ErrGrantNotFound) {
		t.Errorf("cross-household GetByID() error = %v, want ErrGrantNotFound", err)
	}
}

func TestRepository_GetByTokenHash(t *testing.T) {
	db := testDB(t)
	seedHousehold(t, db, "hh-1")
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	g := testGrant(t, "hh-1")
	if err := repo.Create(ctx, g); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByTokenHash(ctx, g.InviteTokenHash)
	if err != nil {
		t.Fatalf("GetByTokenHash() error = %v", err)
	}
	if got.ID != g.ID {
		t.Errorf("ID = %q, want %q", got.ID, g.ID)
	}

	_, err = repo.GetByTokenHash(ctx, HashToken("not-a-real-token"))
	if !errors.Is(err, ErrGrantNotFound) {
		t.Errorf("unknown token error = %v, want ErrGrantNotFound", err)
	}
}

func TestRepository_MarkAccepted(t *testing.T) {
	db := testDB(t)
	seedHousehold(t, db, "hh-1")
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	g := testGrant(t, "hh-1")
	if err := repo.Create(ctx, g); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	at := time.Now().UTC()
	if err := repo.MarkAccepted(ctx, g.ID, "usr-guest", at); err != nil {
		t.Fatalf("MarkAccepted() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "hh-1", g.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusActive {
		t.Errorf("Status = %s, want active", got.Status)
	}
	if got.GuestUserID != "usr-guest" {
		t.Errorf("GuestUserID = %q, want bound guest", got.GuestUserID)
	}
	if got.AcceptedAt == nil {
		t.Error("AcceptedAt should be set")
	}

	// The transition guard: a second accept finds no pending row.
	err = repo.MarkAccepted(ctx, g.ID, "usr-other", time.Now().UTC())
	if !errors.Is(err, ErrTokenConsumed) {
		t.Errorf("second accept error = %v, want ErrTokenConsumed", err)
	}
}

func TestRepository_MarkRevoked(t *testing.T) {
	db := testDB(t)
	seedHousehold(t, db, "hh-1")
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	g := testGrant(t, "hh-1")
	if err := repo.Create(ctx, g); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.MarkRevoked(ctx, "hh-1", g.ID, "plans changed", time.Now().UTC()); err != nil {
		t.Fatalf("MarkRevoked() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "hh-1", g.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusRevoked {
		t.Errorf("Status = %s, want revoked", got.Status)
	}
	if got.RevokedAt == nil {
		t.Error("RevokedAt should be set")
	}
	if got.RevokeReason != "plans changed" {
		t.Errorf("RevokeReason = %q, want %q", got.RevokeReason, "plans changed")
	}
}

func TestRepository_MarkRevoked_Terminal(t *testing.T) {
	db := testDB(t)
	seedHousehold(t, db, "hh-1")
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	g := testGrant(t, "hh-1")
	if err := repo.Create(ctx, g); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.MarkRevoked(ctx, "hh-1", g.ID, "", time.Now().UTC()); err != nil {
		t.Fatalf("MarkRevoked() error = %v", err)
	}

	err := repo.MarkRevoked(ctx, "hh-1", g.ID, "", time.Now().UTC())
	if !errors.Is(err, ErrTerminalState) {
		t.Errorf("double revoke error = %v, want ErrTerminalState", err)
	}
}

func TestRepository_MarkRevoked_NotFound(t *testing.T) {
	db := testDB(t)
	seedHousehold(t, db, "hh-1")
	repo := NewSQLiteRepository(db)

	err := repo.MarkRevoked(context.Background(), "hh-1", "gnt-missing", "", time.Now().UTC())
	if !errors.Is(err, ErrGrantNotFound) {
		t.Errorf("error = %v, want ErrGrantNotFound", err)
	}
}

func TestRepository_AcceptRevokedGrant(t *testing.T) {
	db := testDB(t)
	seedHousehold(t, db, "hh-1")
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	g := testGrant(t, "hh-1")
	if err := repo.Create(ctx, g); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.MarkRevoked(ctx, "hh-1", g.ID, "withdrawn", time.Now().UTC()); err != nil {
		t.Fatalf("MarkRevoked() error = %v", err)
	}

	// Revoking before acceptance kills the invite token.
	err := repo.MarkAccepted(ctx, g.ID, "usr-guest", time.Now().UTC())
	if !errors.Is(err, ErrTokenConsumed) {
		t.Errorf("accepting a revoked grant error = %v, want ErrTokenConsumed", err)
	}
}

func TestRepository_MarkExpiredBefore(t *testing.T) {
	db := testDB(t)
	seedHousehold(t, db, "hh-1")
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()

	stale := testGrant(t, "hh-1")
	stale.StartsAt = now.Add(-48 * time.Hour)
	stale.ExpiresAt = now.Add(-24 * time.Hour)
	stale.Status = StatusActive

	live := testGrant(t, "hh-1")
	live.Status = StatusActive

	pendingStale := testGrant(t, "hh-1")
	pendingStale.ExpiresAt = now.Add(-24 * time.Hour)

	for _, g := range []*AccessGrant{stale, live, pendingStale} {
		if err := repo.Create(ctx, g); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	n, err := repo.MarkExpiredBefore(ctx, now)
	if err != nil {
		t.Fatalf("MarkExpiredBefore() error = %v", err)
	}
	if n != 1 {
		t.Errorf("expired %d grants, want 1 (only stale active grants)", n)
	}

	got, err := repo.GetByID(ctx, "hh-1", stale.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusExpired {
		t.Errorf("stale grant Status = %s, want expired", got.Status)
	}
}

func TestRepository_ListByHouseholdAndGuest(t *testing.T) {
	db := testDB(t)
	seedHousehold(t, db, "hh-1")
	seedHousehold(t, db, "hh-2")
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	g1 := testGrant(t, "hh-1")
	g2 := testGrant(t, "hh-1")
	g3 := testGrant(t, "hh-2")
	for _, g := range []*AccessGrant{g1, g2, g3} {
		if err := repo.Create(ctx, g); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	if err := repo.MarkAccepted(ctx, g2.ID, "usr-guest", time.Now().UTC()); err != nil {
		t.Fatalf("MarkAccepted() error = %v", err)
	}

	byHousehold, err := repo.ListByHousehold(ctx, "hh-1")
	if err != nil {
		t.Fatalf("ListByHousehold() error = %v", err)
	}
	if len(byHousehold) != 2 {
		t.Errorf("hh-1 grants = %d, want 2", len(byHousehold))
	}

	byGuest, err := repo.ListByGuest(ctx, "usr-guest")
	if err != nil {
		t.Fatalf("ListByGuest() error = %v", err)
	}
	if len(byGuest) != 1 || byGuest[0].ID != g2.ID {
		t.Errorf("guest grants = %d, want exactly the accepted one", len(byGuest))
	}
}

func TestRepository_TokenHashUnique(t *testing.T) {
	db := testDB(t)
	seedHousehold(t, db, "hh-1")
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	g1 := testGrant(t, "hh-1")
	if err := repo.Create(ctx, g1); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	g2 := testGrant(t, "hh-1")
	g2.InviteTokenHash = g1.InviteTokenHash
	if err := repo.Create(ctx, g2); err == nil {
		t.Error("Create() should reject a duplicate token hash")
	}
}

func TestNewInviteToken(t *testing.T) {
	t1, err := NewInviteToken()
	if err != nil {
		t.Fatalf("NewInviteToken() error = %v", err)
	}
	t2, err := NewInviteToken()
	if err != nil {
		t.Fatalf("NewInviteToken() error = %v", err)
	}

	if len(t1) != inviteTokenBytes*2 {
		t.Errorf("token length = %d, want %d hex chars", len(t1), inviteTokenBytes*2)
	}
	if t1 == t2 {
		t.Error("tokens should be unique")
	}
	if HashToken(t1) == t1 {
		t.Error("HashToken should not be the identity")
	}
	if len(HashToken(t1)) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(HashToken(t1)))
	}
}
