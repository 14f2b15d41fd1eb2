package grant

import (
	"database/sql"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the grant schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "grant-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE households (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			created_at TEXT NOT NULL
		) STRICT;

		CREATE TABLE access_grants (
			id                 TEXT PRIMARY KEY,
			household_id       TEXT NOT NULL,
			invited_by         TEXT NOT NULL,
			guest_email        TEXT NOT NULL,
			guest_user_id      TEXT,
			access_level       TEXT NOT NULL,
			permissions        TEXT NOT NULL,
			purpose            TEXT,
			starts_at          TEXT NOT NULL,
			expires_at         TEXT NOT NULL,
			status             TEXT NOT NULL DEFAULT 'pending',
			invite_token_hash  TEXT NOT NULL UNIQUE,
			accepted_at        TEXT,
			revoked_at         TEXT,
			revoke_reason      TEXT,
			created_at         TEXT NOT NULL,
			updated_at         TEXT NOT NULL,
			FOREIGN KEY (household_id) REFERENCES households(id) ON DELETE CASCADE
		) STRICT;

		CREATE INDEX idx_access_grants_household ON access_grants(household_id);
		CREATE INDEX idx_access_grants_guest ON access_grants(guest_user_id);

		CREATE TABLE audit_entries (
			id           TEXT PRIMARY KEY,
			household_id TEXT NOT NULL,
			actor_id     TEXT,
			action       TEXT NOT NULL,
			entity_type  TEXT NOT NULL,
			entity_id    TEXT,
			outcome      TEXT NOT NULL,
			details      TEXT,
			created_at   TEXT NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying grant schema: %v", err)
	}

	return db
}

// seedHousehold inserts a household row so foreign keys hold.
func seedHousehold(t *testing.T, db *sql.DB, id string) {
	t.Helper()

	_, err := db.Exec(
		"INSERT INTO households (id, name, created_at) VALUES (?, ?, ?)",
		id, "Test Household", time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("seeding household %s: %v", id, err)
	}
}

// testLogger discards all output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testGrant builds a minimal pending grant with a random token hash.
func testGrant(t *testing.T, householdID string) *AccessGrant {
	t.Helper()

	token, err := NewInviteToken()
	if err != nil {
		t.Fatalf("generating invite token: %v", err)
	}
	now := time.Now().UTC()
	return &AccessGrant{
		HouseholdID:     householdID,
		InvitedBy:       "usr-owner",
		GuestEmail:      "guest@example.com",
		AccessLevel:     AccessViewOnly,
		Permissions:     []Capability{CapViewTasks, CapViewCalendar},
		StartsAt:        now,
		ExpiresAt:       now.Add(7 * 24 * time.Hour),
		Status:          StatusPending,
		InviteTokenHash: HashToken(token),
	}
}
