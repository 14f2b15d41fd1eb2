package vault

import (
	"database/sql"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hearthops/hearth-core/internal/audit"
	"github.com/hearthops/hearth-core/internal/auth"
)

// testDB creates a temporary SQLite database with the vault schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "vault-test-*.db")
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

		CREATE TABLE vault_settings (
			household_id              TEXT PRIMARY KEY,
			pin_hash                  TEXT,
			auto_lock_minutes         INTEGER NOT NULL DEFAULT 5,
			require_pin_for_sensitive INTEGER NOT NULL DEFAULT 1,
			updated_at                TEXT NOT NULL,
			FOREIGN KEY (household_id) REFERENCES households(id) ON DELETE CASCADE
		) STRICT;

		CREATE TABLE vault_secrets (
			id              TEXT PRIMARY KEY,
			household_id    TEXT NOT NULL,
			category        TEXT NOT NULL DEFAULT 'general',
			title           TEXT NOT NULL,
			encrypted_value TEXT NOT NULL,
			notes           TEXT,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL,
			deleted_at      TEXT,
			FOREIGN KEY (household_id) REFERENCES households(id) ON DELETE CASCADE
		) STRICT;

		CREATE INDEX idx_vault_secrets_household ON vault_secrets(household_id);

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
		t.Fatalf("applying vault schema: %v", err)
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

// newTestManager wires a session manager against the test database with a
// generous attempt budget so rate limiting doesn't interfere unless a test
// wants it to.
func newTestManager(t *testing.T, db *sql.DB) *SessionManager {
	t.Helper()

	return NewSessionManager(
		NewSQLiteSettingsRepository(db),
		audit.NewSQLiteRepository(db),
		auth.NewAttemptLimiter(100, time.Minute),
		testLogger(),
		0,
	)
}

// countAuditEntries returns how many audit rows match an action and outcome
// for a household.
func countAuditEntries(t *testing.T, db *sql.DB, householdID, action, outcome string) int {
	t.Helper()

	var n int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM audit_entries WHERE household_id = ? AND action = ? AND outcome = ?",
		householdID, action, outcome,
	).Scan(&n)
	if err != nil {
		t.Fatalf("counting audit entries: %v", err)
	}
	return n
}
