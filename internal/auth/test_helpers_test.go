package auth

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the identity schema
// applied. The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "auth-test-*.db")
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

		CREATE TABLE users (
			id            TEXT PRIMARY KEY,
			household_id  TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			display_name  TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL DEFAULT 'member',
			is_active     INTEGER NOT NULL DEFAULT 1,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL,
			FOREIGN KEY (household_id) REFERENCES households(id) ON DELETE CASCADE
		) STRICT;

		CREATE INDEX idx_users_household ON users(household_id);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying identity schema: %v", err)
	}

	return db
}

// seedTestHousehold inserts a household and returns it.
func seedTestHousehold(t *testing.T, db *sql.DB, name string) *Household {
	t.Helper()

	repo := NewHouseholdRepository(db)
	h := &Household{Name: name}
	if err := repo.Create(context.Background(), h); err != nil {
		t.Fatalf("creating test household %s: %v", name, err)
	}
	return h
}

// seedTestUser inserts a user in the given household and returns it.
func seedTestUser(t *testing.T, db *sql.DB, householdID, email string, role Role) *User {
	t.Helper()

	hash, err := HashPassword("test-password")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	repo := NewUserRepository(db)
	user := &User{
		HouseholdID:  householdID,
		Email:        email,
		DisplayName:  email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user %s: %v", email, err)
	}
	return user
}

// fixedClock returns a now func pinned to t plus an offset pointer tests can
// advance.
func fixedClock(base time.Time) (func() time.Time, *time.Duration) {
	offset := new(time.Duration)
	return func() time.Time { return base.Add(*offset) }, offset
}
