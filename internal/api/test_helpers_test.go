package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hearthops/hearth-core/internal/audit"
	"github.com/hearthops/hearth-core/internal/auth"
	"github.com/hearthops/hearth-core/internal/grant"
	"github.com/hearthops/hearth-core/internal/infrastructure/config"
	"github.com/hearthops/hearth-core/internal/infrastructure/logging"
	"github.com/hearthops/hearth-core/internal/vault"
)

const (
	testJWTSecret    = "api-test-jwt-secret-0123456789abcdef"
	testMasterSecret = "api-test-master-secret-0123456789ab"
	testPassword     = "test-password"
)

// testEnv bundles a fully wired server over a temporary database so handler
// tests exercise the real repositories end to end.
type testEnv struct {
	srv     *Server
	handler http.Handler
	db      *sql.DB
}

// noopNotifier satisfies grant.Notifier without sending anything.
type noopNotifier struct{}

func (noopNotifier) SendGrantInvite(context.Context, *grant.AccessGrant, string) error {
	return nil
}

func (noopNotifier) SendGrantRevoked(context.Context, *grant.AccessGrant) error {
	return nil
}

// testDB creates a temporary SQLite database with the full schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "api-test-*.db")
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
		t.Fatalf("applying schema: %v", err)
	}

	return db
}

func testLogger() *logging.Logger {
	return &logging.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// newTestEnv wires a server over a fresh database. The vault unlock limiter
// is injectable so throttling tests can use a tight budget while everything
// else gets a generous one.
func newTestEnv(t *testing.T, unlockLimiter *auth.AttemptLimiter) *testEnv {
	t.Helper()

	db := testDB(t)
	logger := testLogger()

	sessions := vault.NewSessionManager(
		vault.NewSQLiteSettingsRepository(db),
		audit.NewSQLiteRepository(db),
		unlockLimiter,
		logger.Logger,
		0,
	)

	store, err := vault.NewSecretStore(testMasterSecret)
	if err != nil {
		t.Fatalf("NewSecretStore() error = %v", err)
	}

	grantRepo := grant.NewSQLiteRepository(db)
	registry := grant.NewRegistry(grantRepo, audit.NewSQLiteRepository(db), noopNotifier{}, logger.Logger)

	srv, err := New(Deps{
		Config: config.APIConfig{},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testJWTSecret, AccessTokenTTL: 15},
		},
		Logger:        logger,
		UserRepo:      auth.NewUserRepository(db),
		HouseholdRepo: auth.NewHouseholdRepository(db),
		Sessions:      sessions,
		SecretStore:   store,
		SecretRepo:    vault.NewSQLiteSecretRepository(db),
		SettingsRepo:  vault.NewSQLiteSettingsRepository(db),
		Grants:        registry,
		GrantRepo:     grantRepo,
		AuditRepo:     audit.NewSQLiteRepository(db),
		Version:       "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &testEnv{srv: srv, handler: srv.buildRouter(), db: db}
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnv(t, auth.NewAttemptLimiter(100, time.Minute))
}

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

// seedUser inserts an active user with the shared test password and returns it.
func seedUser(t *testing.T, db *sql.DB, householdID, email string, role auth.Role) *auth.User {
	t.Helper()

	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	user := &auth.User{
		HouseholdID:  householdID,
		Email:        email,
		DisplayName:  email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := auth.NewUserRepository(db).Create(context.Background(), user); err != nil {
		t.Fatalf("creating user %s: %v", email, err)
	}
	return user
}

// bearerFor mints an access token for the user.
func bearerFor(t *testing.T, user *auth.User) string {
	t.Helper()

	token, err := auth.GenerateAccessToken(user, testJWTSecret, 15)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}
	return "Bearer " + token
}

// doRequest runs one request through the router. A non-nil body is JSON
// encoded; an empty token leaves the Authorization header unset.
func doRequest(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// decodeBody unmarshals a JSON response body into v.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()

	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response body %q: %v", rec.Body.String(), err)
	}
}

// wantError asserts the response carries a structured error with the given
// status and code.
func wantError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()

	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	var apiErr Error
	decodeBody(t, rec, &apiErr)
	if apiErr.Code != code {
		t.Errorf("error code = %q, want %q", apiErr.Code, code)
	}
	if apiErr.Status != status {
		t.Errorf("error status field = %d, want %d", apiErr.Status, status)
	}
}
