package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SettingsRepository defines storage for per-household vault settings.
type SettingsRepository interface {
	Get(ctx context.Context, householdID string) (*Settings, error)
	Upsert(ctx context.Context, settings *Settings) error
	SetPinHash(ctx context.Context, householdID, pinHash string) error
}

// SQLiteSettingsRepository stores vault settings in SQLite.
type SQLiteSettingsRepository struct {
	db *sql.DB
}

// NewSQLiteSettingsRepository creates a vault settings repository.
func NewSQLiteSettingsRepository(db *sql.DB) *SQLiteSettingsRepository {
	return &SQLiteSettingsRepository{db: db}
}

// Get returns a household's vault settings, or ErrSettingsNotFound if the
// household has never touched the vault.
func (r *SQLiteSettingsRepository) Get(ctx context.Context, householdID string) (*Settings, error) {
	var s Settings
	var pinHash sql.NullString
	var requireSensitive int
	var updatedAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT household_id, pin_hash, auto_lock_minutes, require_pin_for_sensitive, updated_at
		 FROM vault_settings WHERE household_id = ?`,
		householdID,
	).Scan(&s.HouseholdID, &pinHash, &s.AutoLockMinutes, &requireSensitive, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying vault settings: %w", err)
	}

	if pinHash.Valid {
		s.PinHash = pinHash.String
	}
	s.RequirePinForSensitive = requireSensitive != 0

	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing vault settings timestamp: %w", err)
	}
	s.UpdatedAt = t

	return &s, nil
}

// Upsert writes the full settings row, creating it if absent.
func (r *SQLiteSettingsRepository) Upsert(ctx context.Context, settings *Settings) error {
	settings.UpdatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO vault_settings (household_id, pin_hash, auto_lock_minutes, require_pin_for_sensitive, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(household_id) DO UPDATE SET
		   pin_hash = excluded.pin_hash,
		   auto_lock_minutes = excluded.auto_lock_minutes,
		   require_pin_for_sensitive = excluded.require_pin_for_sensitive,
		   updated_at = excluded.updated_at`,
		settings.HouseholdID, nullString(settings.PinHash),
		settings.AutoLockMinutes, boolToInt(settings.RequirePinForSensitive),
		settings.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting vault settings: %w", err)
	}

	return nil
}

// SetPinHash replaces only the PIN hash, preserving other settings. The row
// is created with defaults when the household has no settings yet. Live
// unlock sessions are untouched: changing the PIN does not lock anyone out
// mid-session.
func (r *SQLiteSettingsRepository) SetPinHash(ctx context.Context, householdID, pinHash string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO vault_settings (household_id, pin_hash, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(household_id) DO UPDATE SET
		   pin_hash = excluded.pin_hash,
		   updated_at = excluded.updated_at`,
		householdID, pinHash, now,
	)
	if err != nil {
		return fmt.Errorf("setting vault pin hash: %w", err)
	}

	return nil
}

// nullString returns nil for empty strings so the column stores NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// boolToInt converts a bool to SQLite's integer representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
