package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SecretRepository defines storage for vault secrets. At this layer Value
// holds the encrypted blob exactly as persisted; encryption and decryption
// happen in the callers via SecretStore. Deletion is soft: rows keep their
// audit references and are filtered from reads.
type SecretRepository interface {
	Create(ctx context.Context, secret *Secret) error
	GetByID(ctx context.Context, householdID, id string) (*Secret, error)
	ListByHousehold(ctx context.Context, householdID string) ([]*Secret, error)
	Update(ctx context.Context, secret *Secret) error
	SoftDelete(ctx context.Context, householdID, id string) error
}

// SQLiteSecretRepository stores vault secrets in SQLite.
type SQLiteSecretRepository struct {
	db *sql.DB
}

// NewSQLiteSecretRepository creates a vault secret repository.
func NewSQLiteSecretRepository(db *sql.DB) *SQLiteSecretRepository {
	return &SQLiteSecretRepository{db: db}
}

// Create inserts a new secret. The ID is generated if empty.
func (r *SQLiteSecretRepository) Create(ctx context.Context, secret *Secret) error {
	if secret.ID == "" {
		secret.ID = "sec-" + uuid.NewString()[:8]
	}
	now := time.Now().UTC()
	secret.CreatedAt = now
	secret.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO vault_secrets (id, household_id, category, title, encrypted_value, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		secret.ID, secret.HouseholdID, secret.Category, secret.Title,
		secret.Value, nullString(secret.Notes),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting vault secret: %w", err)
	}

	return nil
}

// GetByID returns one secret scoped to a household. A secret belonging to a
// different household is indistinguishable from one that doesn't exist.
func (r *SQLiteSecretRepository) GetByID(ctx context.Context, householdID, id string) (*Secret, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, household_id, category, title, encrypted_value, notes, created_at, updated_at
		 FROM vault_secrets
		 WHERE id = ? AND household_id = ? AND deleted_at IS NULL`,
		id, householdID,
	)

	secret, err := scanSecret(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSecretNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying vault secret: %w", err)
	}

	return secret, nil
}

// ListByHousehold returns all live secrets for a household, newest first.
func (r *SQLiteSecretRepository) ListByHousehold(ctx context.Context, householdID string) ([]*Secret, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, household_id, category, title, encrypted_value, notes, created_at, updated_at
		 FROM vault_secrets
		 WHERE household_id = ? AND deleted_at IS NULL
		 ORDER BY created_at DESC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying vault secrets: %w", err)
	}
	defer rows.Close()

	secrets := []*Secret{}
	for rows.Next() {
		secret, err := scanSecret(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning vault secret: %w", err)
		}
		secrets = append(secrets, secret)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vault secrets: %w", err)
	}

	return secrets, nil
}

// Update rewrites the mutable fields of a secret.
func (r *SQLiteSecretRepository) Update(ctx context.Context, secret *Secret) error {
	secret.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx,
		`UPDATE vault_secrets
		 SET category = ?, title = ?, encrypted_value = ?, notes = ?, updated_at = ?
		 WHERE id = ? AND household_id = ? AND deleted_at IS NULL`,
		secret.Category, secret.Title, secret.Value, nullString(secret.Notes),
		secret.UpdatedAt.Format(time.RFC3339),
		secret.ID, secret.HouseholdID,
	)
	if err != nil {
		return fmt.Errorf("updating vault secret: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return ErrSecretNotFound
	}

	return nil
}

// SoftDelete marks a secret deleted without removing the row.
func (r *SQLiteSecretRepository) SoftDelete(ctx context.Context, householdID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE vault_secrets SET deleted_at = ? WHERE id = ? AND household_id = ? AND deleted_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339), id, householdID,
	)
	if err != nil {
		return fmt.Errorf("deleting vault secret: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrSecretNotFound
	}

	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanSecret(s scanner) (*Secret, error) {
	var secret Secret
	var notes sql.NullString
	var createdAt, updatedAt string

	if err := s.Scan(&secret.ID, &secret.HouseholdID, &secret.Category, &secret.Title,
		&secret.Value, &notes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if notes.Valid {
		secret.Notes = notes.String
	}

	var err error
	if secret.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if secret.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &secret, nil
}
