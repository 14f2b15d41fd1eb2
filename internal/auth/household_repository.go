package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HouseholdRepository defines the interface for household persistence.
type HouseholdRepository interface {
	Create(ctx context.Context, h *Household) error
	GetByID(ctx context.Context, id string) (*Household, error)
}

// SQLiteHouseholdRepository implements HouseholdRepository using SQLite.
type SQLiteHouseholdRepository struct {
	db *sql.DB
}

// NewHouseholdRepository creates a new SQLite-backed household repository.
func NewHouseholdRepository(db *sql.DB) *SQLiteHouseholdRepository {
	return &SQLiteHouseholdRepository{db: db}
}

// Create inserts a new household. The ID is generated if empty.
func (r *SQLiteHouseholdRepository) Create(ctx context.Context, h *Household) error {
	if h.ID == "" {
		h.ID = "hh-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	h.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO households (id, name, created_at) VALUES (?, ?, ?)",
		h.ID, h.Name, now)
	if err != nil {
		return fmt.Errorf("creating household: %w", err)
	}
	return nil
}

// GetByID retrieves a household by its ID.
func (r *SQLiteHouseholdRepository) GetByID(ctx context.Context, id string) (*Household, error) {
	var h Household
	var createdAt string

	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM households WHERE id = ?", id,
	).Scan(&h.ID, &h.Name, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHouseholdNotFound
		}
		return nil, fmt.Errorf("getting household: %w", err)
	}

	h.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	return &h, nil
}
