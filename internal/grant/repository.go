package grant

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// inviteTokenBytes is the entropy of a raw invite token (256 bits).
const inviteTokenBytes = 32

// NewInviteToken generates a single-use invite token. The raw value goes to
// the guest; only its hash is stored.
func NewInviteToken() (string, error) {
	b := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating invite token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken computes the SHA-256 hash of a raw invite token for storage.
// Raw tokens are never stored — only their hashes.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// Repository defines persistence for access grants. Grants are never hard
// deleted while audit history references them; terminal states are reached
// only through the Mark methods, which guard the legal transitions at the
// database level.
type Repository interface {
	Create(ctx context.Context, g *AccessGrant) error
	GetByID(ctx context.Context, householdID, id string) (*AccessGrant, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*AccessGrant, error)
	ListByHousehold(ctx context.Context, householdID string) ([]*AccessGrant, error)
	ListByGuest(ctx context.Context, guestUserID string) ([]*AccessGrant, error)
	MarkAccepted(ctx context.Context, id, guestUserID string, at time.Time) error
	MarkRevoked(ctx context.Context, householdID, id, reason string, at time.Time) error
	MarkExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a grant repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const grantColumns = `id, household_id, invited_by, guest_email, guest_user_id, access_level,
	permissions, purpose, starts_at, expires_at, status, invite_token_hash,
	accepted_at, revoked_at, revoke_reason, created_at, updated_at`

// Create inserts a new pending grant. The ID is generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, g *AccessGrant) error {
	if g.ID == "" {
		g.ID = "gnt-" + uuid.NewString()[:8]
	}
	if g.Status == "" {
		g.Status = StatusPending
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	permissions, err := json.Marshal(g.Permissions)
	if err != nil {
		return fmt.Errorf("marshalling permissions: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO access_grants (`+grantColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.HouseholdID, g.InvitedBy, g.GuestEmail, nullString(g.GuestUserID),
		string(g.AccessLevel), string(permissions), nullString(g.Purpose),
		g.StartsAt.UTC().Format(time.RFC3339), g.ExpiresAt.UTC().Format(time.RFC3339),
		string(g.Status), g.InviteTokenHash,
		nil, nil, nil,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting grant: %w", err)
	}

	return nil
}

// GetByID returns one grant scoped to a household.
func (r *SQLiteRepository) GetByID(ctx context.Context, householdID, id string) (*AccessGrant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+grantColumns+` FROM access_grants WHERE id = ? AND household_id = ?`,
		id, householdID,
	)
	g, err := scanGrant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGrantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying grant: %w", err)
	}
	return g, nil
}

// GetByTokenHash looks up a grant by its invite token hash. Tokens are
// globally unique, so no household scope applies.
func (r *SQLiteRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*AccessGrant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+grantColumns+` FROM access_grants WHERE invite_token_hash = ?`,
		tokenHash,
	)
	g, err := scanGrant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGrantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying grant by token: %w", err)
	}
	return g, nil
}

// ListByHousehold returns all grants for a household, newest first.
func (r *SQLiteRepository) ListByHousehold(ctx context.Context, householdID string) ([]*AccessGrant, error) {
	return r.list(ctx,
		`SELECT `+grantColumns+` FROM access_grants WHERE household_id = ? ORDER BY created_at DESC`,
		householdID,
	)
}

// ListByGuest returns all grants bound to a guest identity.
func (r *SQLiteRepository) ListByGuest(ctx context.Context, guestUserID string) ([]*AccessGrant, error) {
	return r.list(ctx,
		`SELECT `+grantColumns+` FROM access_grants WHERE guest_user_id = ? ORDER BY created_at DESC`,
		guestUserID,
	)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*AccessGrant, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying grants: %w", err)
	}
	defer rows.Close()

	grants := []*AccessGrant{}
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning grant: %w", err)
		}
		grants = append(grants, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating grants: %w", err)
	}

	return grants, nil
}

// MarkAccepted transitions pending→active and binds the guest identity. The
// WHERE clause guards the transition: zero rows affected means the grant has
// already left the pending state.
func (r *SQLiteRepository) MarkAccepted(ctx context.Context, id, guestUserID string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE access_grants
		 SET status = ?, guest_user_id = ?, accepted_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(StatusActive), guestUserID,
		at.UTC().Format(time.RFC3339), at.UTC().Format(time.RFC3339),
		id, string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("accepting grant: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking accept result: %w", err)
	}
	if affected == 0 {
		return ErrTokenConsumed
	}

	return nil
}

// MarkRevoked transitions {pending,active}→revoked. Zero rows affected means
// the grant was already terminal or doesn't exist.
func (r *SQLiteRepository) MarkRevoked(ctx context.Context, householdID, id, reason string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE access_grants
		 SET status = ?, revoked_at = ?, revoke_reason = ?, updated_at = ?
		 WHERE id = ? AND household_id = ? AND status IN (?, ?)`,
		string(StatusRevoked),
		at.UTC().Format(time.RFC3339), nullString(reason), at.UTC().Format(time.RFC3339),
		id, householdID, string(StatusPending), string(StatusActive),
	)
	if err != nil {
		return fmt.Errorf("revoking grant: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking revoke result: %w", err)
	}
	if affected == 0 {
		// Distinguish missing from terminal for the caller.
		if _, gerr := r.GetByID(ctx, householdID, id); gerr != nil {
			return gerr
		}
		return ErrTerminalState
	}

	return nil
}

// MarkExpiredBefore persists the derived expired status for active grants
// whose window closed before cutoff. Cosmetic denormalization only — every
// authorization check derives expiry itself and never relies on this.
func (r *SQLiteRepository) MarkExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE access_grants SET status = ?, updated_at = ? WHERE status = ? AND expires_at < ?`,
		string(StatusExpired), time.Now().UTC().Format(time.RFC3339),
		string(StatusActive), cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("expiring grants: %w", err)
	}

	return result.RowsAffected()
}

// nullString returns nil for empty strings so the column stores NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanGrant(s scanner) (*AccessGrant, error) {
	var g AccessGrant
	var guestUserID, purpose, acceptedAt, revokedAt, revokeReason sql.NullString
	var accessLevel, status, permissions string
	var startsAt, expiresAt, createdAt, updatedAt string

	if err := s.Scan(&g.ID, &g.HouseholdID, &g.InvitedBy, &g.GuestEmail, &guestUserID,
		&accessLevel, &permissions, &purpose, &startsAt, &expiresAt, &status,
		&g.InviteTokenHash, &acceptedAt, &revokedAt, &revokeReason,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}

	g.AccessLevel = AccessLevel(accessLevel)
	g.Status = Status(status)
	if guestUserID.Valid {
		g.GuestUserID = guestUserID.String
	}
	if purpose.Valid {
		g.Purpose = purpose.String
	}
	if revokeReason.Valid {
		g.RevokeReason = revokeReason.String
	}

	if err := json.Unmarshal([]byte(permissions), &g.Permissions); err != nil {
		return nil, fmt.Errorf("parsing permissions: %w", err)
	}

	var err error
	if g.StartsAt, err = time.Parse(time.RFC3339, startsAt); err != nil {
		return nil, fmt.Errorf("parsing starts_at: %w", err)
	}
	if g.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	if g.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if g.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	if acceptedAt.Valid {
		t, err := time.Parse(time.RFC3339, acceptedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing accepted_at: %w", err)
		}
		g.AcceptedAt = &t
	}
	if revokedAt.Valid {
		t, err := time.Parse(time.RFC3339, revokedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing revoked_at: %w", err)
		}
		g.RevokedAt = &t
	}

	return &g, nil
}
