package vault

import (
	"errors"
	"time"
)

// Secret categories. Free-form categories are allowed; these are the ones the
// UI offers by default.
const (
	CategoryAccessCode = "access_code"
	CategoryPassword   = "password" //nolint:gosec // category name, not a credential
	CategoryDocument   = "document"
	CategoryOther      = "other"
)

// MinPinLength is the shortest PIN accepted by SetPin.
const MinPinLength = 4

// Sentinel errors for vault operations.
var (
	// ErrInvalidCredential is returned on PIN mismatch. It is deliberately
	// also returned when no PIN has been configured, so callers cannot
	// probe which households have a vault PIN. Clients learn whether a PIN
	// exists from the pin_set field on the settings resource instead.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrPinTooShort is returned by SetPin for PINs under MinPinLength.
	ErrPinTooShort = errors.New("pin too short")

	// ErrRateLimited is returned when PIN verification attempts exceed the
	// per-account budget.
	ErrRateLimited = errors.New("too many attempts")

	// ErrDecryption is returned when ciphertext fails authentication —
	// tamper, corruption, or a rotated master secret. Never carries
	// plaintext-adjacent detail.
	ErrDecryption = errors.New("decryption failed")

	// ErrMasterSecretRequired is returned by NewSecretStore when no master
	// secret is configured. The vault refuses to start rather than run in a
	// state where it cannot decrypt correctly.
	ErrMasterSecretRequired = errors.New("vault master secret required")

	// ErrSecretNotFound is returned when a secret doesn't exist or belongs
	// to another household.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrSettingsNotFound is returned when a household has no vault
	// settings row yet.
	ErrSettingsNotFound = errors.New("vault settings not found")
)

// Secret is one encrypted vault entry. Value is plaintext only in transit
// between the API layer and the SecretStore; the repository persists the
// encrypted blob and nothing else.
type Secret struct {
	ID          string    `json:"id"`
	HouseholdID string    `json:"household_id"`
	Category    string    `json:"category"`
	Title       string    `json:"title"`
	Value       string    `json:"value,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Settings holds per-household vault configuration. PinHash is an argon2id
// PHC string; the PIN itself is never stored.
type Settings struct {
	HouseholdID            string    `json:"household_id"`
	PinHash                string    `json:"-"`
	AutoLockMinutes        int       `json:"auto_lock_minutes"`
	RequirePinForSensitive bool      `json:"require_pin_for_sensitive"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// PinSet reports whether a PIN has been configured. Exposed on the settings
// resource so clients can distinguish "no PIN yet" from "wrong PIN" without
// the verify endpoint leaking it.
func (s *Settings) PinSet() bool {
	return s.PinHash != ""
}

// UnlockSession is ephemeral proof that a user recently supplied the correct
// PIN. Held in memory only, never persisted.
type UnlockSession struct {
	HouseholdID string    `json:"household_id"`
	UserID      string    `json:"user_id"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Remaining returns the time until expiry, zero if already expired.
func (s *UnlockSession) Remaining(now time.Time) time.Duration {
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
