package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hearthops/hearth-core/internal/audit"
	"github.com/hearthops/hearth-core/internal/auth"
)

// Audit actions emitted by the session manager.
const (
	ActionPinSet = "vault.pin_set"
	ActionUnlock = "vault.unlock"
	ActionLock   = "vault.lock"
)

// DefaultAutoLockMinutes applies when a household's settings row carries no
// auto-lock value.
const DefaultAutoLockMinutes = 5

type sessionKey struct {
	householdID string
	userID      string
}

// SessionManager owns PIN verification and unlock session lifecycle.
//
// Sessions are held in memory and keyed by (household, user); reissuing
// overwrites the prior session. Expiry is evaluated lazily at every
// IsUnlocked call, so there is no background timer to coordinate with.
//
// Unlock attempts are compliance-critical: their audit appends are
// synchronous and any append failure propagates to the caller instead of
// being swallowed like general activity logging.
type SessionManager struct {
	settings        SettingsRepository
	auditor         audit.Repository
	limiter         *auth.AttemptLimiter
	logger          *slog.Logger
	defaultAutoLock int

	mu       sync.Mutex
	sessions map[sessionKey]*UnlockSession

	now func() time.Time // injectable for tests
}

// NewSessionManager creates a session manager. limiter throttles PIN
// verification per (household, user) account. defaultAutoLockMinutes is the
// auto-lock window for households that never chose one; zero or negative
// falls back to DefaultAutoLockMinutes.
func NewSessionManager(settings SettingsRepository, auditor audit.Repository, limiter *auth.AttemptLimiter, logger *slog.Logger, defaultAutoLockMinutes int) *SessionManager {
	if defaultAutoLockMinutes <= 0 {
		defaultAutoLockMinutes = DefaultAutoLockMinutes
	}
	return &SessionManager{
		settings:        settings,
		auditor:         auditor,
		limiter:         limiter,
		logger:          logger,
		defaultAutoLock: defaultAutoLockMinutes,
		sessions:        make(map[sessionKey]*UnlockSession),
		now:             time.Now,
	}
}

// DefaultAutoLock returns the service-wide auto-lock window in minutes,
// applied to households without an explicit setting.
func (m *SessionManager) DefaultAutoLock() int {
	return m.defaultAutoLock
}

// SetPin stores a new salted PIN hash for the household. Caller must already
// hold the owner role. Live unlock sessions are unaffected.
func (m *SessionManager) SetPin(ctx context.Context, householdID, actorID, pin string) error {
	if len(pin) < MinPinLength {
		return ErrPinTooShort
	}

	hash, err := auth.HashPassword(pin)
	if err != nil {
		return fmt.Errorf("hashing pin: %w", err)
	}

	// First PIN for the household: materialise the settings row with the
	// service-wide auto-lock default so the configured value sticks.
	if _, gerr := m.settings.Get(ctx, householdID); errors.Is(gerr, ErrSettingsNotFound) {
		if uerr := m.settings.Upsert(ctx, &Settings{
			HouseholdID:            householdID,
			AutoLockMinutes:        m.defaultAutoLock,
			RequirePinForSensitive: true,
		}); uerr != nil {
			return uerr
		}
	} else if gerr != nil {
		return gerr
	}

	if err := m.settings.SetPinHash(ctx, householdID, hash); err != nil {
		return err
	}

	return m.auditor.Create(ctx, &audit.Entry{
		HouseholdID: householdID,
		ActorID:     actorID,
		Action:      ActionPinSet,
		EntityType:  "vault",
		Outcome:     audit.OutcomeSuccess,
	})
}

// VerifyPin checks pin against the household's stored hash. On success it
// issues an unlock session expiring after the household's auto-lock window
// and returns it. On mismatch it returns ErrInvalidCredential; a household
// with no PIN configured gets the same answer, so the endpoint cannot be
// used to probe which households have a vault PIN.
func (m *SessionManager) VerifyPin(ctx context.Context, householdID, userID, pin string) (*UnlockSession, error) {
	limiterKey := householdID + ":" + userID
	if !m.limiter.Allow(limiterKey) {
		if err := m.recordAttempt(ctx, householdID, userID, audit.OutcomeDenied, "rate limited"); err != nil {
			return nil, err
		}
		return nil, ErrRateLimited
	}

	settings, err := m.settings.Get(ctx, householdID)
	if err != nil && !errors.Is(err, ErrSettingsNotFound) {
		return nil, err
	}

	matched := false
	if settings != nil && settings.PinSet() {
		ok, verr := auth.VerifyPassword(pin, settings.PinHash)
		if verr != nil {
			return nil, fmt.Errorf("verifying pin: %w", verr)
		}
		matched = ok
	}

	if !matched {
		if err := m.recordAttempt(ctx, householdID, userID, audit.OutcomeFailure, "pin mismatch"); err != nil {
			return nil, err
		}
		return nil, ErrInvalidCredential
	}

	m.limiter.Reset(limiterKey)

	autoLock := settings.AutoLockMinutes
	if autoLock <= 0 {
		autoLock = m.defaultAutoLock
	}

	now := m.now()
	session := &UnlockSession{
		HouseholdID: householdID,
		UserID:      userID,
		IssuedAt:    now,
		ExpiresAt:   now.Add(time.Duration(autoLock) * time.Minute),
	}

	// The audit append must land before the session exists: a write failure
	// leaves the vault locked, never unlocked-but-unrecorded.
	if err := m.recordAttempt(ctx, householdID, userID, audit.OutcomeSuccess, ""); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[sessionKey{householdID, userID}] = session
	m.mu.Unlock()

	m.logger.Info("vault unlocked",
		"household_id", householdID,
		"user_id", userID,
		"expires_at", session.ExpiresAt,
	)

	return session, nil
}

// IsUnlocked reports whether the user holds a live unlock session. Expiry is
// evaluated here, at call time; consumers must call this immediately before
// using decrypted data rather than caching the boolean.
func (m *SessionManager) IsUnlocked(householdID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey{householdID, userID}
	session, ok := m.sessions[key]
	if !ok {
		return false
	}
	if !m.now().Before(session.ExpiresAt) {
		delete(m.sessions, key)
		return false
	}
	return true
}

// Session returns the user's live unlock session, or nil if locked.
func (m *SessionManager) Session(householdID, userID string) *UnlockSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey{householdID, userID}
	session, ok := m.sessions[key]
	if !ok {
		return nil
	}
	if !m.now().Before(session.ExpiresAt) {
		delete(m.sessions, key)
		return nil
	}
	return session
}

// Lock discards the user's unlock session immediately.
func (m *SessionManager) Lock(ctx context.Context, householdID, userID string) error {
	m.mu.Lock()
	_, had := m.sessions[sessionKey{householdID, userID}]
	delete(m.sessions, sessionKey{householdID, userID})
	m.mu.Unlock()

	if !had {
		return nil
	}

	return m.auditor.Create(ctx, &audit.Entry{
		HouseholdID: householdID,
		ActorID:     userID,
		Action:      ActionLock,
		EntityType:  "vault",
		Outcome:     audit.OutcomeSuccess,
	})
}

// LockAllForUser discards every session the user holds, across households.
// Called on logout.
func (m *SessionManager) LockAllForUser(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.sessions {
		if key.userID == userID {
			delete(m.sessions, key)
		}
	}
}

// Prune drops aged-out PIN attempt records and expired sessions nothing has
// touched since they lapsed. Expiry is still enforced lazily on every read;
// this only reclaims memory.
func (m *SessionManager) Prune() {
	m.limiter.Prune()

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, session := range m.sessions {
		if !now.Before(session.ExpiresAt) {
			delete(m.sessions, key)
		}
	}
}

func (m *SessionManager) recordAttempt(ctx context.Context, householdID, userID, outcome, reason string) error {
	entry := &audit.Entry{
		HouseholdID: householdID,
		ActorID:     userID,
		Action:      ActionUnlock,
		EntityType:  "vault",
		Outcome:     outcome,
	}
	if reason != "" {
		entry.Details = map[string]any{"reason": reason}
	}
	if err := m.auditor.Create(ctx, entry); err != nil {
		return fmt.Errorf("recording unlock attempt: %w", err)
	}
	return nil
}
