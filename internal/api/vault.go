package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hearthops/hearth-core/internal/vault"
)

// ─── Request/Response Types ────────────────────────────────────────

type setPinRequest struct {
	Pin string `json:"pin"`
}

type unlockRequest struct {
	Pin string `json:"pin"`
}

type unlockResponse struct {
	ExpiresIn int       `json:"expires_in"` // seconds
	ExpiresAt time.Time `json:"expires_at"`
}

// vaultSettingsResponse is the settings resource with the PIN hash stripped.
// PinSet tells clients whether to offer "unlock" or "set up a PIN first";
// the unlock endpoint itself never reveals which.
type vaultSettingsResponse struct {
	HouseholdID            string `json:"household_id"`
	PinSet                 bool   `json:"pin_set"`
	AutoLockMinutes        int    `json:"auto_lock_minutes"`
	RequirePinForSensitive bool   `json:"require_pin_for_sensitive"`
	Unlocked               bool   `json:"unlocked"`
}

type updateSettingsRequest struct {
	AutoLockMinutes        *int  `json:"auto_lock_minutes,omitempty"`
	RequirePinForSensitive *bool `json:"require_pin_for_sensitive,omitempty"`
}

type secretRequest struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	Value    string `json:"value"`
	Notes    string `json:"notes,omitempty"`
}

// ─── PIN & Sessions ────────────────────────────────────────────────

// handleSetVaultPin stores a new vault PIN for the household. Owner only.
func (s *Server) handleSetVaultPin(w http.ResponseWriter, r *http.Request) {
	var req setPinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	claims := claimsFromContext(r.Context())
	if err := s.sessions.SetPin(r.Context(), claims.HouseholdID, claims.Subject, req.Pin); err != nil {
		if errors.Is(err, vault.ErrPinTooShort) {
			writeValidationError(w, "pin must be at least 4 characters")
			return
		}
		s.logger.Error("set vault pin failed", "error", err)
		writeInternalError(w, "failed to set pin")
		return
	}

	s.securityEvent(claims.HouseholdID, "vault_pin_set", "success")

	writeJSON(w, http.StatusOK, map[string]any{"pin_set": true})
}

// handleVaultUnlock verifies the PIN and issues an unlock session.
func (s *Server) handleVaultUnlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	claims := claimsFromContext(r.Context())
	session, err := s.sessions.VerifyPin(r.Context(), claims.HouseholdID, claims.Subject, req.Pin)
	if err != nil {
		switch {
		case errors.Is(err, vault.ErrRateLimited):
			s.securityEvent(claims.HouseholdID, "vault_unlock", "denied")
			writeRateLimited(w, "too many unlock attempts")
		case errors.Is(err, vault.ErrInvalidCredential):
			s.securityEvent(claims.HouseholdID, "vault_unlock", "failure")
			writeUnauthorized(w, "invalid pin")
		default:
			s.logger.Error("vault unlock failed", "error", err)
			writeInternalError(w, "unlock failed")
		}
		return
	}

	s.securityEvent(claims.HouseholdID, "vault_unlock", "success")

	writeJSON(w, http.StatusOK, unlockResponse{
		ExpiresIn: int(session.Remaining(time.Now()).Seconds()),
		ExpiresAt: session.ExpiresAt,
	})
}

// handleVaultLock discards the caller's unlock session.
func (s *Server) handleVaultLock(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if err := s.sessions.Lock(r.Context(), claims.HouseholdID, claims.Subject); err != nil {
		s.logger.Error("vault lock failed", "error", err)
		writeInternalError(w, "lock failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Settings ──────────────────────────────────────────────────────

// handleGetVaultSettings returns the household vault settings with the PIN
// hash stripped. A household that never touched the vault sees defaults.
func (s *Server) handleGetVaultSettings(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	resp := vaultSettingsResponse{
		HouseholdID:     claims.HouseholdID,
		AutoLockMinutes: s.sessions.DefaultAutoLock(),
		Unlocked:        s.sessions.IsUnlocked(claims.HouseholdID, claims.Subject),
	}

	settings, err := s.settingsRepo.Get(r.Context(), claims.HouseholdID)
	switch {
	case errors.Is(err, vault.ErrSettingsNotFound):
		// defaults
	case err != nil:
		s.logger.Error("get vault settings failed", "error", err)
		writeInternalError(w, "failed to load settings")
		return
	default:
		resp.PinSet = settings.PinSet()
		resp.AutoLockMinutes = settings.AutoLockMinutes
		resp.RequirePinForSensitive = settings.RequirePinForSensitive
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleUpdateVaultSettings updates auto-lock and sensitivity settings.
// Owner only. The PIN hash is preserved untouched.
func (s *Server) handleUpdateVaultSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.AutoLockMinutes != nil && *req.AutoLockMinutes < 1 {
		writeValidationError(w, "auto_lock_minutes must be at least 1")
		return
	}

	claims := claimsFromContext(r.Context())

	settings, err := s.settingsRepo.Get(r.Context(), claims.HouseholdID)
	if errors.Is(err, vault.ErrSettingsNotFound) {
		settings = &vault.Settings{
			HouseholdID:     claims.HouseholdID,
			AutoLockMinutes: s.sessions.DefaultAutoLock(),
		}
	} else if err != nil {
		s.logger.Error("get vault settings failed", "error", err)
		writeInternalError(w, "failed to load settings")
		return
	}

	if req.AutoLockMinutes != nil {
		settings.AutoLockMinutes = *req.AutoLockMinutes
	}
	if req.RequirePinForSensitive != nil {
		settings.RequirePinForSensitive = *req.RequirePinForSensitive
	}

	if err := s.settingsRepo.Upsert(r.Context(), settings); err != nil {
		s.logger.Error("update vault settings failed", "error", err)
		writeInternalError(w, "failed to update settings")
		return
	}

	s.auditTrail(claims.HouseholdID, claims.Subject, "vault.settings_update", "vault", "", map[string]any{
		"auto_lock_minutes":         settings.AutoLockMinutes,
		"require_pin_for_sensitive": settings.RequirePinForSensitive,
	})

	writeJSON(w, http.StatusOK, vaultSettingsResponse{
		HouseholdID:            settings.HouseholdID,
		PinSet:                 settings.PinSet(),
		AutoLockMinutes:        settings.AutoLockMinutes,
		RequirePinForSensitive: settings.RequirePinForSensitive,
		Unlocked:               s.sessions.IsUnlocked(claims.HouseholdID, claims.Subject),
	})
}

// ─── Secrets ───────────────────────────────────────────────────────

// handleListSecrets returns the household's secrets without their values.
// Titles and categories are browsable while locked; values need an unlock.
func (s *Server) handleListSecrets(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	secrets, err := s.secretRepo.ListByHousehold(r.Context(), claims.HouseholdID)
	if err != nil {
		s.logger.Error("list secrets failed", "error", err)
		writeInternalError(w, "failed to list secrets")
		return
	}

	for _, secret := range secrets {
		secret.Value = ""
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"secrets": secrets,
		"count":   len(secrets),
	})
}

// handleGetSecret returns one secret with its decrypted value. Requires a
// live unlock session, re-checked here at the moment of decryption.
func (s *Server) handleGetSecret(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	if !s.sessions.IsUnlocked(claims.HouseholdID, claims.Subject) {
		writeError(w, http.StatusForbidden, ErrCodeVaultLocked, "vault is locked")
		return
	}

	secret, err := s.secretRepo.GetByID(r.Context(), claims.HouseholdID, chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "secret not found")
		return
	}

	plaintext, err := s.secretStore.Decrypt(secret.Value)
	if err != nil {
		// Tamper, corruption, or rotated master secret. Log it, surface a
		// generic internal error, never echo ciphertext detail.
		s.logger.Error("secret decryption failed", "secret_id", secret.ID)
		s.securityEvent(claims.HouseholdID, "secret_decrypt", "failure")
		writeInternalError(w, "failed to read secret")
		return
	}
	secret.Value = plaintext

	s.auditTrail(claims.HouseholdID, claims.Subject, "vault.secret_read", "secret", secret.ID, nil)

	writeJSON(w, http.StatusOK, secret)
}

// handleCreateSecret stores a new encrypted secret. Owner only.
func (s *Server) handleCreateSecret(w http.ResponseWriter, r *http.Request) {
	var req secretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Title == "" || req.Value == "" {
		writeBadRequest(w, "title and value are required")
		return
	}
	if req.Category == "" {
		req.Category = vault.CategoryOther
	}

	claims := claimsFromContext(r.Context())

	encrypted, err := s.secretStore.Encrypt(req.Value)
	if err != nil {
		s.logger.Error("secret encryption failed", "error", err)
		writeInternalError(w, "failed to store secret")
		return
	}

	secret := &vault.Secret{
		HouseholdID: claims.HouseholdID,
		Category:    req.Category,
		Title:       req.Title,
		Value:       encrypted,
		Notes:       req.Notes,
	}

	if err := s.secretRepo.Create(r.Context(), secret); err != nil {
		s.logger.Error("create secret failed", "error", err)
		writeInternalError(w, "failed to store secret")
		return
	}

	s.auditTrail(claims.HouseholdID, claims.Subject, "vault.secret_create", "secret", secret.ID, map[string]any{
		"category": secret.Category,
	})

	secret.Value = ""
	writeJSON(w, http.StatusCreated, secret)
}

// handleUpdateSecret rewrites a secret. Owner only. A new value is
// re-encrypted, which also upgrades any legacy plaintext row.
func (s *Server) handleUpdateSecret(w http.ResponseWriter, r *http.Request) {
	var req secretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	claims := claimsFromContext(r.Context())

	secret, err := s.secretRepo.GetByID(r.Context(), claims.HouseholdID, chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "secret not found")
		return
	}

	if req.Category != "" {
		secret.Category = req.Category
	}
	if req.Title != "" {
		secret.Title = req.Title
	}
	if req.Notes != "" {
		secret.Notes = req.Notes
	}
	if req.Value != "" {
		encrypted, err := s.secretStore.Encrypt(req.Value)
		if err != nil {
			s.logger.Error("secret encryption failed", "error", err)
			writeInternalError(w, "failed to update secret")
			return
		}
		secret.Value = encrypted
	}

	if err := s.secretRepo.Update(r.Context(), secret); err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			writeNotFound(w, "secret not found")
			return
		}
		s.logger.Error("update secret failed", "error", err)
		writeInternalError(w, "failed to update secret")
		return
	}

	s.auditTrail(claims.HouseholdID, claims.Subject, "vault.secret_update", "secret", secret.ID, nil)

	secret.Value = ""
	writeJSON(w, http.StatusOK, secret)
}

// handleDeleteSecret soft-deletes a secret. Owner only.
func (s *Server) handleDeleteSecret(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.secretRepo.SoftDelete(r.Context(), claims.HouseholdID, id); err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			writeNotFound(w, "secret not found")
			return
		}
		s.logger.Error("delete secret failed", "error", err)
		writeInternalError(w, "failed to delete secret")
		return
	}

	s.auditTrail(claims.HouseholdID, claims.Subject, "vault.secret_delete", "secret", id, nil)

	w.WriteHeader(http.StatusNoContent)
}
