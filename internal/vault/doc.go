// Package vault implements the household vault: PIN-gated storage for short
// sensitive strings (door codes, wifi passwords, account credentials).
//
// Secrets are encrypted at rest with AES-256-GCM under a key derived from the
// deployment master secret. Access requires a recent PIN verification, which
// issues a short-lived unlock session. Sessions expire lazily: every consumer
// re-checks IsUnlocked immediately before using decrypted data rather than
// caching the result.
//
// The package is split along trust boundaries:
//
//   - SecretStore: encryption/decryption only, no session knowledge
//   - SessionManager: PIN hashing, unlock session lifecycle, attempt auditing
//   - ClientGate: in-process front door that folds concurrent access requests
//     into a single PIN challenge
package vault
