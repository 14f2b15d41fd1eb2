package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Key derivation and cipher parameters. Argon2id with OWASP-recommended
// costs; derivation happens once at startup, not per secret.
const (
	kdfMemory   = 64 * 1024 // KiB
	kdfTime     = 3
	kdfThreads  = 4
	keyLength   = 32 // AES-256
	nonceLength = 12 // GCM standard nonce
	tagLength   = 16 // GCM authentication tag
)

// kdfSalt is fixed: the key must be derivable from the master secret alone so
// that a restarted process can decrypt existing rows. Rotating the master
// secret invalidates every stored ciphertext — operational hazard, documented,
// not auto-mitigated.
var kdfSalt = []byte("hearthcore-vault-kdf-v1")

// SecretStore performs authenticated encryption of vault values. It knows
// nothing about sessions or grants; authorization happens before a value
// reaches it.
type SecretStore struct {
	aead cipher.AEAD
}

// NewSecretStore derives the deployment encryption key from masterSecret and
// prepares the cipher. Fails if the secret is empty: a vault that looks
// functional but cannot decrypt is worse than one that refuses to start.
func NewSecretStore(masterSecret string) (*SecretStore, error) {
	if masterSecret == "" {
		return nil, ErrMasterSecretRequired
	}

	key := argon2.IDKey([]byte(masterSecret), kdfSalt, kdfTime, kdfMemory, kdfThreads, keyLength)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &SecretStore{aead: aead}, nil
}

// Encrypt seals plaintext and returns the persisted blob format
// "nonceHex:tagHex:cipherHex". A fresh random nonce is generated per call.
func (s *SecretStore) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	// Seal appends the tag to the ciphertext; split it back out so the
	// stored format keeps the segments separate.
	sealed := s.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagLength]
	tag := sealed[len(sealed)-tagLength:]

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens a blob produced by Encrypt. Rows written before encryption
// was introduced fail the format heuristic and are passed through unchanged,
// so they keep working until their next write re-encrypts them. Authentication
// failure returns ErrDecryption and never partial plaintext.
func (s *SecretStore) Decrypt(blob string) (string, error) {
	if !IsEncrypted(blob) {
		return blob, nil
	}

	parts := strings.SplitN(blob, ":", 3)
	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", ErrDecryption
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", ErrDecryption
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrDecryption
	}

	plaintext, err := s.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether blob matches the encrypted storage format:
// three colon-delimited hex segments with fixed-length nonce and tag parts.
// Legacy plaintext rows fail this check and are handled as passthrough.
func IsEncrypted(blob string) bool {
	parts := strings.Split(blob, ":")
	if len(parts) != 3 {
		return false
	}
	if len(parts[0]) != nonceLength*2 || len(parts[1]) != tagLength*2 {
		return false
	}
	for _, p := range parts {
		if _, err := hex.DecodeString(p); err != nil {
			return false
		}
	}
	return true
}
