package tenant

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	apperrors "github.com/Aman-CERP/seekhost/internal/errors"
)

// APIKeySize is the length of a generated secret in bytes.
const APIKeySize = 32

// Hash128 identifies an account by the hash of its secret.
type Hash128 [16]byte

// HashAPIKey derives the account hash from the raw secret.
func HashAPIKey(key []byte) Hash128 {
	sum := sha256.Sum256(key)
	var h Hash128
	copy(h[:], sum[:16])
	return h
}

// ParseAPIKey decodes a base64 secret and returns its hash.
func ParseAPIKey(encoded string) (Hash128, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(key) == 0 {
		return Hash128{}, apperrors.New(apperrors.ErrCodeUnauthorized, "malformed apikey", err)
	}
	return HashAPIKey(key), nil
}

// NewAPIKey generates a random secret and returns it base64 encoded.
func NewAPIKey() (string, Hash128, error) {
	key := make([]byte, APIKeySize)
	if _, err := rand.Read(key); err != nil {
		return "", Hash128{}, apperrors.InternalError("generate apikey", err)
	}
	return base64.StdEncoding.EncodeToString(key), HashAPIKey(key), nil
}

func (h Hash128) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalText encodes the hash as hex.
func (h Hash128) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes a hex hash.
func (h *Hash128) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("decode apikey hash: %w", err)
	}
	if len(b) != len(h) {
		return fmt.Errorf("apikey hash has %d bytes, want %d", len(b), len(h))
	}
	copy(h[:], b)
	return nil
}
