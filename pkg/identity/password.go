package identity

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters; keep in sync with stored hashes.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltBytes    = 16
)

// NewSalt returns a fresh random salt, hex encoded. Generated once per user
// at account creation and stored alongside the hash.
func NewSalt() (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	return hex.EncodeToString(salt), nil
}

// HashPassword derives a deterministic salted digest of the password.
func HashPassword(password, salt string) (string, error) {
	saltRaw, err := hex.DecodeString(salt)
	if err != nil {
		return "", fmt.Errorf("decoding salt: %w", err)
	}

	key, err := scrypt.Key([]byte(password), saltRaw, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("deriving key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// VerifyPassword recomputes the digest with the stored salt and compares in
// constant time.
func VerifyPassword(password, salt, expectedHash string) bool {
	computed, err := HashPassword(password, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(expectedHash)) == 1
}
