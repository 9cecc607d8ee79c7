package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const resetTokenBytes = 32

// GenerateResetToken returns a URL-safe random token for the reset link together with the
// SHA-256 hash that is stored in its place
func GenerateResetToken() (plain, hash string, err error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate reset token: %w", err)
	}

	plain = base64.RawURLEncoding.EncodeToString(b)
	return plain, HashResetToken(plain), nil
}

// HashResetToken hashes a plain reset token for lookup
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
