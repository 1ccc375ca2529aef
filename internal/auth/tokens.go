package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// NewToken returns n random bytes encoded as unpadded base64url.
func NewToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken returns the hex sha256 of token. Long-lived secrets such as
// API keys and reset tokens are only stored hashed.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

const backupCodeAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"

// NewBackupCodes returns n codes of the form xxxxx-xxxxx.
func NewBackupCodes(n int) ([]string, error) {
	codes := make([]string, 0, n)
	buf := make([]byte, 10)
	for range n {
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("reading random bytes: %w", err)
		}
		var b strings.Builder
		for i, c := range buf {
			if i == 5 {
				b.WriteByte('-')
			}
			b.WriteByte(backupCodeAlphabet[int(c)%len(backupCodeAlphabet)])
		}
		codes = append(codes, b.String())
	}
	return codes, nil
}
