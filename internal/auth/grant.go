package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidGrant = errors.New("invalid or expired access grant")

// Signer issues and checks HMAC-signed values bound to a subject, used for
// the cookie that unlocks a password protected resume.
type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

// Sign returns "<subject>.<expiry unix>.<signature>".
func (s *Signer) Sign(subject string, ttl time.Duration) string {
	payload := subject + "." + strconv.FormatInt(s.now().Add(ttl).Unix(), 10)
	return payload + "." + s.mac(payload)
}

// Verify checks value was signed for subject and has not expired.
func (s *Signer) Verify(value, subject string) error {
	i := strings.LastIndexByte(value, '.')
	if i < 0 {
		return ErrInvalidGrant
	}
	payload, sig := value[:i], value[i+1:]
	if !hmac.Equal([]byte(sig), []byte(s.mac(payload))) {
		return ErrInvalidGrant
	}

	j := strings.LastIndexByte(payload, '.')
	if j < 0 || payload[:j] != subject {
		return ErrInvalidGrant
	}
	expiry, err := strconv.ParseInt(payload[j+1:], 10, 64)
	if err != nil || s.now().Unix() > expiry {
		return ErrInvalidGrant
	}
	return nil
}

func (s *Signer) mac(payload string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
