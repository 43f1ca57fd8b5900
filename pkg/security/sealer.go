package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
	hkdfInfo  = "marketplace/payment-account-tokens"
)

var (
	ErrMissingKey    = errors.New("token seal key is required")
	ErrInvalidSealed = errors.New("sealed value is malformed or was tampered with")
)

// Sealer encrypts processor credentials before they are persisted.
type Sealer struct {
	key [keySize]byte
}

// NewSealer accepts either a base64 32-byte key or an arbitrary secret that is
// stretched with HKDF-SHA256.
func NewSealer(secret string) (*Sealer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrMissingKey
	}

	s := &Sealer{}
	if raw, err := base64.StdEncoding.DecodeString(secret); err == nil && len(raw) == keySize {
		copy(s.key[:], raw)
		return s, nil
	}

	reader := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(reader, s.key[:]); err != nil {
		return nil, fmt.Errorf("derive seal key: %w", err)
	}
	return s, nil
}

// Seal returns base64(nonce || box).
func (s *Sealer) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *Sealer) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrInvalidSealed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrInvalidSealed
	}
	return string(plain), nil
}

// RandomToken returns n random bytes encoded as unpadded URL-safe base64.
func RandomToken(n int) (string, error) {
	if n <= 0 {
		n = 32
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
