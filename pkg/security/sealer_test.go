package security

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	s, err := NewSealer("correct horse battery staple")
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}

	sealed, err := s.Seal("EAAAl-access-token")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if strings.Contains(sealed, "EAAAl") {
		t.Fatalf("sealed value leaks plaintext")
	}

	plain, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if plain != "EAAAl-access-token" {
		t.Fatalf("unexpected plaintext %q", plain)
	}

	again, _ := s.Seal("EAAAl-access-token")
	if again == sealed {
		t.Fatalf("nonce reuse: identical ciphertexts")
	}
}

func TestOpenRejectsTamperingAndOtherKeys(t *testing.T) {
	a, _ := NewSealer("key-a")
	b, _ := NewSealer("key-b")

	sealed, err := a.Seal("secret")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := b.Open(sealed); err != ErrInvalidSealed {
		t.Fatalf("expected ErrInvalidSealed with other key, got %v", err)
	}

	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0xff
	if _, err := a.Open(base64.StdEncoding.EncodeToString(raw)); err != ErrInvalidSealed {
		t.Fatalf("expected tamper detection, got %v", err)
	}
	if _, err := a.Open("not-base64!"); err != ErrInvalidSealed {
		t.Fatalf("expected malformed error, got %v", err)
	}
}

func TestNewSealerAcceptsRawKey(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	if _, err := NewSealer(key); err != nil {
		t.Fatalf("raw key rejected: %v", err)
	}
	if _, err := NewSealer("  "); err != ErrMissingKey {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
}

func TestRandomToken(t *testing.T) {
	a, err := RandomToken(24)
	if err != nil {
		t.Fatalf("random token: %v", err)
	}
	b, _ := RandomToken(24)
	if a == b || len(a) != 32 {
		t.Fatalf("unexpected tokens %q %q", a, b)
	}
}
