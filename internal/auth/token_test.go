package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestVerify_RoundTrip(t *testing.T) {
	v, err := NewTokenVerifier("s3cret")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	tok, err := v.Issue("user-1", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	sub, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sub != "user-1" {
		t.Fatalf("expected user-1, got %s", sub)
	}
}

func TestVerify_Rejects(t *testing.T) {
	v, _ := NewTokenVerifier("s3cret")
	other, _ := NewTokenVerifier("other")

	expired := &TokenVerifier{secret: []byte("s3cret"), now: func() time.Time { return time.Now().Add(-2 * time.Hour) }}
	old, _ := expired.Issue("user-1", time.Hour)
	wrongKey, _ := other.Issue("user-1", time.Hour)
	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}).SignedString([]byte("s3cret"))
	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, tok := range map[string]string{
		"expired":    old,
		"wrong key":  wrongKey,
		"no subject": noSubject,
		"alg none":   unsigned,
		"garbage":    "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(tok); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNewTokenVerifier_EmptySecret(t *testing.T) {
	if _, err := NewTokenVerifier(""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
