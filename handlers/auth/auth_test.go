package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndParse(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	InitAuth()
	if !Enabled() {
		t.Fatal("Enabled() false with JWT_SECRET set")
	}

	token, err := IssueToken("designer-1", "Dana", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() failed: %v", err)
	}
	claims, err := ParseJWT(token)
	if err != nil {
		t.Fatalf("ParseJWT() failed: %v", err)
	}
	if claims.Subject != "designer-1" || claims.Name != "Dana" || claims.Issuer != "mug-studio" {
		t.Errorf("claims mismatch: %+v", claims)
	}
}

func TestParseJWT_Rejects(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	InitAuth()

	// IssueToken replaces a non-positive ttl with the default, so sign by hand.
	claims := AppClaims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}}
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))

	otherKey, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, AppClaims{}).SignedString([]byte("other"))
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, AppClaims{}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, token := range map[string]string{
		"expired":   expired,
		"wrong key": otherKey,
		"alg none":  none,
		"garbage":   "not.a.token",
	} {
		if _, err := ParseJWT(token); err == nil {
			t.Errorf("%s: ParseJWT() accepted the token", name)
		}
	}
}

func TestDisabled(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	InitAuth()
	if Enabled() {
		t.Fatal("Enabled() true without JWT_SECRET")
	}
	if _, err := IssueToken("x", "", time.Hour); !errors.Is(err, ErrNoSecret) {
		t.Errorf("IssueToken() error = %v, want ErrNoSecret", err)
	}
	if _, err := ParseJWT("a.b.c"); !errors.Is(err, ErrNoSecret) {
		t.Errorf("ParseJWT() error = %v, want ErrNoSecret", err)
	}
}
