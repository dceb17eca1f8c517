package security

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestUserTokenRoundTrip(t *testing.T) {
	const secret = "test-secret"

	token, err := GenerateUserToken("u1", secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateUserToken: %v", err)
	}

	claims, err := ValidateJWT(token, secret)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	userID, err := UserIDFromClaims(claims)
	if err != nil {
		t.Fatalf("UserIDFromClaims: %v", err)
	}
	if userID != "u1" {
		t.Errorf("userID = %q, want u1", userID)
	}

	if _, err := ValidateJWT(token, "wrong-secret"); err == nil {
		t.Error("token validated with the wrong secret")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := GenerateUserToken("u1", "s", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateUserToken: %v", err)
	}
	if _, err := ValidateJWT(token, "s"); err == nil {
		t.Error("expired token validated")
	}
}

func TestSignerTokenCarriesScope(t *testing.T) {
	token, err := GenerateSignerToken("u1", "s", 5*time.Minute)
	if err != nil {
		t.Fatalf("GenerateSignerToken: %v", err)
	}
	claims, err := ValidateJWT(token, "s")
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if claims["scope"] != "metrics:write" {
		t.Errorf("scope = %v, want metrics:write", claims["scope"])
	}
}

func TestVerifyAPIKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("the-key"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	if err := VerifyAPIKey("the-key", string(hash)); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}
	if err := VerifyAPIKey("wrong-key", string(hash)); err == nil {
		t.Error("wrong key accepted")
	}
	if err := VerifyAPIKey("the-key", ""); err == nil {
		t.Error("empty stored hash accepted")
	}
}

func TestGenerateULIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateULID()
		if len(id) != 26 {
			t.Fatalf("ULID length = %d, want 26", len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate ULID %s", id)
		}
		seen[id] = true
	}
}
