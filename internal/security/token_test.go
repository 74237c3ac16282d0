package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test_secret_key_minimum_32_chars"

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		login  string
	}{
		{
			name:   "Regular user",
			userID: "7f2c1a52-4c1e-4b7a-9d55-0d6f1c1e2a10",
			login:  "alice",
		},
		{
			name:   "User without login claim",
			userID: "b0c2e3d4-1111-2222-3333-444455556666",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateJWT(tt.userID, tt.login, testSecret, time.Hour)
			if err != nil {
				t.Fatalf("GenerateJWT() error = %v", err)
			}

			if token == "" {
				t.Error("GenerateJWT() returned empty token")
			}

			claims, err := ValidateJWT(token, testSecret)
			if err != nil {
				t.Fatalf("ValidateJWT() error = %v", err)
			}

			if claims.Player() != tt.userID {
				t.Errorf("Player() = %q, want %q", claims.Player(), tt.userID)
			}
			if claims.Login != tt.login {
				t.Errorf("Login = %q, want %q", claims.Login, tt.login)
			}
		})
	}
}

func TestValidateToken_InvalidToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "Empty token",
			token: "",
		},
		{
			name:  "Invalid format",
			token: "invalid.token.here",
		},
		{
			name:  "Random string",
			token: "randomstring",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateJWT(tt.token, testSecret)
			if err == nil {
				t.Error("ValidateJWT() expected error for invalid token, got nil")
			}
		})
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := GenerateJWT("user-1", "alice", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}
	if _, err := ValidateJWT(token, "another_secret_key_minimum_32_chars"); err == nil {
		t.Error("ValidateJWT() accepted a token signed with another secret")
	}
}

func TestValidateToken_ExpiredToken(t *testing.T) {
	claims := &Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	if _, err := ValidateJWT(token, testSecret); err == nil {
		t.Error("ValidateJWT() accepted an expired token")
	}
}

func TestValidateToken_SubjectOnly(t *testing.T) {
	claims := &jwt.RegisteredClaims{
		Subject:   "user-from-sub",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	parsed, err := ValidateJWT(token, testSecret)
	if err != nil {
		t.Fatalf("ValidateJWT() error = %v", err)
	}
	if parsed.Player() != "user-from-sub" {
		t.Errorf("Player() = %q", parsed.Player())
	}
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateJWT("user-42", "bob", testSecret, 0)
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}

	claims, err := ValidateJWT(token, testSecret)
	if err != nil {
		t.Fatalf("ValidateJWT() error = %v", err)
	}

	// Verify expiration is in the future
	if claims.ExpiresAt.Time.Before(time.Now()) {
		t.Error("Token already expired")
	}

	// Zero TTL falls back to the default
	expectedExpiry := time.Now().Add(DefaultTokenTTL)
	if claims.ExpiresAt.Time.After(expectedExpiry.Add(time.Minute)) {
		t.Error("Token expiration is too far in the future")
	}
}
