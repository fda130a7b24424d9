package auth

import (
	"os"
	"sync"
	"testing"
	"time"
)

// resetJWTSecret resets the package-level sync.Once so tests can set a fresh secret.
// This is only safe to call from test code.
func resetJWTSecret() {
	jwtSecret = ""
	jwtSecretOnce = sync.Once{}
	jwtSecretErr = nil
}

func TestMain(m *testing.M) {
	// Set a known test secret before any test runs.
	// The sync.Once will capture this value on first call to ValidateJWTSecret.
	os.Setenv("INS_JWT_SECRET", "test-jwt-secret-that-is-32-chars-!")
	os.Exit(m.Run())
}

func TestValidateJWTSecret(t *testing.T) {
	t.Run("valid secret from env", func(t *testing.T) {
		resetJWTSecret()
		t.Setenv("INS_JWT_SECRET", "exactly-32-char-secret-for-test!!")
		if err := ValidateJWTSecret(); err != nil {
			t.Errorf("ValidateJWTSecret() unexpected error: %v", err)
		}
	})

	t.Run("production mode requires secret", func(t *testing.T) {
		resetJWTSecret()
		t.Setenv("INS_JWT_SECRET", "")
		t.Setenv("DEV_MODE", "")
		t.Setenv("GIN_MODE", "release")
		if err := ValidateJWTSecret(); err == nil {
			t.Error("ValidateJWTSecret() expected error in production mode without secret, got nil")
		}
	})

	t.Run("dev mode generates random secret", func(t *testing.T) {
		resetJWTSecret()
		t.Setenv("INS_JWT_SECRET", "")
		t.Setenv("DEV_MODE", "true")
		if err := ValidateJWTSecret(); err != nil {
			t.Errorf("ValidateJWTSecret() unexpected error in dev mode: %v", err)
		}
		if GetJWTSecret() == "" {
			t.Error("GetJWTSecret() returned empty string after dev mode init")
		}
	})
}

func TestGenerateAndValidateJWT(t *testing.T) {
	resetJWTSecret()
	t.Setenv("INS_JWT_SECRET", "test-jwt-secret-that-is-32-chars-!")

	token, err := GenerateJWT("user-1", "org-1", "agent@example.com", RoleAgent, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", claims.UserID, "user-1")
	}
	if claims.OrgID != "org-1" {
		t.Errorf("OrgID = %q, want %q", claims.OrgID, "org-1")
	}
	if claims.Role != string(RoleAgent) {
		t.Errorf("Role = %q, want %q", claims.Role, RoleAgent)
	}
}

func TestValidateJWT_Garbage(t *testing.T) {
	resetJWTSecret()
	t.Setenv("INS_JWT_SECRET", "test-jwt-secret-that-is-32-chars-!")

	if _, err := ValidateJWT("not.a.jwt"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestValidateJWT_Expired(t *testing.T) {
	resetJWTSecret()
	t.Setenv("INS_JWT_SECRET", "test-jwt-secret-that-is-32-chars-!")

	token, err := GenerateJWT("user-1", "org-1", "agent@example.com", RoleAgent, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	if _, err := ValidateJWT(token); err == nil {
		t.Error("expected error for expired token")
	}
}
