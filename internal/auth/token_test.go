package auth

import (
	"strings"
	"testing"
)

func TestNewActionToken(t *testing.T) {
	raw, hash, err := NewActionToken()
	if err != nil {
		t.Fatalf("NewActionToken: %v", err)
	}
	if !strings.HasPrefix(raw, "ins_") {
		t.Errorf("raw token %q missing ins_ prefix", raw)
	}
	if len(hash) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(hash))
	}
	if HashActionToken(raw) != hash {
		t.Error("HashActionToken(raw) does not reproduce the issued hash")
	}
}

func TestNewActionToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		raw, _, err := NewActionToken()
		if err != nil {
			t.Fatalf("NewActionToken: %v", err)
		}
		if seen[raw] {
			t.Fatal("duplicate token generated")
		}
		seen[raw] = true
	}
}

func TestHashActionToken_TrimsWhitespace(t *testing.T) {
	if HashActionToken(" ins_abc ") != HashActionToken("ins_abc") {
		t.Error("surrounding whitespace should not change the hash")
	}
}

func TestValidTokenKind(t *testing.T) {
	if !ValidTokenKind(TokenEmailVerification) || !ValidTokenKind(TokenPasswordReset) {
		t.Error("known kinds should validate")
	}
	if ValidTokenKind("session") {
		t.Error("unknown kind should not validate")
	}
}
