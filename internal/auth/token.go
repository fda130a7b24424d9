// token.go generates single-use action tokens (email verification, password
// reset). The raw token is returned exactly once to the caller; only its
// SHA-256 hash is persisted. Unlike API-style credentials that are compared
// with bcrypt, action tokens are redeemed through a conditional UPDATE keyed
// on the hash column, so the hash must be deterministic — SHA-256 over a
// 256-bit random value gives an indexed equality lookup without a feasible
// preimage.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// TokenKind distinguishes the purposes an action token can be issued for.
type TokenKind string

const (
	TokenEmailVerification TokenKind = "email_verification"
	TokenPasswordReset     TokenKind = "password_reset"
)

// ValidTokenKind reports whether k is a known token kind.
func ValidTokenKind(k TokenKind) bool {
	return k == TokenEmailVerification || k == TokenPasswordReset
}

// actionTokenBytes is the length of the random part of an action token.
const actionTokenBytes = 32

// NewActionToken creates a new random action token.
// Returns: raw token (to transmit once), hex-encoded SHA-256 hash (to store).
func NewActionToken() (raw string, hash string, err error) {
	randomBytes := make([]byte, actionTokenBytes)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	raw = "ins_" + base64.RawURLEncoding.EncodeToString(randomBytes)
	return raw, HashActionToken(raw), nil
}

// HashActionToken returns the hex-encoded SHA-256 hash of a raw token. The
// same function is used on issuance and redemption so lookups hit the unique
// token_hash index.
func HashActionToken(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
