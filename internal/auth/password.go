// password.go provides bcrypt password hashing and the credential policy
// enforced on registration and password reset.
package auth

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 12

	// MinPasswordLength is the minimum accepted password length
	MinPasswordLength = 10
)

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the stored hash.
func CheckPassword(password, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil
}

// ValidatePasswordPolicy checks a candidate password against the credential
// policy: minimum length plus at least one letter and one digit. bcrypt
// truncates input beyond 72 bytes, so longer passwords are rejected rather
// than silently weakened.
func ValidatePasswordPolicy(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 10 characters")
	}
	if len(password) > 72 {
		return errors.New("password must be at most 72 characters")
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return errors.New("password must contain at least one letter and one digit")
	}
	return nil
}
