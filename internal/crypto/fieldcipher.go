// Package crypto provides AES-256-GCM authenticated encryption for sensitive
// values that must be stored at rest in the database, specifically affiliate
// national identity numbers. National IDs are regulated PII: they must never
// appear in plaintext in the database, in audit metadata, or in logs, and an
// exported database dump must not reveal them. AES-256-GCM is chosen because
// it provides both confidentiality and authenticated integrity, ensuring
// stored values cannot be silently tampered with even if the database is
// partially compromised.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

var (
	// ErrKeyLengthInvalid is returned when a master key is not exactly 32 bytes (required for AES-256).
	ErrKeyLengthInvalid = errors.New("crypto: key must be exactly 32 bytes for AES-256")
	// ErrCiphertextCorrupted is returned when the ciphertext is too short to contain a valid nonce.
	ErrCiphertextCorrupted = errors.New("crypto: ciphertext is corrupted or tampered")
	// ErrDecryptionFailed is returned when AES-GCM authentication or decryption fails, indicating tampering or a wrong key.
	ErrDecryptionFailed = errors.New("crypto: decryption operation failed")
	// ErrSaltTooShort is returned when the provided salt is fewer than 16 bytes, which would weaken PBKDF2 key derivation.
	ErrSaltTooShort = errors.New("crypto: salt must be at least 16 bytes")
)

// FieldCipher encrypts and decrypts sensitive field values. Ciphertext is raw
// bytes (nonce || sealed) intended for BYTEA columns.
type FieldCipher struct {
	masterKey []byte
}

// NewFieldCipher creates a cipher with a 32-byte master key
func NewFieldCipher(masterKey []byte) (*FieldCipher, error) {
	if len(masterKey) != 32 {
		return nil, ErrKeyLengthInvalid
	}
	keyCopy := make([]byte, 32)
	copy(keyCopy, masterKey)
	return &FieldCipher{masterKey: keyCopy}, nil
}

// DeriveFieldCipher creates a cipher by deriving a key from a passphrase
func DeriveFieldCipher(passphrase string, salt []byte, iterations int) (*FieldCipher, error) {
	if len(salt) < 16 {
		return nil, ErrSaltTooShort
	}
	if iterations < 10000 {
		iterations = 100000 // Secure default
	}
	derivedKey := pbkdf2.Key([]byte(passphrase), salt, iterations, 32, sha256.New)
	return NewFieldCipher(derivedKey)
}

// Seal encrypts a plaintext field value. An empty plaintext seals to nil so
// optional columns stay NULL.
func (fc *FieldCipher) Seal(plaintext string) ([]byte, error) {
	if plaintext == "" {
		return nil, nil
	}

	blockCipher, err := aes.NewCipher(fc.masterKey)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(blockCipher)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Open decrypts a sealed field value and returns the plaintext
func (fc *FieldCipher) Open(ciphertext []byte) (string, error) {
	if len(ciphertext) == 0 {
		return "", nil
	}

	blockCipher, err := aes.NewCipher(fc.masterKey)
	if err != nil {
		return "", err
	}

	aead, err := cipher.NewGCM(blockCipher)
	if err != nil {
		return "", err
	}

	nonceLen := aead.NonceSize()
	if len(ciphertext) < nonceLen {
		return "", ErrCiphertextCorrupted
	}

	nonce := ciphertext[:nonceLen]
	actualCiphertext := ciphertext[nonceLen:]

	plaintext, err := aead.Open(nil, nonce, actualCiphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// GenerateKey creates a cryptographically secure random 32-byte key
func GenerateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateSalt creates a cryptographically secure random salt
func GenerateSalt(length int) ([]byte, error) {
	if length < 16 {
		length = 16
	}
	salt := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}
