package userstore

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch indicates the supplied password does not match the stored hash.
var ErrPasswordMismatch = errors.New("user_store.password_mismatch")

// HashPassword generates a salted bcrypt hash for storage. Plaintext
// passwords are never persisted.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("user_store.hash: %w", ErrEmptyPassword)
	}
	hashed, hashErr := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if hashErr != nil {
		return "", fmt.Errorf("user_store.hash: %w", hashErr)
	}
	return string(hashed), nil
}

// ComparePasswordAndHash checks the cleartext password against a stored
// hash. The comparison is constant-time.
func ComparePasswordAndHash(password string, hash string) error {
	if compareErr := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); compareErr != nil {
		if errors.Is(compareErr, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return compareErr
	}
	return nil
}
