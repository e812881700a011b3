package userstore

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPasswordNeverStoresPlaintext(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(hash, "hunter2") {
		t.Fatalf("hash contains the plaintext password")
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Fatalf("expected a bcrypt hash, got %s", hash)
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := HashPassword("")
	if !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}

func TestComparePasswordAndHash(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if compareErr := ComparePasswordAndHash("hunter2", hash); compareErr != nil {
		t.Fatalf("expected match, got %v", compareErr)
	}
	if compareErr := ComparePasswordAndHash("wrong", hash); !errors.Is(compareErr, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", compareErr)
	}
}

func TestHashPasswordSaltsEveryHash(t *testing.T) {
	t.Parallel()

	first, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct salted hashes")
	}
}
