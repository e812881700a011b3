// Package userstore is the credential store adapter: a thin contract
// over the per-project user collection, with GORM-backed, pgx-backed,
// and in-memory implementations.
package userstore

import (
	"context"
	"errors"
)

var (
	// ErrUserNotFound indicates no user matched the given credentials or id.
	ErrUserNotFound = errors.New("user_store.not_found")
	// ErrStoreUnavailable indicates the backing store cannot be reached.
	ErrStoreUnavailable = errors.New("user_store.unavailable")
	// ErrEmptyEmail indicates a create or lookup call without an email.
	ErrEmptyEmail = errors.New("user_store.empty_email")
	// ErrEmptyPassword indicates a create call without a password.
	ErrEmptyPassword = errors.New("user_store.empty_password")
	// ErrEmptyDBName indicates a call without a project name.
	ErrEmptyDBName = errors.New("user_store.empty_db_name")
)

// UserRecord is a stored credential record, namespaced by project.
// Records are created by registration and never mutated afterwards.
type UserRecord struct {
	ID           string
	DBName       string
	Email        string
	PasswordHash string
	CreatedAt    int64
}

// UserStore persists and retrieves per-project user records. Duplicate
// emails within a project are accepted; FindUser compares the supplied
// password against every candidate.
type UserStore interface {
	// CreateUser hashes the password and inserts a new record, returning its id.
	CreateUser(ctx context.Context, dbName string, email string, password string) (string, error)
	// FindUser returns the record matching email and password, or ErrUserNotFound.
	FindUser(ctx context.Context, dbName string, email string, password string) (UserRecord, error)
	// FindUserByID returns the record with the given id, or ErrUserNotFound.
	FindUserByID(ctx context.Context, dbName string, id string) (UserRecord, error)
}
