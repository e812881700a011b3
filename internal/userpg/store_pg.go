package userpg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cobblestore/cobble/internal/userstore"
)

// PostgresUserStore persists per-project user records in PostgreSQL.
type PostgresUserStore struct {
	pool *pgxpool.Pool
}

// NewPostgresUserStore constructs a store over an existing pool.
func NewPostgresUserStore(pool *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{pool: pool}
}

// CreateUser hashes the password and inserts a new row. Duplicate
// emails within a project are accepted.
func (store *PostgresUserStore) CreateUser(ctx context.Context, dbName string, email string, password string) (string, error) {
	if strings.TrimSpace(dbName) == "" {
		return "", fmt.Errorf("user_store.create.pg: %w", userstore.ErrEmptyDBName)
	}
	if strings.TrimSpace(email) == "" {
		return "", fmt.Errorf("user_store.create.pg: %w", userstore.ErrEmptyEmail)
	}
	passwordHash, hashErr := userstore.HashPassword(password)
	if hashErr != nil {
		return "", hashErr
	}
	id := uuid.NewString()
	_, execErr := store.pool.Exec(ctx, `
INSERT INTO users (id, db_name, email, password_hash, created_at_unix)
VALUES ($1, $2, $3, $4, $5)
`, id, dbName, email, passwordHash, time.Now().UTC().Unix())
	if execErr != nil {
		return "", fmt.Errorf("user_store.create.pg: %w: %v", userstore.ErrStoreUnavailable, execErr)
	}
	return id, nil
}

// FindUser compares the password against every candidate row for the email.
func (store *PostgresUserStore) FindUser(ctx context.Context, dbName string, email string, password string) (userstore.UserRecord, error) {
	rows, queryErr := store.pool.Query(ctx, `
SELECT id, db_name, email, password_hash, created_at_unix
FROM users
WHERE db_name = $1 AND email = $2
ORDER BY created_at_unix ASC
`, dbName, email)
	if queryErr != nil {
		return userstore.UserRecord{}, fmt.Errorf("user_store.find.pg: %w: %v", userstore.ErrStoreUnavailable, queryErr)
	}
	defer rows.Close()

	var candidates []userstore.UserRecord
	for rows.Next() {
		var record userstore.UserRecord
		if scanErr := rows.Scan(&record.ID, &record.DBName, &record.Email, &record.PasswordHash, &record.CreatedAt); scanErr != nil {
			return userstore.UserRecord{}, fmt.Errorf("user_store.find.pg: %w: %v", userstore.ErrStoreUnavailable, scanErr)
		}
		candidates = append(candidates, record)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return userstore.UserRecord{}, fmt.Errorf("user_store.find.pg: %w: %v", userstore.ErrStoreUnavailable, rowsErr)
	}

	for _, candidate := range candidates {
		if compareErr := userstore.ComparePasswordAndHash(password, candidate.PasswordHash); compareErr == nil {
			return candidate, nil
		}
	}
	return userstore.UserRecord{}, fmt.Errorf("user_store.find.pg: %w", userstore.ErrUserNotFound)
}

// FindUserByID returns the row with the given id.
func (store *PostgresUserStore) FindUserByID(ctx context.Context, dbName string, id string) (userstore.UserRecord, error) {
	var record userstore.UserRecord
	row := store.pool.QueryRow(ctx, `
SELECT id, db_name, email, password_hash, created_at_unix
FROM users
WHERE db_name = $1 AND id = $2
`, dbName, id)
	if scanErr := row.Scan(&record.ID, &record.DBName, &record.Email, &record.PasswordHash, &record.CreatedAt); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return userstore.UserRecord{}, fmt.Errorf("user_store.find_by_id.pg: %w", userstore.ErrUserNotFound)
		}
		return userstore.UserRecord{}, fmt.Errorf("user_store.find_by_id.pg: %w: %v", userstore.ErrStoreUnavailable, scanErr)
	}
	return record, nil
}
