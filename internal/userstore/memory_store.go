package userstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryUserStore is an in-memory store intended for tests and dev runs.
type MemoryUserStore struct {
	mutex   sync.Mutex
	byID    map[string]UserRecord
	byEmail map[string][]string
}

// NewMemoryUserStore creates an empty in-memory store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]UserRecord),
		byEmail: make(map[string][]string),
	}
}

func emailKey(dbName string, email string) string {
	return dbName + "\x00" + email
}

// CreateUser hashes the password and stores a new record.
func (store *MemoryUserStore) CreateUser(ctx context.Context, dbName string, email string, password string) (string, error) {
	if strings.TrimSpace(dbName) == "" {
		return "", fmt.Errorf("user_store.create.memory: %w", ErrEmptyDBName)
	}
	if strings.TrimSpace(email) == "" {
		return "", fmt.Errorf("user_store.create.memory: %w", ErrEmptyEmail)
	}
	passwordHash, hashErr := HashPassword(password)
	if hashErr != nil {
		return "", hashErr
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()

	record := UserRecord{
		ID:           uuid.NewString(),
		DBName:       dbName,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC().Unix(),
	}
	store.byID[record.ID] = record
	key := emailKey(dbName, email)
	store.byEmail[key] = append(store.byEmail[key], record.ID)
	return record.ID, nil
}

// FindUser compares the password against every candidate for the email.
func (store *MemoryUserStore) FindUser(ctx context.Context, dbName string, email string, password string) (UserRecord, error) {
	store.mutex.Lock()
	candidateIDs := append([]string(nil), store.byEmail[emailKey(dbName, email)]...)
	candidates := make([]UserRecord, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		candidates = append(candidates, store.byID[id])
	}
	store.mutex.Unlock()

	for _, candidate := range candidates {
		if compareErr := ComparePasswordAndHash(password, candidate.PasswordHash); compareErr == nil {
			return candidate, nil
		}
	}
	return UserRecord{}, fmt.Errorf("user_store.find.memory: %w", ErrUserNotFound)
}

// FindUserByID returns the record with the given id.
func (store *MemoryUserStore) FindUserByID(ctx context.Context, dbName string, id string) (UserRecord, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, ok := store.byID[id]
	if !ok || record.DBName != dbName {
		return UserRecord{}, fmt.Errorf("user_store.find_by_id.memory: %w", ErrUserNotFound)
	}
	return record, nil
}
