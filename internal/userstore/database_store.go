package userstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sqliteDialector "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("user_store.unsupported_dialect")

	errEmptyDatabaseURL    = errors.New("user_store.empty_database_url")
	errSQLiteEmptyPath     = errors.New("user_store.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("user_store.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("user_store.unsupported_no_scheme")
)

// DatabaseUserStore persists per-project user records using GORM.
type DatabaseUserStore struct {
	db          *gorm.DB
	driverLabel string
}

// Driver exposes the selected database driver label.
func (store *DatabaseUserStore) Driver() string {
	return store.driverLabel
}

type userRecordRow struct {
	ID            string `gorm:"column:id;primaryKey"`
	DBName        string `gorm:"column:db_name;index:idx_users_project_email;not null"`
	Email         string `gorm:"column:email;index:idx_users_project_email;not null"`
	PasswordHash  string `gorm:"column:password_hash;not null"`
	CreatedAtUnix int64  `gorm:"column:created_at_unix;not null"`
}

func (userRecordRow) TableName() string {
	return "users"
}

func (row userRecordRow) record() UserRecord {
	return UserRecord{
		ID:           row.ID,
		DBName:       row.DBName,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAtUnix,
	}
}

// NewDatabaseUserStore opens the database resolved from the URL scheme
// and migrates the users table. The handle is created once at startup
// and shared by every request.
func NewDatabaseUserStore(ctx context.Context, databaseURL string) (*DatabaseUserStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("user_store.open: %w", errEmptyDatabaseURL)
	}
	dialector, driverLabel, err := resolveDialector(databaseURL)
	if err != nil {
		return nil, err
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, fmt.Errorf("user_store.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&userRecordRow{}); migrateErr != nil {
		return nil, fmt.Errorf("user_store.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseUserStore{
		db:          gormDB,
		driverLabel: driverLabel,
	}, nil
}

// CreateUser hashes the password and inserts a new record. Duplicate
// emails within a project are accepted.
func (store *DatabaseUserStore) CreateUser(ctx context.Context, dbName string, email string, password string) (string, error) {
	if strings.TrimSpace(dbName) == "" {
		return "", fmt.Errorf("user_store.create.%s: %w", store.driverLabel, ErrEmptyDBName)
	}
	if strings.TrimSpace(email) == "" {
		return "", fmt.Errorf("user_store.create.%s: %w", store.driverLabel, ErrEmptyEmail)
	}
	passwordHash, hashErr := HashPassword(password)
	if hashErr != nil {
		return "", hashErr
	}
	row := userRecordRow{
		ID:            uuid.NewString(),
		DBName:        dbName,
		Email:         email,
		PasswordHash:  passwordHash,
		CreatedAtUnix: time.Now().UTC().Unix(),
	}
	if createErr := store.db.WithContext(ctx).Create(&row).Error; createErr != nil {
		return "", fmt.Errorf("user_store.create.%s: %w: %v", store.driverLabel, ErrStoreUnavailable, createErr)
	}
	return row.ID, nil
}

// FindUser loads every candidate for (dbName, email) and compares the
// password against each stored hash.
func (store *DatabaseUserStore) FindUser(ctx context.Context, dbName string, email string, password string) (UserRecord, error) {
	var rows []userRecordRow
	queryErr := store.db.WithContext(ctx).
		Where("db_name = ? AND email = ?", dbName, email).
		Order("created_at_unix ASC").
		Find(&rows).Error
	if queryErr != nil {
		return UserRecord{}, fmt.Errorf("user_store.find.%s: %w: %v", store.driverLabel, ErrStoreUnavailable, queryErr)
	}
	for _, row := range rows {
		if compareErr := ComparePasswordAndHash(password, row.PasswordHash); compareErr == nil {
			return row.record(), nil
		}
	}
	return UserRecord{}, fmt.Errorf("user_store.find.%s: %w", store.driverLabel, ErrUserNotFound)
}

// FindUserByID returns the record with the given id.
func (store *DatabaseUserStore) FindUserByID(ctx context.Context, dbName string, id string) (UserRecord, error) {
	var row userRecordRow
	queryErr := store.db.WithContext(ctx).
		Where("db_name = ? AND id = ?", dbName, id).
		Take(&row).Error
	if queryErr != nil {
		if errors.Is(queryErr, gorm.ErrRecordNotFound) {
			return UserRecord{}, fmt.Errorf("user_store.find_by_id.%s: %w", store.driverLabel, ErrUserNotFound)
		}
		return UserRecord{}, fmt.Errorf("user_store.find_by_id.%s: %w: %v", store.driverLabel, ErrStoreUnavailable, queryErr)
	}
	return row.record(), nil
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("user_store.parse_url: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("user_store.dialect: %w", errUnsupportedNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("user_store.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("user_store.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func buildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
