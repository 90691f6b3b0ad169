package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUserNotFound is returned when no account row has the requested email.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials is returned when no row matches both email and password.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// TimestampLayout is the view log timestamp format (YYYY-MM-DD HH:MM:SS).
const TimestampLayout = "2006-01-02 15:04:05"

type User struct {
	Username    string
	Email       string
	Password    string
	Preferences []string
}

type ViewRecord struct {
	UserEmail        string
	RecommendationID int
	Timestamp        string
}

// Store defines the storage interface for the account table and view log.
type Store interface {
	Close() error

	// Users
	CreateUser(ctx context.Context, user User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	UpdatePreferences(ctx context.Context, email string, preferences []string) error
	ListUsers(ctx context.Context) ([]User, error)

	// View log
	RecordView(ctx context.Context, view ViewRecord) error
	ListViews(ctx context.Context, email string) ([]ViewRecord, error)
}

// Open returns the backend selected by cfg.Storage.Backend.
func Open(cfg *Config) (Store, error) {
	switch cfg.Storage.Backend {
	case "", BackendCSV:
		return NewCSVStore(cfg.Storage.UsersPath, cfg.Storage.ViewsPath)
	case BackendSQLite:
		return NewSQLiteStore(cfg.Storage.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// JoinPreferences serializes a preference list into a single field.
func JoinPreferences(prefs []string) string {
	return strings.Join(prefs, ",")
}

// SplitPreferences parses a serialized preference field. An empty field
// yields no preferences.
func SplitPreferences(field string) []string {
	if field == "" {
		return nil
	}
	return strings.Split(field, ",")
}
