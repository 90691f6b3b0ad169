package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the transactional alternative to CSVStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new database connection and initializes the schema
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time; a single connection serializes them
	// without SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateUser inserts an account row.
func (s *SQLiteStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, email, password, preferences) VALUES (?, ?, ?, ?)",
		user.Username, user.Email, user.Password, JoinPreferences(user.Preferences),
	)
	if err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var prefs string
	if err := row.Scan(&u.Username, &u.Email, &u.Password, &prefs); err != nil {
		return nil, err
	}
	u.Preferences = SplitPreferences(prefs)
	return &u, nil
}

// GetUserByEmail returns the earliest account with the given email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		"SELECT username, email, password, preferences FROM users WHERE email = ? ORDER BY id LIMIT 1",
		email,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// Authenticate returns the earliest account matching both fields exactly.
// SQLite's = on TEXT is case-sensitive under the default BINARY collation.
func (s *SQLiteStore) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		"SELECT username, email, password, preferences FROM users WHERE email = ? AND password = ? ORDER BY id LIMIT 1",
		email, password,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	return u, nil
}

// UpdatePreferences replaces the preference field on every row with the email.
// Zero matching rows is not an error.
func (s *SQLiteStore) UpdatePreferences(ctx context.Context, email string, preferences []string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET preferences = ? WHERE email = ?",
		JoinPreferences(preferences), email,
	)
	if err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}
	return nil
}

// ListUsers returns all accounts in insertion order.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT username, email, password, preferences FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var prefs string
		if err := rows.Scan(&u.Username, &u.Email, &u.Password, &prefs); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Preferences = SplitPreferences(prefs)
		users = append(users, u)
	}
	return users, rows.Err()
}

// RecordView appends a view log row.
func (s *SQLiteStore) RecordView(ctx context.Context, view ViewRecord) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO viewed_recommendations (user_email, recommendation_id, timestamp) VALUES (?, ?, ?)",
		view.UserEmail, view.RecommendationID, view.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to record view: %w", err)
	}
	return nil
}

// ListViews returns view rows for email (all rows when empty) in insertion order.
func (s *SQLiteStore) ListViews(ctx context.Context, email string) ([]ViewRecord, error) {
	query := "SELECT user_email, recommendation_id, timestamp FROM viewed_recommendations"
	var args []any
	if email != "" {
		query += " WHERE user_email = ?"
		args = append(args, email)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	defer rows.Close()

	var views []ViewRecord
	for rows.Next() {
		var v ViewRecord
		if err := rows.Scan(&v.UserEmail, &v.RecommendationID, &v.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan view: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}
