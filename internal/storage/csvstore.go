package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

var (
	userColumns = []string{"username", "email", "password", "preferences"}
	viewColumns = []string{"user_email", "recommendation_id", "timestamp"}
)

// CSVStore keeps accounts and the view log in two comma-separated files with
// header rows. All writes go through mu, so a preference rewrite can never
// interleave with a registration or another rewrite.
type CSVStore struct {
	mu        sync.RWMutex
	usersPath string
	viewsPath string
}

// NewCSVStore opens the two files, creating each with its header row if absent.
func NewCSVStore(usersPath, viewsPath string) (*CSVStore, error) {
	if err := ensureCSV(usersPath, userColumns); err != nil {
		return nil, fmt.Errorf("failed to initialize %s: %w", usersPath, err)
	}
	if err := ensureCSV(viewsPath, viewColumns); err != nil {
		return nil, fmt.Errorf("failed to initialize %s: %w", viewsPath, err)
	}
	return &CSVStore{usersPath: usersPath, viewsPath: viewsPath}, nil
}

func ensureCSV(path string, header []string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Write(header)
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Close is a no-op; files are opened per operation.
func (s *CSVStore) Close() error {
	return nil
}

// readTable returns the data rows of a CSV file as column-name maps.
func readTable(path string, required []string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, col)
		}
	}

	var rows []map[string]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(header))
		for name, i := range index {
			if i < len(rec) {
				row[name] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func appendRow(path string, rec []string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Write(rec)
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *CSVStore) readUsers() ([]User, error) {
	rows, err := readTable(s.usersPath, userColumns)
	if err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}
	users := make([]User, 0, len(rows))
	for _, row := range rows {
		users = append(users, User{
			Username:    row["username"],
			Email:       row["email"],
			Password:    row["password"],
			Preferences: SplitPreferences(row["preferences"]),
		})
	}
	return users, nil
}

func userRecord(u User) []string {
	return []string{u.Username, u.Email, u.Password, JoinPreferences(u.Preferences)}
}

// CreateUser appends a row. Existing rows with the same email are left alone.
func (s *CSVStore) CreateUser(ctx context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := appendRow(s.usersPath, userRecord(user)); err != nil {
		return fmt.Errorf("failed to append user: %w", err)
	}
	return nil
}

// GetUserByEmail returns the first row whose email matches.
func (s *CSVStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users, err := s.readUsers()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

// Authenticate returns the first row matching both email and password exactly.
func (s *CSVStore) Authenticate(ctx context.Context, email, password string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users, err := s.readUsers()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == email && u.Password == password {
			return &u, nil
		}
	}
	return nil, ErrInvalidCredentials
}

// UpdatePreferences rewrites the users file, replacing the preference field of
// every row with a matching email. The new contents are written to a temp file
// in the same directory, given the users file's mode, and renamed over it.
func (s *CSVStore) UpdatePreferences(ctx context.Context, email string, preferences []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.readUsers()
	if err != nil {
		return err
	}
	for i := range users {
		if users[i].Email == email {
			users[i].Preferences = preferences
		}
	}

	info, err := os.Stat(s.usersPath)
	if err != nil {
		return fmt.Errorf("failed to stat users file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.usersPath), ".users-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set users file mode: %w", err)
	}

	w := csv.NewWriter(tmp)
	w.Write(userColumns)
	for _, u := range users {
		w.Write(userRecord(u))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write users: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write users: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.usersPath); err != nil {
		return fmt.Errorf("failed to replace users file: %w", err)
	}
	return nil
}

// ListUsers returns every row in file order.
func (s *CSVStore) ListUsers(ctx context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readUsers()
}

// RecordView appends one row to the view log.
func (s *CSVStore) RecordView(ctx context.Context, view ViewRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := []string{view.UserEmail, strconv.Itoa(view.RecommendationID), view.Timestamp}
	if err := appendRow(s.viewsPath, rec); err != nil {
		return fmt.Errorf("failed to append view: %w", err)
	}
	return nil
}

// ListViews returns view log rows for email, or all rows when email is empty.
func (s *CSVStore) ListViews(ctx context.Context, email string) ([]ViewRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := readTable(s.viewsPath, viewColumns)
	if err != nil {
		return nil, fmt.Errorf("failed to read views: %w", err)
	}

	var views []ViewRecord
	for _, row := range rows {
		if email != "" && row["user_email"] != email {
			continue
		}
		id, err := strconv.Atoi(row["recommendation_id"])
		if err != nil {
			return nil, fmt.Errorf("invalid recommendation_id %q: %w", row["recommendation_id"], err)
		}
		views = append(views, ViewRecord{
			UserEmail:        row["user_email"],
			RecommendationID: id,
			Timestamp:        row["timestamp"],
		})
	}
	return views, nil
}
