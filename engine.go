package healthtips

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/matthewjhunter/healthtips/internal/content"
	"github.com/matthewjhunter/healthtips/internal/logging"
	"github.com/matthewjhunter/healthtips/internal/storage"
)

var (
	// ErrInvalidCredentials is returned by Authenticate on any mismatch.
	ErrInvalidCredentials = storage.ErrInvalidCredentials

	// ErrUserNotFound is returned when no account has the email.
	ErrUserNotFound = storage.ErrUserNotFound

	// ErrTipNotFound is returned when no tip has the requested id.
	ErrTipNotFound = errors.New("recommendation not found")
)

// EngineConfig configures the engine's data sources.
type EngineConfig struct {
	ContentPath string // health_tips.csv
	Backend     string // "csv" (default) or "sqlite"
	UsersPath   string
	ViewsPath   string
	SQLitePath  string

	// Now stamps view records. Defaults to time.Now.
	Now func() time.Time
}

// Engine is the public API over the content library, account store and view log.
type Engine struct {
	store storage.Store
	now   func() time.Time

	contentPath string

	mu         sync.RWMutex // guards library and contentMod
	library    *content.Library
	contentMod time.Time
}

// NewEngine loads the content dataset and opens the configured store.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	defaults := storage.DefaultConfig()
	if cfg.ContentPath == "" {
		cfg.ContentPath = defaults.Content.Path
	}
	if cfg.UsersPath == "" {
		cfg.UsersPath = defaults.Storage.UsersPath
	}
	if cfg.ViewsPath == "" {
		cfg.ViewsPath = defaults.Storage.ViewsPath
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = defaults.Storage.SQLitePath
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	e := &Engine{now: cfg.Now, contentPath: cfg.ContentPath}
	if _, err := e.ReloadContent(); err != nil {
		return nil, err
	}

	storeCfg := storage.DefaultConfig()
	storeCfg.Storage.Backend = cfg.Backend
	storeCfg.Storage.UsersPath = cfg.UsersPath
	storeCfg.Storage.ViewsPath = cfg.ViewsPath
	storeCfg.Storage.SQLitePath = cfg.SQLitePath

	store, err := storage.Open(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	e.store = store
	return e, nil
}

// NewEngineFromConfig builds an engine from a loaded config file.
func NewEngineFromConfig(cfg *storage.Config) (*Engine, error) {
	return NewEngine(EngineConfig{
		ContentPath: cfg.Content.Path,
		Backend:     cfg.Storage.Backend,
		UsersPath:   cfg.Storage.UsersPath,
		ViewsPath:   cfg.Storage.ViewsPath,
		SQLitePath:  cfg.Storage.SQLitePath,
	})
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// ReloadContent re-reads the dataset if its modification time changed since
// the last load. It reports whether a new library was swapped in. On error the
// previous library stays in place.
func (e *Engine) ReloadContent() (bool, error) {
	info, err := os.Stat(e.contentPath)
	if err != nil {
		return false, fmt.Errorf("load content: %w", err)
	}

	e.mu.RLock()
	unchanged := e.library != nil && info.ModTime().Equal(e.contentMod)
	e.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	library, err := content.Load(e.contentPath)
	if err != nil {
		return false, fmt.Errorf("load content: %w", err)
	}

	e.mu.Lock()
	e.library = library
	e.contentMod = info.ModTime()
	e.mu.Unlock()
	return true, nil
}

func (e *Engine) tips() *content.Library {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.library
}

// TipCount returns the number of tips loaded.
func (e *Engine) TipCount() int {
	return e.tips().Len()
}

// Register creates an account. A second account with an existing email is
// still created: email lookups return the first one, while Authenticate
// accepts either password.
func (e *Engine) Register(ctx context.Context, username, email, password string, preferences []string) error {
	if _, err := e.store.GetUserByEmail(ctx, email); err == nil {
		logging.Ctx(ctx).Warn().Str("email", email).Msg("registering duplicate email; preferences and recommendations follow the earlier account")
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return fmt.Errorf("check existing user: %w", err)
	}

	err := e.store.CreateUser(ctx, storage.User{
		Username:    username,
		Email:       email,
		Password:    password,
		Preferences: preferences,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Authenticate checks email and password by exact comparison.
func (e *Engine) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := e.store.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	result := userFromInternal(*u)
	return &result, nil
}

// GetUser returns the first account with email.
func (e *Engine) GetUser(ctx context.Context, email string) (*User, error) {
	u, err := e.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	result := userFromInternal(*u)
	return &result, nil
}

// Preferences returns the stored categories for email. An unknown email has
// no preferences.
func (e *Engine) Preferences(ctx context.Context, email string) ([]string, error) {
	u, err := e.store.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return u.Preferences, nil
}

// UpdatePreferences replaces the stored categories for email.
func (e *Engine) UpdatePreferences(ctx context.Context, email string, preferences []string) error {
	if err := e.store.UpdatePreferences(ctx, email, preferences); err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	return nil
}

// RecommendationSet reads the user's preferences once and returns them with
// the matching tips, so the two always agree.
func (e *Engine) RecommendationSet(ctx context.Context, email string) (*RecommendationSet, error) {
	prefs, err := e.Preferences(ctx, email)
	if err != nil {
		return nil, err
	}
	return &RecommendationSet{
		Preferences: prefs,
		Tips:        tipsFromInternal(e.tips().FilterByCategories(prefs)),
	}, nil
}

// Recommendations returns tips in the user's preferred categories.
func (e *Engine) Recommendations(ctx context.Context, email string) ([]HealthTip, error) {
	set, err := e.RecommendationSet(ctx, email)
	if err != nil {
		return nil, err
	}
	return set.Tips, nil
}

// Search matches query against tip titles and categories.
func (e *Engine) Search(query string) []HealthTip {
	return tipsFromInternal(e.tips().Search(query))
}

// GetTip returns a tip by id.
func (e *Engine) GetTip(id int) (*HealthTip, error) {
	t, ok := e.tips().FindByID(id)
	if !ok {
		return nil, ErrTipNotFound
	}
	result := tipFromInternal(t)
	return &result, nil
}

// RecordView appends a view log entry stamped with the current time.
func (e *Engine) RecordView(ctx context.Context, email string, id int) (*ViewRecord, error) {
	v := storage.ViewRecord{
		UserEmail:        email,
		RecommendationID: id,
		Timestamp:        e.now().Format(storage.TimestampLayout),
	}
	if err := e.store.RecordView(ctx, v); err != nil {
		return nil, fmt.Errorf("record view: %w", err)
	}
	result := viewFromInternal(v)
	return &result, nil
}

// ViewRecommendation logs the view and then looks the tip up. The view is
// recorded even when the id does not exist.
func (e *Engine) ViewRecommendation(ctx context.Context, email string, id int) (*HealthTip, error) {
	if _, err := e.RecordView(ctx, email, id); err != nil {
		return nil, err
	}
	return e.GetTip(id)
}

// ListUsers returns every account in storage order.
func (e *Engine) ListUsers(ctx context.Context) ([]User, error) {
	users, err := e.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]User, 0, len(users))
	for _, u := range users {
		result = append(result, userFromInternal(u))
	}
	return result, nil
}

// ListViews returns the view log for email, or all of it when email is empty.
func (e *Engine) ListViews(ctx context.Context, email string) ([]ViewRecord, error) {
	views, err := e.store.ListViews(ctx, email)
	if err != nil {
		return nil, err
	}
	result := make([]ViewRecord, 0, len(views))
	for _, v := range views {
		result = append(result, viewFromInternal(v))
	}
	return result, nil
}

func userFromInternal(u storage.User) User {
	return User{
		Username:    u.Username,
		Email:       u.Email,
		Preferences: u.Preferences,
	}
}

func tipFromInternal(t content.Tip) HealthTip {
	return HealthTip{
		ID:       t.ID,
		Title:    t.Title,
		Category: t.Category,
		Body:     t.Body,
	}
}

func tipsFromInternal(tips []content.Tip) []HealthTip {
	result := make([]HealthTip, len(tips))
	for i, t := range tips {
		result[i] = tipFromInternal(t)
	}
	return result
}

func viewFromInternal(v storage.ViewRecord) ViewRecord {
	return ViewRecord{
		UserEmail:        v.UserEmail,
		RecommendationID: v.RecommendationID,
		Timestamp:        v.Timestamp,
	}
}
