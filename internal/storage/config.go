package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Backend names accepted in storage.backend.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// FeedSource is a feed the CLI daemon re-imports under Category.
type FeedSource struct {
	URL      string `yaml:"url" toml:"url"`
	Category string `yaml:"category" toml:"category"`
}

type Config struct {
	Server struct {
		Addr         string        `yaml:"addr" toml:"addr"`
		ReadTimeout  time.Duration `yaml:"read_timeout" toml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	} `yaml:"server" toml:"server"`

	Storage struct {
		Backend    string `yaml:"backend" toml:"backend"`
		UsersPath  string `yaml:"users_path" toml:"users_path"`
		ViewsPath  string `yaml:"views_path" toml:"views_path"`
		SQLitePath string `yaml:"sqlite_path" toml:"sqlite_path"`
	} `yaml:"storage" toml:"storage"`

	Content struct {
		Path  string       `yaml:"path" toml:"path"`
		Feeds []FeedSource `yaml:"feeds,omitempty" toml:"feeds,omitempty"`
	} `yaml:"content" toml:"content"`

	Session struct {
		Secret     string        `yaml:"secret,omitempty" toml:"secret,omitempty"`
		CookieName string        `yaml:"cookie_name" toml:"cookie_name"`
		MaxAge     time.Duration `yaml:"max_age" toml:"max_age"`
		Secure     bool          `yaml:"secure" toml:"secure"`
	} `yaml:"session" toml:"session"`

	Logging struct {
		Level  string `yaml:"level" toml:"level"`
		Format string `yaml:"format" toml:"format"`
	} `yaml:"logging" toml:"logging"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8080"
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Storage.Backend = BackendCSV
	cfg.Storage.UsersPath = "users.csv"
	cfg.Storage.ViewsPath = "viewed_recommendations.csv"
	cfg.Storage.SQLitePath = "./healthtips.db"
	cfg.Content.Path = "health_tips.csv"
	cfg.Session.CookieName = "healthtips_session"
	cfg.Session.MaxAge = 24 * time.Hour
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"
	return cfg
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadConfig reads the config file at path on top of DefaultConfig.
// A missing file is not an error; the defaults are returned.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// MarshalConfig encodes cfg in the format implied by path's extension.
func MarshalConfig(cfg *Config, path string) ([]byte, error) {
	if isTOML(path) {
		var b strings.Builder
		if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
			return nil, err
		}
		return []byte(b.String()), nil
	}
	return yaml.Marshal(cfg)
}
