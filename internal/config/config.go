package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file and directory locations.
type Paths struct {
	IndexFile string `toml:"index_file"`
	StateDir  string `toml:"state_dir"`
}

// API contains configuration for the remote image metadata service.
type API struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	FilterID  int64  `toml:"filter_id"`
	UserAgent string `toml:"user_agent"`
	// RateLimit is the maximum number of requests issued per second.
	RateLimit                  float64 `toml:"rate_limit"`
	RetryDelaySeconds          float64 `toml:"retry_delay_seconds"`
	NotImplementedDelaySeconds float64 `toml:"not_implemented_delay_seconds"`
	CacheTTLSeconds            int     `toml:"cache_ttl_seconds"`
	CacheCapacity              int     `toml:"cache_capacity"`
	RequestTimeoutSeconds      int     `toml:"request_timeout_seconds"`
}

// TMSU contains configuration for the external tagging tool.
type TMSU struct {
	Binary   string `toml:"binary"`
	Database string `toml:"database"`
}

// Index contains configuration for the work index.
type Index struct {
	// CheckpointEvery saves the index after this many newly completed items.
	// Zero saves only once at the end of a run.
	CheckpointEvery int `toml:"checkpoint_every"`
}

// Journal contains configuration for the SQLite run journal.
type Journal struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for derpisync.
//
// Configuration sections by subsystem:
//   - Paths: index file and state directory
//   - API: remote image metadata service, rate limit and retry delays
//   - TMSU: tagging tool binary and database
//   - Index: checkpoint cadence
//   - Journal: SQLite run history
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	API     API     `toml:"api"`
	TMSU    TMSU    `toml:"tmsu"`
	Index   Index   `toml:"index"`
	Journal Journal `toml:"journal"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/derpisync/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	// A missing .env is the common case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", false, fmt.Errorf("load .env: %w", err)
	}

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("derpisync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// JournalPath returns the location of the SQLite run journal.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.StateDir, "journal.db")
}

// LockPath returns the advisory lock file guarding the index.
func (c *Config) LockPath() string {
	return c.Paths.IndexFile + ".lock"
}

// RequestInterval is the minimum spacing between two outbound API requests.
func (c *Config) RequestInterval() time.Duration {
	if c.API.RateLimit <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.API.RateLimit)
}

// RetryDelay is the wait before retrying a generic non-success response.
func (c *Config) RetryDelay() time.Duration {
	return secondsToDuration(c.API.RetryDelaySeconds)
}

// NotImplementedDelay is the wait before retrying a 501 response.
func (c *Config) NotImplementedDelay() time.Duration {
	return secondsToDuration(c.API.NotImplementedDelaySeconds)
}

// CacheTTL is the lifetime of cached image lookups; zero disables the cache.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.API.CacheTTLSeconds) * time.Second
}

// CacheCapacity is the maximum number of cached image records; zero is unbounded.
func (c *Config) CacheCapacity() uint64 {
	if c.API.CacheCapacity <= 0 {
		return 0
	}
	return uint64(c.API.CacheCapacity)
}

// RequestTimeout bounds a single HTTP request; zero keeps the transport default.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.RequestTimeoutSeconds) * time.Second
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
