package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"revtrack/internal/review"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
	SnapshotDir string `toml:"snapshot_dir"`
}

// Store contains settings for the embedded review store.
type Store struct {
	Filename          string `toml:"filename"`
	BusyTimeoutMS     int    `toml:"busy_timeout_ms"`
	BusyRetryAttempts int    `toml:"busy_retry_attempts"`
	WriteAttempts     int    `toml:"write_attempts"`
	LockRetryAttempts int    `toml:"lock_retry_attempts"`
	LockBackoffMS     int    `toml:"lock_backoff_ms"`
	LockMaxBackoffMS  int    `toml:"lock_max_backoff_ms"`
}

// Collection contains the defaults applied when a collection session opens.
type Collection struct {
	Mode              string `toml:"mode"`
	StopThreshold     int    `toml:"stop_threshold"`
	MinBatchSize      int    `toml:"min_batch_size"`
	SortBy            string `toml:"sort_by"`
	MaxReviews        int    `toml:"max_reviews"`
	MarkMissingOnFull bool   `toml:"mark_missing_on_full"`
}

// Identity contains settings for source URL resolution.
type Identity struct {
	FollowRedirects        bool   `toml:"follow_redirects"`
	RedirectTimeoutSeconds int    `toml:"redirect_timeout_seconds"`
	MaxRedirects           int    `toml:"max_redirects"`
	UserAgent              string `toml:"user_agent"`
}

// History contains audit trail retention settings.
type History struct {
	RetentionDays int `toml:"retention_days"`
}

// Kafka contains settings for the Kafka sync target.
type Kafka struct {
	Brokers             []string `toml:"brokers"`
	Topic               string   `toml:"topic"`
	ClientID            string   `toml:"client_id"`
	WriteTimeoutSeconds int      `toml:"write_timeout_seconds"`
}

// Redis contains settings for the Redis sync target.
type Redis struct {
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
}

// Sync lists the downstream targets and their connection settings.
type Sync struct {
	Targets []string `toml:"targets"`
	Kafka   Kafka    `toml:"kafka"`
	Redis   Redis    `toml:"redis"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
	ToFile        bool   `toml:"to_file"`
}

// Config encapsulates all configuration values for revtrack.
//
// Configuration sections by subsystem:
//   - Paths: data, log and snapshot directories
//   - Store: SQLite file name, busy handling and write-section backoff
//   - Collection: session defaults (mode, early-stop policy, sort criterion)
//   - Identity: short-link redirect following
//   - History: audit trail retention
//   - Sync: downstream targets (json snapshots, Kafka, Redis)
//   - Logging: log format, level, and retention
type Config struct {
	Paths      Paths      `toml:"paths"`
	Store      Store      `toml:"store"`
	Collection Collection `toml:"collection"`
	Identity   Identity   `toml:"identity"`
	History    History    `toml:"history"`
	Sync       Sync       `toml:"sync"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	if base, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && strings.TrimSpace(base) != "" {
		return expandPath(filepath.Join(base, "revtrack", "config.toml"))
	}
	return expandPath("~/.config/revtrack/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

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

	projectPath, err := filepath.Abs("revtrack.toml")
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

// EnsureDirectories creates the data, log and lock directories, plus the
// snapshot directory when the json target is enabled.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.LockDir()}
	if c.Logging.ToFile {
		dirs = append(dirs, c.Paths.LogDir)
	}
	if c.TargetEnabled(TargetJSON) {
		dirs = append(dirs, c.Paths.SnapshotDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DBPath returns the absolute path of the SQLite store.
func (c *Config) DBPath() string {
	return filepath.Join(c.Paths.DataDir, c.Store.Filename)
}

// LockDir returns the directory holding per-place write-section lock files.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.DataDir, "locks")
}

// Mode resolves the configured collection mode.
func (c *Config) Mode() (review.Mode, error) {
	return review.ParseMode(c.Collection.Mode)
}

// TargetEnabled reports whether the named sync target is configured.
func (c *Config) TargetEnabled(name string) bool {
	return slices.Contains(c.Sync.Targets, name)
}

// RedirectTimeout returns the short-link resolution timeout.
func (c *Config) RedirectTimeout() time.Duration {
	return time.Duration(c.Identity.RedirectTimeoutSeconds) * time.Second
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

// Encode renders the config as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
