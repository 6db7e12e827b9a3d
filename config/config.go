package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Environment overrides applied by [Store.Load].
const (
	EnvServerURL    = "CONTACTSAVER_SERVER_URL"
	EnvAPIKey       = "CONTACTSAVER_API_KEY"
	EnvAutoSync     = "CONTACTSAVER_AUTO_SYNC"
	EnvSyncOnStart  = "CONTACTSAVER_SYNC_ON_START"
	EnvSyncInterval = "CONTACTSAVER_SYNC_INTERVAL"
	EnvDatabase     = "CONTACTSAVER_DATABASE"
)

// DefaultServerURL is the stock contacts server.
const DefaultServerURL = "https://joinus.cx"

// Intervals lists the accepted periodic sync intervals in minutes.
var Intervals = []int{5, 15, 30, 60}

// Config is the persisted application configuration.
type Config struct {
	// ServerURL is the contacts server base URL.
	ServerURL string `yaml:"server_url"`
	// APIKey authenticates against the server. Empty disables syncing.
	APIKey string `yaml:"api_key"`
	// AutoSync enables the periodic reconciliation job.
	AutoSync bool `yaml:"auto_sync_enabled"`
	// SyncOnStart runs one reconciliation pass when the daemon starts.
	SyncOnStart bool `yaml:"sync_on_start"`
	// SyncInterval is the periodic job interval in minutes: 5, 15, 30, or 60.
	SyncInterval int `yaml:"sync_interval"`
	// LastSyncMillis is the Unix millisecond time of the last completed pass.
	LastSyncMillis int64 `yaml:"last_sync_time,omitempty"`

	// Database is the address book path. Empty selects a file next to the config.
	Database string `yaml:"database,omitempty"`
	// NotifyEmail receives session and sync summaries when set.
	NotifyEmail string `yaml:"notify_email,omitempty"`
	// PlaceholderName names synced contacts that arrive without a name.
	// Empty keeps the address book default.
	PlaceholderName string `yaml:"placeholder_name,omitempty"`

	Scan ScanConfig `yaml:"scan"`
}

// ScanConfig tunes live scan sessions.
type ScanConfig struct {
	Prefix         string        `yaml:"prefix"`
	Budget         int           `yaml:"budget"`
	MinScrolls     int           `yaml:"min_scrolls"`
	MaxScrolls     int           `yaml:"max_scrolls"`
	NoNewThreshold int           `yaml:"no_new_threshold"`
	InitialDelay   time.Duration `yaml:"initial_delay"`
	ScrollDelay    time.Duration `yaml:"scroll_delay"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	Packages       []string      `yaml:"packages,flow"`
}

// Default returns the stock configuration: auto-sync off, 15 minute interval.
func Default() Config {
	return Config{
		ServerURL:    DefaultServerURL,
		SyncInterval: 15,
		Scan: ScanConfig{
			Prefix:         "CLAUD_",
			Budget:         2000,
			MinScrolls:     50,
			MaxScrolls:     100,
			NoNewThreshold: 10,
			InitialDelay:   time.Second,
			ScrollDelay:    800 * time.Millisecond,
			RetryDelay:     1500 * time.Millisecond,
			Packages:       []string{"com.whatsapp", "com.whatsapp.w4b"},
		},
	}
}

// Validate checks field ranges.
func (c Config) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.ServerURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: server_url must be an http(s) URL (got %q)", c.ServerURL)
	}
	if !slices.Contains(Intervals, c.SyncInterval) {
		return fmt.Errorf("config: sync_interval must be one of %v minutes (got %d)", Intervals, c.SyncInterval)
	}
	s := c.Scan
	if strings.TrimSpace(s.Prefix) == "" {
		return errors.New("config: scan.prefix is required")
	}
	if s.Budget < 0 {
		return fmt.Errorf("config: scan.budget cannot be negative (got %d)", s.Budget)
	}
	if s.MaxScrolls < 1 {
		return fmt.Errorf("config: scan.max_scrolls must be at least 1 (got %d)", s.MaxScrolls)
	}
	if s.MinScrolls < 0 || s.MinScrolls > s.MaxScrolls {
		return fmt.Errorf("config: scan.min_scrolls (%d) must be between 0 and max_scrolls (%d)", s.MinScrolls, s.MaxScrolls)
	}
	if s.NoNewThreshold < 1 {
		return fmt.Errorf("config: scan.no_new_threshold must be at least 1 (got %d)", s.NoNewThreshold)
	}
	if s.InitialDelay < 0 || s.ScrollDelay < 0 || s.RetryDelay < 0 {
		return errors.New("config: scan delays cannot be negative")
	}
	return nil
}

// Interval returns the periodic sync interval.
func (c Config) Interval() time.Duration {
	return time.Duration(c.SyncInterval) * time.Minute
}

// SyncEnabled reports whether the periodic job should do any work.
func (c Config) SyncEnabled() bool {
	return c.AutoSync && strings.TrimSpace(c.APIKey) != ""
}

// LastSync returns the time of the last completed pass, or the zero time.
func (c Config) LastSync() time.Time {
	if c.LastSyncMillis <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(c.LastSyncMillis)
}

// LastSyncText renders the last sync time relative to now.
func (c Config) LastSyncText(now time.Time) string {
	last := c.LastSync()
	if last.IsZero() {
		return "Never"
	}
	minutes := int(now.Sub(last) / time.Minute)
	switch {
	case minutes < 1:
		return "Just now"
	case minutes < 60:
		return fmt.Sprintf("%d minutes ago", minutes)
	default:
		return fmt.Sprintf("%d hours ago", minutes/60)
	}
}

// MaskedAPIKey returns the key with all but its last four characters hidden.
func (c Config) MaskedAPIKey() string {
	key := strings.TrimSpace(c.APIKey)
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

// DatabasePath resolves the address book path relative to configDir.
func (c Config) DatabasePath(configDir string) string {
	if db := strings.TrimSpace(c.Database); db != "" {
		return db
	}
	return filepath.Join(configDir, "contacts.db")
}

// Set assigns one key by its YAML name, as used by `config set`.
func (c *Config) Set(key string, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "server_url":
		c.ServerURL = value
	case "api_key":
		c.APIKey = value
	case "auto_sync_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		c.AutoSync = b
	case "sync_on_start":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		c.SyncOnStart = b
	case "sync_interval":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		c.SyncInterval = n
	case "database":
		c.Database = value
	case "notify_email":
		c.NotifyEmail = value
	case "placeholder_name":
		c.PlaceholderName = value
	case "scan.prefix":
		c.Scan.Prefix = value
	case "scan.budget":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		c.Scan.Budget = n
	default:
		return fmt.Errorf("config: unknown key %q", key)
	}
	return nil
}

// ApplyEnv overlays the CONTACTSAVER_* environment variables. Malformed
// values are ignored.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvServerURL)); v != "" {
		c.ServerURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		c.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDatabase)); v != "" {
		c.Database = v
	}
	c.AutoSync = parseEnvBool(EnvAutoSync, c.AutoSync)
	c.SyncOnStart = parseEnvBool(EnvSyncOnStart, c.SyncOnStart)
	c.SyncInterval = parseEnvInt(EnvSyncInterval, c.SyncInterval)
}

func parseEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func parseEnvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
