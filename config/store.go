package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appDirName = "contactsaver"
	fileName   = "config.yaml"
)

// DefaultPath returns $XDG_CONFIG_HOME/contactsaver/config.yaml, falling back
// to the OS user config directory.
func DefaultPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("config: resolving config directory failed: %w", err)
		}
		base = dir
	}
	return filepath.Join(base, appDirName, fileName), nil
}

// Store reads and writes one config file. Writes replace the file atomically.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a Store for path. An empty path selects [DefaultPath].
func NewStore(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &Store{path: path}, nil
}

// Path returns the config file path.
func (s *Store) Path() string {
	return s.path
}

// Dir returns the directory holding the config file.
func (s *Store) Dir() string {
	return filepath.Dir(s.path)
}

// Load reads the file, applies environment overrides, and validates. A missing
// file yields [Default].
func (s *Store) Load() (Config, error) {
	cfg, err := s.LoadFile()
	if err != nil {
		return Config{}, err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads the file without environment overrides or validation.
func (s *Store) LoadFile() (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Save validates cfg and writes it.
func (s *Store) Save(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(cfg)
}

// SetLastSync records t as the last completed pass without touching any other
// field. Concurrent writers race; the last one wins.
func (s *Store) SetLastSync(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.read()
	if err != nil {
		return err
	}
	cfg.LastSyncMillis = t.UnixMilli()
	return s.write(cfg)
}

func (s *Store) read() (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s failed: %w", s.path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s failed: %w", s.path, err)
	}
	return cfg, nil
}

func (s *Store) write(cfg Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encoding failed: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("config: creating %s failed: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+fileName+".*")
	if err != nil {
		return fmt.Errorf("config: creating temp file failed: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("config: writing temp file failed: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("config: chmod temp file failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: closing temp file failed: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("config: replacing %s failed: %w", s.path, err)
	}
	return nil
}
