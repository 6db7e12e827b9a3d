package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/spachava753/contactsaver/logging"
)

// WatchDebounce is how long the config file must be quiet before a change is
// delivered.
const WatchDebounce = 300 * time.Millisecond

// Watch calls onChange with the freshly loaded config each time the file
// settles after a change, until ctx is cancelled. Loads that fail validation
// are logged and skipped. The containing directory is watched so editors that
// replace the file by rename are seen.
func (s *Store) Watch(ctx context.Context, logger *zap.Logger, onChange func(Config)) error {
	logger = logging.OrNop(logger)
	dir := s.Dir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("config: creating %s failed: %w", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: creating watcher failed: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config: watching %s failed: %w", dir, err)
	}

	ticker := time.NewTicker(WatchDebounce / 3)
	defer ticker.Stop()

	name := filepath.Base(s.path)
	var changedAt time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			changedAt = time.Now()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", zap.Error(err))
		case <-ticker.C:
			if changedAt.IsZero() || time.Since(changedAt) < WatchDebounce {
				continue
			}
			changedAt = time.Time{}
			cfg, err := s.Load()
			if err != nil {
				logger.Warn("ignoring invalid config change", zap.String("path", s.path), zap.Error(err))
				continue
			}
			logger.Info("config reloaded", zap.String("path", s.path))
			onChange(cfg)
		}
	}
}
