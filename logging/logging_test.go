package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func TestNewWritesToOutputPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	logger, err := New(Options{Debug: true, JSON: true, OutputPaths: []string{path}})
	be.Err(t, err, nil)

	logger.Debug("saved number")
	be.Err(t, logger.Sync(), nil)

	raw, err := os.ReadFile(path)
	be.Err(t, err, nil)
	be.True(t, strings.Contains(string(raw), `"msg":"saved number"`))
}

func TestNewInfoLevelDropsDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	logger, err := New(Options{OutputPaths: []string{path}})
	be.Err(t, err, nil)

	logger.Debug("hidden")
	logger.Info("shown")
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	be.Err(t, err, nil)
	be.True(t, !strings.Contains(string(raw), "hidden"))
	be.True(t, strings.Contains(string(raw), "shown"))
}

func TestOrNop(t *testing.T) {
	be.True(t, OrNop(nil) != nil)
}
