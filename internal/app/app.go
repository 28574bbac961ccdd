// Package app wires the braidc application together: it resolves the
// effective configuration, builds the logger and the cache store, runs
// build passes, and reports diagnostics to the user.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/braidui/braid/internal/cache"
	"github.com/braidui/braid/internal/config"
)

// App encapsulates the application's dependencies and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	cfg    config.Config
	store  cache.Store
}

// New resolves the configuration file, applies the command-line
// overrides, and returns a ready-to-run App. Logs and diagnostics are
// written to outW.
func New(outW io.Writer, cliCfg *Config) (*App, error) {
	logger := newLogger(cliCfg.LogLevel, cliCfg.LogFormat, outW)

	cfg, err := config.Load(cliCfg.ConfigPath, !cliCfg.ConfigExplicit)
	if err != nil {
		return nil, err
	}
	applyOverrides(&cfg, cliCfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("Configuration resolved.",
		"project", cfg.ProjectName,
		"source_dir", cfg.SourceDir,
		"output_dir", cfg.OutputDir,
		"workers", cfg.Workers,
		"cache_path", cfg.CachePath,
	)

	store, err := newStore(cfg, cliCfg.NoCache)
	if err != nil {
		return nil, err
	}

	return &App{outW: outW, logger: logger, cfg: cfg, store: store}, nil
}

// Close releases the cache store.
func (a *App) Close() error {
	return a.store.Close()
}

func applyOverrides(cfg *config.Config, cliCfg *Config) {
	if cliCfg.SourceDir != nil {
		cfg.SourceDir = *cliCfg.SourceDir
	}
	if cliCfg.OutputDir != nil {
		cfg.OutputDir = *cliCfg.OutputDir
	}
	if cliCfg.Workers != nil {
		cfg.Workers = *cliCfg.Workers
	}
	if cliCfg.Strict != nil {
		cfg.StrictDirectives = *cliCfg.Strict
	}
	if cliCfg.CachePath != nil {
		cfg.CachePath = *cliCfg.CachePath
	}
}

// newStore picks the cache backend: SQLite when a path is configured,
// in-memory otherwise or when the user asked for -no-cache.
func newStore(cfg config.Config, noCache bool) (cache.Store, error) {
	if noCache || cfg.CachePath == "" {
		return cache.NewMemory(), nil
	}
	if dir := filepath.Dir(cfg.CachePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
		}
	}
	return cache.NewSQLite(cfg.CachePath)
}
