package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/interruptmeter/interruptmeter/server/internal/api"
	"github.com/interruptmeter/interruptmeter/server/internal/config"
	"github.com/interruptmeter/interruptmeter/server/internal/meter"
	"github.com/interruptmeter/interruptmeter/server/internal/store"
	"github.com/interruptmeter/interruptmeter/server/internal/streak"
)

// env is everything a command needs, opened and seeded.
type env struct {
	cfg        *config.Config
	configFile string // empty when running on defaults
	kv         store.KV
	meter      *meter.Service
	streaks    *streak.Tracker
	api        *api.Handler
	closeFn    func() error
}

func (e *env) Close() error {
	if e.closeFn == nil {
		return nil
	}
	return e.closeFn()
}

func openEnv(opts *RootOptions) (*env, error) {
	if err := config.LoadEnv(opts.EnvFile); err != nil {
		return nil, err
	}

	e := &env{}
	cfg, err := config.Load(opts.ConfigPath)
	switch {
	case err == nil:
		e.configFile = opts.ConfigPath
	case errors.Is(err, fs.ErrNotExist) && !opts.configSet:
		slog.Info("cli: no config file, using defaults", "path", opts.ConfigPath)
		cfg = config.Default()
	default:
		return nil, err
	}
	e.cfg = cfg

	switch cfg.Storage.Backend {
	case "memory":
		e.kv = store.NewMemory()
	default:
		db, err := store.Open(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		e.kv, e.closeFn = db, db.Close
	}

	e.meter = meter.NewService(e.kv, cfg.StateMap())
	e.streaks = streak.New(e.kv, cfg.Location())

	cur, prev := cfg.SeedCycles()
	if err := e.meter.Seed(cur, prev); err != nil {
		e.Close() //nolint:errcheck
		return nil, err
	}
	if err := e.streaks.Seed(cfg.SeedAnchors()); err != nil {
		e.Close() //nolint:errcheck
		return nil, err
	}

	e.api = api.New(e.meter, e.streaks, nil)
	slog.Debug("cli: store ready", "backend", cfg.Storage.Backend, "path", cfg.Storage.Path)
	return e, nil
}

func readFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stories: %w", err)
	}
	return f, nil
}
