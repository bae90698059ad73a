// Package cli implements the okuma terminal commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"okuma/internal/config"
	"okuma/internal/core/clock"
	"okuma/internal/core/prompt"
	"okuma/internal/domain/receipt"
	"okuma/internal/infrastructure/api"
	"okuma/internal/infrastructure/auth"
	"okuma/internal/infrastructure/storage"
	"okuma/pkg/logger"
)

// App is the composition root: one explicitly-constructed instance of every
// service, owned here rather than by ambient globals.
type App struct {
	Config config.Config
	Log    *logger.Logger
	Clock  clock.Clock

	KV        storage.KV
	Identity  *auth.Identity
	API       *api.Client
	Store     *receipt.SessionStore
	Pending   *receipt.PendingQueue
	History   *receipt.History
	Submitter *receipt.Submitter
	Confirm   prompt.Confirmer

	closers []func() error
}

// newApp wires the application from configuration.
func newApp(ctx context.Context, opts *RootOptions) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	app := &App{
		Config: cfg,
		Log:    log,
		Clock:  clock.System(),
	}

	kv, err := app.openStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	app.KV = kv

	app.Identity = auth.NewIdentity(ctx, kv, log)
	app.API = api.New(api.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout.Std(),
	}, app.Identity, log)

	if opts.Yes {
		app.Confirm = prompt.Auto(true)
	} else {
		app.Confirm = &prompt.Terminal{In: os.Stdin, Out: os.Stdout}
	}

	// Stores load and migrate their persisted state here, before any
	// command runs.
	ctx = app.Identity.WithUser(ctx)
	app.Store = receipt.NewSessionStore(ctx, kv, app.Clock, log)
	app.Pending = receipt.NewPendingQueue(ctx, kv, app.Store, log)
	app.History = receipt.NewHistory(ctx, kv, app.API, app.Store, log)
	app.Submitter = receipt.NewSubmitter(
		app.API, app.Store, app.Pending, app.History, app.Confirm, app.Clock, log)

	return app, nil
}

func (a *App) openStorage(ctx context.Context, cfg config.StorageConfig) (storage.KV, error) {
	switch cfg.Backend {
	case "", "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
		kv, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, kv.Close)
		return kv, nil
	case "redis":
		kv, err := storage.NewRedis(ctx, storage.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, kv.Close)
		return kv, nil
	case "memory":
		return storage.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Context returns a context carrying the operator identity and logger.
func (a *App) Context(ctx context.Context) context.Context {
	return logger.WithLogger(a.Identity.WithUser(ctx), a.Log)
}

// Close releases storage connections.
func (a *App) Close() {
	for _, fn := range a.closers {
		if err := fn(); err != nil {
			a.Log.Warnw("close failed", "error", err)
		}
	}
}
