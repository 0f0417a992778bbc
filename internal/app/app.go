// Package app wires the client components together from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gennadis/ragdesk/internal/attach"
	"github.com/gennadis/ragdesk/internal/client"
	"github.com/gennadis/ragdesk/internal/config"
	"github.com/gennadis/ragdesk/internal/exchange"
	"github.com/gennadis/ragdesk/internal/library"
	"github.com/gennadis/ragdesk/internal/session"
	"github.com/gennadis/ragdesk/internal/theme"
	"github.com/gennadis/ragdesk/storage"
)

type App struct {
	Config   config.Config
	KV       storage.KV
	Client   *client.Client
	Sessions *session.Manager
	Attach   *attach.Manager
	Exchange *exchange.Coordinator
	Library  *library.Controller
	Themes   *theme.Preferences
}

// New opens the configured store and builds every component on top of it.
func New(cfg config.Config) (*App, error) {
	kv, err := storage.Open(cfg.StorageOptions())
	if err != nil {
		slog.Error("Failed to open storage", "backend", cfg.StoreBackend, "error", err)
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return NewWithKV(cfg, kv), nil
}

// NewWithKV builds the components on an already opened store.
func NewWithKV(cfg config.Config, kv storage.KV) *App {
	svc := client.NewClient(cfg)
	sessions := session.NewManager(storage.NewSessions(kv))
	timeout := cfg.Timeout()

	return &App{
		Config:   cfg,
		KV:       kv,
		Client:   svc,
		Sessions: sessions,
		Attach:   attach.NewManager(svc, sessions, attach.WithParallelism(cfg.MaxParallelUploads), attach.WithTimeout(timeout)),
		Exchange: exchange.NewCoordinator(svc, sessions, timeout),
		Library: library.NewController(svc, attach.NewManager(svc, nil,
			attach.WithParallelism(cfg.MaxParallelUploads), attach.WithTimeout(timeout))),
		Themes: theme.NewPreferences(storage.NewThemes(kv)),
	}
}

// Watch reports session store writes made by other processes, when the
// backend supports it.
func (a *App) Watch(ctx context.Context) (<-chan string, bool) {
	w, ok := a.KV.(storage.Watcher)
	if !ok {
		return nil, false
	}
	changes, err := w.Watch(ctx)
	if err != nil {
		slog.Warn("store watch unavailable", "error", err)
		return nil, false
	}
	return changes, true
}

func (a *App) Close() error {
	return a.KV.Close()
}
