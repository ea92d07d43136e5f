// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/rec2g/internal/api"
	"github.com/ManuGH/rec2g/internal/catalog"
	"github.com/ManuGH/rec2g/internal/config"
	"github.com/ManuGH/rec2g/internal/log"
	"github.com/rs/zerolog"
)

// App owns the long-lived runtime lifecycle (watchers, reload wiring, the
// catalog scan loop) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.ConfigHolder
	apiServer    *api.Server
	scanner      *catalog.Scanner
	watcher      *catalog.Watcher
	scanInterval time.Duration
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.ConfigHolder, apiServer *api.Server) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		apiServer:    apiServer,
		reloadSignal: syscall.SIGHUP,
	}
}

// SetScanner attaches the catalog scan loop. The watcher may be nil; the
// scanner then rescans on the interval alone.
func (a *App) SetScanner(sc *catalog.Scanner, w *catalog.Watcher, interval time.Duration) {
	a.scanner = sc
	a.watcher = w
	a.scanInterval = interval
}

// Run starts all owned background subsystems and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	// Config watcher is best-effort: startup should not fail if watcher cannot be started.
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
		}
	}

	// Reload-during-runtime wiring: ApplySnapshot on every config swap.
	if a.cfgHolder != nil && a.apiServer != nil {
		applyCh := make(chan config.Snapshot, 1)
		a.cfgHolder.RegisterListener(applyCh)

		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case snap := <-applyCh:
					a.apiServer.ApplySnapshot(snap)
					if err := log.SetLevel(snap.App.LogLevel); err != nil {
						a.logger.Warn().
							Err(err).
							Str("level", snap.App.LogLevel).
							Str("event", "config.log_level_invalid").
							Msg("reloaded log level not applied")
					}
				}
			}
		})
	}

	// SIGHUP trigger for manual reload.
	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.cfgHolder.Reload(context.Background()); err != nil {
						a.logger.Warn().
							Err(err).
							Str("event", "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	// Catalog scan loop (owned by the daemon; stops via ctx).
	if a.scanner != nil && a.scanInterval > 0 {
		g.Go(func() error {
			a.scanner.RunLoop(ctx, a.scanInterval, a.watcher)
			return nil
		})
	}

	// Main server lifecycle.
	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
