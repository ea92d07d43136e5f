// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ManuGH/rec2g/internal/log"
)

// ConfigHolder holds the effective Snapshot with atomic reloading.
// It provides thread-safe access to configuration and supports hot
// reloading from file or manual trigger via SIGHUP.
type ConfigHolder struct {
	mu         sync.RWMutex
	current    Snapshot
	loader     *Loader
	configPath string
	watcher    *fsnotify.Watcher
	logger     zerolog.Logger

	// Reload notifications
	reloadMu        sync.RWMutex
	reloadListeners []chan<- Snapshot
}

// NewConfigHolder creates a new configuration holder with initial snapshot.
func NewConfigHolder(initial Snapshot, loader *Loader, configPath string) *ConfigHolder {
	return &ConfigHolder{
		current:         initial,
		loader:          loader,
		configPath:      configPath,
		logger:          log.WithComponent("config"),
		reloadListeners: make([]chan<- Snapshot, 0),
	}
}

// Get returns the current snapshot (thread-safe read).
func (h *ConfigHolder) Get() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload reloads configuration from file and environment. Load validates
// the merged result, so either the full new config is valid and swapped
// in, or the old snapshot remains unchanged and an error is returned.
func (h *ConfigHolder) Reload(_ context.Context) error {
	h.logger.Info().Str("event", "config.reload_start").Msg("reloading configuration")

	newCfg, err := h.loader.Load()
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("event", "config.reload_failed").
			Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}

	snap := BuildSnapshot(newCfg)

	// Atomically swap configuration
	h.mu.Lock()
	oldSnap := h.current
	h.current = snap
	h.mu.Unlock()

	// Notify listeners of config change
	h.notifyListeners(snap)

	// Log configuration changes
	h.logChanges(oldSnap.App, snap.App)

	h.logger.Info().
		Str("event", "config.reload_success").
		Msg("configuration reloaded successfully")

	return nil
}

// StartWatcher starts watching the config file for changes.
// If configPath is empty, this is a no-op (config comes from ENV only).
func (h *ConfigHolder) StartWatcher(ctx context.Context) error {
	if h.configPath == "" {
		h.logger.Info().
			Str("event", "config.watcher_disabled").
			Msg("config file watcher disabled (using ENV-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	h.watcher = watcher

	// Add config file to watcher
	if err := watcher.Add(h.configPath); err != nil {
		_ = watcher.Close() // Ignore close error in error path
		return fmt.Errorf("watch config file: %w", err)
	}

	h.logger.Info().
		Str("event", "config.watcher_started").
		Str("path", h.configPath).
		Msg("watching config file for changes")

	// Start watcher goroutine
	go h.watchLoop(ctx)

	return nil
}

// watchLoop is the main file watcher loop.
func (h *ConfigHolder) watchLoop(ctx context.Context) {
	// Debounce timer to avoid multiple reloads for rapid file changes
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str("event", "config.watcher_stopped").Msg("config watcher stopped")
			if h.watcher != nil {
				_ = h.watcher.Close() // Ignore close error in error path
			}
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}

			// Watch for Write and Create events (covers vim, nano, echo)
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				h.logger.Debug().
					Str("event", "config.file_changed").
					Str("op", event.Op.String()).
					Msg("config file changed")

				// Debounce: reset timer on each event
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					if err := h.Reload(ctx); err != nil {
						h.logger.Error().
							Err(err).
							Str("event", "config.auto_reload_failed").
							Msg("automatic config reload failed")
					}
				})
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str("event", "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// Stop stops the config watcher (if running).
func (h *ConfigHolder) Stop() {
	if h.watcher != nil {
		_ = h.watcher.Close() // Ignore close error in error path
	}
}

// RegisterListener registers a channel to receive config reload notifications.
// The channel will receive the new snapshot whenever a reload succeeds.
// The caller is responsible for closing the channel.
func (h *ConfigHolder) RegisterListener(ch chan<- Snapshot) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
}

// notifyListeners sends the new snapshot to all registered listeners (non-blocking).
func (h *ConfigHolder) notifyListeners(snap Snapshot) {
	h.reloadMu.RLock()
	defer h.reloadMu.RUnlock()

	for _, ch := range h.reloadListeners {
		select {
		case ch <- snap:
		default:
			// Skip if channel is full (non-blocking send)
			h.logger.Warn().
				Str("event", "config.listener_skip").
				Msg("skipped notifying listener (channel full)")
		}
	}
}

// logChanges logs the differences between old and new configuration.
// Only the hot-reloadable fields take effect without a restart; changes
// to boot-only fields get a warning instead.
func (h *ConfigHolder) logChanges(old, newCfg AppConfig) {
	if old.LogLevel != newCfg.LogLevel {
		h.logger.Info().
			Str("old", old.LogLevel).
			Str("new", newCfg.LogLevel).
			Msg("config changed: LogLevel")
	}
	if old.CacheTTL != newCfg.CacheTTL {
		h.logger.Info().
			Dur("old", old.CacheTTL).
			Dur("new", newCfg.CacheTTL).
			Msg("config changed: CacheTTL")
	}
	if old.MaxPlaybacks != newCfg.MaxPlaybacks {
		h.logger.Info().
			Int("old", old.MaxPlaybacks).
			Int("new", newCfg.MaxPlaybacks).
			Msg("config changed: MaxPlaybacks")
	}
	if old.RateRPS != newCfg.RateRPS {
		h.logger.Info().
			Float64("old", old.RateRPS).
			Float64("new", newCfg.RateRPS).
			Msg("config changed: RateRPS")
	}
	if old.RateBurst != newCfg.RateBurst {
		h.logger.Info().
			Int("old", old.RateBurst).
			Int("new", newCfg.RateBurst).
			Msg("config changed: RateBurst")
	}
	if old.ScanInterval != newCfg.ScanInterval {
		h.logger.Info().
			Dur("old", old.ScanInterval).
			Dur("new", newCfg.ScanInterval).
			Msg("config changed: ScanInterval")
	}

	for _, field := range bootOnlyChanges(old, newCfg) {
		h.logger.Warn().
			Str("field", field).
			Msg("config changed: restart required to take effect")
	}
}

// bootOnlyChanges lists the boot-only fields that differ between the two
// configurations. These are wired into long-lived objects at startup, so
// a reload cannot apply them.
func bootOnlyChanges(old, newCfg AppConfig) []string {
	var changed []string
	for _, c := range []struct {
		field    string
		old, new string
	}{
		{"Listen", old.Listen, newCfg.Listen},
		{"MetricsListen", old.MetricsListen, newCfg.MetricsListen},
		{"DataDir", old.DataDir, newCfg.DataDir},
		{"Source", old.Source, newCfg.Source},
		{"RecordingsRoot", old.RecordingsRoot, newCfg.RecordingsRoot},
		{"UpstreamBase", old.UpstreamBase, newCfg.UpstreamBase},
		{"Cache", old.Cache, newCfg.Cache},
		{"RedisAddr", old.RedisAddr, newCfg.RedisAddr},
		{"ResumeDir", old.ResumeDir, newCfg.ResumeDir},
		{"CatalogDB", old.CatalogDB, newCfg.CatalogDB},
		{"ExportDir", old.ExportDir, newCfg.ExportDir},
	} {
		if c.old != c.new {
			changed = append(changed, c.field)
		}
	}
	return changed
}

// RequiresRestart reports whether any boot-only field differs between the
// two configurations.
func RequiresRestart(old, newCfg AppConfig) bool {
	return len(bootOnlyChanges(old, newCfg)) > 0
}
