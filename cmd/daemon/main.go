// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ManuGH/rec2g/internal/api"
	"github.com/ManuGH/rec2g/internal/cache"
	"github.com/ManuGH/rec2g/internal/catalog"
	"github.com/ManuGH/rec2g/internal/config"
	"github.com/ManuGH/rec2g/internal/daemon"
	"github.com/ManuGH/rec2g/internal/export"
	"github.com/ManuGH/rec2g/internal/health"
	reclog "github.com/ManuGH/rec2g/internal/log"
	"github.com/ManuGH/rec2g/internal/player"
	"github.com/ManuGH/rec2g/internal/ratelimit"
	"github.com/ManuGH/rec2g/internal/resume"
	"github.com/ManuGH/rec2g/internal/source"
	"github.com/ManuGH/rec2g/internal/telemetry"
	"github.com/ManuGH/rec2g/internal/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(runHealthcheckCLI(os.Args[2:]))
	}

	// Handle command-line flags
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	listenFlag := flag.String("listen", "", "API listen address (overrides REC2G_LISTEN)")
	dataFlag := flag.String("data", "", "data directory (overrides REC2G_DATA_DIR)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// Flags map onto their environment keys so precedence stays in one
	// place: flag > env > file > defaults, resolved by the loader.
	if strings.TrimSpace(*listenFlag) != "" {
		_ = os.Setenv("REC2G_LISTEN", *listenFlag)
	}
	if strings.TrimSpace(*dataFlag) != "" {
		_ = os.Setenv("REC2G_DATA_DIR", *dataFlag)
	}

	// Configure logger with safe defaults until config is loaded
	reclog.Configure(reclog.Config{
		Level:   "info",
		Service: "rec2g",
	})

	logger := reclog.WithComponent("daemon")

	// Create a context that listens for the interrupt signal from the OS
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Determine config path:
	// - Explicit via --config
	// - Otherwise auto-load ${REC2G_DATA_DIR}/config.yaml if it exists
	explicitConfigPath := strings.TrimSpace(*configPath)
	effectiveConfigPath := explicitConfigPath
	if effectiveConfigPath == "" {
		dataDir := strings.TrimSpace(config.ParseString("REC2G_DATA_DIR", "./data"))
		if dataDir == "" {
			dataDir = "./data"
		}
		autoPath := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectiveConfigPath = autoPath
		}
	}

	// Load configuration with precedence: ENV > File > Defaults
	loader := config.NewLoader(effectiveConfigPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	// Apply the loaded log level; the logger itself is already configured.
	if err := reclog.SetLevel(cfg.LogLevel); err != nil {
		logger.Warn().
			Err(err).
			Str("level", cfg.LogLevel).
			Msg("invalid log level in configuration, keeping info")
	}

	// Log config source
	if explicitConfigPath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", explicitConfigPath).
			Msg("loaded configuration from file")
	} else if effectiveConfigPath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file(auto)").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	// -------------------------------------------------------------------------
	// Pre-flight Checks (Fail Fast)
	// -------------------------------------------------------------------------
	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("Startup checks failed. Please verify configuration and permissions.")
	}
	// -------------------------------------------------------------------------

	serverCfg := config.ServerConfigFrom(cfg)

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", serverCfg.ListenAddr).
		Msg("starting rec2g")

	// Log key configuration
	if cfg.Source == "fs" {
		logger.Info().Msgf("→ Source: fs (root: %s)", cfg.RecordingsRoot)
	} else {
		logger.Info().Msgf("→ Source: http (upstream: %s, auth: %v)", maskURL(cfg.UpstreamBase), cfg.UpstreamToken != "")
	}
	switch cfg.Cache {
	case "redis":
		logger.Info().Msgf("→ Cache: redis (%s, ttl %s)", cfg.RedisAddr, cfg.CacheTTL)
	case "none":
		logger.Info().Msg("→ Cache: disabled")
	default:
		logger.Info().Msgf("→ Cache: memory (ttl %s)", cfg.CacheTTL)
	}
	logger.Info().Msgf("→ Resume: %s (ttl %s)", cfg.ResumeDir, cfg.ResumeTTL)
	logger.Info().Msgf("→ Catalog: %s (scan every %s)", cfg.CatalogDB, cfg.ScanInterval)
	if cfg.ExportDir != "" {
		logger.Info().Msgf("→ Export: %s", cfg.ExportDir)
	} else {
		logger.Info().Msg("→ Export: disabled")
	}
	logger.Info().Msgf("→ Playbacks: max %d (session ttl %s)", cfg.MaxPlaybacks, cfg.SessionTTL)
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)

	// Hot reload support: watch config file and allow SIGHUP/API-triggered reload.
	cfgHolderPath := effectiveConfigPath
	if cfgHolderPath == "" {
		cfgHolderPath = filepath.Join(cfg.DataDir, "config.yaml")
	}
	snap := config.BuildSnapshot(cfg)
	cfgHolder := config.NewConfigHolder(snap, config.NewLoader(cfgHolderPath, version.Version), cfgHolderPath)

	// Recording source
	var (
		src   source.Source
		fsSrc *source.FS
	)
	switch cfg.Source {
	case "http":
		httpSrc, err := source.NewHTTP(ctx, source.HTTPOptions{
			BaseURL: cfg.UpstreamBase,
			Token:   cfg.UpstreamToken,
			Policy:  snap.Runtime.Outbound,
		})
		if err != nil {
			logger.Fatal().
				Err(err).
				Str("event", "source.init_failed").
				Msg("failed to initialize upstream source")
		}
		src = httpSrc
	default:
		fsSrc, err = source.NewFS(cfg.RecordingsRoot)
		if err != nil {
			logger.Fatal().
				Err(err).
				Str("event", "source.init_failed").
				Str("root", cfg.RecordingsRoot).
				Msg("failed to open recordings root")
		}
		src = fsSrc
	}

	// Document cache
	var docCache cache.Cache
	switch cfg.Cache {
	case "redis":
		docCache, err = cache.NewRedisCache(cache.RedisConfig{Addr: cfg.RedisAddr}, reclog.WithComponent("cache"))
		if err != nil {
			logger.Fatal().
				Err(err).
				Str("event", "cache.init_failed").
				Str("addr", cfg.RedisAddr).
				Msg("failed to connect to redis")
		}
	case "none":
		docCache = cache.NewNoOpCache()
	default:
		docCache = cache.NewMemoryCache(5 * time.Minute)
	}

	// Resume position store
	resumeStore, err := resume.Open(cfg.ResumeDir, cfg.ResumeTTL)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "resume.open_failed").
			Str("dir", cfg.ResumeDir).
			Msg("failed to open resume store")
	}

	// Session catalog
	catalogStore, err := catalog.NewStore(cfg.CatalogDB)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "catalog.open_failed").
			Str("db", cfg.CatalogDB).
			Msg("failed to open catalog database")
	}

	// The scanner walks the local recordings root, so it only exists in fs mode.
	var (
		scanner *catalog.Scanner
		watcher *catalog.Watcher
	)
	if fsSrc != nil {
		scanner = catalog.NewScanner(catalogStore, fsSrc)
		watcher, err = catalog.NewWatcher(cfg.RecordingsRoot)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("event", "catalog.watcher_failed").
				Msg("recordings watcher unavailable, scans run on interval only")
			watcher = nil
		}
	}

	// Cast exporter
	var exporter *export.Exporter
	if cfg.ExportDir != "" {
		exporter = export.New(cfg.ExportDir)
	}

	// Playback start admission
	rlCfg := ratelimit.DefaultConfig()
	rlCfg.PerIPRate = rate.Limit(cfg.RateRPS)
	rlCfg.PerIPBurst = cfg.RateBurst
	limiter := ratelimit.New(rlCfg)

	// Playback dispatcher
	dispatcher, err := player.New(player.Config{
		Source:      src,
		Cache:       docCache,
		CacheTTL:    cfg.CacheTTL,
		Positions:   resumeStore,
		MaxSessions: cfg.MaxPlaybacks,
		SessionTTL:  cfg.SessionTTL,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "player.init_failed").
			Msg("failed to create playback dispatcher")
	}

	// Health and readiness checks
	hm := health.NewManager(cfg.Version)
	if fsSrc != nil {
		hm.RegisterChecker(health.NewPingChecker("recordings_root", false, fsSrc.HealthCheck))
	} else {
		hm.RegisterChecker(health.NewUpstreamChecker("upstream", cfg.UpstreamBase))
	}
	hm.RegisterChecker(health.NewPingChecker("catalog", true, catalogStore.HealthCheck))
	hm.RegisterChecker(health.NewPingChecker("resume_store", true, resumeStore.HealthCheck))
	if rc, ok := docCache.(*cache.RedisCache); ok {
		hm.RegisterChecker(health.NewPingChecker("cache_redis", true, rc.HealthCheck))
	}
	if scanner != nil {
		hm.RegisterChecker(health.NewLastScanChecker(3*cfg.ScanInterval, scanner.LastScan))
	}
	if cfg.ExportDir != "" {
		hm.RegisterChecker(health.NewDirChecker("export_dir", cfg.ExportDir))
	}

	// Tracing is best-effort: the daemon runs fine without a collector.
	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.OTELEnabled,
		ServiceName:    "rec2g",
		ServiceVersion: version.Version,
		Environment:    config.ParseString("REC2G_ENV", "production"),
		ExporterType:   cfg.OTELProtocol,
		Endpoint:       cfg.OTELEndpoint,
		SamplingRate:   cfg.OTELSampleRate,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Telemetry initialization failed, continuing without tracing")
		tp = nil
	}

	// Create API handler
	s, err := api.New(cfg, api.Deps{
		Dispatcher: dispatcher,
		Source:     src,
		FS:         fsSrc,
		Catalog:    catalogStore,
		Exporter:   exporter,
		Limiter:    limiter,
		Health:     hm,
		Holder:     cfgHolder,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "api.init_failed").
			Msg("failed to create API server")
	}

	// Build daemon dependencies
	deps := daemon.Deps{
		Logger:         logger,
		Config:         cfg,
		APIHandler:     s.Handler(),
		MetricsHandler: promhttp.Handler(),
		MetricsAddr:    strings.TrimSpace(cfg.MetricsListen),
	}

	// Create daemon manager
	mgr, err := daemon.NewManager(serverCfg, deps)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.creation.failed").
			Msg("failed to create daemon manager")
	}

	// Shutdown hooks run LIFO: playbacks drain into the stores before the
	// stores close, and telemetry flushes last.
	if tp != nil {
		mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	}
	mgr.RegisterShutdownHook("config_watcher", func(context.Context) error {
		cfgHolder.Stop()
		return nil
	})
	if closer, ok := docCache.(io.Closer); ok {
		mgr.RegisterShutdownHook("cache", func(context.Context) error {
			return closer.Close()
		})
	} else if stopper, ok := docCache.(interface{ Stop() }); ok {
		mgr.RegisterShutdownHook("cache", func(context.Context) error {
			stopper.Stop()
			return nil
		})
	}
	mgr.RegisterShutdownHook("resume_store", func(context.Context) error {
		return resumeStore.Close()
	})
	mgr.RegisterShutdownHook("catalog_store", func(context.Context) error {
		return catalogStore.Close()
	})
	if watcher != nil {
		mgr.RegisterShutdownHook("recordings_watcher", func(context.Context) error {
			return watcher.Close()
		})
	}
	mgr.RegisterShutdownHook("playbacks", func(hookCtx context.Context) error {
		dispatcher.Shutdown(hookCtx)
		return nil
	})

	// Initial catalog scan before the servers accept traffic, so the
	// session list is populated from the first request on.
	if scanner != nil {
		logger.Info().Msg("performing initial catalog scan")
		if _, err := scanner.Scan(ctx); err != nil {
			logger.Error().Err(err).Msg("initial catalog scan failed")
			logger.Warn().Msg("→ Session list will be empty until the next scheduled scan")
		} else {
			logger.Info().Msg("initial catalog scan completed")
		}
	}

	// Start daemon app (blocks until shutdown)
	app := daemon.NewApp(logger, mgr, cfgHolder, s)
	if scanner != nil {
		app.SetScanner(scanner, watcher, cfg.ScanInterval)
	}
	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.failed").
			Msg("daemon app failed")
	}

	logger.Info().Msg("server exiting")
}
