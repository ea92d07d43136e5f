// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ManuGH/rec2g/internal/config"
	"github.com/ManuGH/rec2g/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment and dependencies before starting the server.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("Running pre-flight startup checks...")

	// 1. Data Directory Permissions
	if err := checkDataDir(logger, cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}

	// 2. Targeted Validations
	if err := checkTargetedValidations(logger, cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger.Info().Msg("✅ All startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	// Check if directory exists
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	// Check write permissions by creating a temp file
	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("✓ Data directory is writable")
	return nil
}

// checkTargetedValidations performs security and runtime-critical validations
func checkTargetedValidations(logger zerolog.Logger, cfg config.AppConfig) error {
	// a. Listen Addresses (Parseable)
	for _, l := range []struct{ name, addr string }{
		{"listen", cfg.Listen},
		{"metricsListen", cfg.MetricsListen},
	} {
		if l.addr == "" {
			continue
		}
		_, port, err := net.SplitHostPort(l.addr)
		if err != nil {
			return fmt.Errorf("invalid %s address %q: %w", l.name, l.addr, err)
		}
		portNum, err := strconv.Atoi(port)
		if err != nil || portNum < 0 || portNum > 65535 {
			return fmt.Errorf("invalid %s port %q in %q", l.name, port, l.addr)
		}
		logger.Info().Str("addr", l.addr).Str("listener", l.name).Msg("✓ Listen address is valid")
	}

	// b. Source Mode
	switch cfg.Source {
	case "http":
		u, err := url.Parse(cfg.UpstreamBase)
		if err != nil {
			return fmt.Errorf("invalid REC2G_UPSTREAM_BASE URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("REC2G_UPSTREAM_BASE scheme must be http or https, got: %s", u.Scheme)
		}
		logger.Info().Str("url", cfg.UpstreamBase).Msg("✓ Upstream base URL is valid")
	default:
		if cfg.RecordingsRoot == "" {
			return fmt.Errorf("recordings root path cannot be empty")
		}
		if !filepath.IsAbs(cfg.RecordingsRoot) {
			return fmt.Errorf("recordings root must be an absolute path: %s", cfg.RecordingsRoot)
		}
		// MkdirAll returns nil if exists
		if err := os.MkdirAll(cfg.RecordingsRoot, 0750); err != nil {
			return fmt.Errorf("failed to ensure recordings root (%s): %w", cfg.RecordingsRoot, err)
		}
		logger.Info().Str("path", cfg.RecordingsRoot).Msg("✓ Recordings root validated")
	}

	// c. Store Directories (Ensure they exist before stores open)
	stores := []struct{ name, path string }{
		{"resume", cfg.ResumeDir},
		{"catalog", filepath.Dir(cfg.CatalogDB)},
		{"export", cfg.ExportDir},
	}
	count := 0
	for _, s := range stores {
		if s.path == "" {
			continue
		}
		if err := os.MkdirAll(s.path, 0750); err != nil {
			return fmt.Errorf("failed to ensure %s directory (%s): %w", s.name, s.path, err)
		}
		count++
	}
	logger.Info().Int("count", count).Msg("✓ Store directories validated")

	// d. Persistence safety
	tempDir := filepath.Clean(os.TempDir())
	dataDir := filepath.Clean(cfg.DataDir)
	if tempDir != "." && (dataDir == tempDir || strings.HasPrefix(dataDir, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str("data_dir", cfg.DataDir).
			Msg("data directory is under temp; resume positions and the catalog may be lost on reboot")
	}

	return nil
}
