// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Wrapper methods for mechanical connection tracking

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envStringSlice(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseStringSlice(key, defaultVal)
}

func (l *Loader) envIntSlice(key string, defaultVal []int) []int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseIntSlice(key, defaultVal)
}

func (l *Loader) envLookup(key string) (string, bool) {
	l.ConsumedEnvKeys[key] = struct{}{}
	return os.LookupEnv(key)
}

// Load loads configuration with precedence: ENV > File > Defaults
// It enforces Strict Validated Order: Parse File (Strict) -> Apply Env -> Validate
func (l *Loader) Load() (AppConfig, error) {
	// 1. Set defaults
	cfg := Defaults()

	// 2. Load from file (if provided)
	if l.configPath != "" {
		fileCfg, err := loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFile(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	// 3. Override with environment variables (highest priority)
	l.applyEnv(&cfg)

	// SAFETY: Ensure DataDir is absolute to prevent path traversal/platform errors
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}

	// 4. Paths not explicitly configured live under DataDir
	if cfg.RecordingsRoot == "" {
		cfg.RecordingsRoot = filepath.Join(cfg.DataDir, "recordings")
	}
	if cfg.ResumeDir == "" {
		cfg.ResumeDir = filepath.Join(cfg.DataDir, "resume")
	}
	if cfg.CatalogDB == "" {
		cfg.CatalogDB = filepath.Join(cfg.DataDir, "catalog.db")
	}

	// 5. Version from binary
	cfg.Version = l.version

	// 6. Validate final configuration
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (l *Loader) applyEnv(cfg *AppConfig) {
	cfg.Listen = l.envString("REC2G_LISTEN", cfg.Listen)
	// Explicit empty disables the metrics listener, so plain ParseString
	// semantics (empty means unset) do not apply here.
	if v, ok := l.envLookup("REC2G_METRICS_LISTEN"); ok {
		cfg.MetricsListen = v
	}
	cfg.DataDir = l.envString("REC2G_DATA_DIR", cfg.DataDir)
	cfg.LogLevel = l.envString("REC2G_LOG_LEVEL", cfg.LogLevel)

	cfg.Source = l.envString("REC2G_SOURCE", cfg.Source)
	cfg.RecordingsRoot = l.envString("REC2G_RECORDINGS_ROOT", cfg.RecordingsRoot)
	cfg.UpstreamBase = l.envString("REC2G_UPSTREAM_BASE", cfg.UpstreamBase)
	cfg.UpstreamToken = l.envString("REC2G_UPSTREAM_TOKEN", cfg.UpstreamToken)
	cfg.OutboundAllowHosts = l.envStringSlice("REC2G_OUTBOUND_ALLOW_HOSTS", cfg.OutboundAllowHosts)
	cfg.OutboundAllowPorts = l.envIntSlice("REC2G_OUTBOUND_ALLOW_PORTS", cfg.OutboundAllowPorts)
	cfg.OutboundAllowSchemes = l.envStringSlice("REC2G_OUTBOUND_ALLOW_SCHEMES", cfg.OutboundAllowSchemes)

	cfg.Cache = l.envString("REC2G_CACHE", cfg.Cache)
	cfg.CacheTTL = l.envDuration("REC2G_CACHE_TTL", cfg.CacheTTL)
	cfg.RedisAddr = l.envString("REC2G_REDIS_ADDR", cfg.RedisAddr)

	cfg.ResumeDir = l.envString("REC2G_RESUME_DIR", cfg.ResumeDir)
	cfg.ResumeTTL = l.envDuration("REC2G_RESUME_TTL", cfg.ResumeTTL)

	cfg.CatalogDB = l.envString("REC2G_CATALOG_DB", cfg.CatalogDB)
	cfg.ScanInterval = l.envDuration("REC2G_SCAN_INTERVAL", cfg.ScanInterval)

	cfg.ExportDir = l.envString("REC2G_EXPORT_DIR", cfg.ExportDir)

	cfg.MaxPlaybacks = l.envInt("REC2G_MAX_PLAYBACKS", cfg.MaxPlaybacks)
	cfg.SessionTTL = l.envDuration("REC2G_SESSION_TTL", cfg.SessionTTL)
	cfg.RateRPS = l.envFloat("REC2G_RATE_RPS", cfg.RateRPS)
	cfg.RateBurst = l.envInt("REC2G_RATE_BURST", cfg.RateBurst)

	cfg.AllowedOrigins = l.envStringSlice("REC2G_ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.TrustedProxies = l.envStringSlice("REC2G_TRUSTED_PROXIES", cfg.TrustedProxies)

	cfg.APIReadTimeout = l.envDuration("REC2G_API_READ_TIMEOUT", cfg.APIReadTimeout)
	cfg.APIWriteTimeout = l.envDuration("REC2G_API_WRITE_TIMEOUT", cfg.APIWriteTimeout)
	cfg.APIIdleTimeout = l.envDuration("REC2G_API_IDLE_TIMEOUT", cfg.APIIdleTimeout)

	cfg.OTELEnabled = l.envBool("REC2G_OTEL_ENABLED", cfg.OTELEnabled)
	cfg.OTELEndpoint = l.envString("REC2G_OTEL_ENDPOINT", cfg.OTELEndpoint)
	cfg.OTELProtocol = l.envString("REC2G_OTEL_PROTOCOL", cfg.OTELProtocol)
	cfg.OTELSampleRate = l.envFloat("REC2G_OTEL_SAMPLE_RATE", cfg.OTELSampleRate)
}
