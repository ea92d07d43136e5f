// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig mirrors the YAML config file. Pointer fields distinguish
// "absent" from "set to the zero value" so the file only overrides what
// it names; `metricsListen: ""` explicitly disables the metrics listener.
type FileConfig struct {
	Listen        *string `yaml:"listen,omitempty"`
	MetricsListen *string `yaml:"metricsListen,omitempty"`
	DataDir       *string `yaml:"dataDir,omitempty"`
	LogLevel      *string `yaml:"logLevel,omitempty"`

	Source   SourceFile   `yaml:"source,omitempty"`
	Cache    CacheFile    `yaml:"cache,omitempty"`
	Resume   ResumeFile   `yaml:"resume,omitempty"`
	Catalog  CatalogFile  `yaml:"catalog,omitempty"`
	Export   ExportFile   `yaml:"export,omitempty"`
	Playback PlaybackFile `yaml:"playback,omitempty"`
	HTTP     HTTPFile     `yaml:"http,omitempty"`
	OTEL     OTELFile     `yaml:"otel,omitempty"`
}

// SourceFile configures where recordings are read from.
type SourceFile struct {
	Mode           *string  `yaml:"mode,omitempty"` // "fs" or "http"
	RecordingsRoot *string  `yaml:"recordingsRoot,omitempty"`
	UpstreamBase   *string  `yaml:"upstreamBase,omitempty"`
	UpstreamToken  *string  `yaml:"upstreamToken,omitempty"`
	AllowHosts     []string `yaml:"allowHosts,omitempty"`
	AllowPorts     []int    `yaml:"allowPorts,omitempty"`
	AllowSchemes   []string `yaml:"allowSchemes,omitempty"`
}

// CacheFile configures the cast document cache.
type CacheFile struct {
	Backend   *string `yaml:"backend,omitempty"` // "memory", "redis", "none"
	TTL       *string `yaml:"ttl,omitempty"`     // e.g. "15m"
	RedisAddr *string `yaml:"redisAddr,omitempty"`
}

// ResumeFile configures the playback position store.
type ResumeFile struct {
	Dir *string `yaml:"dir,omitempty"`
	TTL *string `yaml:"ttl,omitempty"` // e.g. "720h"
}

// CatalogFile configures the recording catalog.
type CatalogFile struct {
	DB           *string `yaml:"db,omitempty"`
	ScanInterval *string `yaml:"scanInterval,omitempty"` // e.g. "5m"
}

// ExportFile configures cast export.
type ExportFile struct {
	Dir *string `yaml:"dir,omitempty"`
}

// PlaybackFile configures playback admission.
type PlaybackFile struct {
	MaxSessions *int     `yaml:"maxSessions,omitempty"`
	SessionTTL  *string  `yaml:"sessionTTL,omitempty"` // e.g. "30m"
	RateRPS     *float64 `yaml:"rateRPS,omitempty"`
	RateBurst   *int     `yaml:"rateBurst,omitempty"`
}

// HTTPFile configures the API server surface.
type HTTPFile struct {
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
	TrustedProxies []string `yaml:"trustedProxies,omitempty"`
	ReadTimeout    *string  `yaml:"readTimeout,omitempty"`  // e.g. "15s"
	WriteTimeout   *string  `yaml:"writeTimeout,omitempty"` // e.g. "30s"
	IdleTimeout    *string  `yaml:"idleTimeout,omitempty"`  // e.g. "60s"
}

// OTELFile configures trace export.
type OTELFile struct {
	Enabled    *bool    `yaml:"enabled,omitempty"`
	Endpoint   *string  `yaml:"endpoint,omitempty"`
	Protocol   *string  `yaml:"protocol,omitempty"` // "grpc" or "http"
	SampleRate *float64 `yaml:"sampleRate,omitempty"`
}

// loadFile reads and strictly parses the YAML config file. Unknown keys
// and multi-document files are rejected so typos fail loud instead of
// silently running on defaults. An empty file is a valid empty config.
func loadFile(path string) (FileConfig, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return FileConfig{}, fmt.Errorf("config file must be .yaml or .yml: %s", path)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var fc FileConfig
	if err := dec.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return FileConfig{}, fmt.Errorf("config file must contain a single document: %s", path)
	}
	return fc, nil
}

// mergeFile applies set file values onto cfg. Durations are written as
// Go duration strings in the file; a malformed one is an error rather
// than a silent fallback because the file is operator-authored.
func mergeFile(cfg *AppConfig, fc FileConfig) error {
	setString(&cfg.Listen, fc.Listen)
	setString(&cfg.MetricsListen, fc.MetricsListen)
	setString(&cfg.DataDir, fc.DataDir)
	setString(&cfg.LogLevel, fc.LogLevel)

	setString(&cfg.Source, fc.Source.Mode)
	setString(&cfg.RecordingsRoot, fc.Source.RecordingsRoot)
	setString(&cfg.UpstreamBase, fc.Source.UpstreamBase)
	setString(&cfg.UpstreamToken, fc.Source.UpstreamToken)
	if fc.Source.AllowHosts != nil {
		cfg.OutboundAllowHosts = fc.Source.AllowHosts
	}
	if fc.Source.AllowPorts != nil {
		cfg.OutboundAllowPorts = fc.Source.AllowPorts
	}
	if fc.Source.AllowSchemes != nil {
		cfg.OutboundAllowSchemes = fc.Source.AllowSchemes
	}

	setString(&cfg.Cache, fc.Cache.Backend)
	if err := setDuration(&cfg.CacheTTL, fc.Cache.TTL, "cache.ttl"); err != nil {
		return err
	}
	setString(&cfg.RedisAddr, fc.Cache.RedisAddr)

	setString(&cfg.ResumeDir, fc.Resume.Dir)
	if err := setDuration(&cfg.ResumeTTL, fc.Resume.TTL, "resume.ttl"); err != nil {
		return err
	}

	setString(&cfg.CatalogDB, fc.Catalog.DB)
	if err := setDuration(&cfg.ScanInterval, fc.Catalog.ScanInterval, "catalog.scanInterval"); err != nil {
		return err
	}

	setString(&cfg.ExportDir, fc.Export.Dir)

	if fc.Playback.MaxSessions != nil {
		cfg.MaxPlaybacks = *fc.Playback.MaxSessions
	}
	if err := setDuration(&cfg.SessionTTL, fc.Playback.SessionTTL, "playback.sessionTTL"); err != nil {
		return err
	}
	if fc.Playback.RateRPS != nil {
		cfg.RateRPS = *fc.Playback.RateRPS
	}
	if fc.Playback.RateBurst != nil {
		cfg.RateBurst = *fc.Playback.RateBurst
	}

	if fc.HTTP.AllowedOrigins != nil {
		cfg.AllowedOrigins = fc.HTTP.AllowedOrigins
	}
	if fc.HTTP.TrustedProxies != nil {
		cfg.TrustedProxies = fc.HTTP.TrustedProxies
	}
	if err := setDuration(&cfg.APIReadTimeout, fc.HTTP.ReadTimeout, "http.readTimeout"); err != nil {
		return err
	}
	if err := setDuration(&cfg.APIWriteTimeout, fc.HTTP.WriteTimeout, "http.writeTimeout"); err != nil {
		return err
	}
	if err := setDuration(&cfg.APIIdleTimeout, fc.HTTP.IdleTimeout, "http.idleTimeout"); err != nil {
		return err
	}

	if fc.OTEL.Enabled != nil {
		cfg.OTELEnabled = *fc.OTEL.Enabled
	}
	setString(&cfg.OTELEndpoint, fc.OTEL.Endpoint)
	setString(&cfg.OTELProtocol, fc.OTEL.Protocol)
	if fc.OTEL.SampleRate != nil {
		cfg.OTELSampleRate = *fc.OTEL.SampleRate
	}

	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string, field string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(*src))
	if err != nil {
		return fmt.Errorf("invalid duration for %s: %q", field, *src)
	}
	*dst = d
	return nil
}
