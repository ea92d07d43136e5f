// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads and validates the rec2g runtime configuration.
// Precedence is environment over YAML file over built-in defaults; the
// merged result is validated before anything starts. A ConfigHolder
// watches the config file and republishes an immutable Snapshot when it
// changes.
package config

import "time"

// AppConfig is the effective configuration after defaults, file values,
// and environment overrides are merged.
type AppConfig struct {
	// Version is stamped by the loader from the build, never configured.
	Version string

	// Listen is the API listen address. MetricsListen serves Prometheus
	// metrics on a separate listener; empty disables it.
	Listen        string
	MetricsListen string

	DataDir  string
	LogLevel string

	// Source selects where recordings come from. "fs" reads session
	// directories under RecordingsRoot, "http" fetches manifests and
	// artifacts from the upstream gateway at UpstreamBase.
	Source         string
	RecordingsRoot string
	UpstreamBase   string
	UpstreamToken  string

	// Outbound allowlist for the http source. Host entries may be
	// hostnames, IP literals, or CIDR ranges.
	OutboundAllowHosts   []string
	OutboundAllowPorts   []int
	OutboundAllowSchemes []string

	// Cast document cache: "memory", "redis", or "none".
	Cache     string
	CacheTTL  time.Duration
	RedisAddr string

	// Resume position store. Empty ResumeDir derives from DataDir.
	ResumeDir string
	ResumeTTL time.Duration

	// Recording catalog. Empty CatalogDB derives from DataDir.
	CatalogDB    string
	ScanInterval time.Duration

	// Cast export target. Empty disables the export endpoint.
	ExportDir string

	// Playback admission.
	MaxPlaybacks int
	SessionTTL   time.Duration
	RateRPS      float64
	RateBurst    int

	AllowedOrigins []string
	TrustedProxies []string

	APIReadTimeout  time.Duration
	APIWriteTimeout time.Duration
	APIIdleTimeout  time.Duration

	OTELEnabled    bool
	OTELEndpoint   string
	OTELProtocol   string
	OTELSampleRate float64
}

// Defaults returns the built-in configuration. The values keep a bare
// `rec2g` start working against a local recordings directory.
func Defaults() AppConfig {
	return AppConfig{
		Listen:        ":8080",
		MetricsListen: ":9090",
		DataDir:       "./data",
		LogLevel:      "info",

		Source:               "fs",
		OutboundAllowSchemes: []string{"https"},
		OutboundAllowPorts:   []int{443},

		Cache:     "memory",
		CacheTTL:  15 * time.Minute,
		RedisAddr: "localhost:6379",

		ResumeTTL:    30 * 24 * time.Hour,
		ScanInterval: 5 * time.Minute,

		MaxPlaybacks: 64,
		SessionTTL:   30 * time.Minute,
		RateRPS:      5,
		RateBurst:    10,

		APIReadTimeout:  15 * time.Second,
		APIWriteTimeout: 30 * time.Second,
		APIIdleTimeout:  60 * time.Second,

		OTELEndpoint:   "localhost:4317",
		OTELProtocol:   "grpc",
		OTELSampleRate: 0.1,
	}
}
