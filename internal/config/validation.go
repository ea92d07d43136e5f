// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"net"
	"path/filepath"
	"strings"

	"github.com/ManuGH/rec2g/internal/validate"
)

// Validate validates a AppConfig using the centralized validation package
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.NotEmpty("Listen", cfg.Listen)
	if _, err := validate.ParseLogLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		v.AddError("LogLevel", err.Error(), cfg.LogLevel)
	}
	v.Directory("DataDir", cfg.DataDir, false)

	v.OneOf("Source", cfg.Source, []string{"fs", "http"})
	switch cfg.Source {
	case "fs":
		v.Directory("RecordingsRoot", cfg.RecordingsRoot, false)
	case "http":
		v.URL("UpstreamBase", cfg.UpstreamBase, []string{"http", "https"})
		for _, p := range cfg.OutboundAllowPorts {
			v.Port("OutboundAllowPorts", p)
		}
		for _, s := range cfg.OutboundAllowSchemes {
			v.OneOf("OutboundAllowSchemes", strings.ToLower(strings.TrimSpace(s)), []string{"http", "https"})
		}
	}

	v.OneOf("Cache", cfg.Cache, []string{"memory", "redis", "none"})
	if cfg.Cache == "redis" {
		v.NotEmpty("RedisAddr", cfg.RedisAddr)
	}
	if cfg.Cache != "none" && cfg.CacheTTL <= 0 {
		v.AddError("CacheTTL", "must be positive", cfg.CacheTTL)
	}

	// Stores must be writable before anything opens them (Fail Fast)
	v.WritableDirectory("ResumeDir", cfg.ResumeDir, false)
	v.WritableDirectory("CatalogDBDir", filepath.Dir(cfg.CatalogDB), false)
	if strings.TrimSpace(cfg.ExportDir) != "" {
		v.WritableDirectory("ExportDir", cfg.ExportDir, false)
	}

	if cfg.ResumeTTL <= 0 {
		v.AddError("ResumeTTL", "must be positive", cfg.ResumeTTL)
	}
	if cfg.ScanInterval <= 0 {
		v.AddError("ScanInterval", "must be positive", cfg.ScanInterval)
	}
	if cfg.SessionTTL <= 0 {
		v.AddError("SessionTTL", "must be positive", cfg.SessionTTL)
	}

	v.Positive("MaxPlaybacks", cfg.MaxPlaybacks)
	if cfg.RateRPS <= 0 {
		v.AddError("RateRPS", "must be positive", cfg.RateRPS)
	}
	v.Positive("RateBurst", cfg.RateBurst)

	// Trusted proxy entries must be valid IPs or CIDRs
	for _, entry := range cfg.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if net.ParseIP(entry) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(entry); err == nil {
			continue
		}
		v.AddError("TrustedProxies", "must be a valid IP or CIDR", entry)
	}

	if cfg.OTELEnabled {
		v.NotEmpty("OTELEndpoint", cfg.OTELEndpoint)
		v.OneOf("OTELProtocol", cfg.OTELProtocol, []string{"grpc", "http"})
		if cfg.OTELSampleRate < 0 || cfg.OTELSampleRate > 1 {
			v.AddError("OTELSampleRate", "must be between 0 and 1", cfg.OTELSampleRate)
		}
	}

	if !v.IsValid() {
		return v.Err()
	}

	return nil
}
