// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration

	// MaxHeaderBytes caps the bytes the server reads parsing request headers
	MaxHeaderBytes int

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown
	ShutdownTimeout time.Duration
}

const (
	defaultMaxHeaderBytes  = 1 << 20 // 1 MB
	defaultShutdownTimeout = 30 * time.Second
	minShutdownTimeout     = 3 * time.Second
)

// ServerConfigFrom derives the HTTP server settings from a loaded
// application config. Zero or negative timeouts fall back to the
// validated defaults so a hand-edited file cannot produce a server
// that hangs forever or rejects every request.
func ServerConfigFrom(cfg AppConfig) ServerConfig {
	out := ServerConfig{
		ListenAddr:      cfg.Listen,
		ReadTimeout:     cfg.APIReadTimeout,
		WriteTimeout:    cfg.APIWriteTimeout,
		IdleTimeout:     cfg.APIIdleTimeout,
		MaxHeaderBytes:  defaultMaxHeaderBytes,
		ShutdownTimeout: defaultShutdownTimeout,
	}

	def := Defaults()
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = def.APIReadTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = def.APIWriteTimeout
	}
	if out.IdleTimeout <= 0 {
		out.IdleTimeout = def.APIIdleTimeout
	}
	if out.ShutdownTimeout < minShutdownTimeout {
		out.ShutdownTimeout = minShutdownTimeout
	}
	return out
}
