// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api provides HTTP server functionality for the rec2g application.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/ManuGH/rec2g/internal/catalog"
	"github.com/ManuGH/rec2g/internal/config"
	"github.com/ManuGH/rec2g/internal/export"
	"github.com/ManuGH/rec2g/internal/health"
	"github.com/ManuGH/rec2g/internal/player"
	"github.com/ManuGH/rec2g/internal/ratelimit"
	"github.com/ManuGH/rec2g/internal/source"
)

// Server is the HTTP API server for rec2g. It owns no playback state
// itself; every handler works against the dispatcher and the stores.
type Server struct {
	mu           sync.RWMutex
	cfg          config.AppConfig
	snap         config.Snapshot
	configHolder ConfigHolder

	dispatcher *player.Dispatcher
	src        source.Source
	fsSource   *source.FS // non-nil in fs mode; enables direct segment serving
	catalog    *catalog.Store
	exporter   *export.Exporter
	limiter    *ratelimit.Limiter

	healthManager *health.Manager
}

// Deps carries the server's collaborators. Dispatcher and Source are
// required; the rest degrade to disabled endpoints when nil.
type Deps struct {
	Dispatcher *player.Dispatcher
	Source     source.Source
	FS         *source.FS // optional: local artifact paths for range serving
	Catalog    *catalog.Store
	Exporter   *export.Exporter
	Limiter    *ratelimit.Limiter
	Health     *health.Manager
	Holder     ConfigHolder
}

// ConfigHolder allows hot configuration reloading without import cycles.
// Implemented by config.ConfigHolder.
type ConfigHolder interface {
	Get() config.Snapshot
	Reload(ctx context.Context) error
}

// New creates the API server over its collaborators.
func New(cfg config.AppConfig, deps Deps) (*Server, error) {
	if deps.Dispatcher == nil {
		return nil, errors.New("api: dispatcher is required")
	}
	if deps.Source == nil {
		return nil, errors.New("api: source is required")
	}

	SetTrustedProxies(cfg.TrustedProxies)

	hm := deps.Health
	if hm == nil {
		hm = health.NewManager(cfg.Version)
	}

	s := &Server{
		cfg:           cfg,
		snap:          config.BuildSnapshot(cfg),
		configHolder:  deps.Holder,
		dispatcher:    deps.Dispatcher,
		src:           deps.Source,
		fsSource:      deps.FS,
		catalog:       deps.Catalog,
		exporter:      deps.Exporter,
		limiter:       deps.Limiter,
		healthManager: hm,
	}
	return s, nil
}

// Handler returns the configured HTTP handler with all routes and middleware applied.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// currentConfig returns the live config for handlers.
func (s *Server) currentConfig() config.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}
