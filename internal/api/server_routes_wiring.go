// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/rec2g/internal/api/middleware"
)

func (s *Server) newRouter() chi.Router {
	return middleware.NewRouter(middleware.StackConfig{
		EnableCORS:     true,
		AllowedOrigins: s.cfg.AllowedOrigins,

		EnableSecurityHeaders: true,
		CSP:                   middleware.DefaultCSP,

		EnableMetrics:  true,
		TracingService: "rec2g-api",
		EnableLogging:  true,

		EnableRateLimit: true,
	})
}

func (s *Server) registerPublicRoutes(r chi.Router) {
	r.Get("/healthz", s.healthManager.ServeHealth)
	r.Get("/readyz", s.healthManager.ServeReady)
}

// registerPlaybackRoutes mounts the playback lifecycle. The start route
// takes a recording session id and the instance routes take a playback
// id; both occupy the same path segment, so they share the {id}
// wildcard and each handler interprets it.
func (s *Server) registerPlaybackRoutes(r chi.Router) {
	r.Route("/api/playback", func(r chi.Router) {
		r.Post("/{id}", s.handlePlaybackStart)
		r.Get("/{id}", s.handlePlaybackStatus)
		r.Delete("/{id}", s.handlePlaybackClose)
		r.Post("/{id}/advance", s.handlePlaybackAdvance)
		r.Get("/{id}/cast", s.handlePlaybackCast)
		r.Head("/{id}/cast", s.handlePlaybackCast)
		r.Post("/{id}/export", s.handlePlaybackExport)
		r.Get("/{id}/feed", s.handlePlaybackFeed)
		r.Get("/{id}/segments/{index}", s.handlePlaybackSegment)
		r.Head("/{id}/segments/{index}", s.handlePlaybackSegment)
	})
}

func (s *Server) registerCatalogRoutes(r chi.Router) {
	r.Get("/api/sessions", s.handleSessionsList)
	r.Get("/api/sessions/{sessionID}", s.handleSessionGet)
}

func (s *Server) registerOperatorRoutes(r chi.Router) {
	r.Post("/internal/config/reload", s.handleConfigReload)
}
