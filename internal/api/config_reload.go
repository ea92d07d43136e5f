// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/ManuGH/rec2g/internal/config"
	"github.com/ManuGH/rec2g/internal/log"
)

func (s *Server) SetConfigHolder(holder ConfigHolder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configHolder = holder
}

// ApplySnapshot swaps the server onto a new configuration snapshot.
// Slice fields are copied so a holder-side mutation never reaches the
// config the handlers read.
func (s *Server) ApplySnapshot(snap config.Snapshot) {
	newCfg := snap.App
	newCfg.AllowedOrigins = copyStrings(snap.App.AllowedOrigins)
	newCfg.TrustedProxies = copyStrings(snap.App.TrustedProxies)
	newCfg.OutboundAllowHosts = copyStrings(snap.App.OutboundAllowHosts)
	newCfg.OutboundAllowSchemes = copyStrings(snap.App.OutboundAllowSchemes)
	if len(snap.App.OutboundAllowPorts) > 0 {
		ports := make([]int, len(snap.App.OutboundAllowPorts))
		copy(ports, snap.App.OutboundAllowPorts)
		newCfg.OutboundAllowPorts = ports
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = newCfg
	s.snap = snap
}

func (s *Server) handleConfigReload(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	holder := s.configHolder
	oldCfg := s.cfg
	s.mu.RUnlock()

	if holder == nil {
		writeError(w, http.StatusNotImplemented, "reload_unavailable", "config reload is not available")
		return
	}

	if err := holder.Reload(r.Context()); err != nil {
		log.WithComponentFromContext(r.Context(), "config").Warn().
			Err(err).
			Str("event", "config.reload_failed").
			Msg("config reload failed")
		writeError(w, http.StatusBadRequest, "reload_failed", "config reload failed validation")
		return
	}

	newSnap := holder.Get()
	s.ApplySnapshot(newSnap)

	writeJSON(w, http.StatusOK, struct {
		RestartRequired bool `json:"restart_required"`
	}{
		RestartRequired: config.RequiresRestart(oldCfg, newSnap.App),
	})
}

func copyStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
