// SPDX-License-Identifier: MIT

// Package health provides health and readiness check functionality for production deployments.
// It supports Docker HEALTHCHECK and Kubernetes probes with detailed component status.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ManuGH/rec2g/internal/log"
)

// checkTimeout bounds a single component probe so a slow dependency
// cannot stall the probe endpoints.
const checkTimeout = 2 * time.Second

// Status represents the overall health/readiness status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component health check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse represents the full health check response
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Uptime    int64                  `json:"uptime"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Checker defines the interface for health checks
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager manages health and readiness checks
type Manager struct {
	version   string
	startTime time.Time
	checkers  []Checker
}

// NewManager creates a new health check manager
func NewManager(version string) *Manager {
	return &Manager{
		version:   version,
		startTime: time.Now(),
		checkers:  make([]Checker, 0),
	}
}

// RegisterChecker adds a health checker to the manager
func (m *Manager) RegisterChecker(checker Checker) {
	m.checkers = append(m.checkers, checker)
}

// Health performs a health check (liveness probe)
// Returns 200 if the process is alive, regardless of service state
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Uptime:    int64(time.Since(m.startTime).Seconds()),
		Timestamp: time.Now(),
	}

	// If verbose, include component checks
	if verbose && len(m.checkers) > 0 {
		resp.Checks = make(map[string]CheckResult)
		hasUnhealthy := false
		hasDegraded := false

		for _, checker := range m.checkers {
			result := checker.Check(ctx)
			resp.Checks[checker.Name()] = result

			switch result.Status {
			case StatusUnhealthy:
				hasUnhealthy = true
			case StatusDegraded:
				hasDegraded = true
			}
		}

		// Overall status based on components
		if hasUnhealthy {
			resp.Status = StatusUnhealthy
		} else if hasDegraded {
			resp.Status = StatusDegraded
		}
	}

	return resp
}

// Ready performs a readiness check (readiness probe)
// Returns 200 if services are initialized and ready to serve traffic
func (m *Manager) Ready(ctx context.Context, _ bool) ReadinessResponse {
	resp := ReadinessResponse{
		Ready:     true,
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	}

	if len(m.checkers) == 0 {
		// No checkers registered - consider ready
		return resp
	}

	resp.Checks = make(map[string]CheckResult)
	hasUnhealthy := false
	hasDegraded := false

	for _, checker := range m.checkers {
		result := checker.Check(ctx)
		resp.Checks[checker.Name()] = result

		switch result.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
			resp.Ready = false
		case StatusDegraded:
			hasDegraded = true
		}
	}

	// Overall status
	if hasUnhealthy {
		resp.Status = StatusUnhealthy
	} else if hasDegraded {
		resp.Status = StatusDegraded
	}

	return resp
}

// ServeHealth handles HTTP health check requests
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")
	verbose := r.URL.Query().Get("verbose") == "true"

	resp := m.Health(r.Context(), verbose)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK) // Always 200 for liveness

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "health.encode_error").Msg("failed to encode health response")
	}

	logger.Debug().
		Str("event", "health.checked").
		Str("status", string(resp.Status)).
		Bool("verbose", verbose).
		Msg("health check performed")
}

// ServeReady handles HTTP readiness check requests
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")
	verbose := r.URL.Query().Get("verbose") == "true"

	resp := m.Ready(r.Context(), verbose)

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "readiness.encode_error").Msg("failed to encode readiness response")
	}

	logger.Debug().
		Str("event", "readiness.checked").
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Bool("verbose", verbose).
		Msg("readiness check performed")
}

// DirChecker checks if a directory exists and is readable
type DirChecker struct {
	name string
	path string
}

// NewDirChecker creates a checker for directory accessibility
func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{
		name: name,
		path: path,
	}
}

func (c *DirChecker) Name() string {
	return c.name
}

func (c *DirChecker) Check(ctx context.Context) CheckResult {
	if c.path == "" {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "not configured (optional)",
		}
	}

	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusUnhealthy,
				Error:   "directory not found",
				Message: c.path,
			}
		}
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  err.Error(),
		}
	}

	if !info.IsDir() {
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  "expected directory, got file",
		}
	}

	f, err := os.Open(c.path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   err.Error(),
			Message: "directory is not readable",
		}
	}
	defer func() { _ = f.Close() }()

	// Permission bits alone do not prove readability; list one entry.
	if _, err := f.Readdirnames(1); err != nil && err != io.EOF {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   err.Error(),
			Message: "directory is not readable",
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "directory readable",
	}
}

// PingChecker adapts a subsystem probe function. Advisory checkers
// report degraded instead of unhealthy so an optional subsystem cannot
// fail readiness.
type PingChecker struct {
	name     string
	advisory bool
	ping     func(context.Context) error
}

// NewPingChecker creates a checker around a probe function
func NewPingChecker(name string, advisory bool, ping func(context.Context) error) *PingChecker {
	return &PingChecker{
		name:     name,
		advisory: advisory,
		ping:     ping,
	}
}

func (c *PingChecker) Name() string {
	return c.name
}

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if c.ping == nil {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "not configured (optional)",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := c.ping(ctx); err != nil {
		status := StatusUnhealthy
		if c.advisory {
			status = StatusDegraded
		}
		return CheckResult{
			Status:  status,
			Error:   err.Error(),
			Message: "probe failed",
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "reachable",
	}
}

// UpstreamChecker probes the upstream recording service with a HEAD
// request. A transport failure is unhealthy; an HTTP error status means
// the upstream answered, which is reported degraded.
type UpstreamChecker struct {
	name   string
	base   string
	client *http.Client
}

// NewUpstreamChecker creates a checker for upstream reachability
func NewUpstreamChecker(name, base string) *UpstreamChecker {
	return &UpstreamChecker{
		name:   name,
		base:   base,
		client: &http.Client{Timeout: checkTimeout},
	}
}

func (c *UpstreamChecker) Name() string {
	return c.name
}

func (c *UpstreamChecker) Check(ctx context.Context) CheckResult {
	if c.base == "" {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "not configured (optional)",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.base, nil)
	if err != nil {
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  err.Error(),
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   err.Error(),
			Message: "upstream unreachable",
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("upstream returned %d", resp.StatusCode),
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "upstream reachable",
	}
}

// LastScanChecker checks the age and outcome of the last catalog scan.
// The catalog is advisory, so a stale or failed scan never reports
// unhealthy; listings go stale but playback keeps working.
type LastScanChecker struct {
	maxAge      time.Duration
	getLastScan func() (time.Time, string)
}

// NewLastScanChecker creates a checker for catalog scan freshness
func NewLastScanChecker(maxAge time.Duration, getLastScan func() (time.Time, string)) *LastScanChecker {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &LastScanChecker{
		maxAge:      maxAge,
		getLastScan: getLastScan,
	}
}

func (c *LastScanChecker) Name() string {
	return "catalog_scan"
}

func (c *LastScanChecker) Check(ctx context.Context) CheckResult {
	lastScan, lastError := c.getLastScan()

	if lastScan.IsZero() {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "no completed scan yet",
		}
	}

	if lastError != "" {
		return CheckResult{
			Status:  StatusDegraded,
			Error:   lastError,
			Message: "last scan failed",
		}
	}

	age := time.Since(lastScan)
	if age > c.maxAge {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("last successful scan over %s ago", c.maxAge),
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "last scan successful",
	}
}
