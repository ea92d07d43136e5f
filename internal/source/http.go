// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/rec2g/internal/log"
	"github.com/ManuGH/rec2g/internal/metrics"
	"github.com/ManuGH/rec2g/internal/platform/httpx"
	platformnet "github.com/ManuGH/rec2g/internal/platform/net"
	"github.com/ManuGH/rec2g/internal/resilience"
	"github.com/ManuGH/rec2g/internal/telemetry"
)

// maxArtifactBytes bounds a single artifact pull. Recordings are
// decoded whole-buffer, so a runaway upstream response must not be
// allowed to exhaust memory first.
const maxArtifactBytes = 256 << 20

const manifestName = "recording.json"

// Breaker settings for the upstream circuit. Transport errors and 5xx
// responses count toward the threshold; 4xx responses do not.
const (
	breakerThreshold = 5
	breakerReset     = 30 * time.Second
)

// HTTP pulls manifests and artifacts from the upstream gateway's
// jrec endpoints.
type HTTP struct {
	base    string
	client  *http.Client
	token   string
	breaker *resilience.CircuitBreaker
}

// HTTPOptions configures the HTTP source.
type HTTPOptions struct {
	// BaseURL is the upstream gateway base, e.g. "https://gateway:7171".
	BaseURL string
	// Token is the default pull token, used when a request carries none.
	Token string
	// Timeout bounds one pull including the body read.
	Timeout time.Duration
	// Policy is the outbound allowlist the base URL must satisfy.
	Policy platformnet.Policy
}

// NewHTTP validates the base URL against the outbound policy and
// returns an HTTP source. Request URLs only ever append path segments
// under the validated base, so the check happens once here.
func NewHTTP(ctx context.Context, opts HTTPOptions) (*HTTP, error) {
	normalized, err := platformnet.ValidateURL(ctx, opts.BaseURL, opts.Policy)
	if err != nil {
		return nil, fmt.Errorf("upstream base url: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &HTTP{
		base:    strings.TrimRight(normalized, "/"),
		client:  httpx.NewDownloadClient(opts.Timeout),
		token:   opts.Token,
		breaker: resilience.NewCircuitBreaker("upstream", breakerThreshold, breakerReset),
	}, nil
}

// Manifest fetches and decodes {base}/jet/jrec/pull/{sessionID}/recording.json.
func (s *HTTP) Manifest(ctx context.Context, sessionID, token string) (*Manifest, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	body, err := s.pull(ctx, "manifest", sessionID, manifestName, token)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, &UpstreamError{Sentinel: ErrBadResponse, Operation: "manifest", Err: err}
	}
	if m.SessionID == "" {
		m.SessionID = sessionID
	}
	return &m, nil
}

// Artifact fetches {base}/jet/jrec/pull/{sessionID}/{fileName}.
func (s *HTTP) Artifact(ctx context.Context, sessionID, token, fileName string) ([]byte, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	if err := ValidateFileName(fileName); err != nil {
		return nil, err
	}
	return s.pull(ctx, "artifact", sessionID, fileName, token)
}

func (s *HTTP) pull(ctx context.Context, op, sessionID, fileName, token string) ([]byte, error) {
	rawURL := fmt.Sprintf("%s/jet/jrec/pull/%s/%s", s.base, sessionID, url.PathEscape(fileName))
	if token == "" {
		token = s.token
	}
	if token != "" {
		rawURL += "?token=" + url.QueryEscape(token)
	}

	tracer := telemetry.Tracer("rec2g.source")
	ctx, span := tracer.Start(ctx, "rec2g.source.pull", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(telemetry.SourceAttributes(op, fileName)...)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "*/*")

	start := time.Now()
	var resp *http.Response
	err = s.breaker.Execute(func() error {
		var doErr error
		resp, doErr = s.client.Do(req)
		if doErr != nil {
			return doErr
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return ErrUpstreamError
		}
		return nil
	})
	duration := time.Since(start)
	if resp == nil {
		metrics.RecordUpstreamRequest(op, 0, err, duration)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, resilience.ErrCircuitOpen) {
			logger := log.WithComponentFromContext(ctx, "source.http")
			logger.Warn().
				Str("event", "source.pull.circuit_open").
				Str("op", op).
				Msg("upstream circuit open, pull rejected")
		}
		return nil, &UpstreamError{Sentinel: ErrUpstreamUnavailable, Operation: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	route := fmt.Sprintf("/jet/jrec/pull/%s/%s", sessionID, fileName)
	span.SetAttributes(telemetry.HTTPAttributes(http.MethodGet, route, platformnet.SanitizeURL(rawURL), resp.StatusCode)...)

	if resp.StatusCode != http.StatusOK {
		mapped := mapStatus(resp.StatusCode)
		metrics.RecordUpstreamRequest(op, resp.StatusCode, mapped, duration)
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		logger := log.WithComponentFromContext(ctx, "source.http")
		logger.Warn().
			Str("event", "source.pull.status").
			Str("op", op).
			Str("url", platformnet.SanitizeURL(rawURL)).
			Int("status", resp.StatusCode).
			Msg("upstream pull failed")
		return nil, &UpstreamError{Sentinel: mapped, Operation: op, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes+1))
	if err != nil {
		metrics.RecordUpstreamRequest(op, resp.StatusCode, err, duration)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &UpstreamError{Sentinel: ErrUpstreamUnavailable, Operation: op, Status: resp.StatusCode, Err: err}
	}
	if len(body) > maxArtifactBytes {
		metrics.RecordUpstreamRequest(op, resp.StatusCode, ErrTooLarge, duration)
		span.SetStatus(codes.Error, "artifact too large")
		return nil, &UpstreamError{Sentinel: ErrTooLarge, Operation: op, Status: resp.StatusCode}
	}

	metrics.RecordUpstreamRequest(op, resp.StatusCode, nil, duration)
	span.SetStatus(codes.Ok, "")
	logger := log.WithComponentFromContext(ctx, "source.http")
	logger.Debug().
		Str("event", "source.pull.ok").
		Str("op", op).
		Str("url", platformnet.SanitizeURL(rawURL)).
		Int("bytes", len(body)).
		Dur("duration", duration).
		Msg("upstream pull complete")
	return body, nil
}

func mapStatus(status int) error {
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrForbidden
	case status >= http.StatusInternalServerError:
		return ErrUpstreamError
	default:
		return ErrBadResponse
	}
}
