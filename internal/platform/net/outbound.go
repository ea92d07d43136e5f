// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package net guards outbound HTTP(S) access to the upstream gateway.
// Every base URL the recording source talks to must pass the configured
// allowlist; loopback, link-local, and multicast targets are blocked
// unless explicitly allowed by CIDR.
package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrOutboundDisabled indicates outbound HTTP(S) access is disabled by policy.
	ErrOutboundDisabled = errors.New("outbound http(s) disabled")
	// ErrOutboundNotAllowed indicates the URL did not match the allowlist.
	ErrOutboundNotAllowed = errors.New("outbound url not allowed")
)

// Allowlist defines the allowed outbound URL components.
type Allowlist struct {
	Hosts   []string
	CIDRs   []string
	Ports   []int
	Schemes []string
}

// Policy defines the outbound access policy. The zero value denies
// every URL.
type Policy struct {
	Enabled bool
	Allow   Allowlist
}

// NormalizeHost validates and normalizes a host for comparison. IDNA
// hostnames fold to their ASCII form, IP literals to their canonical text.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	for _, part := range []struct{ needle, what string }{
		{"://", "scheme"},
		{"/", "path"},
		{"@", "userinfo"},
	} {
		if strings.Contains(host, part.needle) {
			return "", fmt.Errorf("host must not include %s: %s", part.what, raw)
		}
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return "", fmt.Errorf("host must not include port: %s", raw)
	}
	if strings.Contains(host, "%") {
		return "", fmt.Errorf("host must not include zone: %s", raw)
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

// ValidateURL verifies a URL against the outbound policy and returns a
// normalized URL string. Hostnames are resolved here so targets in
// blocked ranges are rejected before any request is made.
func ValidateURL(ctx context.Context, raw string, policy Policy) (string, error) {
	if !policy.Enabled {
		return "", ErrOutboundDisabled
	}

	u, err := parseOutbound(raw)
	if err != nil {
		return "", err
	}

	scheme := strings.ToLower(u.Scheme)
	if !schemeAllowed(policy.Allow.Schemes, scheme) {
		return "", fmt.Errorf("scheme %q not allowed", scheme)
	}

	port, err := effectivePort(u, scheme)
	if err != nil {
		return "", err
	}
	if !portAllowed(policy.Allow.Ports, port) {
		return "", fmt.Errorf("port %d not allowed", port)
	}

	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return "", err
	}

	allowed, err := compileAllowlist(policy.Allow)
	if err != nil {
		return "", err
	}

	ips, err := resolveHost(ctx, host)
	if err != nil {
		return "", err
	}

	_, hostAllowed := allowed.hosts[host]
	ipAllowed := false
	for _, ip := range ips {
		inCIDR := allowed.containsIP(ip)
		if blockedIP(ip) && !inCIDR {
			return "", fmt.Errorf("blocked ip %s", ip.String())
		}
		if inCIDR {
			ipAllowed = true
		}
	}
	if !hostAllowed && !ipAllowed {
		return "", ErrOutboundNotAllowed
	}

	u.Host = joinHostPort(host, u.Port())
	return u.String(), nil
}

func parseOutbound(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("outbound url empty")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	switch {
	case u.Scheme == "":
		return nil, fmt.Errorf("missing url scheme")
	case u.Host == "":
		return nil, fmt.Errorf("missing url host")
	case u.User != nil:
		return nil, fmt.Errorf("userinfo not allowed")
	case u.Fragment != "":
		return nil, fmt.Errorf("fragments not allowed")
	}
	return u, nil
}

func schemeAllowed(allowed []string, scheme string) bool {
	for _, s := range allowed {
		if strings.EqualFold(strings.TrimSpace(s), scheme) {
			return true
		}
	}
	return false
}

func portAllowed(allowed []int, port int) bool {
	for _, p := range allowed {
		if p == port {
			return true
		}
	}
	return false
}

func effectivePort(u *url.URL, scheme string) (int, error) {
	if u.Port() == "" {
		switch scheme {
		case "http":
			return 80, nil
		case "https":
			return 443, nil
		default:
			return 0, fmt.Errorf("unknown scheme %q", scheme)
		}
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", u.Port(), err)
	}
	return port, nil
}

type compiledAllowlist struct {
	hosts map[string]struct{}
	cidrs []*net.IPNet
}

func compileAllowlist(allow Allowlist) (*compiledAllowlist, error) {
	c := &compiledAllowlist{hosts: make(map[string]struct{})}
	for _, host := range allow.Hosts {
		normalized, err := NormalizeHost(host)
		if err != nil {
			return nil, err
		}
		c.hosts[normalized] = struct{}{}
	}
	for _, entry := range allow.CIDRs {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if ip, ipnet, err := net.ParseCIDR(entry); err == nil {
			ipnet.IP = ip
			c.cidrs = append(c.cidrs, ipnet)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("invalid CIDR or IP: %s", entry)
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		c.cidrs = append(c.cidrs, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return c, nil
}

func (c *compiledAllowlist) containsIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range c.cidrs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func resolveHost(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve host %q: %w", host, err)
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		if addr.IP != nil {
			ips = append(ips, addr.IP)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("resolve host %q: no addresses", host)
	}
	return ips, nil
}

func blockedIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	return ip.IsLoopback() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast()
}

func joinHostPort(host, port string) string {
	if port == "" {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, port)
}
