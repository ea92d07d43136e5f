// SPDX-License-Identifier: MIT
package api

import (
	"net/http"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		expected   string
	}{
		{
			name:       "direct connection",
			remoteAddr: "192.168.1.1:12345",
			headers:    map[string]string{},
			expected:   "192.168.1.1",
		},
		{
			name:       "invalid remote addr",
			remoteAddr: "invalid",
			headers:    map[string]string{},
			expected:   "invalid",
		},
		{
			name:       "forwarded header ignored from untrusted remote",
			remoteAddr: "203.0.113.7:55210",
			headers:    map[string]string{"X-Forwarded-For": "10.0.0.9"},
			expected:   "203.0.113.7",
		},
		{
			name:       "real ip header ignored from untrusted remote",
			remoteAddr: "203.0.113.7:55210",
			headers:    map[string]string{"X-Real-IP": "10.0.0.9"},
			expected:   "203.0.113.7",
		},
		{
			name:       "ipv6 remote",
			remoteAddr: "[2001:db8::1]:443",
			headers:    map[string]string{},
			expected:   "2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &http.Request{
				RemoteAddr: tt.remoteAddr,
				Header:     make(http.Header),
			}

			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			result := clientIP(req)
			if result != tt.expected {
				t.Errorf("Expected IP %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		allowed []string
		want    bool
	}{
		{"no origin header", "", nil, true},
		{"dev origin with empty list", "http://localhost:5173", nil, true},
		{"unknown origin with empty list", "https://evil.example", nil, false},
		{"wildcard", "https://anyone.example", []string{"*"}, true},
		{"exact match", "https://player.example", []string{"https://player.example"}, true},
		{"mismatch", "https://other.example", []string{"https://player.example"}, false},
		{"scheme mismatch", "http://player.example", []string{"https://player.example"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := originAllowed(tt.origin, tt.allowed); got != tt.want {
				t.Errorf("originAllowed(%q, %v) = %v, want %v", tt.origin, tt.allowed, got, tt.want)
			}
		})
	}
}
