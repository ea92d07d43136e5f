// SPDX-License-Identifier: MIT

package config

import (
	"net"
	"strings"

	platformnet "github.com/ManuGH/rec2g/internal/platform/net"
)

// Snapshot is the immutable, effective runtime configuration for rec2g.
// Holders swap the whole value on reload so readers never observe a
// partially applied config.
type Snapshot struct {
	App     AppConfig
	Runtime RuntimeSnapshot
}

// RuntimeSnapshot carries values derived from the validated AppConfig in
// the shape the runtime consumes them.
type RuntimeSnapshot struct {
	// Outbound is the compiled allowlist policy for the http source.
	// Disabled entirely in fs mode.
	Outbound platformnet.Policy

	MetricsEnabled bool
	ExportEnabled  bool
}

// BuildSnapshot builds an effective, immutable runtime snapshot from an already validated AppConfig.
func BuildSnapshot(app AppConfig) Snapshot {
	hosts, cidrs := splitHostEntries(app.OutboundAllowHosts)

	rt := RuntimeSnapshot{
		Outbound: platformnet.Policy{
			Enabled: app.Source == "http",
			Allow: platformnet.Allowlist{
				Hosts:   hosts,
				CIDRs:   cidrs,
				Ports:   app.OutboundAllowPorts,
				Schemes: app.OutboundAllowSchemes,
			},
		},
		MetricsEnabled: strings.TrimSpace(app.MetricsListen) != "",
		ExportEnabled:  strings.TrimSpace(app.ExportDir) != "",
	}

	return Snapshot{App: app, Runtime: rt}
}

// splitHostEntries sorts mixed allowlist entries into hostnames and
// address ranges. IP literals go to the CIDR side where matching needs
// no DNS lookup.
func splitHostEntries(entries []string) (hosts, cidrs []string) {
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			cidrs = append(cidrs, entry)
			continue
		}
		if net.ParseIP(entry) != nil {
			cidrs = append(cidrs, entry)
			continue
		}
		hosts = append(hosts, entry)
	}
	return hosts, cidrs
}
