// Package config loads the speaker's process configuration: the
// recognized options of spec.md §3 (my_as, router_id, next_hop_ip,
// default_local_pref, default_med, capabilities), the configured
// neighbor list, and the advertised prefix set.
//
// Grounded on _examples/pobradovic08-route-beacon-ri/internal/config's
// koanf.New(".") + file.Provider/yaml.Parser + env.Provider layering —
// the only repo in the pack that loads configuration from a file. That
// package unmarshals straight into its typed Config because every field
// is a string, int, or slice of strings; ours carries netip.Addr and
// message.NLRI, which koanf's default mapstructure decoder has no hook
// for, so Load unmarshals into an intermediate string-shaped fileConfig
// and converts it into the public Config afterward.
package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"bgpd/message"
	"bgpd/network"
)

// envPrefix namespaces environment variable overrides, per SPEC_FULL.md
// §4.6: BGPD_MY_AS, BGPD_NEIGHBORS__0__IP, and so on.
const envPrefix = "BGPD_"

// Capabilities mirrors spec.md §3's capabilities record.
type Capabilities struct {
	RouteRefreshPreStandard bool
	RouteRefresh            bool
	EnhancedRouteRefresh    bool
	Extended4ByteASN        bool
	Multiprotocol           []message.AddressFamily
}

// Neighbor is one configured peer, per spec.md §3.
type Neighbor struct {
	IP        netip.Addr
	ASNum     uint16
	HelloTime time.Duration
	HoldTime  time.Duration
}

// Config is the process configuration shape of spec.md §3, plus the
// supervisor-level fields SPEC_FULL.md §4.5 adds (listen address and
// the unconfigured-peer accept policy).
type Config struct {
	MyAS             uint16
	RouterID         netip.Addr
	NextHopIP        netip.Addr
	DefaultLocalPref uint32
	DefaultMED       uint32
	Capabilities     Capabilities
	Neighbors        []Neighbor
	Advertised       []message.NLRI

	ListenAddr                         string
	AcceptConnectionsUnconfiguredPeers bool
	MetricsListen                      string
}

// fileConfig is the koanf-tagged shape Load unmarshals the file/env
// layers into; every address is a plain string and every duration a
// plain integer count of seconds, so no custom mapstructure hook is
// required.
type fileConfig struct {
	MyAS             uint16   `koanf:"my_as"`
	RouterID         string   `koanf:"router_id"`
	NextHopIP        string   `koanf:"next_hop_ip"`
	DefaultLocalPref uint32   `koanf:"default_local_pref"`
	DefaultMED       uint32   `koanf:"default_med"`
	Capabilities     fileCaps `koanf:"capabilities"`
	Neighbors        []fileNeighbor `koanf:"neighbors"`
	Advertised       []string       `koanf:"advertised"`

	ListenAddr                         string `koanf:"listen_addr"`
	AcceptConnectionsUnconfiguredPeers bool   `koanf:"accept_connections_unconfigured_peers"`
	MetricsListen                      string `koanf:"metrics_listen"`
}

type fileCaps struct {
	RouteRefreshPreStandard bool     `koanf:"route_refresh_prestandard"`
	RouteRefresh            bool     `koanf:"route_refresh"`
	EnhancedRouteRefresh    bool     `koanf:"enhanced_route_refresh"`
	Extended4ByteASN        bool     `koanf:"extended_4byte_asn"`
	Multiprotocol           []string `koanf:"multiprotocol"`
}

type fileNeighbor struct {
	IP        string `koanf:"ip"`
	ASNum     uint16 `koanf:"as_num"`
	HelloTime int    `koanf:"hello_time"`
	HoldTime  int    `koanf:"hold_time"`
}

var addressFamilyByName = map[string]message.AddressFamily{
	"ipv4_unicast":   message.IPv4Unicast,
	"ipv4_multicast": message.IPv4Multicast,
	"ipv4_vpn":       message.IPv4VPN,
	"ipv6_unicast":   message.IPv6Unicast,
	"ipv6_multicast": message.IPv6Multicast,
	"ipv6_vpn":       message.IPv6VPN,
}

// Load reads path (if non-empty) as YAML, overlays BGPD_-prefixed
// environment variables, and returns the assembled Config. File-format
// validation stays out of scope per spec.md §1; this is a thin
// conversion pass, not a rule engine.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	fc := fileConfig{
		ListenAddr:    ":179",
		MetricsListen: ":9179",
	}
	if err := k.Unmarshal("", &fc); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	return fc.toConfig()
}

func (fc fileConfig) toConfig() (*Config, error) {
	cfg := &Config{
		MyAS:             fc.MyAS,
		DefaultLocalPref: fc.DefaultLocalPref,
		DefaultMED:       fc.DefaultMED,
		Capabilities: Capabilities{
			RouteRefreshPreStandard: fc.Capabilities.RouteRefreshPreStandard,
			RouteRefresh:            fc.Capabilities.RouteRefresh,
			EnhancedRouteRefresh:    fc.Capabilities.EnhancedRouteRefresh,
			Extended4ByteASN:        fc.Capabilities.Extended4ByteASN,
		},
		ListenAddr:                         fc.ListenAddr,
		AcceptConnectionsUnconfiguredPeers: fc.AcceptConnectionsUnconfiguredPeers,
		MetricsListen:                      fc.MetricsListen,
	}

	var err error
	if fc.RouterID != "" {
		if cfg.RouterID, err = netip.ParseAddr(fc.RouterID); err != nil {
			return nil, fmt.Errorf("config: router_id: %w", err)
		}
	}
	if fc.NextHopIP != "" {
		if cfg.NextHopIP, err = netip.ParseAddr(fc.NextHopIP); err != nil {
			return nil, fmt.Errorf("config: next_hop_ip: %w", err)
		}
	}

	if fc.RouterID == "" {
		if cfg.RouterID, err = network.FindBGPIdentifier(); err != nil {
			return nil, fmt.Errorf("config: router_id not set and auto-detection failed: %w", err)
		}
	}

	for _, name := range fc.Capabilities.Multiprotocol {
		af, ok := addressFamilyByName[name]
		if !ok {
			return nil, fmt.Errorf("config: capabilities.multiprotocol: unknown family %q", name)
		}
		cfg.Capabilities.Multiprotocol = append(cfg.Capabilities.Multiprotocol, af)
	}

	for _, n := range fc.Neighbors {
		ip, err := netip.ParseAddr(n.IP)
		if err != nil {
			return nil, fmt.Errorf("config: neighbor %q: %w", n.IP, err)
		}
		cfg.Neighbors = append(cfg.Neighbors, Neighbor{
			IP:        ip,
			ASNum:     n.ASNum,
			HelloTime: time.Duration(n.HelloTime) * time.Second,
			HoldTime:  time.Duration(n.HoldTime) * time.Second,
		})
	}

	for _, p := range fc.Advertised {
		prefix, err := netip.ParsePrefix(p)
		if err != nil {
			return nil, fmt.Errorf("config: advertised prefix %q: %w", p, err)
		}
		cfg.Advertised = append(cfg.Advertised, message.NLRI{
			PrefixLen: uint8(prefix.Bits()),
			Prefix:    prefix.Addr(),
		})
	}

	return cfg, nil
}
