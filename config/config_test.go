package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeYAML(t *testing.T, data string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "bgpd.yaml")
	if err := os.WriteFile(p, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

const minimalYAML = `
my_as: 65001
router_id: "10.0.0.1"
next_hop_ip: "10.0.0.1"
capabilities:
  route_refresh: true
  multiprotocol:
    - ipv4_unicast
neighbors:
  - ip: "10.0.0.2"
    as_num: 65002
    hello_time: 30
    hold_time: 90
advertised:
  - "192.0.2.0/24"
`

func TestLoadParsesFile(t *testing.T) {
	p := writeYAML(t, minimalYAML)

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MyAS != 65001 {
		t.Errorf("MyAS = %d, want 65001", cfg.MyAS)
	}
	if cfg.RouterID.String() != "10.0.0.1" {
		t.Errorf("RouterID = %v, want 10.0.0.1", cfg.RouterID)
	}
	if len(cfg.Neighbors) != 1 || cfg.Neighbors[0].ASNum != 65002 {
		t.Fatalf("unexpected neighbors: %+v", cfg.Neighbors)
	}
	if cfg.Neighbors[0].HoldTime.Seconds() != 90 {
		t.Errorf("neighbor hold_time = %v, want 90s", cfg.Neighbors[0].HoldTime)
	}
	if len(cfg.Advertised) != 1 || cfg.Advertised[0].PrefixLen != 24 {
		t.Fatalf("unexpected advertised prefixes: %+v", cfg.Advertised)
	}
	if !cfg.Capabilities.RouteRefresh {
		t.Error("expected route_refresh capability to be set")
	}
	if len(cfg.Capabilities.Multiprotocol) != 1 {
		t.Fatalf("unexpected multiprotocol: %+v", cfg.Capabilities.Multiprotocol)
	}
}

func TestLoadDefaultsListenAddr(t *testing.T) {
	p := writeYAML(t, minimalYAML)

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":179" {
		t.Errorf("ListenAddr = %q, want :179", cfg.ListenAddr)
	}
}

func TestLoadEnvOverridesMyAS(t *testing.T) {
	p := writeYAML(t, minimalYAML)
	t.Setenv("BGPD_MY_AS", "65010")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MyAS != 65010 {
		t.Errorf("MyAS = %d, want 65010 from env override", cfg.MyAS)
	}
}

func TestLoadRejectsUnknownAddressFamily(t *testing.T) {
	p := writeYAML(t, `
my_as: 65001
router_id: "10.0.0.1"
capabilities:
  multiprotocol:
    - not_a_real_family
`)
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for unknown multiprotocol family")
	}
}

func TestLoadRejectsBadNeighborIP(t *testing.T) {
	p := writeYAML(t, `
my_as: 65001
router_id: "10.0.0.1"
neighbors:
  - ip: "not-an-ip"
    as_num: 65002
`)
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for bad neighbor ip")
	}
}
