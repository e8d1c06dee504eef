// Package network finds a default BGP identifier from the host's own
// interfaces, for config.Load to fall back on when router_id is left
// unset.
package network

import (
	"errors"
	"net"
	"net/netip"
)

// ErrNoIdentifier is returned when no interface carries a usable
// address.
var ErrNoIdentifier = errors.New("network: no global unicast IPv4 address found")

// FindBGPIdentifier picks the first global unicast IPv4 address (in the
// sense of netip.Addr.IsGlobalUnicast, which includes private ranges
// such as 10.0.0.0/8) among the host's interfaces. Selection order follows interface
// enumeration order and is otherwise arbitrary, same as any other
// speaker that auto-assigns its router ID from local addressing.
func FindBGPIdentifier() (netip.Addr, error) {
	ifs, err := net.Interfaces()
	if err != nil {
		return netip.Addr{}, err
	}
	for _, iface := range ifs {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil {
				continue
			}
			addr := netip.AddrFrom4([4]byte(ip4))
			if addr.IsGlobalUnicast() {
				return addr, nil
			}
		}
	}
	return netip.Addr{}, ErrNoIdentifier
}
