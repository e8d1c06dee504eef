package message

import "bgpd/stream"

// AFI/SAFI-identified address family, as carried in the Multiprotocol
// Extensions capability (RFC 4760).
type AddressFamily byte

const (
	IPv4Unicast AddressFamily = iota
	IPv4Multicast
	IPv4VPN
	IPv6Unicast
	IPv6Multicast
	IPv6VPN
)

var addressFamilyByAfiSafi = map[[2]uint16]AddressFamily{
	{1, 1}:   IPv4Unicast,
	{1, 2}:   IPv4Multicast,
	{1, 128}: IPv4VPN,
	{2, 1}:   IPv6Unicast,
	{2, 2}:   IPv6Multicast,
	{2, 128}: IPv6VPN,
}

var afiSafiByAddressFamily = map[AddressFamily][2]uint16{
	IPv4Unicast:   {1, 1},
	IPv4Multicast: {1, 2},
	IPv4VPN:       {1, 128},
	IPv6Unicast:   {2, 1},
	IPv6Multicast: {2, 2},
	IPv6VPN:       {2, 128},
}

// Capability optional-parameter type codes (RFC 5492 §4, RFC 2842).
const (
	capMultiprotocol       = 1
	capRouteRefresh        = 2
	capEnhancedRouteRefresh = 70
	capFourOctetASN        = 65
	capRouteRefreshPreStd  = 128
)

// optParamType identifies an OPEN message optional parameter; only
// type 2 (Capability) is honored, per §4.1.
const optParamCapability = 2

// Capabilities is the set of capabilities negotiated (advertised, in an
// outbound OPEN; accepted, in a decoded inbound OPEN) by a session.
type Capabilities struct {
	Multiprotocol            []AddressFamily
	RouteRefresh              bool
	RouteRefreshPreStandard   bool
	EnhancedRouteRefresh      bool
	FourOctetASN              bool
	FourOctetASNValue         uint32
}

// HasMultiprotocol reports whether af was advertised.
func (c Capabilities) HasMultiprotocol(af AddressFamily) bool {
	for _, x := range c.Multiprotocol {
		if x == af {
			return true
		}
	}
	return false
}

// readCapabilities decodes the optional-parameters field of an OPEN
// body. Optional parameters that are not type 2 (Capability), and
// capability codes this implementation does not recognize, are ignored
// rather than rejected, per §4.1.
func readCapabilities(params []byte) (Capabilities, error) {
	var caps Capabilities
	c := stream.NewCursor(params)
	for c.Remaining() > 0 {
		pType, err := c.Byte()
		if err != nil {
			return caps, ErrBadCapability
		}
		pLen, err := c.Byte()
		if err != nil {
			return caps, ErrBadCapability
		}
		value, err := c.Bytes(int(pLen))
		if err != nil {
			return caps, ErrBadCapability
		}
		if pType != optParamCapability {
			continue
		}
		if err := readOneCapability(value, &caps); err != nil {
			return caps, err
		}
	}
	return caps, nil
}

// readOneCapability decodes a single capability TLV (code, length,
// value) nested inside a type-2 optional parameter's value. A parameter
// value can itself carry several concatenated capability TLVs.
func readOneCapability(value []byte, caps *Capabilities) error {
	c := stream.NewCursor(value)
	for c.Remaining() > 0 {
		code, err := c.Byte()
		if err != nil {
			return ErrBadCapability
		}
		length, err := c.Byte()
		if err != nil {
			return ErrBadCapability
		}
		body, err := c.Bytes(int(length))
		if err != nil {
			return ErrBadCapability
		}
		switch code {
		case capMultiprotocol:
			if len(body) != 4 {
				return ErrBadCapability
			}
			afi := uint16(body[0])<<8 | uint16(body[1])
			safi := uint16(body[3])
			if af, ok := addressFamilyByAfiSafi[[2]uint16{afi, safi}]; ok {
				caps.Multiprotocol = append(caps.Multiprotocol, af)
			}
			// Unknown AFI/SAFI combinations are ignored, not an error.
		case capRouteRefresh:
			caps.RouteRefresh = true
		case capRouteRefreshPreStd:
			caps.RouteRefreshPreStandard = true
		case capEnhancedRouteRefresh:
			caps.EnhancedRouteRefresh = true
		case capFourOctetASN:
			if len(body) != 4 {
				return ErrBadCapability
			}
			caps.FourOctetASN = true
			caps.FourOctetASNValue = uint32(body[0])<<24 | uint32(body[1])<<16 | uint32(body[2])<<8 | uint32(body[3])
		default:
			// Unrecognized capability code: preserved nowhere, ignored,
			// never fatal, per §7.
		}
	}
	return nil
}

// bytesCapabilities serializes caps as a sequence of optional
// parameters, one type-2 (Capability) parameter per capability, each
// wrapping exactly one capability TLV. This one-parameter-per-capability
// layout, rather than bundling every TLV into a single parameter's
// value, is what interoperates with the test vectors in §8 and with
// real BGP implementations.
func bytesCapabilities(caps Capabilities) []byte {
	var out []byte
	appendParam := func(tlv []byte) {
		out = append(out, optParamCapability, byte(len(tlv)))
		out = append(out, tlv...)
	}
	for _, af := range caps.Multiprotocol {
		afiSafi := afiSafiByAddressFamily[af]
		v := []byte{byte(afiSafi[0] >> 8), byte(afiSafi[0]), 0, byte(afiSafi[1])}
		appendParam(append([]byte{capMultiprotocol, byte(len(v))}, v...))
	}
	if caps.RouteRefreshPreStandard {
		appendParam([]byte{capRouteRefreshPreStd, 0})
	}
	if caps.RouteRefresh {
		appendParam([]byte{capRouteRefresh, 0})
	}
	if caps.EnhancedRouteRefresh {
		appendParam([]byte{capEnhancedRouteRefresh, 0})
	}
	if caps.FourOctetASN {
		v := stream.PutUint32(nil, caps.FourOctetASNValue)
		appendParam(append([]byte{capFourOctetASN, byte(len(v))}, v...))
	}
	return out
}
