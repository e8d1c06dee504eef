package message

import (
	"net/netip"

	"bgpd/stream"
)

// NLRI is one Network Layer Reachability Information entry: a prefix
// length and an IPv4 prefix. The invariant PrefixLen in [1,32] is
// enforced by readNLRI; 0 is rejected per §3.
type NLRI struct {
	PrefixLen uint8
	Prefix    netip.Addr
}

// readNLRI decodes one <length, prefix> tuple from c: one length byte
// followed by ceil(length/8) prefix bytes, zero-padded to 32 bits for
// the in-memory representation; bits of the last prefix byte beyond
// length are cleared. It advances c past the tuple.
func readNLRI(c *stream.Cursor) (NLRI, error) {
	length, err := c.Byte()
	if err != nil {
		return NLRI{}, err
	}
	if length < 1 || length > 32 {
		return NLRI{}, ErrBadPrefixLen
	}
	nbytes := int(length+7) / 8
	raw, err := c.Bytes(nbytes)
	if err != nil {
		return NLRI{}, err
	}
	var addr [4]byte
	copy(addr[:], raw)
	if rem := length % 8; rem != 0 {
		addr[nbytes-1] &= byte(0xFF << (8 - rem))
	}
	return NLRI{PrefixLen: length, Prefix: netip.AddrFrom4(addr)}, nil
}

// bytesNLRI serializes n as length(1) followed by ceil(len/8) prefix
// bytes. Design Notes (ii): the wire form is length-padded octets, not
// the fixed 4-byte field the in-memory NLRI carries.
func bytesNLRI(n NLRI) []byte {
	nbytes := int(n.PrefixLen+7) / 8
	addr := n.Prefix.As4()
	b := make([]byte, 0, 1+nbytes)
	b = append(b, n.PrefixLen)
	b = append(b, addr[:nbytes]...)
	return b
}
