package message

import "bgpd/stream"

// routeRefreshBodyLength is AFI(2) + reserved(1) + SAFI(1).
const routeRefreshBodyLength = 4

// RouteRefresh is a decoded ROUTE-REFRESH message (RFC 2918).
type RouteRefresh struct {
	AFI  uint16
	SAFI uint8
}

// ParseRouteRefresh decodes a ROUTE-REFRESH message.
func ParseRouteRefresh(buf []byte) (*RouteRefresh, error) {
	b, err := body(buf, TypeRouteRefresh)
	if err != nil {
		return nil, err
	}
	if len(b) != routeRefreshBodyLength {
		return nil, ErrShortBuffer
	}
	c := stream.NewCursor(b)
	afi, _ := c.Uint16()
	_, _ = c.Byte() // reserved
	safi, _ := c.Byte()
	return &RouteRefresh{AFI: afi, SAFI: safi}, nil
}

// Bytes serializes r into a complete, framed ROUTE-REFRESH message.
func (r *RouteRefresh) Bytes() []byte {
	b := make([]byte, 0, routeRefreshBodyLength)
	b = stream.PutUint16(b, r.AFI)
	b = append(b, 0, r.SAFI)
	out := header(TypeRouteRefresh, len(b))
	return append(out, b...)
}
