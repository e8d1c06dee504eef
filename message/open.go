package message

import "bgpd/stream"

// minOpenLength is the minimum length of an OPEN body: version(1) +
// myAS(2) + holdTime(2) + bgpIdentifier(4) + optParmLen(1), no
// optional parameters.
const minOpenLength = 10

// Open is a decoded OPEN message (§4.1).
type Open struct {
	Version       uint8
	MyAS          uint16
	HoldTime      uint16
	BGPIdentifier [4]byte
	Capabilities  Capabilities
}

// ParseOpen decodes an OPEN message from a complete, framed message
// slice as produced by ExtractMessages.
func ParseOpen(buf []byte) (*Open, error) {
	b, err := body(buf, TypeOpen)
	if err != nil {
		return nil, err
	}
	if len(b) < minOpenLength {
		return nil, ErrShortBuffer
	}
	c := stream.NewCursor(b)
	version, _ := c.Byte()
	myAS, _ := c.Uint16()
	holdTime, _ := c.Uint16()
	id, err := c.Uint32()
	if err != nil {
		return nil, ErrShortBuffer
	}
	optLen, err := c.Byte()
	if err != nil {
		return nil, ErrShortBuffer
	}
	params, err := c.Bytes(int(optLen))
	if err != nil {
		return nil, ErrShortBuffer
	}

	if version != 4 {
		return nil, ErrBadVersion
	}
	if holdTime != 0 && holdTime < 3 {
		return nil, ErrBadHoldTime
	}

	caps, err := readCapabilities(params)
	if err != nil {
		return nil, err
	}

	o := &Open{
		Version:      version,
		MyAS:         myAS,
		HoldTime:     holdTime,
		Capabilities: caps,
	}
	o.BGPIdentifier[0] = byte(id >> 24)
	o.BGPIdentifier[1] = byte(id >> 16)
	o.BGPIdentifier[2] = byte(id >> 8)
	o.BGPIdentifier[3] = byte(id)
	return o, nil
}

// Bytes serializes o into a complete, framed OPEN message.
func (o *Open) Bytes() []byte {
	params := bytesCapabilities(o.Capabilities)

	b := make([]byte, 0, minOpenLength+len(params))
	b = append(b, o.Version)
	b = stream.PutUint16(b, o.MyAS)
	b = stream.PutUint16(b, o.HoldTime)
	b = append(b, o.BGPIdentifier[:]...)
	b = append(b, byte(len(params)))
	b = append(b, params...)

	out := header(TypeOpen, len(b))
	return append(out, b...)
}
