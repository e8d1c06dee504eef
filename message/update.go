package message

import (
	"encoding/binary"

	"bgpd/stream"
)

// Update is a decoded UPDATE message (§3, §4.1). WithdrawnRoutes and
// NLRI use the same NLRI shape; PathAttributes carries only the
// attributes actually present on the wire.
type Update struct {
	WithdrawnRoutes []NLRI
	PathAttributes  []PathAttribute
	NLRI            []NLRI
}

// ParseUpdate decodes an UPDATE message. The AS_PATH segment's AS width
// (2 or 4 octets per AS) is inferred per segment from the attribute's
// declared length and AS count rather than taken from session state,
// since a well-formed segment's length is only consistent with one of
// the two widths; this keeps the codec a pure function of its bytes.
func ParseUpdate(buf []byte) (*Update, error) {
	b, err := body(buf, TypeUpdate)
	if err != nil {
		return nil, err
	}
	c := stream.NewCursor(b)

	withdrawnLen, err := c.Uint16()
	if err != nil {
		return nil, ErrShortBuffer
	}
	withdrawnBytes, err := c.Bytes(int(withdrawnLen))
	if err != nil {
		return nil, ErrShortBuffer
	}
	withdrawn, err := readNLRIList(withdrawnBytes)
	if err != nil {
		return nil, err
	}

	attrLen, err := c.Uint16()
	if err != nil {
		return nil, ErrShortBuffer
	}
	attrBytes, err := c.Bytes(int(attrLen))
	if err != nil {
		return nil, ErrShortBuffer
	}
	attrs, err := readPathAttributes(attrBytes)
	if err != nil {
		return nil, err
	}

	nlriBytes, _ := c.Bytes(c.Remaining())
	nlri, err := readNLRIList(nlriBytes)
	if err != nil {
		return nil, err
	}

	if len(nlri) > 0 {
		if err := requireMandatoryAttributes(attrs); err != nil {
			return nil, err
		}
	}

	return &Update{
		WithdrawnRoutes: withdrawn,
		PathAttributes:  attrs,
		NLRI:            nlri,
	}, nil
}

func requireMandatoryAttributes(attrs []PathAttribute) error {
	var haveOrigin, haveASPath, haveNextHop bool
	for _, a := range attrs {
		switch a.Type {
		case AttrOrigin:
			haveOrigin = true
		case AttrASPath:
			haveASPath = true
		case AttrNextHop:
			haveNextHop = true
		}
	}
	if !haveOrigin || !haveASPath || !haveNextHop {
		return ErrMissingMandatoryAttribute
	}
	return nil
}

func readNLRIList(buf []byte) ([]NLRI, error) {
	var out []NLRI
	c := stream.NewCursor(buf)
	for c.Remaining() > 0 {
		n, err := readNLRI(c)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func readPathAttributes(buf []byte) ([]PathAttribute, error) {
	var out []PathAttribute
	c := stream.NewCursor(buf)
	for c.Remaining() > 0 {
		flagsByte, err := c.Byte()
		if err != nil {
			return nil, ErrBadAttribute
		}
		flags := attrFlags(flagsByte)
		typeByte, err := c.Byte()
		if err != nil {
			return nil, ErrBadAttribute
		}

		var length int
		if flags.extendedLength() {
			l, err := c.Uint16()
			if err != nil {
				return nil, ErrBadAttribute
			}
			length = int(l)
		} else {
			l, err := c.Byte()
			if err != nil {
				return nil, ErrBadAttribute
			}
			length = int(l)
		}
		value, err := c.Bytes(length)
		if err != nil {
			return nil, ErrBadAttribute
		}

		attr, err := decodeAttribute(AttrType(typeByte), flags, value)
		if err != nil {
			return nil, err
		}
		out = append(out, attr)
	}
	return out, nil
}

func decodeAttribute(t AttrType, flags attrFlags, value []byte) (PathAttribute, error) {
	attr := PathAttribute{Type: t, Flags: flags}
	switch t {
	case AttrOrigin:
		if len(value) != 1 {
			return attr, ErrBadAttribute
		}
		attr.Origin = Origin(value[0])
	case AttrASPath:
		segments, err := decodeASPath(value)
		if err != nil {
			return attr, err
		}
		attr.ASPath = segments
	case AttrNextHop:
		if len(value) != 4 {
			return attr, ErrBadAttribute
		}
		copy(attr.NextHop[:], value)
	case AttrMultiExitDisc:
		if len(value) != 4 {
			return attr, ErrBadAttribute
		}
		attr.MED = binary.BigEndian.Uint32(value)
	case AttrLocalPref:
		if len(value) != 4 {
			return attr, ErrBadAttribute
		}
		attr.LocalPref = binary.BigEndian.Uint32(value)
	case AttrAtomicAggregate:
		if len(value) != 0 {
			return attr, ErrBadAttribute
		}
	case AttrAggregator:
		if len(value) != 8 {
			return attr, ErrBadAttribute
		}
		attr.Aggregator.AS = binary.BigEndian.Uint32(value[:4])
		copy(attr.Aggregator.SpeakerID[:], value[4:])
	default:
		// Unrecognized type code: preserved and never fatal, whatever
		// the optional bit says. An unrecognized well-known attribute
		// (optional bit clear) is a protocol violation, but it is not
		// rejected here; recognized types above cover every well-known
		// attribute this core defines.
		attr.Unknown = append([]byte(nil), value...)
	}
	return attr, nil
}

func decodeASPath(value []byte) ([]ASPathSegment, error) {
	var segments []ASPathSegment
	c := stream.NewCursor(value)
	for c.Remaining() > 0 {
		segType, err := c.Byte()
		if err != nil {
			return nil, ErrBadAttribute
		}
		count, err := c.Byte()
		if err != nil {
			return nil, ErrBadAttribute
		}
		if count == 0 {
			segments = append(segments, ASPathSegment{Type: ASPathSegmentType(segType)})
			continue
		}
		// A well-formed segment's remaining bytes divide evenly by
		// count into either 2-byte or 4-byte AS numbers; anything else
		// is malformed.
		remaining := c.Remaining()
		var width int
		switch {
		case remaining == int(count)*4:
			width = 4
		case remaining == int(count)*2:
			width = 2
		default:
			return nil, ErrBadAttribute
		}
		asNumbers := make([]uint32, count)
		for i := range asNumbers {
			raw, err := c.Bytes(width)
			if err != nil {
				return nil, ErrBadAttribute
			}
			var v uint32
			for _, b := range raw {
				v = v<<8 | uint32(b)
			}
			asNumbers[i] = v
		}
		segments = append(segments, ASPathSegment{Type: ASPathSegmentType(segType), AS: asNumbers})
	}
	return segments, nil
}

// Bytes serializes u into a complete, framed UPDATE message. fourByteASN
// selects the AS_PATH encoding width: the session worker passes the
// negotiated value (both peers advertised the 4-octet-ASN capability),
// per §3's AS number rule.
func (u *Update) Bytes(fourByteASN bool) []byte {
	var withdrawn []byte
	for _, n := range u.WithdrawnRoutes {
		withdrawn = append(withdrawn, bytesNLRI(n)...)
	}

	var attrs []byte
	for _, a := range u.PathAttributes {
		attrs = append(attrs, bytesAttribute(a, fourByteASN)...)
	}

	var nlri []byte
	for _, n := range u.NLRI {
		nlri = append(nlri, bytesNLRI(n)...)
	}

	b := make([]byte, 0, 4+len(withdrawn)+len(attrs)+len(nlri))
	b = stream.PutUint16(b, uint16(len(withdrawn)))
	b = append(b, withdrawn...)
	b = stream.PutUint16(b, uint16(len(attrs)))
	b = append(b, attrs...)
	b = append(b, nlri...)

	out := header(TypeUpdate, len(b))
	return append(out, b...)
}

func bytesAttribute(a PathAttribute, fourByteASN bool) []byte {
	var value []byte
	switch a.Type {
	case AttrOrigin:
		value = []byte{byte(a.Origin)}
	case AttrASPath:
		value = bytesASPath(a.ASPath, fourByteASN)
	case AttrNextHop:
		value = append([]byte(nil), a.NextHop[:]...)
	case AttrMultiExitDisc:
		value = stream.PutUint32(nil, a.MED)
	case AttrLocalPref:
		value = stream.PutUint32(nil, a.LocalPref)
	case AttrAtomicAggregate:
		value = nil
	case AttrAggregator:
		value = stream.PutUint32(nil, a.Aggregator.AS)
		value = append(value, a.Aggregator.SpeakerID[:]...)
	default:
		value = a.Unknown
	}

	flags := a.Flags
	flags.setExtendedLength(len(value) > 255)

	b := make([]byte, 0, 4+len(value))
	b = append(b, byte(flags), byte(a.Type))
	if flags.extendedLength() {
		b = stream.PutUint16(b, uint16(len(value)))
	} else {
		b = append(b, byte(len(value)))
	}
	b = append(b, value...)
	return b
}

func bytesASPath(segments []ASPathSegment, fourByteASN bool) []byte {
	var b []byte
	for _, seg := range segments {
		b = append(b, byte(seg.Type), byte(len(seg.AS)))
		for _, as := range seg.AS {
			if fourByteASN {
				b = stream.PutUint32(b, as)
			} else {
				b = stream.PutUint16(b, uint16(as))
			}
		}
	}
	return b
}
