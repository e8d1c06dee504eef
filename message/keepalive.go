package message

// Keepalive carries no fields: a KEEPALIVE message is the 19-byte
// header alone (§4.1).
type Keepalive struct{}

// ParseKeepalive verifies buf is a well-formed, empty-bodied KEEPALIVE.
func ParseKeepalive(buf []byte) (*Keepalive, error) {
	b, err := body(buf, TypeKeepalive)
	if err != nil {
		return nil, err
	}
	if len(b) != 0 {
		return nil, ErrShortBuffer
	}
	return &Keepalive{}, nil
}

// Bytes serializes a KEEPALIVE message: header only, no body.
func (k *Keepalive) Bytes() []byte {
	return header(TypeKeepalive, 0)
}
