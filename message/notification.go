package message

import "bgpd/stream"

// Error codes (RFC 4271 §6), reused as the Code field of Notification.
const (
	ErrCodeMessageHeader      = 1
	ErrCodeOpenMessage        = 2
	ErrCodeUpdateMessage      = 3
	ErrCodeHoldTimerExpired   = 4
	ErrCodeFiniteStateMachine = 5
	ErrCodeCease              = 6
)

var errorCodeName = map[byte]string{
	ErrCodeMessageHeader:      "Message Header Error",
	ErrCodeOpenMessage:        "OPEN Message Error",
	ErrCodeUpdateMessage:      "UPDATE Message Error",
	ErrCodeHoldTimerExpired:   "Hold Timer Expired",
	ErrCodeFiniteStateMachine: "Finite State Machine Error",
	ErrCodeCease:              "Cease",
}

// Message Header Error subcodes.
const (
	SubcodeConnectionNotSynchronized = 1
	SubcodeBadMessageLength          = 2
	SubcodeBadMessageType            = 3
)

// OPEN Message Error subcodes.
const (
	SubcodeUnsupportedVersionNumber     = 1
	SubcodeBadPeerAS                    = 2
	SubcodeBadBGPIdentifier             = 3
	SubcodeUnsupportedOptionalParameter = 4
	SubcodeUnacceptableHoldTime         = 6
)

// UPDATE Message Error subcodes.
const (
	SubcodeMalformedAttributeList         = 1
	SubcodeUnrecognizedWellKnownAttribute = 2
	SubcodeMissingWellKnownAttribute      = 3
	SubcodeAttributeFlagsError            = 4
	SubcodeAttributeLengthError           = 5
	SubcodeInvalidOriginAttribute         = 6
	SubcodeInvalidNextHopAttribute        = 8
	SubcodeOptionalAttributeError         = 9
	SubcodeInvalidNetworkField            = 10
	SubcodeMalformedASPath                = 11
)

const minNotificationLength = 2

// Notification is a decoded NOTIFICATION message (§4.5).
type Notification struct {
	Code    byte
	Subcode byte
	Data    []byte
}

// CodeName returns the human-readable name of n.Code, for logging.
func (n *Notification) CodeName() string {
	if name, ok := errorCodeName[n.Code]; ok {
		return name
	}
	return "Unknown"
}

// ParseNotification decodes a NOTIFICATION message.
func ParseNotification(buf []byte) (*Notification, error) {
	b, err := body(buf, TypeNotification)
	if err != nil {
		return nil, err
	}
	if len(b) < minNotificationLength {
		return nil, ErrShortBuffer
	}
	c := stream.NewCursor(b)
	code, _ := c.Byte()
	subcode, _ := c.Byte()
	data, _ := c.Bytes(c.Remaining())
	n := &Notification{Code: code, Subcode: subcode}
	if len(data) > 0 {
		n.Data = append([]byte(nil), data...)
	}
	return n, nil
}

// Bytes serializes n into a complete, framed NOTIFICATION message.
func (n *Notification) Bytes() []byte {
	b := make([]byte, 0, minNotificationLength+len(n.Data))
	b = append(b, n.Code, n.Subcode)
	b = append(b, n.Data...)
	out := header(TypeNotification, len(b))
	return append(out, b...)
}
