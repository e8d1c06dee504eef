package message

import "testing"

func markerBytes() []byte {
	m := make([]byte, MarkerLength)
	for i := range m {
		m[i] = 0xFF
	}
	return m
}

// framed concatenates the 16-byte marker with rest, the convenience
// every scenario test in this package builds its input bytes from.
func framed(rest ...byte) []byte {
	return append(markerBytes(), rest...)
}

func TestExtractMessagesConcatenatedAndResidual(t *testing.T) {
	one := (&Keepalive{}).Bytes()
	two := (&Keepalive{}).Bytes()
	buf := append(append([]byte{}, one...), two...)
	partial := []byte{0xFF, 0xFF, 0xFF}
	buf = append(buf, partial...)

	messages, residual, err := ExtractMessages(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if !bytesEqual(messages[0], one) || !bytesEqual(messages[1], two) {
		t.Errorf("extracted messages do not match input")
	}
	if !bytesEqual(residual, partial) {
		t.Errorf("expected residual %v, got %v", partial, residual)
	}
}

func TestExtractMessagesReassemblesSplitRead(t *testing.T) {
	// A keepalive's marker delivered in one read, its length+type bytes
	// in the next: the residual from the first call must combine with
	// the second read to produce the complete message.
	whole := (&Keepalive{}).Bytes()
	firstRead := whole[:MarkerLength]
	secondRead := whole[MarkerLength:]

	messages, residual, err := ExtractMessages(firstRead)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected no complete messages yet, got %d", len(messages))
	}

	combined := append(append([]byte{}, residual...), secondRead...)
	messages, residual, err = ExtractMessages(combined)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(messages) != 1 || len(residual) != 0 {
		t.Fatalf("expected exactly one reassembled message, got %d messages and %d residual bytes", len(messages), len(residual))
	}
	if !bytesEqual(messages[0], whole) {
		t.Errorf("reassembled message does not match original")
	}
}

func TestExtractMessagesBadMarker(t *testing.T) {
	buf := make([]byte, MarkerLength+2+1)
	for i := range buf {
		buf[i] = 0xAA
	}
	_, _, err := ExtractMessages(buf)
	if err != ErrNoMarker {
		t.Errorf("expected ErrNoMarker, got %v", err)
	}
}

func TestExtractMessagesBadLength(t *testing.T) {
	buf := framed(0x00, 0x05, byte(TypeKeepalive))
	_, _, err := ExtractMessages(buf)
	if err != ErrBadLength {
		t.Errorf("expected ErrBadLength, got %v", err)
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
