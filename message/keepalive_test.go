package message

import "testing"

// TestKeepaliveParse is scenario (b) of §8.
func TestKeepaliveParse(t *testing.T) {
	input := framed(0x00, 0x13, 0x04)
	k, err := ParseKeepalive(input)
	if err != nil {
		t.Fatalf("ParseKeepalive: %v", err)
	}
	out := k.Bytes()
	if !bytesEqual(out, input) {
		t.Errorf("Bytes() = %v, want %v", out, input)
	}
}
