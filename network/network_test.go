package network

import "testing"

func TestFindBGPIdentifier(t *testing.T) {
	addr, err := FindBGPIdentifier()
	if err != nil {
		// Sandboxed/CI hosts sometimes have no global unicast IPv4
		// interface; the important thing is the function returns the
		// documented error rather than panicking.
		if err != ErrNoIdentifier {
			t.Errorf("unexpected error: %v", err)
		}
		return
	}
	if !addr.Is4() {
		t.Errorf("FindBGPIdentifier returned non-IPv4 address %v", addr)
	}
}
