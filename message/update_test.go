package message

import (
	"net/netip"
	"testing"

	"bgpd/stream"
)

// TestUpdateWithOneNLRI is scenario (c) of §8.
func TestUpdateWithOneNLRI(t *testing.T) {
	input := framed(
		0x00, 0x34, 0x02, // length=52, type=Update
		0x00, 0x00, // withdrawn routes len = 0
		0x00, 0x18, // total path attribute len = 24
		0x40, 0x01, 0x01, 0x00, // Origin = IGP
		0x40, 0x02, 0x0A, 0x02, 0x02, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x03, // AsPath
		0x40, 0x03, 0x04, 0x0A, 0x00, 0x00, 0x17, // NextHop = 10.0.0.23
		0x20, 0xC0, 0xA8, 0xC8, 0x02, // NLRI: 192.168.200.2/32
	)

	u, err := ParseUpdate(input)
	if err != nil {
		t.Fatalf("ParseUpdate: %v", err)
	}
	if len(u.WithdrawnRoutes) != 0 {
		t.Errorf("expected no withdrawn routes, got %d", len(u.WithdrawnRoutes))
	}
	if len(u.PathAttributes) != 3 {
		t.Fatalf("expected 3 path attributes, got %d", len(u.PathAttributes))
	}
	if u.PathAttributes[0].Type != AttrOrigin || u.PathAttributes[0].Origin != OriginIGP {
		t.Errorf("attr[0] = %+v, want Origin(IGP)", u.PathAttributes[0])
	}
	asPath := u.PathAttributes[1]
	if asPath.Type != AttrASPath || len(asPath.ASPath) != 1 ||
		asPath.ASPath[0].Type != ASPathSequence ||
		len(asPath.ASPath[0].AS) != 2 || asPath.ASPath[0].AS[0] != 1 || asPath.ASPath[0].AS[1] != 3 {
		t.Errorf("attr[1] = %+v, want AsPath(Sequence,[1,3])", asPath)
	}
	nextHop := u.PathAttributes[2]
	wantNextHop := [4]byte{10, 0, 0, 23}
	if nextHop.Type != AttrNextHop || nextHop.NextHop != wantNextHop {
		t.Errorf("attr[2] = %+v, want NextHop(10.0.0.23)", nextHop)
	}
	if len(u.NLRI) != 1 {
		t.Fatalf("expected 1 NLRI, got %d", len(u.NLRI))
	}
	wantPrefix := netip.AddrFrom4([4]byte{192, 168, 200, 2})
	if u.NLRI[0].PrefixLen != 32 || u.NLRI[0].Prefix != wantPrefix {
		t.Errorf("nlri[0] = %+v, want 192.168.200.2/32", u.NLRI[0])
	}

	// The input carries 4-byte AS numbers in AS_PATH, i.e. a session that
	// negotiated the 4-octet-ASN capability.
	out := u.Bytes(true)
	if !bytesEqual(out, input) {
		t.Errorf("re-serialization mismatch:\n got %v\nwant %v", out, input)
	}
}

func TestUpdateMissingMandatoryAttribute(t *testing.T) {
	u := &Update{NLRI: []NLRI{{PrefixLen: 24, Prefix: netip.AddrFrom4([4]byte{10, 0, 0, 0})}}}
	b := u.Bytes(false)
	_, err := ParseUpdate(b)
	if err != ErrMissingMandatoryAttribute {
		t.Errorf("expected ErrMissingMandatoryAttribute, got %v", err)
	}
}

func TestUpdateFourByteASPathRoundTrip(t *testing.T) {
	u := &Update{
		PathAttributes: []PathAttribute{
			{Type: AttrOrigin, Flags: wellKnownFlags(), Origin: OriginIGP},
			{Type: AttrASPath, Flags: wellKnownFlags(), ASPath: []ASPathSegment{
				{Type: ASPathSequence, AS: []uint32{65001, 4200000001}},
			}},
			{Type: AttrNextHop, Flags: wellKnownFlags(), NextHop: [4]byte{10, 0, 0, 1}},
		},
		NLRI: []NLRI{{PrefixLen: 24, Prefix: netip.AddrFrom4([4]byte{172, 16, 1, 0})}},
	}
	b := u.Bytes(true)
	got, err := ParseUpdate(b)
	if err != nil {
		t.Fatalf("ParseUpdate: %v", err)
	}
	if len(got.PathAttributes) != 3 || got.PathAttributes[1].ASPath[0].AS[1] != 4200000001 {
		t.Errorf("expected 4-byte AS 4200000001 to round trip, got %+v", got.PathAttributes[1])
	}
}

func TestNLRIPrefixLenRange(t *testing.T) {
	for length := 1; length <= 32; length++ {
		n := NLRI{PrefixLen: uint8(length), Prefix: netip.AddrFrom4([4]byte{255, 255, 255, 255})}
		b := bytesNLRI(n)
		c := stream.NewCursor(b)
		got, err := readNLRI(c)
		if err != nil {
			t.Fatalf("prefix_len=%d: %v", length, err)
		}
		if got.PrefixLen != n.PrefixLen {
			t.Errorf("prefix_len=%d: got %d", length, got.PrefixLen)
		}
		// Only the first prefix_len bits are defined on the wire; mask
		// the rest off before comparing.
		wantBits := n.Prefix.As4()
		gotBits := got.Prefix.As4()
		for i := 0; i < 4; i++ {
			bitsInByte := length - i*8
			if bitsInByte >= 8 {
				continue
			}
			if bitsInByte <= 0 {
				wantBits[i] = 0
			} else {
				mask := byte(0xFF << uint(8-bitsInByte))
				wantBits[i] &= mask
			}
		}
		if wantBits != gotBits {
			t.Errorf("prefix_len=%d: prefix bits not preserved: got %v, want %v", length, gotBits, wantBits)
		}
	}
}
