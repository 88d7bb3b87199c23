package pbhub

import "testing"

func TestServoAngleCodec(t *testing.T) {
	for deg := 0; deg <= ServoAngleMax; deg++ {
		b, err := encodeServoAngle(uint8(deg))
		if err != nil {
			t.Fatalf("encodeServoAngle(%d): %v", deg, err)
		}
		got, err := decodeByte([]byte{b})
		if err != nil || int(got) != deg {
			t.Fatalf("round trip %d -> %d (%v)", deg, got, err)
		}
	}
	if _, err := encodeServoAngle(181); err != ErrValueRange {
		t.Errorf("encodeServoAngle(181): got %v, want ErrValueRange", err)
	}
}

func TestServoPulseCodec(t *testing.T) {
	for us := ServoPulseMin; us <= ServoPulseMax; us++ {
		b, err := encodeServoPulse(uint16(us))
		if err != nil {
			t.Fatalf("encodeServoPulse(%d): %v", us, err)
		}
		got, err := decodeU16(b[:])
		if err != nil || int(got) != us {
			t.Fatalf("round trip %d -> %d (%v)", us, got, err)
		}
	}
	for _, us := range []uint16{0, 499, 2501, 0xFFFF} {
		if _, err := encodeServoPulse(us); err != ErrValueRange {
			t.Errorf("encodeServoPulse(%d): got %v, want ErrValueRange", us, err)
		}
	}
	// Little-endian wire order.
	b, _ := encodeServoPulse(1500)
	if b[0] != 0xDC || b[1] != 0x05 {
		t.Errorf("pulse 1500 encoded %#02x %#02x, want DC 05", b[0], b[1])
	}
}

func TestColorCodec(t *testing.T) {
	for _, c := range []uint32{0, 0x000001, 0xFF0000, 0x00FF00, 0x0000FF, 0x123456, 0xFFFFFF} {
		b, err := encodeColor(c)
		if err != nil {
			t.Fatalf("encodeColor(%#06x): %v", c, err)
		}
		got, err := decodeColor(b[:])
		if err != nil || got != c {
			t.Fatalf("round trip %#06x -> %#06x (%v)", c, got, err)
		}
	}
	if _, err := encodeColor(0x1000000); err != ErrValueRange {
		t.Errorf("encodeColor(>24bit): got %v, want ErrValueRange", err)
	}
	// Wire order is R,G,B.
	b, _ := encodeColor(0x123456)
	if b != [3]byte{0x12, 0x34, 0x56} {
		t.Errorf("encodeColor(0x123456) = % 02x", b[:])
	}
}

func TestStripLengthCodec(t *testing.T) {
	b, err := encodeStripLength(MaxLEDs)
	if err != nil {
		t.Fatalf("encodeStripLength(max): %v", err)
	}
	if got, _ := decodeU16(b[:]); got != MaxLEDs {
		t.Errorf("round trip max = %d", got)
	}
	if _, err := encodeStripLength(MaxLEDs + 1); err != ErrValueRange {
		t.Errorf("encodeStripLength(75): got %v, want ErrValueRange", err)
	}
}

func TestDecodersRejectShortBuffers(t *testing.T) {
	if _, err := decodeBool(nil); err != ErrShortResponse {
		t.Errorf("decodeBool(nil): %v", err)
	}
	if _, err := decodeByte([]byte{1, 2}); err != ErrShortResponse {
		t.Errorf("decodeByte(2 bytes): %v", err)
	}
	if _, err := decodeU16([]byte{1}); err != ErrShortResponse {
		t.Errorf("decodeU16(1 byte): %v", err)
	}
	if _, err := decodeColor([]byte{1, 2}); err != ErrShortResponse {
		t.Errorf("decodeColor(2 bytes): %v", err)
	}
}

func TestBoolCodec(t *testing.T) {
	for _, v := range []bool{false, true} {
		got, err := decodeBool([]byte{encodeBool(v)})
		if err != nil || got != v {
			t.Fatalf("round trip %v -> %v (%v)", v, got, err)
		}
	}
}
