package pbhub

// Wire codecs. Every encoder validates its domain and every decoder
// validates the byte length, so a failed call never reaches the bus.

// Servo limits per the hub firmware.
const (
	ServoAngleMax = 180  // degrees
	ServoPulseMin = 500  // µs
	ServoPulseMax = 2500 // µs
)

// MaxLEDs is the longest strip the hub firmware drives on one port.
const MaxLEDs = 74

func encodeBool(v bool) byte {
	if v {
		return 0x01
	}
	return 0x00
}

func decodeBool(buf []byte) (bool, error) {
	if len(buf) != 1 {
		return false, ErrShortResponse
	}
	return buf[0] == 0x01, nil
}

func decodeByte(buf []byte) (byte, error) {
	if len(buf) != 1 {
		return 0, ErrShortResponse
	}
	return buf[0], nil
}

// Words on the wire are little-endian: LOW then HIGH.

func putU16(buf []byte, v uint16) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
}

func decodeU16(buf []byte) (uint16, error) {
	if len(buf) != 2 {
		return 0, ErrShortResponse
	}
	return uint16(buf[0]) | uint16(buf[1])<<8, nil
}

func encodeServoAngle(deg uint8) (byte, error) {
	if deg > ServoAngleMax {
		return 0, ErrValueRange
	}
	return deg, nil
}

func encodeServoPulse(us uint16) ([2]byte, error) {
	var b [2]byte
	if us < ServoPulseMin || us > ServoPulseMax {
		return b, ErrValueRange
	}
	putU16(b[:], us)
	return b, nil
}

// encodeColor splits a 24-bit 0xRRGGBB color into the R,G,B wire order.
func encodeColor(c uint32) ([3]byte, error) {
	var b [3]byte
	if c > 0xFFFFFF {
		return b, ErrValueRange
	}
	b[0] = byte(c >> 16)
	b[1] = byte(c >> 8)
	b[2] = byte(c)
	return b, nil
}

func decodeColor(buf []byte) (uint32, error) {
	if len(buf) != 3 {
		return 0, ErrShortResponse
	}
	return uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2]), nil
}

func encodeStripLength(n uint16) ([2]byte, error) {
	var b [2]byte
	if n > MaxLEDs {
		return b, ErrValueRange
	}
	putU16(b[:], n)
	return b, nil
}
