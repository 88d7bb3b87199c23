package pbhub

// Strip is a handle on the addressable RGB LEDs attached to one port.
// Colors are 24-bit 0xRRGGBB values.
type Strip struct {
	d    *Device
	port Port
}

// Strip returns a handle for the LED strip on a port.
func (d *Device) Strip(port Port) (*Strip, error) {
	if port >= NumPorts {
		return nil, ErrInvalidPort
	}
	return &Strip{d: d, port: port}, nil
}

// Port returns the port the strip is attached to.
func (s *Strip) Port() Port { return s.port }

// SetLength tells the hub how many LEDs are chained on the port.
// Range 0..MaxLEDs.
func (s *Strip) SetLength(n uint16) error {
	reg, err := Register(s.port, Pin0, OpLEDCount)
	if err != nil {
		return err
	}
	b, err := encodeStripLength(n)
	if err != nil {
		return err
	}
	s.d.w[0] = reg
	s.d.w[1] = b[0]
	s.d.w[2] = b[1]
	return s.d.flush(2)
}

// Length reads back the configured strip length.
func (s *Strip) Length() (uint16, error) {
	reg, err := Register(s.port, Pin0, OpLEDCount)
	if err != nil {
		return 0, err
	}
	v, err := s.d.readByte(reg)
	return uint16(v), err
}

// SetBrightness scales subsequent color writes. 0 is off, 255 is full.
// A change takes effect on the next color write, not retroactively.
func (s *Strip) SetBrightness(v uint8) error {
	reg, err := Register(s.port, Pin0, OpLEDBrightness)
	if err != nil {
		return err
	}
	return s.d.writeByte(reg, v)
}

// SetPixel sets the color of a single LED.
func (s *Strip) SetPixel(index uint16, color uint32) error {
	if index >= MaxLEDs {
		return ErrValueRange
	}
	reg, err := Register(s.port, Pin0, OpLEDColor)
	if err != nil {
		return err
	}
	rgb, err := encodeColor(color)
	if err != nil {
		return err
	}
	s.d.w[0] = reg
	putU16(s.d.w[1:3], index)
	s.d.w[3] = rgb[0]
	s.d.w[4] = rgb[1]
	s.d.w[5] = rgb[2]
	return s.d.flush(5)
}

// SetRange sets count LEDs starting at start to one color.
func (s *Strip) SetRange(start, count uint16, color uint32) error {
	if start > MaxLEDs || count > MaxLEDs || start+count > MaxLEDs {
		return ErrValueRange
	}
	if count == 0 {
		return nil
	}
	reg, err := Register(s.port, Pin0, OpLEDRange)
	if err != nil {
		return err
	}
	rgb, err := encodeColor(color)
	if err != nil {
		return err
	}
	s.d.w[0] = reg
	putU16(s.d.w[1:3], start)
	putU16(s.d.w[3:5], count)
	s.d.w[5] = rgb[0]
	s.d.w[6] = rgb[1]
	s.d.w[7] = rgb[2]
	return s.d.flush(7)
}

// Fill sets the whole configured strip to one color.
func (s *Strip) Fill(color uint32) error {
	n, err := s.Length()
	if err != nil {
		return err
	}
	return s.SetRange(0, n, color)
}
