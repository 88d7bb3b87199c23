package pbhub

// RC servo operations. The hub generates a 50 Hz signal per pin; position is
// set either as an angle in degrees or directly as a pulse width.

// SetServoAngle positions a servo in degrees. Range 0..ServoAngleMax.
func (d *Device) SetServoAngle(port Port, pin Pin, deg uint8) error {
	reg, err := Register(port, pin, OpServoAngle)
	if err != nil {
		return err
	}
	v, err := encodeServoAngle(deg)
	if err != nil {
		return err
	}
	return d.writeByte(reg, v)
}

// ServoAngle reads back the last commanded angle in degrees.
func (d *Device) ServoAngle(port Port, pin Pin) (uint8, error) {
	reg, err := Register(port, pin, OpServoAngle)
	if err != nil {
		return 0, err
	}
	return d.readByte(reg)
}

// SetServoPulse positions a servo by pulse width in microseconds.
// Range ServoPulseMin..ServoPulseMax; 1500 µs is equivalent to 90 degrees.
func (d *Device) SetServoPulse(port Port, pin Pin, us uint16) error {
	reg, err := Register(port, pin, OpServoPulse)
	if err != nil {
		return err
	}
	b, err := encodeServoPulse(us)
	if err != nil {
		return err
	}
	d.w[0] = reg
	d.w[1] = b[0]
	d.w[2] = b[1]
	return d.flush(2)
}

// ServoPulse reads back the last commanded pulse width in microseconds.
func (d *Device) ServoPulse(port Port, pin Pin) (uint16, error) {
	reg, err := Register(port, pin, OpServoPulse)
	if err != nil {
		return 0, err
	}
	return d.readWord(reg)
}
