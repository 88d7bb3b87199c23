package pbhub

// Quadrature encoder operations. A counter uses both pins of its port, so
// encoder registers address the port as a whole.

// EncoderRead returns the free-running 16-bit count for a port. The counter
// wraps modulo 65536; callers track deltas, not absolute positions.
func (d *Device) EncoderRead(port Port) (uint16, error) {
	reg, err := Register(port, Pin0, OpEncoderRead)
	if err != nil {
		return 0, err
	}
	return d.readWord(reg)
}

// EncoderReset zeroes the count for a port.
func (d *Device) EncoderReset(port Port) error {
	reg, err := Register(port, Pin0, OpEncoderReset)
	if err != nil {
		return err
	}
	return d.writeByte(reg, 0x00)
}
