package pbhub

// I2C register operations. Reads are a register write followed by a
// repeated-start read; the transport's Tx must not release the bus between
// the two phases.

func (d *Device) readByte(reg uint8) (byte, error) {
	d.w[0] = reg
	if err := d.bus.Tx(d.addr, d.w[:1], d.r[:1]); err != nil {
		return 0, err
	}
	return decodeByte(d.r[:1])
}

func (d *Device) readBool(reg uint8) (bool, error) {
	d.w[0] = reg
	if err := d.bus.Tx(d.addr, d.w[:1], d.r[:1]); err != nil {
		return false, err
	}
	return decodeBool(d.r[:1])
}

func (d *Device) readWord(reg uint8) (uint16, error) {
	d.w[0] = reg
	if err := d.bus.Tx(d.addr, d.w[:1], d.r[:2]); err != nil {
		return 0, err
	}
	return decodeU16(d.r[:2])
}

func (d *Device) writeByte(reg uint8, v byte) error {
	d.w[0] = reg
	d.w[1] = v
	return d.bus.Tx(d.addr, d.w[:2], nil)
}

func (d *Device) writeWord(reg uint8, v uint16) error {
	d.w[0] = reg
	putU16(d.w[1:3], v)
	return d.bus.Tx(d.addr, d.w[:3], nil)
}

// flush sends reg plus an n-byte payload already staged at d.w[1:1+n].
func (d *Device) flush(n int) error {
	return d.bus.Tx(d.addr, d.w[:1+n], nil)
}
