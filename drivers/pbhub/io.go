package pbhub

// Digital, PWM and analog port operations.

// DigitalWrite drives the output latch of a port pin.
func (d *Device) DigitalWrite(port Port, pin Pin, level bool) error {
	reg, err := Register(port, pin, OpDigitalWrite)
	if err != nil {
		return err
	}
	return d.writeByte(reg, encodeBool(level))
}

// DigitalOut reads back the output latch set by DigitalWrite.
func (d *Device) DigitalOut(port Port, pin Pin) (bool, error) {
	reg, err := Register(port, pin, OpDigitalWrite)
	if err != nil {
		return false, err
	}
	return d.readBool(reg)
}

// DigitalRead samples the input level of a port pin.
func (d *Device) DigitalRead(port Port, pin Pin) (bool, error) {
	reg, err := Register(port, pin, OpDigitalRead)
	if err != nil {
		return false, err
	}
	return d.readBool(reg)
}

// PWMWrite sets the 8-bit duty cycle of a port pin.
func (d *Device) PWMWrite(port Port, pin Pin, duty uint8) error {
	reg, err := Register(port, pin, OpPWMWrite)
	if err != nil {
		return err
	}
	return d.writeByte(reg, duty)
}

// PWMRead reads back the duty cycle set by PWMWrite.
func (d *Device) PWMRead(port Port, pin Pin) (uint8, error) {
	reg, err := Register(port, pin, OpPWMWrite)
	if err != nil {
		return 0, err
	}
	return d.readByte(reg)
}

// AnalogRead samples the 12-bit ADC on pin 0 of a port. Range 0..4095.
func (d *Device) AnalogRead(port Port) (uint16, error) {
	reg, err := Register(port, Pin0, OpAnalogRead)
	if err != nil {
		return 0, err
	}
	return d.readWord(reg)
}
