// Package pbhub provides constants for the register map of the M5Stack PbHub
// port expander and the pure address computation shared by all operations.
package pbhub

const (
	// 7-bit I2C address the hub ships with.
	AddressDefault = 0x61

	// --- Global registers (not port-relative) ---

	regFirmwareVersion = 0xFE // R, 1 byte
	regSetAddress      = 0xFF // W, 1 byte: new 7-bit address

	// --- Per-port operation offsets ---
	//
	// Each port owns a 16-byte register block at portBase[port]. Pin-paired
	// offsets occupy two consecutive addresses, pin 0 first.

	offDigitalOut = 0x00 // W 1 byte, pin-paired
	offPWMOut     = 0x02 // R/W 1 byte, pin-paired
	offDigitalIn  = 0x04 // R 1 byte, pin-paired
	offAnalogIn   = 0x06 // R 2 bytes LE (12-bit), pin 0 only
	offLEDCount   = 0x08 // W 2 bytes LE / R 1 byte
	offLEDColor   = 0x09 // W index u16 LE + R,G,B
	offLEDRange   = 0x0A // W start u16 LE + count u16 LE + R,G,B
	offLEDBright  = 0x0B // W 1 byte
	offServoAngle = 0x0C // R/W 1 byte (degrees), pin-paired
	offServoPulse = 0x0E // R/W 2 bytes LE (µs), pin-paired

	// --- Encoder block ---
	//
	// Quadrature counters live outside the port blocks, two registers per
	// port in the otherwise unused 0x90 region. A counter uses both pins of
	// its port, so encoder operations address the port, not a pin.

	regEncoderBase  = 0x90 // + 2*port: R 2 bytes LE, count
	regEncoderReset = 0x91 // + 2*port: W 1 byte (0x00), zeroes the count
)

// Port identifies one of the six Grove connectors on the hub.
type Port uint8

const (
	Port0 Port = iota
	Port1
	Port2
	Port3
	Port4
	Port5

	// NumPorts is the number of connectors on the hub.
	NumPorts = 6
)

// portBase holds the vendor's base register for each port block. Note the
// hole at 0x90: port 5 sits at 0xA0.
var portBase = [NumPorts]uint8{0x40, 0x50, 0x60, 0x70, 0x80, 0xA0}

// Pin selects one of the two signal lines on a port.
type Pin uint8

const (
	Pin0 Pin = iota
	Pin1
)

// Op enumerates the hub operations addressable through Register.
type Op uint8

const (
	OpDigitalRead Op = iota
	OpDigitalWrite
	OpPWMWrite
	OpAnalogRead
	OpServoAngle
	OpServoPulse
	OpLEDCount
	OpLEDBrightness
	OpLEDColor
	OpLEDRange
	OpEncoderRead
	OpEncoderReset
)

// Register computes the register address for a (port, pin, op) tuple. It is
// pure and performs no bus access; the same tuple always yields the same
// address, and distinct valid tuples yield distinct addresses.
//
// Operations that use the whole port (analog input, LED strip, encoder)
// accept Pin0 only.
func Register(port Port, pin Pin, op Op) (uint8, error) {
	if port >= NumPorts {
		return 0, ErrInvalidPort
	}
	if pin > Pin1 {
		return 0, ErrInvalidPin
	}
	base := portBase[port]
	switch op {
	case OpDigitalWrite:
		return base | (offDigitalOut + uint8(pin)), nil
	case OpPWMWrite:
		return base | (offPWMOut + uint8(pin)), nil
	case OpDigitalRead:
		return base | (offDigitalIn + uint8(pin)), nil
	case OpServoAngle:
		return base | (offServoAngle + uint8(pin)), nil
	case OpServoPulse:
		return base | (offServoPulse + uint8(pin)), nil
	}
	// Whole-port operations.
	if pin != Pin0 {
		return 0, ErrOpNotSupported
	}
	switch op {
	case OpAnalogRead:
		return base | offAnalogIn, nil
	case OpLEDCount:
		return base | offLEDCount, nil
	case OpLEDBrightness:
		return base | offLEDBright, nil
	case OpLEDColor:
		return base | offLEDColor, nil
	case OpLEDRange:
		return base | offLEDRange, nil
	case OpEncoderRead:
		return regEncoderBase + 2*uint8(port), nil
	case OpEncoderReset:
		return regEncoderReset + 2*uint8(port), nil
	}
	return 0, ErrOpNotSupported
}
