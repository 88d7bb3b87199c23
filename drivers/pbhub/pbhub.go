// Package pbhub is a driver for the M5Stack PbHub expansion board, an I2C
// peripheral at address 0x61 that multiplexes six Grove ports with digital,
// PWM, analog, RC servo, quadrature encoder and RGB LED strip functions.
//
// The driver is a thin register mapper: a logical (port, pin, operation)
// tuple resolves to a fixed register address and a typed wire codec, and the
// byte transfer is delegated to an injected I2C transport. Every call is
// stateless and synchronous; there is no caching, no retries and no locking
// beyond the single-owner bus the transport already implies.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when
// both w and r are provided, without releasing the bus.
package pbhub

import "tinygo.org/x/drivers"

// Config holds construction parameters. All fields are optional.
type Config struct {
	// Address is the hub's 7-bit address; defaults to AddressDefault.
	Address uint16
}

// Validate rejects addresses outside the 7-bit range.
func (c Config) Validate() error {
	if c.Address > 0x7F {
		return ErrValueRange
	}
	return nil
}

// Device represents one PbHub on an I2C bus. The bus handle is borrowed, not
// owned; the driver never reconfigures it.
type Device struct {
	bus  drivers.I2C
	addr uint16

	// Fixed scratch buffers to avoid per-call heap allocations. The largest
	// write is a ranged LED color update (register + 7 payload bytes).
	w [8]byte
	r [2]byte
}

// New constructs a Device on an already configured bus. It only creates the
// object; the hardware is not touched.
func New(bus drivers.I2C, cfg Config) *Device {
	addr := cfg.Address
	if addr == 0 {
		addr = AddressDefault
	}
	return &Device{bus: bus, addr: addr}
}

// Address returns the 7-bit address the driver is talking to.
func (d *Device) Address() uint16 { return d.addr }

// FirmwareVersion reads the hub firmware revision.
func (d *Device) FirmwareVersion() (uint8, error) {
	return d.readByte(regFirmwareVersion)
}

// SetAddress reprograms the hub's 7-bit I2C address and retargets the driver
// at the new address. The change persists across power cycles.
func (d *Device) SetAddress(addr uint8) error {
	if addr > 0x7F {
		return ErrValueRange
	}
	if err := d.writeByte(regSetAddress, addr); err != nil {
		return err
	}
	d.addr = uint16(addr)
	return nil
}
