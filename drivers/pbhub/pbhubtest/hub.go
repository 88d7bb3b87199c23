// Package pbhubtest emulates a PbHub at the register level for host-side tests
// and tooling. It implements the same write/repeated-start-read transaction
// shape as the real firmware.
package pbhubtest

import (
	"errors"
	"sync"

	"pbhub-go/drivers/pbhub"
)

const (
	numPorts = 6
	maxLEDs  = 74
)

var portBase = [numPorts]uint8{0x40, 0x50, 0x60, 0x70, 0x80, 0xA0}

var (
	ErrAddress  = errors.New("pbhubtest: no device at address")
	ErrRegister = errors.New("pbhubtest: unknown register")
)

// Hub is an emulated PbHub. The zero value is not usable; call New.
type Hub struct {
	mu    sync.Mutex
	addr  uint16
	fw    byte
	txErr error

	dout   [numPorts][2]bool
	pwm    [numPorts][2]uint8
	din    [numPorts][2]bool
	adc    [numPorts]uint16
	angle  [numPorts][2]uint8
	pulse  [numPorts][2]uint16
	slen   [numPorts]uint16
	bright [numPorts]uint8
	pixels [numPorts][maxLEDs]uint32
	enc    [numPorts]uint16
}

// New returns an emulated hub at the default address reporting firmware 2.
func New() *Hub {
	return &Hub{addr: pbhub.AddressDefault, fw: 2}
}

// Tx implements tinygo drivers.I2C.
func (h *Hub) Tx(addr uint16, w, r []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.txErr != nil {
		return h.txErr
	}
	if addr != h.addr {
		return ErrAddress
	}
	if len(w) == 0 {
		return ErrRegister
	}
	reg := w[0]
	payload := w[1:]

	// Global registers.
	switch reg {
	case 0xFE:
		return h.reply(r, h.fw)
	case 0xFF:
		if len(payload) == 1 && payload[0] <= 0x7F {
			h.addr = uint16(payload[0])
			return nil
		}
		return ErrRegister
	}

	// Encoder region 0x90..0x9B.
	if reg >= 0x90 && reg < 0x90+2*numPorts {
		port := int(reg-0x90) / 2
		if reg&0x01 == 0 {
			return h.reply(r, byte(h.enc[port]), byte(h.enc[port]>>8))
		}
		h.enc[port] = 0
		return nil
	}

	port := -1
	for i, b := range portBase {
		if reg&0xF0 == b {
			port = i
			break
		}
	}
	if port < 0 {
		return ErrRegister
	}
	off := reg & 0x0F

	switch off {
	case 0x00, 0x01: // digital out latch
		pin := off & 0x01
		if len(payload) == 1 {
			h.dout[port][pin] = payload[0] == 0x01
			return nil
		}
		return h.reply(r, boolByte(h.dout[port][pin]))
	case 0x02, 0x03: // pwm duty
		pin := off & 0x01
		if len(payload) == 1 {
			h.pwm[port][pin] = payload[0]
			return nil
		}
		return h.reply(r, h.pwm[port][pin])
	case 0x04, 0x05: // digital in
		pin := off & 0x01
		return h.reply(r, boolByte(h.din[port][pin]))
	case 0x06: // 12-bit ADC, little-endian
		return h.reply(r, byte(h.adc[port]), byte(h.adc[port]>>8))
	case 0x08: // strip length
		if len(payload) == 2 {
			n := uint16(payload[0]) | uint16(payload[1])<<8
			if n > maxLEDs {
				return ErrRegister
			}
			h.slen[port] = n
			return nil
		}
		return h.reply(r, byte(h.slen[port]))
	case 0x09: // one pixel
		if len(payload) != 5 {
			return ErrRegister
		}
		i := uint16(payload[0]) | uint16(payload[1])<<8
		if i >= maxLEDs {
			return ErrRegister
		}
		h.pixels[port][i] = rgb(payload[2], payload[3], payload[4])
		return nil
	case 0x0A: // pixel range
		if len(payload) != 7 {
			return ErrRegister
		}
		start := uint16(payload[0]) | uint16(payload[1])<<8
		count := uint16(payload[2]) | uint16(payload[3])<<8
		if start+count > maxLEDs {
			return ErrRegister
		}
		c := rgb(payload[4], payload[5], payload[6])
		for i := start; i < start+count; i++ {
			h.pixels[port][i] = c
		}
		return nil
	case 0x0B: // brightness
		if len(payload) != 1 {
			return ErrRegister
		}
		h.bright[port] = payload[0]
		return nil
	case 0x0C, 0x0D: // servo angle
		pin := off & 0x01
		if len(payload) == 1 {
			if payload[0] > 180 {
				return ErrRegister
			}
			h.angle[port][pin] = payload[0]
			return nil
		}
		return h.reply(r, h.angle[port][pin])
	case 0x0E, 0x0F: // servo pulse
		pin := off & 0x01
		if len(payload) == 2 {
			us := uint16(payload[0]) | uint16(payload[1])<<8
			if us < 500 || us > 2500 {
				return ErrRegister
			}
			h.pulse[port][pin] = us
			return nil
		}
		return h.reply(r, byte(h.pulse[port][pin]), byte(h.pulse[port][pin]>>8))
	}
	return ErrRegister
}

func (h *Hub) reply(r []byte, data ...byte) error {
	for i := range r {
		if i < len(data) {
			r[i] = data[i]
		} else {
			r[i] = 0
		}
	}
	return nil
}

func boolByte(v bool) byte {
	if v {
		return 0x01
	}
	return 0x00
}

func rgb(r, g, b byte) uint32 {
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// ---- Test-side hooks ----

// FailWith makes every subsequent transaction return err. Pass nil to clear.
func (h *Hub) FailWith(err error) {
	h.mu.Lock()
	h.txErr = err
	h.mu.Unlock()
}

// SetInput drives a digital input pin as seen by the firmware.
func (h *Hub) SetInput(port, pin int, level bool) {
	h.mu.Lock()
	h.din[port][pin] = level
	h.mu.Unlock()
}

// SetAnalog drives the 12-bit ADC value for a port.
func (h *Hub) SetAnalog(port int, raw uint16) {
	h.mu.Lock()
	h.adc[port] = raw & 0x0FFF
	h.mu.Unlock()
}

// SetCount drives the encoder counter for a port.
func (h *Hub) SetCount(port int, count uint16) {
	h.mu.Lock()
	h.enc[port] = count
	h.mu.Unlock()
}

// Spin advances the encoder counter for a port by delta (may wrap).
func (h *Hub) Spin(port int, delta int) {
	h.mu.Lock()
	h.enc[port] += uint16(delta)
	h.mu.Unlock()
}

// Output reports the digital output latch.
func (h *Hub) Output(port, pin int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dout[port][pin]
}

// Duty reports the PWM latch.
func (h *Hub) Duty(port, pin int) uint8 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pwm[port][pin]
}

// Angle reports the last commanded servo angle.
func (h *Hub) Angle(port, pin int) uint8 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.angle[port][pin]
}

// Pulse reports the last commanded servo pulse width.
func (h *Hub) Pulse(port, pin int) uint16 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pulse[port][pin]
}

// StripLen reports the configured strip length.
func (h *Hub) StripLen(port int) uint16 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.slen[port]
}

// Brightness reports the strip brightness.
func (h *Hub) Brightness(port int) uint8 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bright[port]
}

// Pixel reports the stored 0xRRGGBB color of one LED.
func (h *Hub) Pixel(port, i int) uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pixels[port][i]
}

// Address reports the current (possibly reprogrammed) 7-bit address.
func (h *Hub) Address() uint16 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}
