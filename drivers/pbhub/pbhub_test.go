package pbhub

import (
	"bytes"
	"errors"
	"testing"

	"tinygo.org/x/drivers"
)

// Compile-time check.
var _ drivers.I2C = (*fakeHub)(nil)

// fakeHub is a scripted register file standing in for the PbHub firmware.
// Writes store the payload under the register; reads return what was stored
// (or a preset), padded with zeros.
type fakeHub struct {
	addr  uint16
	regs  map[uint8][]byte
	lastW []byte
	txErr error
}

func newFakeHub() *fakeHub {
	return &fakeHub{addr: AddressDefault, regs: map[uint8][]byte{}}
}

func (f *fakeHub) preset(reg uint8, data ...byte) { f.regs[reg] = data }

func (f *fakeHub) Tx(addr uint16, w, r []byte) error {
	if f.txErr != nil {
		return f.txErr
	}
	if addr != f.addr {
		return errors.New("fake: wrong address")
	}
	if len(w) == 0 {
		return errors.New("fake: missing register")
	}
	reg := w[0]
	if len(w) > 1 {
		f.regs[reg] = append([]byte(nil), w[1:]...)
	}
	f.lastW = append([]byte(nil), w...)
	stored := f.regs[reg]
	for i := range r {
		if i < len(stored) {
			r[i] = stored[i]
		} else {
			r[i] = 0
		}
	}
	return nil
}

func TestDigitalRoundTrip(t *testing.T) {
	f := newFakeHub()
	d := New(f, Config{})

	if err := d.DigitalWrite(Port2, Pin1, true); err != nil {
		t.Fatalf("DigitalWrite: %v", err)
	}
	if !bytes.Equal(f.lastW, []byte{0x61, 0x01}) {
		t.Fatalf("wire bytes = % 02x, want 61 01", f.lastW)
	}
	v, err := d.DigitalOut(Port2, Pin1)
	if err != nil || !v {
		t.Fatalf("DigitalOut = %v, %v", v, err)
	}

	f.preset(0x64, 0x01) // port 2 pin 0 input high
	in, err := d.DigitalRead(Port2, Pin0)
	if err != nil || !in {
		t.Fatalf("DigitalRead = %v, %v", in, err)
	}

	// Only 0x01 counts as high; any other level byte reads as low.
	f.preset(0x65, 0x02)
	in, err = d.DigitalRead(Port2, Pin1)
	if err != nil || in {
		t.Fatalf("DigitalRead(0x02) = %v, %v, want false", in, err)
	}
}

func TestAnalogRead(t *testing.T) {
	f := newFakeHub()
	d := New(f, Config{})

	f.preset(0x76, 0xFF, 0x0F) // port 3 ADC at full scale, little-endian
	v, err := d.AnalogRead(Port3)
	if err != nil {
		t.Fatalf("AnalogRead: %v", err)
	}
	if v != 4095 {
		t.Fatalf("AnalogRead = %d, want 4095", v)
	}
}

func TestServo(t *testing.T) {
	f := newFakeHub()
	d := New(f, Config{})

	if err := d.SetServoAngle(Port0, Pin0, 90); err != nil {
		t.Fatalf("SetServoAngle: %v", err)
	}
	if !bytes.Equal(f.lastW, []byte{0x4C, 90}) {
		t.Fatalf("angle wire bytes = % 02x, want 4C 5A", f.lastW)
	}
	if err := d.SetServoAngle(Port0, Pin0, 181); err != ErrValueRange {
		t.Fatalf("angle 181: got %v, want ErrValueRange", err)
	}
	// Nothing may reach the bus on a failed encode.
	if !bytes.Equal(f.lastW, []byte{0x4C, 90}) {
		t.Fatalf("rejected write touched the bus: % 02x", f.lastW)
	}

	if err := d.SetServoPulse(Port1, Pin1, 1500); err != nil {
		t.Fatalf("SetServoPulse: %v", err)
	}
	if !bytes.Equal(f.lastW, []byte{0x5F, 0xDC, 0x05}) {
		t.Fatalf("pulse wire bytes = % 02x, want 5F DC 05", f.lastW)
	}
	us, err := d.ServoPulse(Port1, Pin1)
	if err != nil || us != 1500 {
		t.Fatalf("ServoPulse = %d, %v", us, err)
	}
}

func TestStrip(t *testing.T) {
	f := newFakeHub()
	d := New(f, Config{})

	s, err := d.Strip(Port5)
	if err != nil {
		t.Fatalf("Strip: %v", err)
	}
	if err := s.SetLength(10); err != nil {
		t.Fatalf("SetLength: %v", err)
	}
	if !bytes.Equal(f.lastW, []byte{0xA8, 10, 0}) {
		t.Fatalf("length wire bytes = % 02x", f.lastW)
	}
	if err := s.SetPixel(3, 0xFF00FF); err != nil {
		t.Fatalf("SetPixel: %v", err)
	}
	if !bytes.Equal(f.lastW, []byte{0xA9, 3, 0, 0xFF, 0x00, 0xFF}) {
		t.Fatalf("pixel wire bytes = % 02x", f.lastW)
	}
	if err := s.SetRange(2, 4, 0x00FFFF); err != nil {
		t.Fatalf("SetRange: %v", err)
	}
	if !bytes.Equal(f.lastW, []byte{0xAA, 2, 0, 4, 0, 0x00, 0xFF, 0xFF}) {
		t.Fatalf("range wire bytes = % 02x", f.lastW)
	}
	if err := s.SetBrightness(128); err != nil {
		t.Fatalf("SetBrightness: %v", err)
	}
	if !bytes.Equal(f.lastW, []byte{0xAB, 128}) {
		t.Fatalf("brightness wire bytes = % 02x", f.lastW)
	}

	if err := s.SetLength(MaxLEDs + 1); err != ErrValueRange {
		t.Fatalf("SetLength(75): got %v, want ErrValueRange", err)
	}
	if err := s.SetPixel(0, 0x1000000); err != ErrValueRange {
		t.Fatalf("SetPixel(>24bit): got %v, want ErrValueRange", err)
	}
	if err := s.SetRange(70, 10, 0); err != ErrValueRange {
		t.Fatalf("SetRange past end: got %v, want ErrValueRange", err)
	}

	// Fill uses the length read back from the hub.
	if err := s.Fill(0x010203); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if !bytes.Equal(f.lastW, []byte{0xAA, 0, 0, 10, 0, 0x01, 0x02, 0x03}) {
		t.Fatalf("fill wire bytes = % 02x", f.lastW)
	}
}

func TestEncoder(t *testing.T) {
	f := newFakeHub()
	d := New(f, Config{})

	f.preset(0x94, 0x34, 0x12) // port 2 count
	v, err := d.EncoderRead(Port2)
	if err != nil || v != 0x1234 {
		t.Fatalf("EncoderRead = %#04x, %v", v, err)
	}
	if err := d.EncoderReset(Port2); err != nil {
		t.Fatalf("EncoderReset: %v", err)
	}
	if !bytes.Equal(f.lastW, []byte{0x95, 0x00}) {
		t.Fatalf("reset wire bytes = % 02x", f.lastW)
	}
}

func TestFirmwareAndAddress(t *testing.T) {
	f := newFakeHub()
	d := New(f, Config{})

	f.preset(regFirmwareVersion, 2)
	v, err := d.FirmwareVersion()
	if err != nil || v != 2 {
		t.Fatalf("FirmwareVersion = %d, %v", v, err)
	}

	if err := d.SetAddress(0x80); err != ErrValueRange {
		t.Fatalf("SetAddress(0x80): got %v, want ErrValueRange", err)
	}
	f.addr = AddressDefault
	if err := d.SetAddress(0x62); err != nil {
		t.Fatalf("SetAddress: %v", err)
	}
	if d.Address() != 0x62 {
		t.Fatalf("driver did not retarget: %#02x", d.Address())
	}
}

func TestBusErrorsPropagate(t *testing.T) {
	f := newFakeHub()
	d := New(f, Config{})

	boom := errors.New("nak")
	f.txErr = boom
	if _, err := d.AnalogRead(Port0); err != boom {
		t.Fatalf("AnalogRead error = %v, want the transport error unmodified", err)
	}
	if err := d.DigitalWrite(Port0, Pin0, true); err != boom {
		t.Fatalf("DigitalWrite error = %v, want the transport error unmodified", err)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{Address: 0x61}).Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if err := (Config{Address: 0x1FF}).Validate(); err != ErrValueRange {
		t.Fatalf("8-bit address accepted: %v", err)
	}
	d := New(newFakeHub(), Config{})
	if d.Address() != AddressDefault {
		t.Fatalf("default address = %#02x", d.Address())
	}
}
