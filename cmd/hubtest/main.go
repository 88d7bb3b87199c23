// cmd/hubtest/main.go
//
// Interactive exerciser for the pbhub driver. By default it talks to the
// in-process register emulator, which makes it usable on any machine; pass
// a script on stdin or run the built-in selftest.
//
//	hubtest            read-eval loop on stdin
//	hubtest selftest   scripted pass over every capability
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/shlex"

	"pbhub-go/drivers/pbhub"
	"pbhub-go/drivers/pbhub/pbhubtest"
	"pbhub-go/x/strconvx"
)

func main() {
	emu := pbhubtest.New()
	dev := pbhub.New(emu, pbhub.Config{})

	if len(os.Args) > 1 && os.Args[1] == "selftest" {
		if err := selftest(dev, emu); err != nil {
			fmt.Fprintln(os.Stderr, "selftest:", err)
			os.Exit(1)
		}
		fmt.Println("selftest ok")
		return
	}

	sc := bufio.NewScanner(os.Stdin)
	fmt.Println("hubtest: 'help' lists commands, 'quit' exits")
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		args, err := shlex.Split(line)
		if err != nil {
			fmt.Println("parse:", err)
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			return
		}
		if err := eval(dev, emu, args); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func eval(dev *pbhub.Device, emu *pbhubtest.Hub, args []string) error {
	switch args[0] {
	case "help":
		fmt.Print(helpText)
		return nil

	case "fw":
		v, err := dev.FirmwareVersion()
		if err != nil {
			return err
		}
		fmt.Println("firmware:", v)
		return nil

	case "dw":
		port, pin, err := portPin(args, 1)
		if err != nil {
			return err
		}
		level, err := parseU(args, 3, 1)
		if err != nil {
			return err
		}
		return dev.DigitalWrite(port, pin, level != 0)

	case "dr":
		port, pin, err := portPin(args, 1)
		if err != nil {
			return err
		}
		v, err := dev.DigitalRead(port, pin)
		if err != nil {
			return err
		}
		fmt.Println(boolInt(v))
		return nil

	case "pwm":
		port, pin, err := portPin(args, 1)
		if err != nil {
			return err
		}
		duty, err := parseU(args, 3, 255)
		if err != nil {
			return err
		}
		return dev.PWMWrite(port, pin, uint8(duty))

	case "adc":
		port, err := parsePort(args, 1)
		if err != nil {
			return err
		}
		v, err := dev.AnalogRead(port)
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil

	case "servo":
		port, pin, err := portPin(args, 1)
		if err != nil {
			return err
		}
		angle, err := parseU(args, 3, uint64(pbhub.ServoAngleMax))
		if err != nil {
			return err
		}
		return dev.SetServoAngle(port, pin, uint8(angle))

	case "pulse":
		port, pin, err := portPin(args, 1)
		if err != nil {
			return err
		}
		us, err := parseU(args, 3, uint64(pbhub.ServoPulseMax))
		if err != nil {
			return err
		}
		return dev.SetServoPulse(port, pin, uint16(us))

	case "led":
		return evalLED(dev, args)

	case "enc":
		if len(args) < 3 {
			return fmt.Errorf("usage: enc <read|reset> <port>")
		}
		port, err := parsePort(args, 2)
		if err != nil {
			return err
		}
		switch args[1] {
		case "read":
			v, err := dev.EncoderRead(port)
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		case "reset":
			return dev.EncoderReset(port)
		}
		return fmt.Errorf("unknown enc subcommand %q", args[1])

	// Emulator-side stimulus, so inputs can be exercised from the prompt.
	case "sim":
		return evalSim(emu, args)
	}
	return fmt.Errorf("unknown command %q (try 'help')", args[0])
}

func evalLED(dev *pbhub.Device, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: led <len|bright|set|fill> <port> ...")
	}
	port, err := parsePort(args, 2)
	if err != nil {
		return err
	}
	strip, err := dev.Strip(port)
	if err != nil {
		return err
	}
	switch args[1] {
	case "len":
		n, err := parseU(args, 3, uint64(pbhub.MaxLEDs))
		if err != nil {
			return err
		}
		return strip.SetLength(uint16(n))
	case "bright":
		v, err := parseU(args, 3, 255)
		if err != nil {
			return err
		}
		return strip.SetBrightness(uint8(v))
	case "set":
		idx, err := parseU(args, 3, uint64(pbhub.MaxLEDs)-1)
		if err != nil {
			return err
		}
		c, err := parseU(args, 4, 0xFFFFFF)
		if err != nil {
			return err
		}
		return strip.SetPixel(uint16(idx), uint32(c))
	case "fill":
		c, err := parseU(args, 3, 0xFFFFFF)
		if err != nil {
			return err
		}
		return strip.Fill(uint32(c))
	}
	return fmt.Errorf("unknown led subcommand %q", args[1])
}

func evalSim(emu *pbhubtest.Hub, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: sim <din|adc|spin> <port> <value> [pin]")
	}
	port64, err := strconvx.ParseUint(args[2], 0, 8)
	if err != nil {
		return err
	}
	val, err := strconvx.ParseInt(args[3], 0, 32)
	if err != nil {
		return err
	}
	switch args[1] {
	case "din":
		pin := 0
		if len(args) > 4 {
			pin, err = strconvx.Atoi(args[4])
			if err != nil {
				return err
			}
		}
		emu.SetInput(int(port64), pin, val != 0)
		return nil
	case "adc":
		emu.SetAnalog(int(port64), uint16(val))
		return nil
	case "spin":
		emu.Spin(int(port64), int(val))
		return nil
	}
	return fmt.Errorf("unknown sim subcommand %q", args[1])
}

// selftest drives every operation once and checks it landed in the emulator.
func selftest(dev *pbhub.Device, emu *pbhubtest.Hub) error {
	if err := dev.DigitalWrite(pbhub.Port0, pbhub.Pin0, true); err != nil {
		return err
	}
	if !emu.Output(0, 0) {
		return fmt.Errorf("digital write not latched")
	}

	emu.SetInput(1, 1, true)
	if v, err := dev.DigitalRead(pbhub.Port1, pbhub.Pin1); err != nil || !v {
		return fmt.Errorf("digital read: v=%v err=%v", v, err)
	}

	if err := dev.PWMWrite(pbhub.Port2, pbhub.Pin0, 128); err != nil {
		return err
	}
	if emu.Duty(2, 0) != 128 {
		return fmt.Errorf("pwm duty = %d", emu.Duty(2, 0))
	}

	emu.SetAnalog(2, 4095)
	if v, err := dev.AnalogRead(pbhub.Port2); err != nil || v != 4095 {
		return fmt.Errorf("analog read: v=%d err=%v", v, err)
	}

	if err := dev.SetServoAngle(pbhub.Port3, pbhub.Pin0, 90); err != nil {
		return err
	}
	if err := dev.SetServoPulse(pbhub.Port3, pbhub.Pin1, 1500); err != nil {
		return err
	}
	if emu.Angle(3, 0) != 90 || emu.Pulse(3, 1) != 1500 {
		return fmt.Errorf("servo: angle=%d pulse=%d", emu.Angle(3, 0), emu.Pulse(3, 1))
	}

	strip, err := dev.Strip(pbhub.Port5)
	if err != nil {
		return err
	}
	if err := strip.SetLength(8); err != nil {
		return err
	}
	if err := strip.SetBrightness(64); err != nil {
		return err
	}
	if err := strip.Fill(0x112233); err != nil {
		return err
	}
	if emu.Pixel(5, 7) != 0x112233 {
		return fmt.Errorf("strip fill: %#06x", emu.Pixel(5, 7))
	}

	emu.Spin(4, 12)
	if v, err := dev.EncoderRead(pbhub.Port4); err != nil || v != 12 {
		return fmt.Errorf("encoder read: v=%d err=%v", v, err)
	}
	if err := dev.EncoderReset(pbhub.Port4); err != nil {
		return err
	}
	if v, _ := dev.EncoderRead(pbhub.Port4); v != 0 {
		return fmt.Errorf("encoder reset: v=%d", v)
	}

	fw, err := dev.FirmwareVersion()
	if err != nil {
		return err
	}
	fmt.Println("firmware:", fw)
	return nil
}

func portPin(args []string, i int) (pbhub.Port, pbhub.Pin, error) {
	port, err := parsePort(args, i)
	if err != nil {
		return 0, 0, err
	}
	pin, err := parseU(args, i+1, 1)
	if err != nil {
		return 0, 0, err
	}
	return port, pbhub.Pin(pin), nil
}

func parsePort(args []string, i int) (pbhub.Port, error) {
	v, err := parseU(args, i, uint64(pbhub.NumPorts)-1)
	return pbhub.Port(v), err
}

// parseU reads args[i] as an unsigned value; base prefixes (0x, 0b) accepted.
func parseU(args []string, i int, max uint64) (uint64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing argument")
	}
	v, err := strconvx.ParseUint(args[i], 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad value %q: %v", args[i], err)
	}
	if v > max {
		return 0, fmt.Errorf("value %d out of range (max %d)", v, max)
	}
	return v, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const helpText = `commands:
  fw                         firmware version
  dw <port> <pin> <0|1>      digital write
  dr <port> <pin>            digital read
  pwm <port> <pin> <duty>    pwm duty 0..255
  adc <port>                 analog read (12-bit)
  servo <port> <pin> <deg>   servo angle 0..180
  pulse <port> <pin> <us>    servo pulse 500..2500
  led len <port> <n>         strip length (max 74)
  led bright <port> <v>      strip brightness 0..255
  led set <port> <i> <rgb>   one pixel, e.g. led set 5 0 0xFF0000
  led fill <port> <rgb>      whole strip
  enc read <port>            encoder count
  enc reset <port>           zero the count
  sim din <port> <0|1> [pin] drive an emulated input
  sim adc <port> <raw>       drive the emulated adc
  sim spin <port> <delta>    advance the emulated encoder
  quit
`
