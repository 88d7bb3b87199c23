package types

// ---- Common hub service state (retained) ----

type HubState struct {
	Level  string `json:"level"`  // e.g. "idle", "ready", "stopped"
	Status string `json:"status"` // freeform short code
	TS     int64  `json:"ts_ms"`
}

// Link is the link/state reported for a capability.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

type CapabilityStatus struct {
	Link  Link   `json:"link"`
	TS    int64  `json:"ts_ms"`
	Error string `json:"error,omitempty"`
}

// ---- Capability kinds ----

type Kind string

const (
	KindDigitalIn  Kind = "din"
	KindDigitalOut Kind = "dout"
	KindPWM        Kind = "pwm"
	KindAnalog     Kind = "adc"
	KindServo      Kind = "servo"
	KindLEDStrip   Kind = "rgb"
	KindEncoder    Kind = "encoder"
)

// Info envelope each capability exposes (retained).
type Info struct {
	SchemaVersion int         `json:"schema_version"`
	Driver        string      `json:"driver"`
	Detail        interface{} `json:"detail,omitempty"`
}

// PortRef locates a capability on a hub connector.
type PortRef struct {
	Hub  string `json:"hub"`
	Port uint8  `json:"port"`
	Pin  uint8  `json:"pin,omitempty"`
}

// ---- Per-kind info/value/control payloads ----

type DigitalValue struct {
	Level bool  `json:"level"`
	TS    int64 `json:"ts_ms"`
}

type DigitalSet struct {
	Level bool `json:"level"`
}

type AnalogValue struct {
	Raw uint16 `json:"raw"` // 0..4095
	TS  int64  `json:"ts_ms"`
}

type PWMValue struct {
	Duty uint8 `json:"duty"` // 0..255
}

type PWMSet struct {
	Duty uint8 `json:"duty"`
}

// PWMRamp moves the duty cycle to a target over a duration in linear steps.
type PWMRamp struct {
	To         uint8  `json:"to"`
	DurationMS uint32 `json:"duration_ms"`
	Steps      uint16 `json:"steps"`
}

type ServoSet struct {
	// Exactly one of Angle or PulseUS is used; PulseUS wins if both are set.
	Angle   *uint8  `json:"angle,omitempty"`    // 0..180 degrees
	PulseUS *uint16 `json:"pulse_us,omitempty"` // 500..2500 µs
}

type ServoValue struct {
	Angle   uint8  `json:"angle"`
	PulseUS uint16 `json:"pulse_us"`
}

type LEDStripInfo struct {
	Length uint16 `json:"length"`
}

// StripDetail is the info detail for rgb capabilities: where the strip sits
// plus how many LEDs are chained on it.
type StripDetail struct {
	PortRef
	LEDStripInfo
}

// LEDStripSet paints count LEDs starting at Start. Count 0 with Fill true
// paints the whole strip.
type LEDStripSet struct {
	Start      uint16 `json:"start,omitempty"`
	Count      uint16 `json:"count,omitempty"`
	Color      uint32 `json:"color"` // 0xRRGGBB
	Fill       bool   `json:"fill,omitempty"`
	Brightness *uint8 `json:"brightness,omitempty"`
}

type EncoderValue struct {
	Count uint16 `json:"count"`
	TS    int64  `json:"ts_ms"`
}

// ---- Generic replies ----

type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
