package config

// HubConfig is supplied on the "config/hub" bus topic.
type HubConfig struct {
	Hubs []Hub `json:"hubs"`
}

// Hub describes one PbHub board to be managed by the service.
type Hub struct {
	ID     string `json:"id"`
	BusRef BusRef `json:"bus_ref"`
	Addr   uint16 `json:"addr,omitempty"` // 7-bit; 0 means the vendor default
	Ports  []Port `json:"ports"`
}

// BusRef identifies a named bus instance previously configured in the
// platform layer.
type BusRef struct {
	Type string `json:"type"` // e.g. "i2c"
	ID   string `json:"id"`   // e.g. "i2c0"
}

// Port binds one hub connector (or one of its pins) to a capability.
type Port struct {
	Name string `json:"name"` // capability name, unique per service
	Mode string `json:"mode"` // "din","dout","pwm","adc","servo","rgb","encoder"
	Port uint8  `json:"port"` // 0..5
	Pin  uint8  `json:"pin,omitempty"`

	// Inputs (din, adc, encoder).
	PollMS int `json:"poll_ms,omitempty"`

	// Outputs.
	Initial *uint8 `json:"initial,omitempty"` // dout level / pwm duty / servo angle

	// LED strips.
	Length     uint16 `json:"length,omitempty"`
	Brightness *uint8 `json:"brightness,omitempty"`

	// Encoders.
	ResetOnStart bool `json:"reset_on_start,omitempty"`
}
