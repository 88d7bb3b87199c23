package config

// Embedded configuration.
//
// Populate embeddedConfigs at build time (e.g. via code generation) or
// manually during development.
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device

const cfgPbhubHost = `{
  "hub": {
    "hubs": [
      {
        "id": "hub0",
        "bus_ref": {"type": "i2c", "id": "i2c0"},
        "ports": [
          {"name": "relay", "mode": "dout", "port": 0, "pin": 0},
          {"name": "button", "mode": "din", "port": 1, "pin": 0, "poll_ms": 50},
          {"name": "pot", "mode": "adc", "port": 2, "poll_ms": 100},
          {"name": "arm", "mode": "servo", "port": 3, "pin": 0, "initial": 90},
          {"name": "knob", "mode": "encoder", "port": 4, "poll_ms": 50, "reset_on_start": true},
          {"name": "lamp", "mode": "rgb", "port": 5, "length": 8, "brightness": 128}
        ]
      }
    ]
  },
  "bridge": {
    "transport": {"type": "tcp", "tcp": {"addr": "127.0.0.1:7817"}}
  },
  "heartbeat": {
    "interval": 2
  }
}`

var embeddedConfigs = map[string][]byte{
	"pbhub-host": []byte(cfgPbhubHost),
}
