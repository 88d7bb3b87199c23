package pbhub

import "errors"

// Sentinel errors (TinyGo-safe; no fmt). All validation happens before any
// bus access; transport errors propagate unmodified.
var (
	// ErrInvalidPort means the port is outside Port0..Port5.
	ErrInvalidPort = errors.New("pbhub: invalid port")
	// ErrInvalidPin means the pin is outside Pin0..Pin1.
	ErrInvalidPin = errors.New("pbhub: invalid pin")
	// ErrOpNotSupported means the operation does not exist on the given
	// port/pin combination (e.g. analog read on pin 1).
	ErrOpNotSupported = errors.New("pbhub: operation not supported on pin")
	// ErrValueRange means a value is outside the operation's domain.
	ErrValueRange = errors.New("pbhub: value out of range")
	// ErrShortResponse means a reply had the wrong byte length.
	ErrShortResponse = errors.New("pbhub: short response")
)
