package gpio

import "errors"

var (
	// ErrReadFailed indicates the pin could not be read.
	ErrReadFailed = errors.New("gpio: read failed")

	// ErrReadTimeout indicates the read did not complete in time.
	ErrReadTimeout = errors.New("gpio: read timed out")

	// ErrInvalidPin indicates a pin name that is not a GPIO number.
	ErrInvalidPin = errors.New("gpio: invalid pin")

	// ErrUnknownDriver indicates an unsupported gpio.driver setting.
	ErrUnknownDriver = errors.New("gpio: unknown driver")
)
