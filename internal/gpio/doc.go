// Package gpio reads digital input pins for PiHome sensors.
//
// The package is deliberately thin: a Reader returns the current level of
// a pin as a float64. CdevReader talks to the Linux GPIO character device
// through go-gpiocdev, StaticReader serves fixed values for development
// boards and tests.
//
// Readers compose through decorators:
//
//	r := gpio.NewCdevReader("gpiochip0")
//	r = gpio.WithTimeout(r, 2*time.Second)
//	r = gpio.WithObserver(r, func(pin string, v float64) { ... })
//
// Hardware failures wrap ErrReadFailed. A read that outlives its timeout
// returns ErrReadTimeout, which callers treat as "no reading" rather than
// a hardware fault.
package gpio
