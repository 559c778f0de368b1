package gpio

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/pihome/internal/infrastructure/config"
)

// Reader reads the current level of a GPIO pin.
type Reader interface {
	Read(ctx context.Context, pin string) (float64, error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(ctx context.Context, pin string) (float64, error)

// Read calls f(ctx, pin).
func (f ReaderFunc) Read(ctx context.Context, pin string) (float64, error) {
	return f(ctx, pin)
}

// ReadCloser is a Reader holding hardware that must be released.
type ReadCloser interface {
	Reader
	Close() error
}

type readCloser struct {
	Reader
	close func() error
}

func (r readCloser) Close() error { return r.close() }

// New builds the Reader selected by cfg, bounded by its read timeout.
// Close releases the driver's pins.
func New(cfg config.GPIOConfig) (ReadCloser, error) {
	var (
		r       Reader
		closeFn = func() error { return nil }
	)
	switch strings.ToLower(cfg.Driver) {
	case "cdev", "":
		c := NewCdevReader(cfg.Chip)
		r, closeFn = c, c.Close
	case "static":
		r = NewStaticReader(cfg.Static)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	if cfg.ReadTimeoutMS > 0 {
		r = WithTimeout(r, time.Duration(cfg.ReadTimeoutMS)*time.Millisecond)
	}
	return readCloser{Reader: r, close: closeFn}, nil
}

// WithTimeout bounds every read by d. A read still running after d
// returns ErrReadTimeout; its eventual result is discarded.
func WithTimeout(r Reader, d time.Duration) Reader {
	return ReaderFunc(func(ctx context.Context, pin string) (float64, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		type result struct {
			value float64
			err   error
		}
		done := make(chan result, 1)

		go func() {
			v, err := r.Read(ctx, pin)
			done <- result{value: v, err: err}
		}()

		select {
		case res := <-done:
			return res.value, res.err
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: pin %s after %s", ErrReadTimeout, pin, d)
		}
	})
}

// WithObserver calls fn after every successful read.
func WithObserver(r Reader, fn func(pin string, value float64)) Reader {
	return ReaderFunc(func(ctx context.Context, pin string) (float64, error) {
		v, err := r.Read(ctx, pin)
		if err != nil {
			return 0, err
		}
		fn(pin, v)
		return v, nil
	})
}

// parsePin validates a pin name as a non-negative GPIO number.
func parsePin(pin string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(pin))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPin, pin)
	}
	return n, nil
}
