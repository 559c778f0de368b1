package gpio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// DefaultChip is the GPIO character device carrying the 40-pin header on
// a Raspberry Pi.
const DefaultChip = "gpiochip0"

const cdevConsumer = "pihome"

// CdevReader reads pins through the Linux GPIO character device.
//
// The chip is opened on the first read, and each pin is requested as an
// input the first time it is read and held until Close.
type CdevReader struct {
	chipName string

	mu    sync.Mutex
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

// NewCdevReader creates a reader on chip (DefaultChip if empty). The name
// may be a bare chip name or a /dev path.
func NewCdevReader(chip string) *CdevReader {
	if chip == "" {
		chip = DefaultChip
	}
	return &CdevReader{
		chipName: chip,
		lines:    make(map[int]*gpiocdev.Line),
	}
}

// Read returns 1 for a high pin and 0 for a low one.
func (r *CdevReader) Read(ctx context.Context, pin string) (float64, error) {
	n, err := parsePin(pin)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	line, err := r.line(n)
	if err != nil {
		return 0, fmt.Errorf("%w: requesting pin %d: %w", ErrReadFailed, n, err)
	}

	v, err := line.Value()
	if err != nil {
		return 0, fmt.Errorf("%w: pin %d: %w", ErrReadFailed, n, err)
	}
	return float64(v), nil
}

// line returns the held input line for offset n, requesting it if needed.
func (r *CdevReader) line(n int) (*gpiocdev.Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.lines[n]; ok {
		return l, nil
	}

	if r.chip == nil {
		c, err := gpiocdev.NewChip(r.chipName, gpiocdev.WithConsumer(cdevConsumer))
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", r.chipName, err)
		}
		r.chip = c
	}

	l, err := r.chip.RequestLine(n, gpiocdev.AsInput)
	if err != nil {
		return nil, err
	}
	r.lines[n] = l
	return l, nil
}

// Close releases every requested line and the chip.
func (r *CdevReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for n, l := range r.lines {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("releasing pin %d: %w", n, err))
		}
		delete(r.lines, n)
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", r.chipName, err))
		}
		r.chip = nil
	}
	return errors.Join(errs...)
}
