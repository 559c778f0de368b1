package gpio

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// StaticReader serves pin values from memory.
type StaticReader struct {
	mu     sync.RWMutex
	values map[string]float64
}

// NewStaticReader creates a reader seeded with values keyed by pin name.
func NewStaticReader(values map[string]float64) *StaticReader {
	r := &StaticReader{values: make(map[string]float64, len(values))}
	for pin, v := range values {
		r.values[strings.TrimSpace(pin)] = v
	}
	return r
}

// Set changes the value returned for pin.
func (r *StaticReader) Set(pin string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[strings.TrimSpace(pin)] = value
}

// Read returns the stored value, or ErrReadFailed for an unconfigured pin.
func (r *StaticReader) Read(ctx context.Context, pin string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.values[strings.TrimSpace(pin)]
	if !ok {
		return 0, fmt.Errorf("%w: pin %q not configured", ErrReadFailed, pin)
	}
	return v, nil
}
