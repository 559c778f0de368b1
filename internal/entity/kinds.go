package entity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/pihome/internal/gpio"
)

// Member names shared by several kinds.
const (
	memberID         = "id"
	memberCreated    = "created"
	memberLabel      = "label"
	memberPin        = "pin"
	memberValue      = "value"
	memberEnabled    = "enabled"
	memberConditions = "conditions"
)

// PinReader reads a GPIO pin. Satisfied by gpio.Reader.
type PinReader interface {
	Read(ctx context.Context, pin string) (float64, error)
}

// MemberFunc computes a member value for an entity of its kind.
type MemberFunc func(ctx context.Context, e Entity) (any, error)

// SensorObserver is called after every successful sensor read.
type SensorObserver func(ctx context.Context, s *Sensor, value float64)

// Kinds is the registry of entity kinds and their members.
//
// The built-in kinds are registered by NewKinds. Further members can be
// added with RegisterMember; kinds themselves are fixed.
type Kinds struct {
	mu        sync.RWMutex
	members   map[Kind]map[string]MemberFunc
	order     []Kind
	pins      PinReader
	observers []SensorObserver
	logger    Logger
}

// NewKinds creates the kind registry. pins backs Sensor.value.
func NewKinds(pins PinReader) *Kinds {
	k := &Kinds{
		members: make(map[Kind]map[string]MemberFunc),
		pins:    pins,
		logger:  noopLogger{},
	}

	for _, spec := range k.builtins() {
		k.order = append(k.order, spec.kind)
		k.members[spec.kind] = spec.members
	}
	return k
}

// SetLogger sets the logger used for sensor reads.
func (k *Kinds) SetLogger(logger Logger) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.logger = logger
}

// OnSensorRead registers an observer for successful sensor reads.
func (k *Kinds) OnSensorRead(fn SensorObserver) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.observers = append(k.observers, fn)
}

type kindSpec struct {
	kind    Kind
	members map[string]MemberFunc
}

func (k *Kinds) builtins() []kindSpec {
	return []kindSpec{
		{
			kind: KindSensor,
			members: map[string]MemberFunc{
				memberID:      entityID,
				memberCreated: entityCreated,
				memberLabel:   sensorField(func(s *Sensor) any { return s.Label }),
				memberPin:     sensorField(func(s *Sensor) any { return s.Pin }),
				memberValue:   k.readSensor,
			},
		},
		{
			kind: KindDevice,
			members: map[string]MemberFunc{
				memberID:      entityID,
				memberCreated: entityCreated,
				memberLabel:   deviceField(func(d *Device) any { return d.Label }),
				memberPin:     deviceField(func(d *Device) any { return d.Pin }),
				memberValue:   deviceField(func(d *Device) any { return d.Value }),
			},
		},
		{
			kind: KindRule,
			members: map[string]MemberFunc{
				memberID:         entityID,
				memberCreated:    entityCreated,
				memberLabel:      ruleField(func(r *Rule) any { return r.Label }),
				memberEnabled:    ruleField(func(r *Rule) any { return r.Enabled }),
				memberConditions: ruleField(func(r *Rule) any { return WireConditions(r.Conditions) }),
			},
		},
	}
}

// Has reports whether kind is registered.
func (k *Kinds) Has(kind Kind) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.members[kind]
	return ok
}

// Names returns registered kinds in registration order.
func (k *Kinds) Names() []Kind {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]Kind, len(k.order))
	copy(out, k.order)
	return out
}

// Members returns the member names of kind, sorted.
func (k *Kinds) Members(kind Kind) []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	names := make([]string, 0, len(k.members[kind]))
	for name := range k.members[kind] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Member looks up a member accessor.
func (k *Kinds) Member(kind Kind, name string) (MemberFunc, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	fn, ok := k.members[kind][name]
	return fn, ok
}

// RegisterMember adds a computed member to an existing kind.
func (k *Kinds) RegisterMember(kind Kind, name string, fn MemberFunc) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	members, ok := k.members[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrEntityNotFound, kind)
	}
	if _, exists := members[name]; exists {
		return fmt.Errorf("%w: %s/%s", ErrMemberExists, kind, name)
	}
	members[name] = fn
	return nil
}

// KeyFor builds the key of e, appending member only when e's kind
// declares it.
func (k *Kinds) KeyFor(e Entity, member string) Key {
	if member != "" {
		if _, ok := k.Member(e.Kind(), member); !ok {
			member = ""
		}
	}
	return FormatKey(e.Kind(), e.EntityID(), member)
}

// readSensor performs a live GPIO read. Values are never cached.
func (k *Kinds) readSensor(ctx context.Context, e Entity) (any, error) {
	s, ok := e.(*Sensor)
	if !ok {
		return nil, fmt.Errorf("%w: value on %s", ErrMemberMissing, e.Kind())
	}

	k.mu.RLock()
	logger := k.logger
	observers := k.observers
	k.mu.RUnlock()

	key := FormatKey(KindSensor, s.ID, memberValue)
	logger.Debug("reading sensor", "key", key, "pin", s.Pin)
	start := time.Now()

	v, err := k.pins.Read(ctx, s.Pin)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, gpio.ErrReadTimeout) {
			logger.Warn("sensor read timed out", "key", key, "pin", s.Pin, "error", err)
			return nil, fmt.Errorf("%w: %w", ErrValueUnavailable, err)
		}
		logger.Error("sensor read failed", "key", key, "pin", s.Pin, "error", err)
		return nil, fmt.Errorf("%w: sensor %d pin %s: %w", ErrHardwareRead, s.ID, s.Pin, err)
	}

	logger.Debug("sensor read", "key", key, "pin", s.Pin, "value", v, "duration", time.Since(start))

	for _, fn := range observers {
		fn(ctx, s, v)
	}
	return v, nil
}

func entityID(_ context.Context, e Entity) (any, error) {
	return e.EntityID(), nil
}

func entityCreated(_ context.Context, e Entity) (any, error) {
	return e.CreatedAt().UTC().Format(time.RFC3339), nil
}

func sensorField(get func(*Sensor) any) MemberFunc {
	return func(_ context.Context, e Entity) (any, error) {
		s, ok := e.(*Sensor)
		if !ok {
			return nil, ErrMemberMissing
		}
		return get(s), nil
	}
}

func deviceField(get func(*Device) any) MemberFunc {
	return func(_ context.Context, e Entity) (any, error) {
		d, ok := e.(*Device)
		if !ok {
			return nil, ErrMemberMissing
		}
		return get(d), nil
	}
}

func ruleField(get func(*Rule) any) MemberFunc {
	return func(_ context.Context, e Entity) (any, error) {
		r, ok := e.(*Rule)
		if !ok {
			return nil, ErrMemberMissing
		}
		return get(r), nil
	}
}
