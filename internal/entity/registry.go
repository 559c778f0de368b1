package entity

import (
	"context"
	"fmt"
	"sync"
)

// ChangeOp identifies what happened to an entity.
type ChangeOp string

// Change operations.
const (
	ChangeCreated  ChangeOp = "created"
	ChangeUpdated  ChangeOp = "updated"
	ChangeDeleted  ChangeOp = "deleted"
	ChangeValueSet ChangeOp = "value_set"
)

// Change describes a committed write. Entity is nil for deletions.
type Change struct {
	Op     ChangeOp
	Kind   Kind
	ID     int64
	Entity Entity
}

// ChangeFunc receives committed changes.
type ChangeFunc func(ctx context.Context, c Change)

// Registry is the entry point for entity reads and writes.
//
// It validates writes before they reach the Store and notifies change
// listeners after they commit. Reads always go to the Store so live
// values are never stale.
type Registry struct {
	store Store

	mu                sync.RWMutex
	listeners         []ChangeFunc
	validateCondition func(Condition) error
	logger            Logger
}

// NewRegistry creates a registry over store.
func NewRegistry(store Store) *Registry {
	return &Registry{
		store:  store,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// SetConditionValidator installs an extra check applied to every rule
// condition on write.
func (r *Registry) SetConditionValidator(fn func(Condition) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validateCondition = fn
}

// OnChange registers a listener for committed writes.
func (r *Registry) OnChange(fn ChangeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Store returns the underlying store.
func (r *Registry) Store() Store {
	return r.store
}

// GetByID retrieves one entity.
func (r *Registry) GetByID(ctx context.Context, kind Kind, id int64) (Entity, error) {
	return r.store.GetByID(ctx, kind, id)
}

// List retrieves all entities of a kind ordered by id.
func (r *Registry) List(ctx context.Context, kind Kind) ([]Entity, error) {
	return r.store.List(ctx, kind)
}

// ListEnabledRules retrieves enabled rules.
func (r *Registry) ListEnabledRules(ctx context.Context) ([]*Rule, error) {
	return r.store.ListEnabledRules(ctx)
}

// GetSensor retrieves a sensor by id.
func (r *Registry) GetSensor(ctx context.Context, id int64) (*Sensor, error) {
	e, err := r.store.GetByID(ctx, KindSensor, id)
	if err != nil {
		return nil, err
	}
	return e.(*Sensor), nil //nolint:forcetypeassert // Store returns *Sensor for KindSensor
}

// GetDevice retrieves a device by id.
func (r *Registry) GetDevice(ctx context.Context, id int64) (*Device, error) {
	e, err := r.store.GetByID(ctx, KindDevice, id)
	if err != nil {
		return nil, err
	}
	return e.(*Device), nil //nolint:forcetypeassert // Store returns *Device for KindDevice
}

// GetRule retrieves a rule by id.
func (r *Registry) GetRule(ctx context.Context, id int64) (*Rule, error) {
	e, err := r.store.GetByID(ctx, KindRule, id)
	if err != nil {
		return nil, err
	}
	return e.(*Rule), nil //nolint:forcetypeassert // Store returns *Rule for KindRule
}

// Create validates and stores e, assigning its id and creation time.
func (r *Registry) Create(ctx context.Context, e Entity) error {
	if err := r.validate(e); err != nil {
		return err
	}
	if err := r.store.Create(ctx, e); err != nil {
		return err
	}

	r.log().Info("entity created", "kind", e.Kind(), "id", e.EntityID())
	r.notify(ctx, Change{Op: ChangeCreated, Kind: e.Kind(), ID: e.EntityID(), Entity: e})
	return nil
}

// Update validates and replaces the persisted attributes of e.
func (r *Registry) Update(ctx context.Context, e Entity) error {
	if err := r.validate(e); err != nil {
		return err
	}
	if err := r.store.Update(ctx, e); err != nil {
		return err
	}

	// Reload so listeners see the stored creation time.
	stored, err := r.store.GetByID(ctx, e.Kind(), e.EntityID())
	if err != nil {
		return err
	}

	r.log().Info("entity updated", "kind", e.Kind(), "id", e.EntityID())
	r.notify(ctx, Change{Op: ChangeUpdated, Kind: e.Kind(), ID: e.EntityID(), Entity: stored})
	return nil
}

// Delete removes an entity.
func (r *Registry) Delete(ctx context.Context, kind Kind, id int64) error {
	if err := r.store.Delete(ctx, kind, id); err != nil {
		return err
	}

	r.log().Info("entity deleted", "kind", kind, "id", id)
	r.notify(ctx, Change{Op: ChangeDeleted, Kind: kind, ID: id})
	return nil
}

// SetDeviceValue persists a device value and returns the device.
// Listeners are notified only when the value actually changed.
func (r *Registry) SetDeviceValue(ctx context.Context, id int64, value bool) (*Device, error) {
	before, err := r.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.store.SetDeviceValue(ctx, id, value); err != nil {
		return nil, err
	}

	after := *before
	after.Value = value

	if before.Value != value {
		r.log().Info("device value changed", "id", id, "value", value)
		r.notify(ctx, Change{Op: ChangeValueSet, Kind: KindDevice, ID: id, Entity: &after})
	}
	return &after, nil
}

func (r *Registry) validate(e Entity) error {
	if err := Validate(e); err != nil {
		return err
	}

	rule, ok := e.(*Rule)
	if !ok {
		return nil
	}

	r.mu.RLock()
	check := r.validateCondition
	r.mu.RUnlock()

	if check == nil {
		return nil
	}
	for i, c := range rule.Conditions {
		if err := check(c); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}
	return nil
}

func (r *Registry) notify(ctx context.Context, c Change) {
	r.mu.RLock()
	listeners := make([]ChangeFunc, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()

	for _, fn := range listeners {
		fn(ctx, c)
	}
}

func (r *Registry) log() Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logger
}
