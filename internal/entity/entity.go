package entity

import (
	"time"
)

// Kind names an entity type. It is the first segment of every key.
type Kind string

// Built-in kinds.
const (
	KindSensor Kind = "Sensor"
	KindDevice Kind = "Device"
	KindRule   Kind = "Rule"
)

// Entity is implemented by *Sensor, *Device and *Rule.
type Entity interface {
	Kind() Kind
	EntityID() int64
	CreatedAt() time.Time

	// ClientView projects the entity into its client representation.
	ClientView() *View
}

// Base carries the fields every entity shares.
type Base struct {
	ID      int64
	Created time.Time
}

// EntityID returns the identifier, unique within the kind.
func (b *Base) EntityID() int64 { return b.ID }

// CreatedAt returns the creation timestamp.
func (b *Base) CreatedAt() time.Time { return b.Created }

func (b *Base) setIdentity(id int64, created time.Time) {
	b.ID = id
	b.Created = created
}

// identified is satisfied by every entity embedding Base.
type identified interface {
	setIdentity(id int64, created time.Time)
}

// Sensor is a GPIO input. Its value is never persisted.
type Sensor struct {
	Base
	Label string
	Pin   string
}

// Kind returns KindSensor.
func (*Sensor) Kind() Kind { return KindSensor }

// Device is an actuated output with a persisted on/off value.
type Device struct {
	Base
	Label string
	Pin   string
	Value bool
}

// Kind returns KindDevice.
func (*Device) Kind() Kind { return KindDevice }

// Rule is a conjunction of conditions. New rules are enabled.
type Rule struct {
	Base
	Label      string
	Enabled    bool
	Conditions []Condition
}

// NewRule returns an enabled rule with no conditions.
func NewRule(label string) *Rule {
	return &Rule{Label: label, Enabled: true}
}

// Kind returns KindRule.
func (*Rule) Kind() Kind { return KindRule }

// Same reports whether a and b denote the same stored entity.
func Same(a, b Entity) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Kind() == b.Kind() && a.EntityID() == b.EntityID()
}
