package entity

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Validation limits.
const (
	MaxLabelLength = 100
	MaxPinLength   = 16
	MaxConditions  = 64
)

// ValidateSensor checks a sensor before it is stored.
func ValidateSensor(s *Sensor) error {
	if err := validateLabel(s.Label); err != nil {
		return err
	}
	return validatePin(s.Pin)
}

// ValidateDevice checks a device before it is stored.
func ValidateDevice(d *Device) error {
	if err := validateLabel(d.Label); err != nil {
		return err
	}
	return validatePin(d.Pin)
}

// ValidateRule checks a rule's label and the shape of its conditions.
// Operator names are checked by the automation package.
func ValidateRule(r *Rule) error {
	if err := validateLabel(r.Label); err != nil {
		return err
	}
	if len(r.Conditions) > MaxConditions {
		return fmt.Errorf("%w: more than %d conditions", ErrInvalidEntity, MaxConditions)
	}
	for i, c := range r.Conditions {
		if c.Op == "" {
			return fmt.Errorf("%w: condition %d has no operator", ErrInvalidCondition, i)
		}
		for _, o := range []Operand{c.Left, c.Right} {
			if o.IsReference() {
				if !IsReferenceShape(string(o.Key())) {
					return fmt.Errorf("%w: condition %d: malformed key %q", ErrInvalidCondition, i, o.Key())
				}
				continue
			}
			if !validLiteral(o.Value()) {
				return fmt.Errorf("%w: condition %d: unsupported literal %T", ErrInvalidCondition, i, o.Value())
			}
		}
	}
	return nil
}

// Validate dispatches to the kind-specific validator.
func Validate(e Entity) error {
	switch v := e.(type) {
	case *Sensor:
		return ValidateSensor(v)
	case *Device:
		return ValidateDevice(v)
	case *Rule:
		return ValidateRule(v)
	default:
		return fmt.Errorf("%w: %q", ErrEntityNotFound, e.Kind())
	}
}

func validateLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return fmt.Errorf("%w: label is required", ErrInvalidEntity)
	}
	if utf8.RuneCountInString(label) > MaxLabelLength {
		return fmt.Errorf("%w: label exceeds %d characters", ErrInvalidEntity, MaxLabelLength)
	}
	return nil
}

func validatePin(pin string) error {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return fmt.Errorf("%w: pin is required", ErrInvalidEntity)
	}
	if len(pin) > MaxPinLength {
		return fmt.Errorf("%w: pin exceeds %d characters", ErrInvalidEntity, MaxPinLength)
	}
	return nil
}
