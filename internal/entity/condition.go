package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Operator names a comparison. The vocabulary is open: operators are
// stored as plain strings and interpreted by the evaluator.
type Operator string

// Built-in operators.
const (
	OpEqual          Operator = "Equal"
	OpNotEqual       Operator = "NotEqual"
	OpGreaterThan    Operator = "GreaterThan"
	OpLessThan       Operator = "LessThan"
	OpGreaterOrEqual Operator = "GreaterOrEqual"
	OpLessOrEqual    Operator = "LessOrEqual"
)

// literalWrapperField wraps string literals that would otherwise load
// as references: {"literal": "Sensor/1"}.
const literalWrapperField = "literal"

// Operand is either a Literal value or a Reference to a key.
type Operand struct {
	ref   Key
	value any
	isRef bool
}

// Literal returns an operand carrying v. Integer and float types are
// stored as float64 so stored and loaded operands compare equal.
func Literal(v any) Operand {
	return Operand{value: normaliseLiteral(v)}
}

// Reference returns an operand resolved through the key resolver.
func Reference(k Key) Operand {
	return Operand{ref: k, isRef: true}
}

// IsReference reports whether the operand is a Reference.
func (o Operand) IsReference() bool { return o.isRef }

// Key returns the referenced key, or "" for a literal.
func (o Operand) Key() Key { return o.ref }

// Value returns the literal value, or nil for a reference.
func (o Operand) Value() any { return o.value }

// String renders the operand for logs.
func (o Operand) String() string {
	if o.isRef {
		return string(o.ref)
	}
	return fmt.Sprintf("%v", o.value)
}

// Wire returns the stored JSON form of the operand as a plain value.
func (o Operand) Wire() any {
	if o.isRef {
		return string(o.ref)
	}
	if s, ok := o.value.(string); ok && IsReferenceShape(s) {
		return map[string]any{literalWrapperField: s}
	}
	return o.value
}

// MarshalJSON encodes the wire form.
func (o Operand) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Wire())
}

// UnmarshalJSON decodes the wire form. Strings shaped like a key become
// references; everything else is a literal.
func (o *Operand) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}

	op, err := operandFromWire(raw)
	if err != nil {
		return err
	}
	*o = op
	return nil
}

func operandFromWire(raw any) (Operand, error) {
	switch v := raw.(type) {
	case nil, bool, float64:
		return Literal(v), nil
	case string:
		if IsReferenceShape(v) {
			return Reference(Key(v)), nil
		}
		return Literal(v), nil
	case map[string]any:
		s, ok := v[literalWrapperField].(string)
		if !ok || len(v) != 1 {
			return Operand{}, fmt.Errorf("%w: unexpected object operand", ErrInvalidCondition)
		}
		return Literal(s), nil
	default:
		return Operand{}, fmt.Errorf("%w: unsupported operand %T", ErrInvalidCondition, raw)
	}
}

func normaliseLiteral(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	default:
		return v
	}
}

// validLiteral reports whether v survives a store round trip.
func validLiteral(v any) bool {
	switch v.(type) {
	case nil, bool, float64, string:
		return true
	default:
		return false
	}
}

// Condition is one (left, operator, right) triple.
type Condition struct {
	Left  Operand
	Op    Operator
	Right Operand
}

// Cond is shorthand for building a Condition.
func Cond(left Operand, op Operator, right Operand) Condition {
	return Condition{Left: left, Op: op, Right: right}
}

// MarshalJSON encodes the condition as [left, op, right].
func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Left, string(c.Op), c.Right})
}

// UnmarshalJSON decodes a [left, op, right] triple.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	if len(parts) != 3 {
		return fmt.Errorf("%w: want 3 elements, got %d", ErrInvalidCondition, len(parts))
	}

	var op string
	if err := json.Unmarshal(parts[1], &op); err != nil {
		return fmt.Errorf("%w: operator must be a string", ErrInvalidCondition)
	}

	var left, right Operand
	if err := left.UnmarshalJSON(parts[0]); err != nil {
		return err
	}
	if err := right.UnmarshalJSON(parts[2]); err != nil {
		return err
	}

	*c = Condition{Left: left, Op: Operator(op), Right: right}
	return nil
}

// Wire returns the condition as a plain [left, op, right] list.
func (c Condition) Wire() []any {
	return []any{c.Left.Wire(), string(c.Op), c.Right.Wire()}
}

// EncodeConditions serialises conditions to their stored text form.
func EncodeConditions(conditions []Condition) (string, error) {
	if len(conditions) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(conditions)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	return string(data), nil
}

// DecodeConditions parses stored condition text. Empty text is an empty list.
func DecodeConditions(text string) ([]Condition, error) {
	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) == 0 {
		return nil, nil
	}

	var conditions []Condition
	if err := json.Unmarshal(trimmed, &conditions); err != nil {
		if errors.Is(err, ErrInvalidCondition) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	if len(conditions) == 0 {
		return nil, nil
	}
	return conditions, nil
}

// WireConditions returns conditions in their decoded wire form.
func WireConditions(conditions []Condition) []any {
	out := make([]any, 0, len(conditions))
	for _, c := range conditions {
		out = append(out, c.Wire())
	}
	return out
}

// References returns the distinct keys referenced by conditions, in
// first-appearance order.
func References(conditions []Condition) []Key {
	seen := make(map[Key]bool)
	var keys []Key
	for _, c := range conditions {
		for _, o := range []Operand{c.Left, c.Right} {
			if o.IsReference() && !seen[o.ref] {
				seen[o.ref] = true
				keys = append(keys, o.ref)
			}
		}
	}
	return keys
}
