package automation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/nerrad567/pihome/internal/entity"
)

// OperatorFunc compares two resolved operands.
type OperatorFunc func(left, right any) (bool, error)

// Operators is the operator vocabulary. The built-in comparison
// operators are always present; more can be registered.
type Operators struct {
	mu    sync.RWMutex
	funcs map[entity.Operator]OperatorFunc
}

// NewOperators returns the built-in operator set.
func NewOperators() *Operators {
	return &Operators{
		funcs: map[entity.Operator]OperatorFunc{
			entity.OpEqual:          opEqual,
			entity.OpNotEqual:       opNotEqual,
			entity.OpGreaterThan:    ordered(func(c int) bool { return c > 0 }),
			entity.OpLessThan:       ordered(func(c int) bool { return c < 0 }),
			entity.OpGreaterOrEqual: ordered(func(c int) bool { return c >= 0 }),
			entity.OpLessOrEqual:    ordered(func(c int) bool { return c <= 0 }),
		},
	}
}

// Register adds a new operator.
func (o *Operators) Register(name entity.Operator, fn OperatorFunc) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.funcs[name]; exists {
		return fmt.Errorf("%w: %s", ErrOperatorExists, name)
	}
	o.funcs[name] = fn
	return nil
}

// Lookup returns the function for name.
func (o *Operators) Lookup(name entity.Operator) (OperatorFunc, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	fn, ok := o.funcs[name]
	return fn, ok
}

// Names returns registered operator names, sorted.
func (o *Operators) Names() []entity.Operator {
	o.mu.RLock()
	defer o.mu.RUnlock()

	names := make([]entity.Operator, 0, len(o.funcs))
	for name := range o.funcs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// ValidateCondition rejects conditions with unregistered operators.
// Suitable for entity.Registry.SetConditionValidator.
func (o *Operators) ValidateCondition(c entity.Condition) error {
	if _, ok := o.Lookup(c.Op); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOperator, c.Op)
	}
	return nil
}

// Normalise maps an operand onto the comparison domain:
//
//   - bool: 1 or 0
//   - any integer or float type: float64
//   - string: a finite number if it parses as one after trimming,
//     1 or 0 for "true" or "false", otherwise the string itself
//   - anything else: unchanged
func Normalise(v any) any {
	switch n := v.(type) {
	case bool:
		if n {
			return 1.0
		}
		return 0.0
	case float64:
		return n
	case float32:
		return float64(n)
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
	case string:
		return normaliseString(n)
	default:
		return v
	}
}

func normaliseString(s string) any {
	trimmed := strings.TrimSpace(s)
	switch strings.ToLower(trimmed) {
	case "true":
		return 1.0
	case "false":
		return 0.0
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}

// Equal reports whether two operands are equal after normalisation.
// Numbers compare numerically, entities by kind and id, anything else
// by deep equality.
func Equal(left, right any) bool {
	l, r := Normalise(left), Normalise(right)

	if lf, ok := l.(float64); ok {
		rf, ok := r.(float64)
		return ok && lf == rf
	}

	if le, ok := l.(entity.Entity); ok {
		re, ok := r.(entity.Entity)
		return ok && entity.Same(le, re)
	}

	return reflect.DeepEqual(l, r)
}

// Compare orders two operands: both numeric or both strings. Any other
// pairing returns ErrIncomparable.
func Compare(left, right any) (int, error) {
	l, r := Normalise(left), Normalise(right)

	switch lv := l.(type) {
	case float64:
		if rv, ok := r.(float64); ok {
			switch {
			case lv < rv:
				return -1, nil
			case lv > rv:
				return 1, nil
			default:
				return 0, nil
			}
		}
	case string:
		if rv, ok := r.(string); ok {
			return strings.Compare(lv, rv), nil
		}
	}
	return 0, fmt.Errorf("%w: %T and %T", ErrIncomparable, left, right)
}

func opEqual(left, right any) (bool, error) {
	return Equal(left, right), nil
}

func opNotEqual(left, right any) (bool, error) {
	return !Equal(left, right), nil
}

// ordered builds an ordering operator. Operands that cannot be ordered
// against each other (a defaulted key string against a number, say) make
// the condition false rather than failing the rule.
func ordered(accept func(c int) bool) OperatorFunc {
	return func(left, right any) (bool, error) {
		c, err := Compare(left, right)
		if errors.Is(err, ErrIncomparable) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return accept(c), nil
	}
}
