package automation

import "errors"

// Domain errors for the automation package.
var (
	// ErrUnknownOperator is returned when a condition names an unregistered operator.
	ErrUnknownOperator = errors.New("rule: unknown operator")

	// ErrOperatorExists is returned when registering an operator name twice.
	ErrOperatorExists = errors.New("rule: operator already registered")

	// ErrIncomparable is returned by Compare for operands that are neither
	// both numbers nor both strings. Ordering operators treat it as false.
	ErrIncomparable = errors.New("rule: operands are not comparable")

	// ErrRuleCycle is returned when rules reference each other's
	// satisfied member in a loop.
	ErrRuleCycle = errors.New("rule: reference cycle")

	// ErrInvalidCommand is returned for an unparseable device command.
	ErrInvalidCommand = errors.New("rule: invalid device command")
)
