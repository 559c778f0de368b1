package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/pihome/internal/entity"
)

// MemberSatisfied is the Rule member that evaluates the rule.
const MemberSatisfied = "satisfied"

// Resolver resolves keys into values. Satisfied by *entity.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, key string, def any) (any, error)
}

// ConditionResult is the outcome of one condition in an evaluation.
type ConditionResult struct {
	Index     int    `json:"index"`
	Left      any    `json:"left"`
	Operator  string `json:"operator"`
	Right     any    `json:"right"`
	Satisfied bool   `json:"satisfied"`
}

// Evaluation is a detailed record of one rule evaluation.
type Evaluation struct {
	ID         string            `json:"id"`
	RuleID     int64             `json:"rule_id"`
	Satisfied  bool              `json:"satisfied"`
	Conditions []ConditionResult `json:"conditions"`
	StartedAt  time.Time         `json:"started_at"`
	DurationMS int64             `json:"duration_ms"`
}

// Evaluator decides whether rules hold.
//
// Thread Safety: all methods are safe for concurrent use.
type Evaluator struct {
	resolver  Resolver
	operators *Operators
}

// NewEvaluator creates an evaluator. A nil operators uses the built-ins.
func NewEvaluator(resolver Resolver, operators *Operators) *Evaluator {
	if operators == nil {
		operators = NewOperators()
	}
	return &Evaluator{resolver: resolver, operators: operators}
}

// Operators returns the operator set used by the evaluator.
func (e *Evaluator) Operators() *Operators {
	return e.operators
}

// Evaluate reports whether every condition of rule holds.
// An empty condition list holds.
func (e *Evaluator) Evaluate(ctx context.Context, rule *entity.Rule) (bool, error) {
	ev, err := e.Inspect(ctx, rule)
	if err != nil {
		return false, err
	}
	return ev.Satisfied, nil
}

// Inspect evaluates rule and returns the per-condition detail.
func (e *Evaluator) Inspect(ctx context.Context, rule *entity.Rule) (*Evaluation, error) {
	if rule == nil {
		return nil, fmt.Errorf("%w: nil rule", entity.ErrInvalidEntity)
	}

	ctx, err := enterRule(ctx, rule.ID)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	ev := &Evaluation{
		ID:         uuid.NewString(),
		RuleID:     rule.ID,
		Satisfied:  true,
		Conditions: make([]ConditionResult, 0, len(rule.Conditions)),
		StartedAt:  started.UTC(),
	}

	snap, err := e.readSnapshot(ctx, rule.Conditions)
	if err != nil {
		return nil, fmt.Errorf("rule %d: %w", rule.ID, err)
	}

	// Every condition is compared so a failing operator anywhere surfaces.
	for i, c := range rule.Conditions {
		fn, ok := e.operators.Lookup(c.Op)
		if !ok {
			return nil, fmt.Errorf("rule %d condition %d: %w: %q", rule.ID, i, ErrUnknownOperator, c.Op)
		}

		left := snap.value(c.Left)
		right := snap.value(c.Right)

		holds, err := fn(left, right)
		if err != nil {
			return nil, fmt.Errorf("rule %d condition %d: %w", rule.ID, i, err)
		}

		ev.Conditions = append(ev.Conditions, ConditionResult{
			Index:     i,
			Left:      displayValue(left),
			Operator:  string(c.Op),
			Right:     displayValue(right),
			Satisfied: holds,
		})
		if !holds {
			ev.Satisfied = false
		}
	}

	ev.DurationMS = time.Since(started).Milliseconds()
	return ev, nil
}

// snapshot holds the values read for one evaluation pass.
type snapshot map[entity.Key]any

func (s snapshot) value(o entity.Operand) any {
	if o.IsReference() {
		return s[o.Key()]
	}
	return o.Value()
}

// readSnapshot resolves each distinct reference once. A miss resolves to the
// key string itself.
func (e *Evaluator) readSnapshot(ctx context.Context, conditions []entity.Condition) (snapshot, error) {
	snap := make(snapshot)
	for _, key := range entity.References(conditions) {
		v, err := e.resolver.Resolve(ctx, key.String(), key.String())
		if err != nil {
			return nil, err
		}
		snap[key] = v
	}
	return snap, nil
}

// SatisfiedMember returns the Rule member that evaluates the rule.
// A disabled rule is never satisfied.
func (e *Evaluator) SatisfiedMember() entity.MemberFunc {
	return func(ctx context.Context, ent entity.Entity) (any, error) {
		rule, ok := ent.(*entity.Rule)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a rule", entity.ErrMemberMissing, ent.Kind())
		}
		if !rule.Enabled {
			return false, nil
		}
		return e.Evaluate(ctx, rule)
	}
}

// RegisterSatisfied adds "satisfied" to the Rule kind.
func (e *Evaluator) RegisterSatisfied(kinds *entity.Kinds) error {
	err := kinds.RegisterMember(entity.KindRule, MemberSatisfied, e.SatisfiedMember())
	if errors.Is(err, entity.ErrMemberExists) {
		return nil
	}
	return err
}

func displayValue(v any) any {
	if ent, ok := v.(entity.Entity); ok {
		return entity.ClientView(ent)
	}
	return v
}

// ─── Cycle Guard ────────────────────────────────────────────────────────────

type ruleStackKey struct{}

// enterRule records ruleID on the evaluation stack carried by ctx.
func enterRule(ctx context.Context, ruleID int64) (context.Context, error) {
	stack, _ := ctx.Value(ruleStackKey{}).([]int64)
	for _, id := range stack {
		if id == ruleID {
			return nil, fmt.Errorf("%w: rule %d", ErrRuleCycle, ruleID)
		}
	}

	next := make([]int64, len(stack), len(stack)+1)
	copy(next, stack)
	next = append(next, ruleID)
	return context.WithValue(ctx, ruleStackKey{}, next), nil
}
