package entity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Resolver turns keys into live values.
type Resolver struct {
	store  Store
	kinds  *Kinds
	logger Logger
}

// NewResolver creates a resolver over store and kinds.
func NewResolver(store Store, kinds *Kinds) *Resolver {
	return &Resolver{
		store:  store,
		kinds:  kinds,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the resolver.
func (r *Resolver) SetLogger(logger Logger) {
	r.logger = logger
}

// Kinds returns the kind registry the resolver consults.
func (r *Resolver) Kinds() *Kinds {
	return r.kinds
}

// Resolve returns the value addressed by key.
//
//   - No "/" in key: key itself, without touching the store.
//   - Unknown kind: ErrEntityNotFound.
//   - Non-integer id, missing record or unknown member: def.
//   - No member: the entity.
//   - Otherwise: the member value. Hardware faults return ErrHardwareRead;
//     a timed-out read yields def.
func (r *Resolver) Resolve(ctx context.Context, key string, def any) (any, error) {
	parts, ok := ParseKey(key)
	if !ok {
		return key, nil
	}

	if !r.kinds.Has(parts.Kind) {
		return nil, fmt.Errorf("%w: %q in key %q", ErrEntityNotFound, parts.Kind, key)
	}

	id, err := strconv.ParseInt(parts.ID, 10, 64)
	if err != nil {
		r.logger.Debug("key id is not an integer", "key", key)
		return def, nil
	}

	e, err := r.store.GetByID(ctx, parts.Kind, id)
	if err != nil {
		if errors.Is(err, ErrRecordMissing) {
			r.logger.Debug("key record missing", "key", key)
			return def, nil
		}
		return nil, fmt.Errorf("resolving %q: %w", key, err)
	}

	if !parts.HasMember {
		return e, nil
	}

	member, ok := r.kinds.Member(parts.Kind, parts.Member)
	if !ok {
		r.logger.Debug("key member unknown", "key", key)
		return def, nil
	}

	v, err := member(ctx, e)
	if err != nil {
		if errors.Is(err, ErrValueUnavailable) || errors.Is(err, ErrMemberMissing) {
			return def, nil
		}
		return nil, fmt.Errorf("resolving %q: %w", key, err)
	}
	return v, nil
}
