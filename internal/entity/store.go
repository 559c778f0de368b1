package entity

import "context"

// Store persists entities. Identity is (kind, id).
//
// Every method on an unknown kind returns ErrEntityNotFound.
type Store interface {
	GetByID(ctx context.Context, kind Kind, id int64) (Entity, error)
	List(ctx context.Context, kind Kind) ([]Entity, error)
	ListEnabledRules(ctx context.Context) ([]*Rule, error)

	// Create assigns the id and creation time.
	Create(ctx context.Context, e Entity) error
	Update(ctx context.Context, e Entity) error
	Delete(ctx context.Context, kind Kind, id int64) error

	// SetDeviceValue updates only a device's persisted value.
	SetDeviceValue(ctx context.Context, id int64, value bool) error
}
