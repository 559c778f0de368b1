package entity

import "errors"

// Domain errors for the entity package.
//
//	if errors.Is(err, entity.ErrRecordMissing) {
//	    // handle not found case
//	}
var (
	// ErrEntityNotFound is returned when a key names a kind that is not registered.
	ErrEntityNotFound = errors.New("entity: unknown kind")

	// ErrRecordMissing is returned when no record exists for a kind and id.
	ErrRecordMissing = errors.New("entity: record not found")

	// ErrMemberMissing is returned when a kind has no member of the given name.
	ErrMemberMissing = errors.New("entity: unknown member")

	// ErrMemberExists is returned when registering a member name twice.
	ErrMemberExists = errors.New("entity: member already registered")

	// ErrHardwareRead is returned when a sensor pin cannot be read.
	ErrHardwareRead = errors.New("entity: hardware read failed")

	// ErrValueUnavailable is returned when a live value could not be
	// obtained in time. The resolver substitutes the default.
	ErrValueUnavailable = errors.New("entity: value unavailable")

	// ErrInvalidEntity is returned when entity validation fails.
	ErrInvalidEntity = errors.New("entity: invalid")

	// ErrInvalidCondition is returned when a stored or submitted condition is malformed.
	ErrInvalidCondition = errors.New("entity: invalid condition")
)
