// Package entity holds PiHome's persistent entities and the key resolver
// that turns "Kind/Id[/Member]" strings into live values.
//
// Three kinds exist:
//   - Sensor: a GPIO input. Its "value" member reads the pin on every access.
//   - Device: an actuated output with a persisted boolean value.
//   - Rule: an ordered list of (left, operator, right) conditions.
//
// Entities are stored in SQLite through SQLiteStore and accessed through
// the Registry, which validates writes and notifies change listeners.
//
// Key resolution:
//
//	v, err := resolver.Resolve(ctx, "Sensor/3/value", nil)
//
// A key without "/" is a literal and comes back unchanged. An unknown kind
// is the only loud failure (ErrEntityNotFound); a bad id, missing record,
// unknown member or timed-out pin read all yield the caller's default.
// Hardware faults surface as ErrHardwareRead.
package entity
