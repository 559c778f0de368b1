// Package audit keeps a history of committed entity changes.
//
// A Recorder is registered as a change listener on the entity registry and
// writes one Entry per create, update, delete or device value change to the
// audit_log table. Entries are read back newest first through Repository.List.
//
// The source of a change (the HTTP API, the MQTT command bridge) travels in
// the context via WithSource; changes without one are attributed to "core".
//
// Recording is best effort: a failed insert is logged and never undoes or
// blocks the change that triggered it.
package audit
