// Package api implements the HTTP REST API and WebSocket server for PiHome Core.
//
// This package provides:
//   - REST endpoints for sensor, device and rule CRUD
//   - Live sensor reads, device value writes and rule inspection
//   - Key resolution over HTTP (GET /api/v1/keys/Sensor/1/value)
//   - The entity change history (GET /api/v1/audit)
//   - WebSocket hub for sensor reads, device values and rule transitions
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// Every entity is returned as its client projection: id, created, the
// declared attributes and, for sensors and devices, the value key.
//
// # Graceful Degradation
//
// The server operates without MQTT, a rule engine or an audit log. Reads, writes and
// WebSocket connections keep working; only the metrics for the missing
// component are left empty.
package api
