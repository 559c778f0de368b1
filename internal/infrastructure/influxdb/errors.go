package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	// The caller runs without telemetry.
	ErrDisabled = errors.New("influxdb: telemetry disabled")

	// ErrConnectionFailed is returned by Connect when the server does not
	// answer a ping or reports itself unhealthy.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck on a nil or closed client.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrWriteFailed wraps every batch rejection handed to the SetOnError
	// callback.
	ErrWriteFailed = errors.New("influxdb: telemetry write failed")
)
