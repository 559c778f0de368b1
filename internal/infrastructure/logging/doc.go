// Package logging provides structured logging for PiHome Core.
//
// The package wraps log/slog so every component logs the same way:
// JSON in production, text when developing, with the service name and
// build version attached to every record.
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("sensor read", "key", "Sensor/3/value", "value", 1.0)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
