// Package influxdb records PiHome telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library and writes three
// measurements:
//   - sensor_reading: every successful GPIO read of a sensor
//   - device_value: every device value change
//   - rule_evaluation: every rule state transition
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteSensorReading(1, "17", 1)
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Async write failures are delivered to the SetOnError
// callback. A nil or closed *Client drops writes silently, so callers
// need no InfluxDB-enabled checks.
package influxdb
