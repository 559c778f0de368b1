package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by PiHome.
const (
	MeasurementSensorReading  = "sensor_reading"
	MeasurementDeviceValue    = "device_value"
	MeasurementRuleEvaluation = "rule_evaluation"
)

// WriteSensorReading records one GPIO read of a sensor.
// Non-blocking; points are batched and sent asynchronously.
//
//	client.WriteSensorReading(3, "17", 1)
func (c *Client) WriteSensorReading(sensorID int64, pin string, value float64) {
	c.WritePoint(MeasurementSensorReading,
		map[string]string{
			"sensor_id": strconv.FormatInt(sensorID, 10),
			"pin":       pin,
		},
		map[string]interface{}{
			"value": value,
		},
	)
}

// WriteDeviceValue records a device value change.
func (c *Client) WriteDeviceValue(deviceID int64, value bool) {
	c.WritePoint(MeasurementDeviceValue,
		map[string]string{
			"device_id": strconv.FormatInt(deviceID, 10),
		},
		map[string]interface{}{
			"value": value,
		},
	)
}

// WriteRuleEvaluation records a rule state transition.
func (c *Client) WriteRuleEvaluation(ruleID int64, satisfied bool, duration time.Duration) {
	c.WritePoint(MeasurementRuleEvaluation,
		map[string]string{
			"rule_id": strconv.FormatInt(ruleID, 10),
		},
		map[string]interface{}{
			"satisfied":   satisfied,
			"duration_ms": duration.Milliseconds(),
		},
	)
}

// WritePoint writes a custom point timestamped now.
//
// Tags are indexed and should be low cardinality; fields carry the data.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
