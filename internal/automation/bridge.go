package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/pihome/internal/audit"
	"github.com/nerrad567/pihome/internal/entity"
	"github.com/nerrad567/pihome/internal/infrastructure/mqtt"
)

// commandTimeout bounds one MQTT-triggered device write.
const commandTimeout = 5 * time.Second

// DeviceSetter persists device values. Satisfied by *entity.Registry.
type DeviceSetter interface {
	SetDeviceValue(ctx context.Context, id int64, value bool) (*entity.Device, error)
}

// Subscriber subscribes to MQTT topics. Satisfied by *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// DeviceValueEvent is published whenever a device value changes.
type DeviceValueEvent struct {
	DeviceID  int64     `json:"device_id"`
	Value     bool      `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// SensorReadEvent is broadcast after every successful sensor read.
type SensorReadEvent struct {
	SensorID  int64     `json:"sensor_id"`
	Pin       string    `json:"pin"`
	Value     float64   `json:"value"`
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
}

// DeviceBridge connects entity changes and MQTT.
//
// Inbound, it turns device commands into device value writes. Outbound,
// it publishes device value changes and sensor reads to MQTT, WebSocket
// clients and the recorder.
type DeviceBridge struct {
	devices  DeviceSetter
	mqtt     MQTTClient
	hub      WSHub
	recorder Recorder
	logger   Logger
}

// NewDeviceBridge creates a bridge. mqtt, hub, recorder and logger may be nil.
func NewDeviceBridge(devices DeviceSetter, mqtt MQTTClient, hub WSHub, recorder Recorder, logger Logger) *DeviceBridge {
	if logger == nil {
		logger = noopLogger{}
	}
	return &DeviceBridge{
		devices:  devices,
		mqtt:     mqtt,
		hub:      hub,
		recorder: recorder,
		logger:   logger,
	}
}

// Subscribe listens for device commands on every device.
func (b *DeviceBridge) Subscribe(sub Subscriber) error {
	topic := mqtt.Topics{}.AllDeviceCommands()
	if err := sub.Subscribe(topic, 1, b.HandleCommand); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	b.logger.Info("listening for device commands", "topic", topic)
	return nil
}

// HandleCommand applies a device command received on
// pihome/command/device/{id}.
func (b *DeviceBridge) HandleCommand(topic string, payload []byte) error {
	id, ok := mqtt.Topics{}.ParseDeviceCommand(topic)
	if !ok {
		return fmt.Errorf("%w: topic %q", ErrInvalidCommand, topic)
	}

	value, err := ParseCommandValue(payload)
	if err != nil {
		b.logger.Warn("ignoring device command", "topic", topic, "error", err)
		return err
	}

	ctx, cancel := context.WithTimeout(audit.WithSource(context.Background(), audit.SourceMQTT), commandTimeout)
	defer cancel()

	if _, err := b.devices.SetDeviceValue(ctx, id, value); err != nil {
		b.logger.Warn("device command failed", "device_id", id, "error", err)
		return fmt.Errorf("setting device %d: %w", id, err)
	}
	return nil
}

// ParseCommandValue decodes a device command payload. Accepted forms:
// {"value": <bool|number|string>}, a JSON bool or number, and the bare
// words on/off, true/false and 1/0.
func ParseCommandValue(payload []byte) (bool, error) {
	var wrapped struct {
		Value *json.RawMessage `json:"value"`
	}
	raw := payload
	if err := json.Unmarshal(payload, &wrapped); err == nil && wrapped.Value != nil {
		raw = *wrapped.Value
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		v = string(raw)
	}

	switch t := v.(type) {
	case bool:
		return t, nil
	case float64:
		switch t {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "on", "true", "1":
			return true, nil
		case "off", "false", "0":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: %s", ErrInvalidCommand, strconv.Quote(string(payload)))
}

// OnChange publishes device value state. Register with
// entity.Registry.OnChange.
func (b *DeviceBridge) OnChange(_ context.Context, c entity.Change) {
	if c.Kind != entity.KindDevice {
		return
	}

	topic := mqtt.Topics{}.DeviceValue(c.ID)

	if c.Op == entity.ChangeDeleted {
		// An empty retained message clears the topic.
		b.publish(topic, nil, c.ID)
		return
	}

	device, ok := c.Entity.(*entity.Device)
	if !ok {
		return
	}

	event := DeviceValueEvent{DeviceID: device.ID, Value: device.Value, Timestamp: time.Now().UTC()}
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Warn("failed to encode device value", "device_id", device.ID, "error", err)
		return
	}
	b.publish(topic, payload, device.ID)

	if c.Op != entity.ChangeValueSet {
		return
	}
	if b.hub != nil {
		b.hub.Broadcast(ChannelDeviceValue, event)
	}
	if b.recorder != nil {
		b.recorder.WriteDeviceValue(device.ID, device.Value)
	}
}

// OnSensorRead broadcasts and records a sensor read. Register with
// entity.Kinds.OnSensorRead.
func (b *DeviceBridge) OnSensorRead(_ context.Context, s *entity.Sensor, value float64) {
	event := SensorReadEvent{
		SensorID:  s.ID,
		Pin:       s.Pin,
		Value:     value,
		Key:       entity.FormatKey(entity.KindSensor, s.ID, "value").String(),
		Timestamp: time.Now().UTC(),
	}

	if b.mqtt != nil {
		if payload, err := json.Marshal(event); err == nil {
			if err := b.mqtt.Publish(mqtt.Topics{}.SensorReading(s.ID), payload, 0, false); err != nil {
				b.logger.Debug("failed to publish sensor read", "sensor_id", s.ID, "error", err)
			}
		}
	}
	if b.hub != nil {
		b.hub.Broadcast(ChannelSensorRead, event)
	}
	if b.recorder != nil {
		b.recorder.WriteSensorReading(s.ID, s.Pin, value)
	}
}

func (b *DeviceBridge) publish(topic string, payload []byte, deviceID int64) {
	if b.mqtt == nil {
		return
	}
	if err := b.mqtt.Publish(topic, payload, 1, true); err != nil {
		b.logger.Warn("failed to publish device value", "device_id", deviceID, "error", err)
	}
}
