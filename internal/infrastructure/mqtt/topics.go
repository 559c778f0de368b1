package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// Topic prefixes for PiHome MQTT traffic.
const (
	// TopicPrefix is the root of every PiHome topic.
	TopicPrefix = "pihome"

	// TopicPrefixCore carries state published by Core.
	TopicPrefixCore = "pihome/core"

	// TopicPrefixCommand carries commands addressed to Core.
	TopicPrefixCommand = "pihome/command"

	// TopicPrefixSystem carries system status (including the LWT).
	TopicPrefixSystem = "pihome/system"
)

// Topics provides builders for PiHome MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.DeviceValue(3) // "pihome/core/device/3/value"
type Topics struct{}

// DeviceValue returns the retained topic carrying a device's value.
//
// Example: pihome/core/device/3/value
func (Topics) DeviceValue(deviceID int64) string {
	return fmt.Sprintf("%s/device/%d/value", TopicPrefixCore, deviceID)
}

// RuleState returns the retained topic carrying a rule's satisfied state.
//
// Example: pihome/core/rule/2/state
func (Topics) RuleState(ruleID int64) string {
	return fmt.Sprintf("%s/rule/%d/state", TopicPrefixCore, ruleID)
}

// SensorReading returns the topic carrying live sensor reads.
//
// Example: pihome/core/sensor/1/value
func (Topics) SensorReading(sensorID int64) string {
	return fmt.Sprintf("%s/sensor/%d/value", TopicPrefixCore, sensorID)
}

// DeviceCommand returns the topic clients publish device commands to.
//
// Example: pihome/command/device/3
func (Topics) DeviceCommand(deviceID int64) string {
	return fmt.Sprintf("%s/device/%d", TopicPrefixCommand, deviceID)
}

// SystemStatus returns the system status topic.
//
// Example: pihome/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllDeviceCommands matches commands for every device.
//
// Pattern: pihome/command/device/+
func (Topics) AllDeviceCommands() string {
	return TopicPrefixCommand + "/device/+"
}

// AllTopics matches all PiHome traffic.
//
// Pattern: pihome/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// ParseDeviceCommand extracts the device id from a device command topic.
func (Topics) ParseDeviceCommand(topic string) (int64, bool) {
	rest, ok := strings.CutPrefix(topic, TopicPrefixCommand+"/device/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
