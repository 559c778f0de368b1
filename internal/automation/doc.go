// Package automation evaluates PiHome rules and acts on the results.
//
// A rule holds when every one of its (left, operator, right) conditions
// holds. Evaluation runs in two phases:
//
//  1. Snapshot: every distinct referenced key is resolved once, so a
//     sensor named twice in a rule is read from the pin once.
//  2. Compare: each operator is applied to the snapshot values. All
//     conditions are compared so any hard failure surfaces.
//
// The Engine runs that evaluation for every enabled rule on an interval,
// spreading rules over a bounded worker pool. When a rule flips between
// satisfied and unsatisfied the new state is published to MQTT, broadcast
// to WebSocket clients and written to InfluxDB.
//
// DeviceBridge connects devices to MQTT: commands received on
// pihome/command/device/{id} set the device value, and every value change
// is published retained on pihome/core/device/{id}/value.
//
// Rules can refer to each other through the "Rule/{id}/satisfied" member.
// Reference cycles fail with ErrRuleCycle.
package automation
