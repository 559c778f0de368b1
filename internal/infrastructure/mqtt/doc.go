// Package mqtt connects PiHome Core to an MQTT broker.
//
// Core publishes state and accepts commands:
//
//	pihome/core/device/{id}/value   retained device value
//	pihome/core/rule/{id}/state     retained rule state
//	pihome/core/sensor/{id}/value   live sensor reads
//	pihome/command/device/{id}      inbound device commands
//	pihome/system/status            online/offline (LWT)
//
// Topics builds these names; see topics.go.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        id, _ := mqtt.Topics{}.ParseDeviceCommand(topic)
//	        log.Printf("device %d: %s", id, payload)
//	        return nil
//	    })
//
// Use TLS (mqtt.broker.tls) whenever the broker is not on localhost.
package mqtt
