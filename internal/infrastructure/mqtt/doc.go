// Package mqtt provides MQTT client connectivity for Relay Bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//   - The device/{id}/... topic contract (builders and inbound parsing)
//
// # Architecture
//
// Relay devices publish their state under device/{id}/... and listen for
// commands on device/{id}/command/.... The bridge subscribes to wildcard
// state patterns and fans updates out to Telegram chats and the dashboard.
//
//	Relay Devices ↔ MQTT Broker ↔ Relay Bridge ↔ Telegram / Dashboard
//
// # Security Considerations
//
//   - TLS is recommended for non-local brokers (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all device status announcements
//	err = client.Subscribe(mqtt.Topics{}.AllStatuses(), 1,
//	    func(topic string, payload []byte) error {
//	        ev, err := mqtt.ParseStateTopic(topic, payload)
//	        if err != nil {
//	            return err
//	        }
//	        log.Printf("device %s: %s", ev.DeviceID, ev.Payload)
//	        return nil
//	    })
//
//	// Turn relay 1 on
//	topic := mqtt.Topics{}.SwitchCommand("sensor_01", 1)
//	client.PublishCommand(topic, "1")
package mqtt
