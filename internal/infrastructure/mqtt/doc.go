// Package mqtt provides MQTT client connectivity for the robovac service.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// The broker carries two kinds of traffic. Gateway traffic is the
// request/response exchange with the local-protocol gateway that talks to
// the vacuums on the LAN. Bridge traffic publishes vacuum state to the rest
// of the home and accepts commands from it.
//
//	robovac core ↔ MQTT broker ↔ local-protocol gateway ↔ vacuums
//	                     ↕
//	              home automation
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Anonymous access is only for local development
//   - Device access tokens never travel on bridge topics
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("command: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
