// Package bridge exposes vacuum state and commands over MQTT.
//
// For every attached device the bridge mirrors cache publishes onto
// retained topics and accepts commands from the broker:
//
//	robovac/state/{device}         retained StateMessage
//	robovac/availability/{device}  retained "online" / "offline"
//	robovac/command/{device}       CommandMessage in
//	robovac/ack/{device}           AckMessage out
//	robovac/health                 retained HealthMessage
//
// Commands run on their own goroutine with a timeout; the ack reports
// whether the device accepted the write, not the resulting state. The
// resulting state arrives on the state topic after the triggered poll.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package bridge
