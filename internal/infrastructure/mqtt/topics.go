package mqtt

import "fmt"

// Topic roots.
const (
	// TopicPrefix is the root of every bridge-facing topic.
	TopicPrefix = "robovac"

	// TopicPrefixSystem is the base for service status topics.
	TopicPrefixSystem = "robovac/system"

	// DefaultGatewayPrefix is used when the gateway prefix is not configured.
	DefaultGatewayPrefix = "robovac/gateway"
)

// Topics provides builders for the bridge-facing topics.
//
//	stateTopic := mqtt.Topics{}.State("hallway")
//	// Returns: "robovac/state/hallway"
type Topics struct{}

// State returns the retained state topic for a vacuum.
//
// Example: robovac/state/hallway
func (Topics) State(deviceID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, deviceID)
}

// Availability returns the retained online/offline topic for a vacuum.
//
// Example: robovac/availability/hallway
func (Topics) Availability(deviceID string) string {
	return fmt.Sprintf("%s/availability/%s", TopicPrefix, deviceID)
}

// Command returns the topic commands for a vacuum arrive on.
//
// Example: robovac/command/hallway
func (Topics) Command(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, deviceID)
}

// Ack returns the topic command acknowledgements are published on.
//
// Example: robovac/ack/hallway
func (Topics) Ack(deviceID string) string {
	return fmt.Sprintf("%s/ack/%s", TopicPrefix, deviceID)
}

// Health returns the service health topic.
func (Topics) Health() string {
	return TopicPrefix + "/health"
}

// SystemStatus returns the topic for online/offline status of the service.
//
// Example: robovac/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllCommands matches command topics for every vacuum.
//
// Pattern: robovac/command/+
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/+"
}

// AllStates matches state topics for every vacuum.
//
// Pattern: robovac/state/+
func (Topics) AllStates() string {
	return TopicPrefix + "/state/+"
}

// GatewayTopics builds request/response topics for the local-protocol
// gateway under a configurable prefix.
type GatewayTopics struct {
	Prefix string
}

func (g GatewayTopics) prefix() string {
	if g.Prefix == "" {
		return DefaultGatewayPrefix
	}
	return g.Prefix
}

// Request returns the topic requests for a device are published on.
//
// Example: robovac/gateway/request/hallway
func (g GatewayTopics) Request(deviceID string) string {
	return fmt.Sprintf("%s/request/%s", g.prefix(), deviceID)
}

// Response returns the topic the gateway answers a single request on.
//
// Example: robovac/gateway/response/hallway/3f0c...
func (g GatewayTopics) Response(deviceID, requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", g.prefix(), deviceID, requestID)
}

// AllResponses matches every response for every device.
//
// Pattern: robovac/gateway/response/+/+
func (g GatewayTopics) AllResponses() string {
	return g.prefix() + "/response/+/+"
}
