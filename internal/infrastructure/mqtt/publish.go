package mqtt

import "fmt"

// maxPayloadSize caps outgoing payloads. State messages are a few hundred
// bytes; anything near this is a bug.
const maxPayloadSize = 256 << 10

// Publish sends payload on topic and waits for the broker to acknowledge
// it (for QoS > 0).
//
// State and availability are retained so late subscribers see the current
// value. Commands, acks and gateway requests are never retained.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d byte payload exceeds %d", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	return await(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed)
}
