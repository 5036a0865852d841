package mqtt

import (
	"encoding/json"
	"fmt"
)

// maxPayloadSize caps a single bus message at 1MB, matching the
// coordinator link's default read limit.
const maxPayloadSize = 1 << 20

// Publish sends payload on topic and waits for the broker to accept it.
//
// The topic must be concrete (no wildcards). qos is 0, 1 or 2. Retained
// messages are for state such as Topics.LinkState, never for relayed
// messages.
//
// Example:
//
//	err := client.Publish(client.Topics().Inbound("device.list"), payload, 1, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if !validTopic(topic) {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishJSON marshals v and publishes it with the configured QoS.
func (c *Client) PublishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrPublishFailed, err)
	}
	return c.Publish(topic, payload, c.QoS(), retained)
}

// PublishRetained publishes a retained message with the configured QoS.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, c.QoS(), true)
}

// validTopic reports whether topic can be published to: non-empty with
// every level free of wildcards.
func validTopic(topic string) bool {
	if topic == "" {
		return false
	}
	for _, r := range topic {
		if r == '+' || r == '#' || r == 0 {
			return false
		}
	}
	return true
}
