package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20 // 1MB

// Publish queues a message on the current session without waiting for the
// broker.
//
// It returns ErrNotConnected when no session is established. Acknowledgements
// are logged with their packet id when they arrive and are not otherwise
// acted on.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if !IsPublishable(topic) {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	client := c.current()
	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}

	token := client.Publish(topic, qos, retained, payload)
	go c.logPublishAck(topic, token)

	return nil
}

// logPublishAck records the outcome of a queued publish.
func (c *Client) logPublishAck(topic string, token pahomqtt.Token) {
	logger := c.getLogger()
	if !token.WaitTimeout(defaultPublishTimeout) {
		if logger != nil {
			logger.Warn("publish not acknowledged", "topic", topic, "timeout", defaultPublishTimeout)
		}
		return
	}
	if logger == nil {
		return
	}
	if err := token.Error(); err != nil {
		logger.Warn("publish failed", "topic", topic, "error", err)
		return
	}

	var packetID uint16
	if pt, ok := token.(*pahomqtt.PublishToken); ok {
		packetID = pt.MessageID()
	}
	logger.Debug("publish acknowledged", "topic", topic, "packet_id", packetID)
}
