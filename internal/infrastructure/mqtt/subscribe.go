package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// subackFailure is the SUBACK return code for a refused subscription.
const subackFailure = 0x80

// Subscribe requests a subscription on the current session without waiting
// for the SUBACK. Messages on topic are delivered to Handlers.OnMessage.
//
// Sessions are clean, so the caller subscribes again after every Open.
func (c *Client) Subscribe(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	client := c.current()
	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}

	token := client.Subscribe(topic, qos, c.wrapHandler())
	go c.logSubscribeAck(topic, token)

	return nil
}

// logSubscribeAck records the granted QoS once the broker answers.
func (c *Client) logSubscribeAck(topic string, token pahomqtt.Token) {
	logger := c.getLogger()
	if !token.WaitTimeout(defaultPublishTimeout) {
		if logger != nil {
			logger.Warn("subscribe not acknowledged", "topic", topic, "timeout", defaultPublishTimeout)
		}
		return
	}
	if logger == nil {
		return
	}
	if err := token.Error(); err != nil {
		logger.Warn("subscribe failed", "topic", topic, "error", fmt.Errorf("%w: %w", ErrSubscribeFailed, err))
		return
	}

	st, ok := token.(*pahomqtt.SubscribeToken)
	if !ok {
		logger.Info("subscribe acknowledged", "topic", topic)
		return
	}
	granted, err := grantedQoS(topic, st.Result())
	if err != nil {
		logger.Warn("subscribe refused by broker", "topic", topic, "error", err)
		return
	}
	logger.Info("subscribe acknowledged", "topic", topic, "qos", granted)
}

// grantedQoS reads the broker's answer for topic from a SUBACK result.
func grantedQoS(topic string, result map[string]byte) (byte, error) {
	q, found := result[topic]
	if !found {
		return 0, fmt.Errorf("%w: %s: no result in SUBACK", ErrSubscribeFailed, topic)
	}
	if q == subackFailure {
		return 0, fmt.Errorf("%w: %s: refused", ErrSubscribeFailed, topic)
	}
	return q, nil
}
