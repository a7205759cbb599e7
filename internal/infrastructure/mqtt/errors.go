package mqtt

import (
	"errors"
	"fmt"

	"github.com/eclipse/paho.mqtt.golang/packets"
)

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected client.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed wraps every failed connection attempt.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish operation is rejected.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed reports a subscription the broker refused.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned for an empty topic, or a publish topic
	// containing wildcards.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")
)

// Reason classifies why a session failed to open or was lost.
type Reason string

// Reasons reported for failed or lost sessions.
const (
	ReasonTCPDisconnected             Reason = "tcp_disconnected"
	ReasonUnacceptableProtocolVersion Reason = "unacceptable_protocol_version"
	ReasonIdentifierRejected          Reason = "identifier_rejected"
	ReasonServerUnavailable           Reason = "server_unavailable"
	ReasonMalformedCredentials        Reason = "malformed_credentials"
	ReasonNotAuthorized               Reason = "not_authorized"
	ReasonProtocolViolation           Reason = "protocol_violation"
	ReasonDNSFailed                   Reason = "dns_failed"
	ReasonUnknown                     Reason = "unknown"
)

// ConnectError reports a failed or lost session together with its Reason.
// It matches ErrConnectionFailed under errors.Is.
type ConnectError struct {
	Reason Reason
	Err    error
}

func (e *ConnectError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrConnectionFailed, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", ErrConnectionFailed, e.Reason, e.Err)
}

// Unwrap exposes both the sentinel and the underlying paho error.
func (e *ConnectError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConnectionFailed}
	}
	return []error{ErrConnectionFailed, e.Err}
}

// ReasonOf extracts the Reason from err, or ReasonUnknown.
func ReasonOf(err error) Reason {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Reason
	}
	return ReasonUnknown
}

// reasonFromReturnCode maps a CONNACK return code to a Reason.
// A zero code on a failed token means the TCP/TLS dial itself failed.
func reasonFromReturnCode(rc byte) Reason {
	switch rc {
	case packets.Accepted, packets.ErrNetworkError:
		return ReasonTCPDisconnected
	case packets.ErrRefusedBadProtocolVersion:
		return ReasonUnacceptableProtocolVersion
	case packets.ErrRefusedIDRejected:
		return ReasonIdentifierRejected
	case packets.ErrRefusedServerUnavailable:
		return ReasonServerUnavailable
	case packets.ErrRefusedBadUsernameOrPassword:
		return ReasonMalformedCredentials
	case packets.ErrRefusedNotAuthorised:
		return ReasonNotAuthorized
	case packets.ErrProtocolViolation:
		return ReasonProtocolViolation
	default:
		return ReasonUnknown
	}
}
