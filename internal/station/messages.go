package station

import "encoding/json"

// Status is the station's reported availability.
type Status string

const (
	// StatusOnline is published on every new broker session.
	StatusOnline Status = "online"

	// StatusOffline is published on graceful shutdown and registered as
	// the last will.
	StatusOffline Status = "offline"
)

// Reasons carried by offline status messages.
const (
	ReasonUnexpectedDisconnect = "unexpected_disconnect"
	ReasonShutdown             = "shutdown"
)

// StatusMessage is published to the status topic (retained), or to the
// data topic when no status topic is configured.
type StatusMessage struct {
	Status        Status `json:"status"`
	Reason        string `json:"reason,omitempty"`
	SensorID      string `json:"sensor_id,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
	Version       string `json:"version,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds,omitempty"`
}

// WillMessage is the last will registered with the broker. It carries no
// timestamp because the broker publishes it long after it was built.
func WillMessage(sensorID string) StatusMessage {
	return StatusMessage{
		Status:   StatusOffline,
		Reason:   ReasonUnexpectedDisconnect,
		SensorID: sensorID,
	}
}

// Command names accepted on the command topic.
const (
	CommandPublishNow = "publish_now"
	CommandPing       = "ping"
)

// CommandMessage is the JSON document expected on the command topic.
type CommandMessage struct {
	Command string `json:"command"`
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// StatusMessage has only string and integer fields.
		panic(err)
	}
	return b
}
