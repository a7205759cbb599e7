package mqtt

import (
	"strings"

	"github.com/nerrad567/weatherstation/internal/infrastructure/config"
)

// Topics holds the fixed topics of one station.
//
//	topics := mqtt.NewTopics(cfg.MQTT)
//	topics.Command // "sensors/street_1253/WT_001/comandos"
type Topics struct {
	// Command is subscribed on every session.
	Command string

	// Data receives the reading documents.
	Data string

	// Status receives liveness and last-will payloads. Empty when disabled.
	Status string
}

// NewTopics builds the station topics from configuration.
func NewTopics(cfg config.MQTTConfig) Topics {
	data := cfg.Topics.Data
	if data == "" {
		data = cfg.Topics.Base
	}
	return Topics{
		Command: CommandTopic(cfg.Topics.Base, cfg.Topics.CommandSuffix),
		Data:    data,
		Status:  cfg.Topics.Status,
	}
}

// CommandTopic joins a base topic and a suffix with exactly one separator.
func CommandTopic(base, suffix string) string {
	base = strings.TrimRight(base, "/")
	suffix = strings.TrimLeft(suffix, "/")
	if suffix == "" {
		return base
	}
	return base + "/" + suffix
}

// IsPublishable reports whether topic can be published to: non-empty and
// free of wildcards.
func IsPublishable(topic string) bool {
	return topic != "" && !strings.ContainsAny(topic, "+#")
}
