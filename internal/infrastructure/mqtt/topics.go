package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every registrar topic.
const TopicPrefix = "onehud"

// Topics builds the registrar's MQTT topic names.
type Topics struct{}

// Registration returns the topic for a delivered registration.
// Colons in the MAC are replaced so the level stays readable in broker UIs.
//
// Example: onehud/registration/24-6f-28-aa-bb-cc
func (Topics) Registration(mac string) string {
	return fmt.Sprintf("%s/registration/%s", TopicPrefix, topicLevel(mac))
}

// RegistrarStatus returns the retained online/offline status topic.
func (Topics) RegistrarStatus() string {
	return TopicPrefix + "/registrar/status"
}

// topicLevel normalises a value for use as a single topic level.
func topicLevel(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "unknown"
	}
	return strings.NewReplacer(":", "-", "/", "-", "+", "-", "#", "-").Replace(v)
}

// validPublishTopic reports whether topic can be published to.
func validPublishTopic(topic string) bool {
	return topic != "" && !strings.ContainsAny(topic, "+#")
}
