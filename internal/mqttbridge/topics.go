package mqttbridge

import (
	"fmt"
	"strings"
)

// DefaultPrefix is the root of every bridge topic.
const DefaultPrefix = "brunt"

// Topics builds bridge topics under a prefix.
//
//	topics := mqttbridge.Topics{Prefix: "brunt"}
//	topics.State("00140d6f1950f166")
//	// Returns: "brunt/00140d6f1950f166/state"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

// State returns the retained state topic of a thing.
func (t Topics) State(serial string) string {
	return fmt.Sprintf("%s/%s/state", t.prefix(), serial)
}

// Set returns the command topic of a thing.
func (t Topics) Set(serial string) string {
	return fmt.Sprintf("%s/%s/set", t.prefix(), serial)
}

// AllSets returns the wildcard subscription for every command topic.
func (t Topics) AllSets() string {
	return t.prefix() + "/+/set"
}

// Status returns the bridge's own online/offline topic.
func (t Topics) Status() string {
	return t.prefix() + "/bridge/status"
}

// SerialFromSet extracts the serial from a command topic.
func (t Topics) SerialFromSet(topic string) (string, error) {
	rest, ok := strings.CutPrefix(topic, t.prefix()+"/")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	serial, ok := strings.CutSuffix(rest, "/set")
	if !ok || serial == "" || strings.Contains(serial, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	return serial, nil
}
