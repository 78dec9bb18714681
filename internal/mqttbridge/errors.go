package mqttbridge

import "errors"

// Domain-specific errors for the MQTT bridge.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when publishing or subscribing on a disconnected client.
	ErrNotConnected = errors.New("mqttbridge: client not connected")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("mqttbridge: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqttbridge: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqttbridge: subscribe failed")

	// ErrInvalidTopic is returned for an empty topic or one outside the bridge layout.
	ErrInvalidTopic = errors.New("mqttbridge: invalid topic")

	// ErrInvalidPayload is returned when a set payload carries no usable position.
	ErrInvalidPayload = errors.New("mqttbridge: invalid position payload")
)
