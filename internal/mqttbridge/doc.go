// Package mqttbridge mirrors Brunt blinds onto an MQTT broker.
//
// The bridge polls the Brunt cloud for the account's things and publishes
// each one, retained, on brunt/<serial>/state. It subscribes to
// brunt/+/set and commands the named blind to the position carried in the
// payload, either a bare integer ("40") or a JSON object ({"position":40}).
//
// Topic layout:
//
//	brunt/<serial>/state   retained JSON state, published by the bridge
//	brunt/<serial>/set     position commands, consumed by the bridge
//	brunt/bridge/status    retained online/offline status (LWT)
package mqttbridge
