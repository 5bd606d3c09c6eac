// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "hydroponics/reservoir"

// Notification keys published under the topic prefix.
const (
	KeyPump        = "pump"
	KeyTDS         = "tds"
	KeyTemperature = "temp"
)

const (
	systemSuffix  = "system"
	commandSuffix = "pump/set"
)

// ErrBadCommand is returned by ParseCommand for payloads that are not a
// recognised pump command.
var ErrBadCommand = errors.New("unrecognised pump command")

// Publisher publishes notifications to MQTT.
type Publisher interface {
	// Publish sends value on the topic for key.
	// Returns error if publishing fails (should not crash the process).
	Publish(key, value string) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Topic returns the notification topic for key under prefix.
func Topic(prefix, key string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + key
}

// SystemTopic returns the lifecycle topic under prefix.
func SystemTopic(prefix string) string {
	return Topic(prefix, systemSuffix)
}

// CommandTopic returns the topic remote pump overrides arrive on.
func CommandTopic(prefix string) string {
	return Topic(prefix, commandSuffix)
}

// FormatBool renders an on/off notification value.
func FormatBool(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

// FormatFloat renders a measurement notification value with two decimals.
func FormatFloat(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// ParseCommand decodes a pump command payload.
// Accepts 1/0, on/off and true/false, case-insensitive.
func ParseCommand(payload []byte) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(string(payload))) {
	case "1", "on", "true":
		return true, nil
	case "0", "off", "false":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrBadCommand, payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
