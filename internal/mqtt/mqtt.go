// Package mqtt mirrors accessory state to an MQTT broker and accepts fan
// commands from it.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/monarco-bridge/internal/accessory"
)

// Topics builds topic names under a common prefix.
//
//	<prefix>/<device>/state      retained accessory state
//	<prefix>/<device>/set/<key>  fan commands
//	<prefix>/system              lifecycle events and status snapshots
type Topics struct {
	Prefix string
}

// State is the retained state topic of one device.
func (t Topics) State(deviceID string) string {
	return t.Prefix + "/" + deviceID + "/state"
}

// System is the lifecycle topic.
func (t Topics) System() string {
	return t.Prefix + "/system"
}

// Commands is the subscription filter for every device command.
func (t Topics) Commands() string {
	return t.Prefix + "/+/set/+"
}

// ParseCommand splits a command topic into device id and key.
func (t Topics) ParseCommand(topic string) (deviceID, key string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Prefix+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] != "set" || parts[0] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[0], parts[2], true
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishState sends an accessory event to the device's state topic.
	// Returns error if publishing fails (should not crash the process).
	PublishState(event accessory.Event) error

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
	Retained   bool
}

// StatePayload is the message published on a state topic.
type StatePayload struct {
	Device DevicePayload `json:"device"`
}

// DevicePayload carries the fields that belong to the event kind.
type DevicePayload struct {
	ID        string      `json:"id"`
	Kind      string      `json:"kind"`
	Event     string      `json:"event"`
	Timestamp string      `json:"timestamp"`
	Contact   string      `json:"contact,omitempty"`
	Press     string      `json:"press,omitempty"`
	Presses   uint64      `json:"presses,omitempty"`
	Fan       *FanPayload `json:"fan,omitempty"`
}

// FanPayload is the host-controlled fan state. Volts is only present once
// a value was written to the analog output.
type FanPayload struct {
	Active bool     `json:"active"`
	Speed  int      `json:"speed"`
	Boost  bool     `json:"boost"`
	Mode   string   `json:"mode"`
	Volts  *float64 `json:"volts,omitempty"`
}

// FormatState creates the JSON payload for an accessory event.
func FormatState(event accessory.Event) ([]byte, error) {
	d := DevicePayload{
		ID:        event.DeviceID,
		Kind:      string(event.DeviceKind),
		Event:     string(event.Kind),
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
	}

	switch event.Kind {
	case accessory.EventContact:
		d.Contact = event.Contact.String()
	case accessory.EventPress:
		d.Press = event.Switch.String()
		d.Presses = event.Presses
	case accessory.EventFanState, accessory.EventFanOutput:
		d.Fan = &FanPayload{
			Active: event.Fan.Active,
			Speed:  event.Fan.RotationSpeed,
			Boost:  event.Fan.Boost,
			Mode:   event.Fan.Target.String(),
		}
		if event.Kind == accessory.EventFanOutput {
			v := event.Volts
			d.Fan.Volts = &v
		}
	}

	return json.Marshal(StatePayload{Device: d})
}

// stateDelivery returns QoS and retain flag for an event. Presses are
// momentary and must not be replayed to new subscribers.
func stateDelivery(event accessory.Event) (qos byte, retained bool) {
	if event.Kind == accessory.EventPress {
		return 0, false
	}
	return 1, true
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
