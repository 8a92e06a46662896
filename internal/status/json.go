package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/monarco-bridge/internal/config"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string          `json:"event,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Ready         bool            `json:"ready"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	StartTime     string          `json:"start_time"`
	Timestamp     string          `json:"timestamp"`
	Device        *DeviceJSON     `json:"device,omitempty"`
	Driver        DriverJSON      `json:"driver"`
	MQTT          MQTTStatus      `json:"mqtt"`
	Accessories   []AccessoryJSON `json:"accessories"`
	Counts        CountsJSON      `json:"event_counts"`
	Network       *NetworkJSON    `json:"network,omitempty"`
	Config        ConfigJSON      `json:"config"`
}

// DeviceJSON is the controller identity.
type DeviceJSON struct {
	Firmware string `json:"firmware"`
	Hardware string `json:"hardware"`
	CPUID    string `json:"cpu_id"`
}

// DriverJSON reports transport health.
type DriverJSON struct {
	Errors    uint64 `json:"errors"`
	LastError string `json:"last_error,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// AccessoryJSON is one accessory. Only the fields of its kind are set.
type AccessoryJSON struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Inert     bool     `json:"inert,omitempty"`
	Contact   string   `json:"contact,omitempty"`
	Presses   *uint64  `json:"presses,omitempty"`
	LastPress string   `json:"last_press,omitempty"`
	Fan       *FanJSON `json:"fan,omitempty"`
	Updated   string   `json:"updated,omitempty"`
}

// FanJSON is the fan state plus the last written output.
type FanJSON struct {
	Active bool     `json:"active"`
	Speed  int      `json:"speed"`
	Boost  bool     `json:"boost"`
	Mode   string   `json:"mode"`
	Volts  *float64 `json:"volts,omitempty"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Contact   int `json:"contact"`
	Press     int `json:"press"`
	FanState  int `json:"fan_state"`
	FanOutput int `json:"fan_output"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	CycleMs         int64  `json:"cycle_ms"`
	WatchdogSeconds int    `json:"watchdog_seconds"`
	Backend         string `json:"backend"`
	HeartbeatMs     int64  `json:"heartbeat_ms"`
	Broker          string `json:"broker,omitempty"`
	HTTPAddr        string `json:"http_addr"`
	HomeKit         bool   `json:"homekit"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildAccessory(a AccessoryStatus) AccessoryJSON {
	aj := AccessoryJSON{
		ID:      a.ID,
		Name:    a.Name,
		Kind:    string(a.Kind),
		Inert:   a.Inert,
		Updated: formatTime(a.Updated),
	}

	switch {
	case a.Kind == config.KindContactSensor:
		aj.Contact = a.Contact.String()
	case a.Kind == config.KindProgrammableSwitch:
		presses := a.Presses
		aj.Presses = &presses
		aj.LastPress = formatTime(a.LastPress)
	case a.Kind.IsFan():
		aj.Fan = &FanJSON{
			Active: a.Fan.Active,
			Speed:  a.Fan.RotationSpeed,
			Boost:  a.Fan.Boost,
			Mode:   a.Fan.Target.String(),
		}
		if a.VoltsWritten {
			v := a.Volts
			aj.Fan.Volts = &v
		}
	}
	return aj
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ready:         snap.Ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Driver:        DriverJSON{Errors: snap.DriverErrors, LastError: snap.LastDriverError},
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Accessories:   make([]AccessoryJSON, 0, len(snap.Accessories)),
		Counts: CountsJSON{
			Contact:   snap.Counts.Contact,
			Press:     snap.Counts.Press,
			FanState:  snap.Counts.FanState,
			FanOutput: snap.Counts.FanOutput,
		},
		Config: ConfigJSON{
			CycleMs:         snap.Config.CycleMs,
			WatchdogSeconds: snap.Config.WatchdogSeconds,
			Backend:         snap.Config.Backend,
			HeartbeatMs:     snap.Config.HeartbeatMs,
			Broker:          snap.Config.Broker,
			HTTPAddr:        snap.Config.HTTPAddr,
			HomeKit:         snap.Config.HomeKit,
		},
	}

	if snap.Device != (DeviceInfo{}) {
		inner.Device = &DeviceJSON{
			Firmware: snap.Device.Firmware,
			Hardware: snap.Device.Hardware,
			CPUID:    snap.Device.CPUID,
		}
	}
	for _, a := range snap.Accessories {
		inner.Accessories = append(inner.Accessories, buildAccessory(a))
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
