// Package status provides a thread-safe status tracker for the bridge.
// It is read by the HTTP handlers and by the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/monarco-bridge/internal/accessory"
	"github.com/sweeney/monarco-bridge/internal/config"
	"github.com/sweeney/monarco-bridge/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	CycleMs         int64
	WatchdogSeconds int
	Backend         string
	HeartbeatMs     int64
	Broker          string // empty when MQTT is disabled
	HTTPAddr        string
	HomeKit         bool
}

// DeviceInfo identifies the attached controller board.
type DeviceInfo struct {
	Firmware string
	Hardware string
	CPUID    string
}

// EventCounts counts accessory events since startup.
type EventCounts struct {
	Contact   int
	Press     int
	FanState  int
	FanOutput int
}

// AccessoryStatus is the last known state of one accessory.
type AccessoryStatus struct {
	ID    string
	Name  string
	Kind  config.Kind
	Inert bool

	Contact   logic.ContactState
	Presses   uint64
	LastPress time.Time

	Fan          logic.FanState
	Volts        float64
	VoltsWritten bool

	Updated time.Time
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Ready           bool
	Accessories     []AccessoryStatus
	Counts          EventCounts
	Device          DeviceInfo
	DriverErrors    uint64
	LastDriverError string
	StartTime       time.Time
	Now             time.Time
	MQTTConnected   bool
	Network         *NetworkInfo
	Config          Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex. It implements
// accessory.Notifier.
type Tracker struct {
	mu    sync.RWMutex
	snap  Snapshot
	index map[string]int
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		index: make(map[string]int),
	}
}

// AddAccessory registers an accessory so it is listed before its first
// event. Adding the same id twice is a no-op.
func (t *Tracker) AddAccessory(a accessory.Accessory) {
	st := AccessoryStatus{
		ID:    a.ID(),
		Name:  a.Name(),
		Kind:  a.Kind(),
		Inert: a.Inert(),
	}
	if f, ok := a.(*accessory.Fan); ok {
		st.Fan = f.State()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.index[st.ID]; ok {
		return
	}
	t.index[st.ID] = len(t.snap.Accessories)
	t.snap.Accessories = append(t.snap.Accessories, st)
}

// Notify records an accessory event.
func (t *Tracker) Notify(e accessory.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.index[e.DeviceID]
	if !ok {
		i = len(t.snap.Accessories)
		t.index[e.DeviceID] = i
		t.snap.Accessories = append(t.snap.Accessories, AccessoryStatus{ID: e.DeviceID, Kind: e.DeviceKind})
	}
	st := &t.snap.Accessories[i]
	st.Updated = e.Timestamp

	switch e.Kind {
	case accessory.EventContact:
		st.Contact = e.Contact
		t.snap.Counts.Contact++
	case accessory.EventPress:
		st.Presses = e.Presses
		st.LastPress = e.Timestamp
		t.snap.Counts.Press++
	case accessory.EventFanState:
		st.Fan = e.Fan
		t.snap.Counts.FanState++
	case accessory.EventFanOutput:
		st.Fan = e.Fan
		st.Volts = e.Volts
		st.VoltsWritten = true
		t.snap.Counts.FanOutput++
	}
}

// SetReady marks whether the platform finished starting.
func (t *Tracker) SetReady(ready bool) {
	t.mu.Lock()
	t.snap.Ready = ready
	t.mu.Unlock()
}

// SetDevice sets the controller identity read at startup.
func (t *Tracker) SetDevice(info DeviceInfo) {
	t.mu.Lock()
	t.snap.Device = info
	t.mu.Unlock()
}

// SetDriverErrors sets the driver error counter and last message.
func (t *Tracker) SetDriverErrors(count uint64, last string) {
	t.mu.Lock()
	t.snap.DriverErrors = count
	t.snap.LastDriverError = last
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Accessories = append([]AccessoryStatus(nil), t.snap.Accessories...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
