// Package accessory turns driver ticks into accessory state: contact
// sensors, stateless switches and Lunos fans, plus the platform that
// builds them from configuration and wires them to the driver.
package accessory

import (
	"sync"
	"time"

	"github.com/sweeney/monarco-bridge/internal/config"
	"github.com/sweeney/monarco-bridge/internal/driver"
	"github.com/sweeney/monarco-bridge/internal/logic"
)

// EventKind identifies what changed.
type EventKind string

const (
	EventContact   EventKind = "CONTACT"
	EventPress     EventKind = "PRESS"
	EventFanState  EventKind = "FAN_STATE"
	EventFanOutput EventKind = "FAN_OUTPUT"
)

// Event is emitted on every accessory state change. Only the fields that
// belong to Kind are meaningful.
type Event struct {
	Timestamp  time.Time
	DeviceID   string
	DeviceKind config.Kind
	Kind       EventKind
	Contact    logic.ContactState
	Switch     logic.SwitchEvent
	Presses    uint64
	Fan        logic.FanState
	Volts      float64
}

// Notifier receives accessory events. Notify is called without any
// accessory lock held and may run on the driver's cycle goroutine.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

// Accessory is the common surface of every accessory kind.
type Accessory interface {
	ID() string
	Name() string
	Kind() config.Kind

	// Inert is true when the configured channel is out of range. Inert
	// accessories are never subscribed to ticks.
	Inert() bool

	// HandleTick processes one driver sample.
	HandleTick(s driver.Sample)
}

// fanout delivers events to a changing set of notifiers.
type fanout struct {
	mu        sync.RWMutex
	notifiers []Notifier
}

func (f *fanout) add(n Notifier) {
	f.mu.Lock()
	f.notifiers = append(f.notifiers, n)
	f.mu.Unlock()
}

func (f *fanout) Notify(e Event) {
	f.mu.RLock()
	notifiers := make([]Notifier, len(f.notifiers))
	copy(notifiers, f.notifiers)
	f.mu.RUnlock()

	for _, n := range notifiers {
		n.Notify(e)
	}
}
