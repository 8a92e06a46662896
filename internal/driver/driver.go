// Package driver talks to the I/O controller and turns its cycle into a
// stream of input samples. Backends: the Monarco HAT over SPI, plain GPIO
// lines, and a fake for tests.
package driver

import (
	"context"
	"errors"
	"time"

	"github.com/sweeney/monarco-bridge/internal/logic"
)

// DefaultPeriod is the controller cycle interval.
const DefaultPeriod = 20 * time.Millisecond

var (
	ErrNotInitialized = errors.New("driver not initialized")
	ErrInvalidChannel = errors.New("invalid channel")
	ErrClosed         = errors.New("driver closed")
)

// Sample is one cycle's worth of input data.
type Sample struct {
	Tick          uint64
	DigitalInputs logic.DigitalInputSample
	AnalogInputs  [2]float64
	Counters      [2]uint32
}

// Handler receives every sample. Handlers run on the driver's cycle
// goroutine, one after the other, in no guaranteed order.
type Handler func(Sample)

// Driver is the I/O controller handle passed to every accessory.
type Driver interface {
	// Init brings the controller up and loads the register table.
	// It must return before any accessory subscribes.
	Init(ctx context.Context) error

	// Subscribe adds a handler for every subsequent tick.
	Subscribe(h Handler)

	// OnError adds a callback for runtime errors reported by the driver.
	OnError(f func(error))

	// SetAnalogOutput sets a one-based analog output channel, in volts.
	SetAnalogOutput(channel int, volts float64) error

	// Registers returns the device register table.
	Registers() *Registers

	// Period returns the cycle interval.
	Period() time.Duration

	// Close stops the cycle and releases the hardware.
	Close() error
}
