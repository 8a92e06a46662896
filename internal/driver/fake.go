package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/monarco-bridge/internal/logic"
)

// FakeDriver is a test double that delivers scripted ticks synchronously.
type FakeDriver struct {
	mu       sync.Mutex
	handlers []Handler
	errFuncs []func(error)
	tick     uint64

	registers *Registers

	// Outputs holds the last voltage written to each analog slot.
	Outputs [logic.NumAnalogOutputs]float64

	// Writes counts writes per analog slot.
	Writes [logic.NumAnalogOutputs]int

	// Initialized is set by Init.
	Initialized bool

	// InitCalls counts calls to Init.
	InitCalls int

	// SubscribedBeforeInit is set if a handler was added before Init.
	SubscribedBeforeInit bool

	// InitError, if set, is returned by Init.
	InitError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeDriver creates a FakeDriver with a pre-filled register table.
func NewFakeDriver(registers map[RegisterID]uint16) *FakeDriver {
	return &FakeDriver{registers: NewRegisters(registers)}
}

// Init marks the driver initialized.
func (f *FakeDriver) Init(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InitCalls++
	if f.InitError != nil {
		return f.InitError
	}
	f.Initialized = true
	return nil
}

// Subscribe adds a tick handler.
func (f *FakeDriver) Subscribe(h Handler) {
	f.mu.Lock()
	if !f.Initialized {
		f.SubscribedBeforeInit = true
	}
	f.handlers = append(f.handlers, h)
	f.mu.Unlock()
}

// OnError adds an error callback.
func (f *FakeDriver) OnError(fn func(error)) {
	f.mu.Lock()
	f.errFuncs = append(f.errFuncs, fn)
	f.mu.Unlock()
}

// SetAnalogOutput records the write.
func (f *FakeDriver) SetAnalogOutput(channel int, volts float64) error {
	if !logic.ValidAnalogOutput(channel) {
		return fmt.Errorf("%w: analog output %d", ErrInvalidChannel, channel)
	}
	f.mu.Lock()
	f.Outputs[channel-1] = volts
	f.Writes[channel-1]++
	f.mu.Unlock()
	return nil
}

// Registers returns the pre-filled table.
func (f *FakeDriver) Registers() *Registers {
	return f.registers
}

// Period returns DefaultPeriod.
func (f *FakeDriver) Period() time.Duration {
	return DefaultPeriod
}

// Close marks the driver closed.
func (f *FakeDriver) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Tick delivers one sample to every handler.
func (f *FakeDriver) Tick(in logic.DigitalInputSample) {
	f.mu.Lock()
	f.tick++
	s := Sample{Tick: f.tick, DigitalInputs: in}
	handlers := make([]Handler, len(f.handlers))
	copy(handlers, f.handlers)
	f.mu.Unlock()

	for _, h := range handlers {
		h(s)
	}
}

// TickN delivers the same sample n times.
func (f *FakeDriver) TickN(in logic.DigitalInputSample, n int) {
	for i := 0; i < n; i++ {
		f.Tick(in)
	}
}

// ReportError delivers err to every error callback.
func (f *FakeDriver) ReportError(err error) {
	f.mu.Lock()
	funcs := make([]func(error), len(f.errFuncs))
	copy(funcs, f.errFuncs)
	f.mu.Unlock()

	for _, fn := range funcs {
		fn(err)
	}
}

// Handlers returns the number of subscribed handlers.
func (f *FakeDriver) Handlers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

// Output returns the last voltage written to a one-based slot and the
// number of writes to it.
func (f *FakeDriver) Output(channel int) (float64, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Outputs[channel-1], f.Writes[channel-1]
}
