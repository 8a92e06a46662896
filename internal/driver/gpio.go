package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/monarco-bridge/internal/gpio"
	"github.com/sweeney/monarco-bridge/internal/logic"
)

// GPIODriver samples four GPIO lines each cycle for boards without a HAT.
// It has no analog outputs and no registers: output writes are recorded
// but not driven, and every register lookup reports not found.
type GPIODriver struct {
	*cycler
	logger    *zap.Logger
	reader    gpio.Reader
	registers *Registers

	mu          sync.Mutex
	volts       [logic.NumAnalogOutputs]float64
	warned      bool
	initialized bool
}

// NewGPIODriver wraps a reader; period is the sampling interval.
func NewGPIODriver(reader gpio.Reader, period time.Duration, logger *zap.Logger) *GPIODriver {
	d := &GPIODriver{
		logger:    logger,
		reader:    reader,
		registers: NewRegisters(nil),
	}
	d.cycler = newCycler(period, logger, d.transfer)
	return d
}

// Init checks the lines can be read and starts sampling.
func (d *GPIODriver) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := d.reader.Read(); err != nil {
		return fmt.Errorf("initial gpio read: %w", err)
	}
	d.mu.Lock()
	d.initialized = true
	d.mu.Unlock()

	d.start()
	return nil
}

// Registers returns an empty table.
func (d *GPIODriver) Registers() *Registers {
	return d.registers
}

// SetAnalogOutput records the voltage; nothing is driven.
func (d *GPIODriver) SetAnalogOutput(channel int, volts float64) error {
	if !logic.ValidAnalogOutput(channel) {
		return fmt.Errorf("%w: analog output %d", ErrInvalidChannel, channel)
	}
	d.mu.Lock()
	d.volts[channel-1] = volts
	warn := !d.warned
	d.warned = true
	d.mu.Unlock()

	if warn {
		d.logger.Warn("gpio backend has no analog outputs, fan voltages are not driven")
	}
	return nil
}

// AnalogOutputs returns the recorded output voltages.
func (d *GPIODriver) AnalogOutputs() [logic.NumAnalogOutputs]float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volts
}

// Close stops sampling and releases the lines.
func (d *GPIODriver) Close() error {
	d.stop()
	return d.reader.Close()
}

func (d *GPIODriver) transfer() (Sample, error) {
	in, err := d.reader.Read()
	if err != nil {
		return Sample{}, fmt.Errorf("gpio read: %w", err)
	}
	return Sample{DigitalInputs: in}, nil
}
