package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/sweeney/monarco-bridge/internal/logic"
)

// DefaultSPIFrequency is the SPI clock used for the HAT.
const DefaultSPIFrequency = physic.MegaHertz

// sdcTimeoutFrames is how many cycles a register request may stay unanswered.
const sdcTimeoutFrames = 50

var (
	ErrSDC        = errors.New("service data request rejected")
	ErrSDCTimeout = errors.New("service data request timed out")
)

// Transport performs one full-duplex transfer. periph's spi.Conn satisfies it.
type Transport interface {
	Tx(w, r []byte) error
}

// MonarcoConfig selects the SPI port and cycle interval.
type MonarcoConfig struct {
	SPIPort   string // periph port name, e.g. "/dev/spidev0.0"; empty picks the first
	Frequency physic.Frequency
	Period    time.Duration
}

// MonarcoDriver drives a Monarco HAT: every cycle it sends outputs plus one
// service data request and receives inputs plus one service data response.
type MonarcoDriver struct {
	*cycler
	logger    *zap.Logger
	tr        Transport
	closer    io.Closer
	registers *Registers

	mu          sync.Mutex
	tx          TxFrame
	volts       [logic.NumAnalogOutputs]float64
	pending     []SDC
	inflight    *SDC
	age         int
	initialized bool
	closed      bool
}

// NewMonarcoDriver opens the SPI port through periph.
func NewMonarcoDriver(cfg MonarcoConfig, logger *zap.Logger) (*MonarcoDriver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", cfg.SPIPort, err)
	}

	freq := cfg.Frequency
	if freq == 0 {
		freq = DefaultSPIFrequency
	}
	// The HAT expects SPI mode 3 (CPOL=1, CPHA=1) with 8-bit words.
	conn, err := port.Connect(freq, spi.Mode3, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("connect spi port %q: %w", cfg.SPIPort, err)
	}

	return newMonarcoDriver(conn, port, cfg.Period, logger), nil
}

func newMonarcoDriver(tr Transport, closer io.Closer, period time.Duration, logger *zap.Logger) *MonarcoDriver {
	d := &MonarcoDriver{
		logger:    logger,
		tr:        tr,
		closer:    closer,
		registers: NewRegisters(nil),
	}
	d.cycler = newCycler(period, logger, d.transfer)
	d.registers.setWriteHook(d.queueWrite)
	return d
}

// Init starts the cycle and reads every known register through the
// service data channel. Registers the HAT rejects stay absent from the table.
func (d *MonarcoDriver) Init(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	for _, id := range KnownRegisters() {
		d.pending = append(d.pending, SDC{Address: id})
	}
	d.mu.Unlock()

	d.start()

	ticker := time.NewTicker(d.Period())
	defer ticker.Stop()
	for !d.sdcIdle() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("read registers: %w", ctx.Err())
		case <-ticker.C:
		}
	}

	d.mu.Lock()
	d.initialized = true
	d.mu.Unlock()

	d.logger.Info("monarco initialized", zap.Int("registers", len(d.registers.IDs())))
	return nil
}

// Registers returns the register table filled in by Init.
func (d *MonarcoDriver) Registers() *Registers {
	return d.registers
}

// SetAnalogOutput sets AOUT1 or AOUT2. The value goes out with the next frame.
func (d *MonarcoDriver) SetAnalogOutput(channel int, volts float64) error {
	if !logic.ValidAnalogOutput(channel) {
		return fmt.Errorf("%w: analog output %d", ErrInvalidChannel, channel)
	}
	d.mu.Lock()
	d.volts[channel-1] = volts
	d.tx.AnalogOutputs[channel-1] = VoltsToRaw(volts)
	d.mu.Unlock()
	return nil
}

// AnalogOutputs returns the last requested output voltages.
func (d *MonarcoDriver) AnalogOutputs() [logic.NumAnalogOutputs]float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volts
}

// Initialized reports whether Init completed.
func (d *MonarcoDriver) Initialized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized
}

// Close stops the cycle and releases the SPI port.
func (d *MonarcoDriver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.stop()
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

func (d *MonarcoDriver) queueWrite(id RegisterID, value uint16) {
	d.mu.Lock()
	d.pending = append(d.pending, SDC{Address: id, Value: value, Write: true})
	d.mu.Unlock()
}

func (d *MonarcoDriver) sdcIdle() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inflight == nil && len(d.pending) == 0
}

func (d *MonarcoDriver) transfer() (Sample, error) {
	d.mu.Lock()
	if d.inflight == nil && len(d.pending) > 0 {
		req := d.pending[0]
		d.pending = d.pending[1:]
		d.inflight = &req
		d.age = 0
	}
	frame := d.tx
	if d.inflight != nil {
		frame.SDC = *d.inflight
	}
	d.mu.Unlock()

	r := make([]byte, FrameSize)
	if err := d.tr.Tx(frame.Encode(), r); err != nil {
		return Sample{}, fmt.Errorf("spi transfer: %w", err)
	}
	rx, err := DecodeRx(r)
	if err != nil {
		return Sample{}, err
	}

	if err := d.handleSDC(rx.SDC); err != nil {
		d.reportError(err)
	}

	return Sample{
		DigitalInputs: rx.Inputs(),
		AnalogInputs:  [2]float64{RawToVolts(rx.AnalogInputs[0]), RawToVolts(rx.AnalogInputs[1])},
		Counters:      [2]uint32{rx.Counter1, rx.Counter2},
	}, nil
}

// handleSDC completes the in-flight request when its response arrives.
// Responses arrive one frame after the request at the earliest.
func (d *MonarcoDriver) handleSDC(resp SDC) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.inflight == nil {
		return nil
	}
	req := *d.inflight
	if resp.Address == 0 || resp.Address != req.Address || resp.Write != req.Write {
		d.age++
		if d.age > sdcTimeoutFrames {
			d.inflight = nil
			return fmt.Errorf("%w: register %s", ErrSDCTimeout, req.Address)
		}
		return nil
	}

	d.inflight = nil
	if resp.Error {
		return fmt.Errorf("%w: register %s", ErrSDC, req.Address)
	}
	if !req.Write {
		d.registers.store(req.Address, resp.Value)
	}
	return nil
}
