package accessory

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sweeney/monarco-bridge/internal/config"
	"github.com/sweeney/monarco-bridge/internal/driver"
	"github.com/sweeney/monarco-bridge/internal/logic"
)

// AnalogWriter sets one analog output slot. driver.Driver satisfies it.
type AnalogWriter interface {
	SetAnalogOutput(channel int, volts float64) error
}

// Fan controls a Lunos ventilation unit through one 0-10 V analog output.
// Host writes only change the stored state; the output is recomputed from
// that state every FanPeriod ticks.
type Fan struct {
	cfg     config.DeviceConfig
	variant logic.FanVariant
	out     AnalogWriter
	opts    Options
	logger  *zap.Logger
	inert   bool

	mu      sync.Mutex
	state   logic.FanState
	ticks   uint64
	volts   float64
	written bool
}

// NewFan builds a fan. The variant comes from the device kind; an unknown
// one is logged and drives the output at VoltsAuto. An out-of-range analog
// output is logged once and leaves the fan inert: state is kept but the
// output is never written.
func NewFan(cfg config.DeviceConfig, out AnalogWriter, opts Options) *Fan {
	opts = opts.withDefaults()
	f := &Fan{
		cfg:     cfg,
		variant: logic.FanVariant(cfg.Kind),
		out:     out,
		opts:    opts,
		logger:  opts.Logger.With(zap.String("device", cfg.ID)),
		state:   logic.DefaultFanState(),
	}

	if !logic.KnownVariant(f.variant) {
		f.logger.Error("unrecognized fan model in configuration", zap.String("kind", string(cfg.Kind)))
	}
	if !logic.ValidAnalogOutput(cfg.AnalogOutput) {
		f.logger.Error("invalid analog output in configuration", zap.Int("analog_output", cfg.AnalogOutput))
		f.inert = true
	}
	return f
}

func (f *Fan) ID() string                { return f.cfg.ID }
func (f *Fan) Name() string              { return f.cfg.Name }
func (f *Fan) Kind() config.Kind         { return f.cfg.Kind }
func (f *Fan) Inert() bool               { return f.inert }
func (f *Fan) Variant() logic.FanVariant { return f.variant }

// AnalogOutput returns the configured one-based output slot.
func (f *Fan) AnalogOutput() int { return f.cfg.AnalogOutput }

// HandleTick writes the output voltage every FanPeriod ticks, whether or
// not the state changed since the last write.
func (f *Fan) HandleTick(driver.Sample) {
	if f.inert {
		return
	}

	f.mu.Lock()
	f.ticks++
	if f.ticks%logic.FanPeriod != 0 {
		f.mu.Unlock()
		return
	}
	state := f.state
	v, err := state.Voltage(f.variant)
	changed := !f.written || v != f.volts
	f.volts = v
	f.written = true
	f.mu.Unlock()

	if err != nil {
		f.logger.Debug("fan voltage fallback", zap.Error(err))
	}
	if err := f.out.SetAnalogOutput(f.cfg.AnalogOutput, v); err != nil {
		f.logger.Error("set analog output failed", zap.Int("analog_output", f.cfg.AnalogOutput), zap.Error(err))
		return
	}
	if !changed {
		return
	}

	f.logger.Info("fan output", zap.Int("analog_output", f.cfg.AnalogOutput), zap.Float64("volts", v))
	f.opts.Notifier.Notify(Event{
		Timestamp:  f.opts.Now(),
		DeviceID:   f.cfg.ID,
		DeviceKind: f.cfg.Kind,
		Kind:       EventFanOutput,
		Fan:        state,
		Volts:      v,
	})
}

// State returns a copy of the stored fan state.
func (f *Fan) State() logic.FanState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Volts returns the last voltage written and whether anything was written yet.
func (f *Fan) Volts() (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volts, f.written
}

func (f *Fan) Active() bool {
	active := f.State().Active
	f.logger.Debug("get active", zap.Bool("active", active))
	return active
}

func (f *Fan) SetActive(active bool) {
	f.logger.Info("set active", zap.Bool("active", active))
	f.update(func(s *logic.FanState) { s.Active = active })
}

func (f *Fan) RotationSpeed() int {
	speed := f.State().RotationSpeed
	f.logger.Debug("get rotation speed", zap.Int("speed", speed))
	return speed
}

func (f *Fan) SetRotationSpeed(speed int) {
	f.logger.Info("set rotation speed", zap.Int("speed", speed))
	f.update(func(s *logic.FanState) { s.RotationSpeed = speed })
}

// Boost is the summer ventilation mode, shown to hosts as swing mode.
func (f *Fan) Boost() bool {
	boost := f.State().Boost
	f.logger.Debug("get boost", zap.Bool("boost", boost))
	return boost
}

func (f *Fan) SetBoost(boost bool) {
	f.logger.Info("set boost", zap.Bool("boost", boost))
	f.update(func(s *logic.FanState) { s.Boost = boost })
}

func (f *Fan) TargetFanState() logic.TargetFanState {
	target := f.State().Target
	f.logger.Debug("get target fan state", zap.Stringer("target", target))
	return target
}

func (f *Fan) SetTargetFanState(target logic.TargetFanState) {
	f.logger.Info("set target fan state", zap.Stringer("target", target))
	f.update(func(s *logic.FanState) { s.Target = target })
}

func (f *Fan) update(apply func(*logic.FanState)) {
	f.mu.Lock()
	before := f.state
	apply(&f.state)
	after := f.state
	f.mu.Unlock()

	if after == before {
		return
	}
	f.opts.Notifier.Notify(Event{
		Timestamp:  f.opts.Now(),
		DeviceID:   f.cfg.ID,
		DeviceKind: f.cfg.Kind,
		Kind:       EventFanState,
		Fan:        after,
	})
}
