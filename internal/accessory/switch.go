package accessory

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sweeney/monarco-bridge/internal/config"
	"github.com/sweeney/monarco-bridge/internal/driver"
	"github.com/sweeney/monarco-bridge/internal/logic"
)

// Switch is a stateless push button: every decimated edge on its input,
// press or release, is reported as one single press.
type Switch struct {
	cfg    config.DeviceConfig
	opts   Options
	logger *zap.Logger

	mu         sync.Mutex
	detector   *logic.EdgeDetector // nil when inert
	translator *logic.PressTranslator
}

// NewSwitch builds a switch. An out-of-range digital input is logged once
// and leaves the switch inert.
func NewSwitch(cfg config.DeviceConfig, opts Options) *Switch {
	opts = opts.withDefaults()
	sw := &Switch{
		cfg:        cfg,
		opts:       opts,
		logger:     opts.Logger.With(zap.String("device", cfg.ID)),
		translator: logic.NewPressTranslator(),
	}

	if !logic.ValidDigitalInput(cfg.DigitalInput) {
		sw.logger.Error("invalid digital input in configuration", zap.Int("digital_input", cfg.DigitalInput))
		return sw
	}
	sw.detector = logic.NewEdgeDetector(logic.SwitchPeriod)
	return sw
}

func (sw *Switch) ID() string        { return sw.cfg.ID }
func (sw *Switch) Name() string      { return sw.cfg.Name }
func (sw *Switch) Kind() config.Kind { return config.KindProgrammableSwitch }
func (sw *Switch) Inert() bool       { return sw.detector == nil }

// HandleTick samples the input every SwitchPeriod ticks.
func (sw *Switch) HandleTick(s driver.Sample) {
	if sw.detector == nil {
		return
	}

	sw.mu.Lock()
	r := sw.detector.Process(s.DigitalInputs[sw.cfg.DigitalInput-1])
	event, pressed := sw.translator.Apply(r)
	presses := sw.translator.Presses()
	sw.mu.Unlock()

	if !pressed {
		return
	}
	sw.logger.Info("switch pressed", zap.Bool("level", r.Value), zap.Uint64("presses", presses))
	sw.opts.Notifier.Notify(Event{
		Timestamp:  sw.opts.Now(),
		DeviceID:   sw.cfg.ID,
		DeviceKind: config.KindProgrammableSwitch,
		Kind:       EventPress,
		Switch:     event,
		Presses:    presses,
	})
}

// ProgrammableSwitchEvent is always SwitchEventNone; presses are only
// delivered as notifications.
func (sw *Switch) ProgrammableSwitchEvent() logic.SwitchEvent {
	sw.mu.Lock()
	event := sw.translator.State()
	sw.mu.Unlock()

	sw.logger.Debug("get programmable switch event", zap.Stringer("event", event))
	return event
}

// Presses returns the number of presses since startup.
func (sw *Switch) Presses() uint64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.translator.Presses()
}
