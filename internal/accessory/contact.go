package accessory

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sweeney/monarco-bridge/internal/config"
	"github.com/sweeney/monarco-bridge/internal/driver"
	"github.com/sweeney/monarco-bridge/internal/logic"
)

// ContactSensor reports a door or window contact wired to one digital input.
type ContactSensor struct {
	cfg    config.DeviceConfig
	opts   Options
	logger *zap.Logger

	mu         sync.Mutex
	detector   *logic.EdgeDetector // nil when inert
	translator *logic.ContactTranslator
}

// NewContactSensor builds a contact sensor. An out-of-range digital input
// is logged once and leaves the sensor inert in its initial state.
func NewContactSensor(cfg config.DeviceConfig, opts Options) *ContactSensor {
	opts = opts.withDefaults()
	c := &ContactSensor{
		cfg:        cfg,
		opts:       opts,
		logger:     opts.Logger.With(zap.String("device", cfg.ID)),
		translator: logic.NewContactTranslator(),
	}

	if !logic.ValidDigitalInput(cfg.DigitalInput) {
		c.logger.Error("invalid digital input in configuration", zap.Int("digital_input", cfg.DigitalInput))
		return c
	}
	c.detector = logic.NewEdgeDetector(logic.ContactPeriod)
	return c
}

func (c *ContactSensor) ID() string        { return c.cfg.ID }
func (c *ContactSensor) Name() string      { return c.cfg.Name }
func (c *ContactSensor) Kind() config.Kind { return config.KindContactSensor }
func (c *ContactSensor) Inert() bool       { return c.detector == nil }

// HandleTick samples the input every ContactPeriod ticks and notifies when
// the contact state changes.
func (c *ContactSensor) HandleTick(s driver.Sample) {
	if c.detector == nil {
		return
	}

	c.mu.Lock()
	r := c.detector.Process(s.DigitalInputs[c.cfg.DigitalInput-1])
	state, changed := c.translator.Apply(r)
	c.mu.Unlock()

	if !changed {
		return
	}
	c.logger.Info("contact changed", zap.Stringer("state", state))
	c.opts.Notifier.Notify(Event{
		Timestamp:  c.opts.Now(),
		DeviceID:   c.cfg.ID,
		DeviceKind: config.KindContactSensor,
		Kind:       EventContact,
		Contact:    state,
	})
}

// ContactSensorState returns the last decimated state.
func (c *ContactSensor) ContactSensorState() logic.ContactState {
	c.mu.Lock()
	state := c.translator.State()
	c.mu.Unlock()

	c.logger.Debug("get contact sensor state", zap.Stringer("state", state))
	return state
}
