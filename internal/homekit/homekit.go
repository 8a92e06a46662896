// Package homekit publishes the platform's accessories over HomeKit
// Accessory Protocol as one bridge.
package homekit

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"github.com/brutella/hap"
	hapaccessory "github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
	"go.uber.org/zap"

	"github.com/sweeney/monarco-bridge/internal/accessory"
	"github.com/sweeney/monarco-bridge/internal/config"
	"github.com/sweeney/monarco-bridge/internal/logic"
)

const serialNotAvailable = "Not Available"

// Info returns the manufacturer and model shown for a device kind.
func Info(kind config.Kind) (manufacturer, model string) {
	switch kind {
	case config.KindContactSensor:
		return "Monarco", "Contact Sensor"
	case config.KindProgrammableSwitch:
		return "Monarco", "Programmable Switch"
	case config.KindLunosE2:
		return "Lunos", "Lunos e2"
	case config.KindLunosEgo:
		return "Lunos", "Lunos ego"
	}
	return "Lunos", "Unknown"
}

type fanService struct {
	*service.S

	Active         *characteristic.Active
	RotationSpeed  *characteristic.RotationSpeed
	SwingMode      *characteristic.SwingMode
	TargetFanState *characteristic.TargetFanState
}

func newFanService() *fanService {
	s := fanService{}
	s.S = service.New(service.TypeFanV2)

	s.Active = characteristic.NewActive()
	s.AddC(s.Active.C)

	s.RotationSpeed = characteristic.NewRotationSpeed()
	s.RotationSpeed.SetMinValue(0)
	s.RotationSpeed.SetMaxValue(100)
	s.RotationSpeed.SetStepValue(25)
	s.AddC(s.RotationSpeed.C)

	s.SwingMode = characteristic.NewSwingMode()
	s.AddC(s.SwingMode.C)

	s.TargetFanState = characteristic.NewTargetFanState()
	s.AddC(s.TargetFanState.C)

	return &s
}

// Bridge maps platform accessories to HAP accessories.
type Bridge struct {
	cfg    config.HomeKitConfig
	logger *zap.Logger

	bridge      *hapaccessory.Bridge
	accessories []*hapaccessory.A

	contacts map[string]*service.ContactSensor
	switches map[string]*service.StatelessProgrammableSwitch
	fans     map[string]*fanService
}

// New builds one HAP accessory per platform accessory. It can run before
// the platform is started.
func New(cfg config.HomeKitConfig, p *accessory.Platform, logger *zap.Logger) *Bridge {
	b := &Bridge{
		cfg:      cfg,
		logger:   logger,
		contacts: make(map[string]*service.ContactSensor),
		switches: make(map[string]*service.StatelessProgrammableSwitch),
		fans:     make(map[string]*fanService),
	}

	b.bridge = hapaccessory.NewBridge(hapaccessory.Info{
		Name:         cfg.Name,
		Manufacturer: "Monarco",
		Model:        "Monarco HAT",
		SerialNumber: serialNotAvailable,
	})

	for _, a := range p.Accessories() {
		manufacturer, model := Info(a.Kind())
		info := hapaccessory.Info{
			Name:         a.Name(),
			Manufacturer: manufacturer,
			Model:        model,
			SerialNumber: serialNotAvailable,
		}

		var ha *hapaccessory.A
		switch dev := a.(type) {
		case *accessory.ContactSensor:
			ha = hapaccessory.New(info, hapaccessory.TypeSensor)
			s := service.NewContactSensor()
			bindContact(dev, s)
			ha.AddS(s.S)
			b.contacts[a.ID()] = s
		case *accessory.Switch:
			ha = hapaccessory.New(info, hapaccessory.TypeProgrammableSwitch)
			s := service.NewStatelessProgrammableSwitch()
			bindSwitch(dev, s)
			ha.AddS(s.S)
			b.switches[a.ID()] = s
		case *accessory.Fan:
			ha = hapaccessory.New(info, hapaccessory.TypeFan)
			s := newFanService()
			bindFan(dev, s)
			ha.AddS(s.S)
			b.fans[a.ID()] = s
		default:
			continue
		}

		ha.Id = accessory.AccessoryID(a.ID())
		b.accessories = append(b.accessories, ha)
		logger.Info("homekit accessory", zap.String("device", a.ID()), zap.Uint64("aid", ha.Id), zap.String("model", model))
	}

	return b
}

func bindContact(c *accessory.ContactSensor, s *service.ContactSensor) {
	s.ContactSensorState.SetValue(int(c.ContactSensorState()))
	s.ContactSensorState.ValueRequestFunc = func(*http.Request) (interface{}, int) {
		return int(c.ContactSensorState()), 0
	}
}

func bindSwitch(sw *accessory.Switch, s *service.StatelessProgrammableSwitch) {
	s.ProgrammableSwitchEvent.ValueRequestFunc = func(*http.Request) (interface{}, int) {
		if sw.ProgrammableSwitchEvent() == logic.SwitchEventNone {
			return nil, 0
		}
		return characteristic.ProgrammableSwitchEventSinglePress, 0
	}
}

func bindFan(f *accessory.Fan, s *fanService) {
	h := fanHandlers{fan: f}

	// hap drops remote writes equal to the cached value, so the cache must
	// start out matching the store.
	s.Active.SetValue(h.active())
	s.RotationSpeed.SetValue(float64(f.RotationSpeed()))
	s.SwingMode.SetValue(h.swingMode())
	s.TargetFanState.SetValue(int(f.TargetFanState()))

	s.Active.OnValueRemoteUpdate(h.setActive)
	s.Active.ValueRequestFunc = func(*http.Request) (interface{}, int) {
		return h.active(), 0
	}

	s.RotationSpeed.OnValueRemoteUpdate(h.setRotationSpeed)
	s.RotationSpeed.ValueRequestFunc = func(*http.Request) (interface{}, int) {
		return float64(f.RotationSpeed()), 0
	}

	s.SwingMode.OnValueRemoteUpdate(h.setSwingMode)
	s.SwingMode.ValueRequestFunc = func(*http.Request) (interface{}, int) {
		return h.swingMode(), 0
	}

	s.TargetFanState.OnValueRemoteUpdate(h.setTargetFanState)
	s.TargetFanState.ValueRequestFunc = func(*http.Request) (interface{}, int) {
		return int(f.TargetFanState()), 0
	}
}

// fanHandlers converts HAP characteristic values to fan state.
type fanHandlers struct {
	fan *accessory.Fan
}

func (h fanHandlers) setActive(v int) {
	h.fan.SetActive(v == characteristic.ActiveActive)
}

func (h fanHandlers) active() int {
	if h.fan.Active() {
		return characteristic.ActiveActive
	}
	return characteristic.ActiveInactive
}

func (h fanHandlers) setRotationSpeed(v float64) {
	h.fan.SetRotationSpeed(int(math.Round(v)))
}

func (h fanHandlers) setSwingMode(v int) {
	h.fan.SetBoost(v == characteristic.SwingModeSwingEnabled)
}

func (h fanHandlers) swingMode() int {
	if h.fan.Boost() {
		return characteristic.SwingModeSwingEnabled
	}
	return characteristic.SwingModeSwingDisabled
}

func (h fanHandlers) setTargetFanState(v int) {
	h.fan.SetTargetFanState(logic.TargetFanState(v))
}

// Notify pushes accessory events to subscribed HomeKit controllers.
func (b *Bridge) Notify(e accessory.Event) {
	switch e.Kind {
	case accessory.EventContact:
		if s, ok := b.contacts[e.DeviceID]; ok {
			s.ContactSensorState.SetValue(int(e.Contact))
		}
	case accessory.EventPress:
		if s, ok := b.switches[e.DeviceID]; ok {
			s.ProgrammableSwitchEvent.SetValue(characteristic.ProgrammableSwitchEventSinglePress)
		}
	case accessory.EventFanState:
		if s, ok := b.fans[e.DeviceID]; ok {
			active := characteristic.ActiveInactive
			if e.Fan.Active {
				active = characteristic.ActiveActive
			}
			swing := characteristic.SwingModeSwingDisabled
			if e.Fan.Boost {
				swing = characteristic.SwingModeSwingEnabled
			}
			s.Active.SetValue(active)
			s.RotationSpeed.SetValue(float64(e.Fan.RotationSpeed))
			s.SwingMode.SetValue(swing)
			s.TargetFanState.SetValue(int(e.Fan.Target))
		}
	}
}

// Accessories returns the HAP accessories, bridge excluded.
func (b *Bridge) Accessories() []*hapaccessory.A {
	return b.accessories
}

// ListenAndServe runs the HAP server until ctx is cancelled. Pairing data
// is kept in the configured store directory.
func (b *Bridge) ListenAndServe(ctx context.Context) error {
	store := hap.NewFsStore(b.cfg.StoreDir)

	server, err := hap.NewServer(store, b.bridge.A, b.accessories...)
	if err != nil {
		return fmt.Errorf("create hap server: %w", err)
	}
	server.Pin = b.cfg.Pin
	if b.cfg.Addr != "" {
		server.Addr = b.cfg.Addr
	}

	b.logger.Info("homekit bridge starting",
		zap.String("name", b.cfg.Name),
		zap.Int("accessories", len(b.accessories)),
		zap.String("store", b.cfg.StoreDir))
	return server.ListenAndServe(ctx)
}
