package accessory

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/monarco-bridge/internal/config"
	"github.com/sweeney/monarco-bridge/internal/driver"
)

// DeviceInfo is the controller identity read from its registers at startup.
type DeviceInfo struct {
	Firmware uint32
	Hardware uint32
	CPUID    string
}

func (i DeviceInfo) FirmwareHex() string { return fmt.Sprintf("%08x", i.Firmware) }
func (i DeviceInfo) HardwareHex() string { return fmt.Sprintf("%08x", i.Hardware) }

// Platform owns the driver handle and every configured accessory.
type Platform struct {
	cfg    *config.Config
	drv    driver.Driver
	logger *zap.Logger
	now    func() time.Time
	events *fanout

	accessories []Accessory
	byID        map[string]Accessory

	// startMu serializes Start; mu guards the fields below.
	startMu sync.Mutex

	mu      sync.Mutex
	started bool
	info    DeviceInfo
	errs    DriverErrorStats
}

// DriverErrorStats counts errors reported by the driver since startup.
type DriverErrorStats struct {
	Count uint64
	Last  string
	At    time.Time
}

// NewPlatform builds the accessories described by cfg. Accessories exist
// from here on and can be registered with hosts; they only receive ticks
// once Start has initialized the driver.
func NewPlatform(cfg *config.Config, drv driver.Driver, logger *zap.Logger) *Platform {
	p := &Platform{
		cfg:    cfg,
		drv:    drv,
		logger: logger,
		now:    time.Now,
		events: &fanout{},
		byID:   make(map[string]Accessory),
	}

	opts := Options{Logger: logger, Notifier: p.events, Now: p.now}
	for _, d := range cfg.Devices {
		var a Accessory
		switch d.Kind {
		case config.KindContactSensor:
			a = NewContactSensor(d, opts)
		case config.KindProgrammableSwitch:
			a = NewSwitch(d, opts)
		case config.KindLunosE2, config.KindLunosEgo:
			a = NewFan(d, drv, opts)
		default:
			logger.Error("invalid device kind", zap.String("device", d.ID), zap.String("kind", string(d.Kind)))
			continue
		}
		p.accessories = append(p.accessories, a)
		p.byID[d.ID] = a
		logger.Info("adding accessory", zap.String("device", d.ID), zap.String("name", d.Name), zap.String("kind", string(d.Kind)))
	}

	for ch, ids := range cfg.SharedDigitalInputs() {
		logger.Warn("digital input shared by several accessories", zap.Int("digital_input", ch), zap.Strings("devices", ids))
	}
	return p
}

// AddNotifier registers a receiver for every accessory event.
func (p *Platform) AddNotifier(n Notifier) {
	p.events.add(n)
}

// Start initializes the driver, configures the controller registers and
// then subscribes every usable accessory to the driver's ticks.
func (p *Platform) Start(ctx context.Context) error {
	p.startMu.Lock()
	defer p.startMu.Unlock()

	if p.Started() {
		return nil
	}

	p.drv.OnError(p.handleDriverError)

	p.logger.Info("initializing controller", zap.Duration("cycle_interval", p.drv.Period()))
	if err := p.drv.Init(ctx); err != nil {
		return fmt.Errorf("init driver: %w", err)
	}

	info := p.bootstrap()

	subscribed := 0
	for _, a := range p.accessories {
		if a.Inert() {
			continue
		}
		p.drv.Subscribe(a.HandleTick)
		subscribed++
	}

	p.mu.Lock()
	p.started = true
	p.info = info
	p.mu.Unlock()

	p.logger.Info("platform started", zap.Int("accessories", len(p.accessories)), zap.Int("subscribed", subscribed))
	return nil
}

// bootstrap logs the controller identity and writes the fixed register
// settings. Missing registers are logged and skipped.
func (p *Platform) bootstrap() DeviceInfo {
	info := DeviceInfo{
		Firmware: uint32(p.regValue(driver.RegFirmwareHigh))<<16 | uint32(p.regValue(driver.RegFirmwareLow)),
		Hardware: uint32(p.regValue(driver.RegHardwareHigh))<<16 | uint32(p.regValue(driver.RegHardwareLow)),
		CPUID: fmt.Sprintf("%04x%04x%04x%04x",
			p.regValue(driver.RegCPUID4), p.regValue(driver.RegCPUID3),
			p.regValue(driver.RegCPUID2), p.regValue(driver.RegCPUID1)),
	}
	p.logger.Info("monarco",
		zap.String("fw", info.FirmwareHex()),
		zap.String("hw", info.HardwareHex()),
		zap.String("cpuid", info.CPUID))

	p.setReg(driver.RegCounter1Mode, driver.CounterModeOff)
	p.setReg(driver.RegCounter2Mode, driver.CounterModeOff)
	p.setReg(driver.RegRS485Baud, driver.RS485Baud38400)
	p.setReg(driver.RegRS485Mode, driver.RS485DefaultMode)
	p.setReg(driver.RegWatchdog, watchdogMillis(p.cfg.WatchdogTimeout))
	return info
}

func watchdogMillis(seconds int) uint16 {
	ms := seconds * 1000
	if ms < 0 {
		return 0
	}
	if ms > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(ms)
}

func (p *Platform) regValue(id driver.RegisterID) uint16 {
	v, ok := p.drv.Registers().Get(id)
	if !ok {
		p.logger.Error("register not found", zap.Stringer("register", id))
		return 0
	}
	return v
}

func (p *Platform) setReg(id driver.RegisterID, v uint16) {
	if !p.drv.Registers().Set(id, v) {
		p.logger.Error("register not found", zap.Stringer("register", id))
	}
}

func (p *Platform) handleDriverError(err error) {
	p.mu.Lock()
	p.errs.Count++
	p.errs.Last = err.Error()
	p.errs.At = p.now()
	p.mu.Unlock()

	p.logger.Error("driver error", zap.Error(err))
}

// Accessories returns every built accessory in configuration order.
func (p *Platform) Accessories() []Accessory {
	out := make([]Accessory, len(p.accessories))
	copy(out, p.accessories)
	return out
}

// Accessory looks up an accessory by device id.
func (p *Platform) Accessory(id string) (Accessory, bool) {
	a, ok := p.byID[id]
	return a, ok
}

// Fan looks up a fan by device id.
func (p *Platform) Fan(id string) (*Fan, bool) {
	f, ok := p.byID[id].(*Fan)
	return f, ok
}

// Started reports whether Start completed.
func (p *Platform) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// DeviceInfo returns the controller identity read by Start.
func (p *Platform) DeviceInfo() DeviceInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.info
}

// DriverErrors returns the driver error count and the most recent error.
func (p *Platform) DriverErrors() DriverErrorStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errs
}
