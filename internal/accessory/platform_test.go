package accessory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sweeney/monarco-bridge/internal/config"
	"github.com/sweeney/monarco-bridge/internal/driver"
	"github.com/sweeney/monarco-bridge/internal/logic"
)

func fullRegisters() map[driver.RegisterID]uint16 {
	return map[driver.RegisterID]uint16{
		driver.RegFirmwareLow:  0x0203,
		driver.RegFirmwareHigh: 0x0001,
		driver.RegHardwareLow:  0x0300,
		driver.RegHardwareHigh: 0x0000,
		driver.RegCPUID1:       0x4444,
		driver.RegCPUID2:       0x3333,
		driver.RegCPUID3:       0x2222,
		driver.RegCPUID4:       0x1111,
		driver.RegWatchdog:     0,
		driver.RegRS485Baud:    96,
		driver.RegRS485Mode:    7,
		driver.RegCounter1Mode: 1,
		driver.RegCounter2Mode: 1,
	}
}

func testConfig() *config.Config {
	return &config.Config{
		WatchdogTimeout: 3,
		Devices: []config.DeviceConfig{
			{ID: "door", Name: "Door", Kind: config.KindContactSensor, DigitalInput: 1},
			{ID: "bell", Name: "Bell", Kind: config.KindProgrammableSwitch, DigitalInput: 2},
			{ID: "fan-a", Name: "Fan A", Kind: config.KindLunosEgo, AnalogOutput: 1},
			{ID: "fan-b", Name: "Fan B", Kind: config.KindLunosE2, AnalogOutput: 2},
			{ID: "broken", Name: "Broken", Kind: config.KindContactSensor, DigitalInput: 9},
			{ID: "dimmer", Name: "Dimmer", Kind: config.Kind("dimmer")},
		},
	}
}

func TestPlatformBuildsAccessories(t *testing.T) {
	drv := driver.NewFakeDriver(fullRegisters())
	p := NewPlatform(testConfig(), drv, zap.NewNop())

	all := p.Accessories()
	require.Len(t, all, 5, "unknown kind is skipped")
	assert.Equal(t, "door", all[0].ID())

	_, ok := p.Accessory("dimmer")
	assert.False(t, ok)

	f, ok := p.Fan("fan-b")
	require.True(t, ok)
	assert.Equal(t, logic.VariantE2, f.Variant())

	_, ok = p.Fan("door")
	assert.False(t, ok)
	assert.Zero(t, drv.Handlers(), "no subscriptions before Start")
}

func TestPlatformStartOrder(t *testing.T) {
	drv := driver.NewFakeDriver(fullRegisters())
	p := NewPlatform(testConfig(), drv, zap.NewNop())

	require.NoError(t, p.Start(context.Background()))

	assert.True(t, p.Started())
	assert.True(t, drv.Initialized)
	assert.False(t, drv.SubscribedBeforeInit)
	assert.Equal(t, 4, drv.Handlers(), "inert accessory is not subscribed")

	// Second Start is a no-op.
	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, 4, drv.Handlers())
}

func TestPlatformConcurrentStartInitializesOnce(t *testing.T) {
	drv := driver.NewFakeDriver(fullRegisters())
	p := NewPlatform(testConfig(), drv, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Start(context.Background()))
		}()
	}
	wg.Wait()

	assert.True(t, p.Started())
	assert.Equal(t, 1, drv.InitCalls)
	assert.Equal(t, 4, drv.Handlers())
}

func TestPlatformRegisterBootstrap(t *testing.T) {
	drv := driver.NewFakeDriver(fullRegisters())
	cfg := testConfig()
	cfg.WatchdogTimeout = 5
	p := NewPlatform(cfg, drv, zap.NewNop())

	require.NoError(t, p.Start(context.Background()))

	regs := drv.Registers()
	want := map[driver.RegisterID]uint16{
		driver.RegCounter1Mode: driver.CounterModeOff,
		driver.RegCounter2Mode: driver.CounterModeOff,
		driver.RegRS485Baud:    384,
		driver.RegRS485Mode:    driver.RS485DefaultMode,
		driver.RegWatchdog:     5000,
	}
	for id, v := range want {
		got, ok := regs.Get(id)
		assert.True(t, ok, id.String())
		assert.Equal(t, v, got, id.String())
	}

	info := p.DeviceInfo()
	assert.Equal(t, "00010203", info.FirmwareHex())
	assert.Equal(t, "00000300", info.HardwareHex())
	assert.Equal(t, "1111222233334444", info.CPUID)
}

func TestPlatformMissingRegistersContinue(t *testing.T) {
	drv := driver.NewFakeDriver(nil)
	p := NewPlatform(testConfig(), drv, zap.NewNop())

	require.NoError(t, p.Start(context.Background()))

	assert.Equal(t, DeviceInfo{CPUID: "0000000000000000"}, p.DeviceInfo())
	_, ok := drv.Registers().Get(driver.RegWatchdog)
	assert.False(t, ok, "Set must not create a register")
	assert.Equal(t, 4, drv.Handlers())
}

func TestPlatformInitFailure(t *testing.T) {
	drv := driver.NewFakeDriver(fullRegisters())
	drv.InitError = errors.New("no hat")
	p := NewPlatform(testConfig(), drv, zap.NewNop())

	err := p.Start(context.Background())
	assert.ErrorIs(t, err, drv.InitError)
	assert.False(t, p.Started())
	assert.Zero(t, drv.Handlers())
}

func TestPlatformRoutesTicksAndEvents(t *testing.T) {
	drv := driver.NewFakeDriver(fullRegisters())
	p := NewPlatform(testConfig(), drv, zap.NewNop())
	rec := &recorder{}
	p.AddNotifier(rec)
	require.NoError(t, p.Start(context.Background()))

	fa, _ := p.Fan("fan-a")
	fb, _ := p.Fan("fan-b")
	fa.SetActive(true)
	fa.SetRotationSpeed(50)
	fb.SetActive(true)
	fb.SetRotationSpeed(50)

	drv.TickN(logic.DigitalInputSample{true, true, false, false}, logic.FanPeriod)

	va, _ := drv.Output(1)
	vb, _ := drv.Output(2)
	assert.InDelta(t, logic.VoltsStage6, va, 1e-9)
	assert.InDelta(t, logic.VoltsStage4, vb, 1e-9)

	assert.Len(t, rec.ofKind(EventContact), 1)
	assert.Len(t, rec.ofKind(EventPress), 1)
	assert.Len(t, rec.ofKind(EventFanState), 4)
	assert.Len(t, rec.ofKind(EventFanOutput), 2)
}

func TestPlatformCountsDriverErrors(t *testing.T) {
	drv := driver.NewFakeDriver(fullRegisters())
	p := NewPlatform(testConfig(), drv, zap.NewNop())
	require.NoError(t, p.Start(context.Background()))

	drv.ReportError(errors.New("crc mismatch"))
	drv.ReportError(errors.New("sdc timeout"))

	stats := p.DriverErrors()
	assert.Equal(t, uint64(2), stats.Count)
	assert.Equal(t, "sdc timeout", stats.Last)
	assert.False(t, stats.At.IsZero())
}

func TestWatchdogMillis(t *testing.T) {
	assert.Equal(t, uint16(3000), watchdogMillis(3))
	assert.Equal(t, uint16(0), watchdogMillis(-1))
	assert.Equal(t, uint16(65535), watchdogMillis(100))
}
