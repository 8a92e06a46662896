package homekit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brutella/hap/characteristic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sweeney/monarco-bridge/internal/accessory"
	"github.com/sweeney/monarco-bridge/internal/config"
	"github.com/sweeney/monarco-bridge/internal/driver"
	"github.com/sweeney/monarco-bridge/internal/logic"
)

func newTestBridge(t *testing.T) (*Bridge, *accessory.Platform) {
	t.Helper()
	cfg := &config.Config{
		Devices: []config.DeviceConfig{
			{ID: "door", Name: "Door", Kind: config.KindContactSensor, DigitalInput: 1},
			{ID: "bell", Name: "Bell", Kind: config.KindProgrammableSwitch, DigitalInput: 2},
			{ID: "fan", Name: "Fan", Kind: config.KindLunosEgo, AnalogOutput: 1},
		},
	}
	p := accessory.NewPlatform(cfg, driver.NewFakeDriver(nil), zap.NewNop())
	b := New(config.HomeKitConfig{Name: "Test", Pin: "00102003", StoreDir: t.TempDir()}, p, zap.NewNop())
	p.AddNotifier(b)
	return b, p
}

func TestInfo(t *testing.T) {
	tests := []struct {
		kind         config.Kind
		manufacturer string
		model        string
	}{
		{config.KindContactSensor, "Monarco", "Contact Sensor"},
		{config.KindProgrammableSwitch, "Monarco", "Programmable Switch"},
		{config.KindLunosE2, "Lunos", "Lunos e2"},
		{config.KindLunosEgo, "Lunos", "Lunos ego"},
	}
	for _, tt := range tests {
		m, model := Info(tt.kind)
		assert.Equal(t, tt.manufacturer, m)
		assert.Equal(t, tt.model, model)
	}
}

func TestNewBuildsOneAccessoryPerDevice(t *testing.T) {
	b, _ := newTestBridge(t)

	accs := b.Accessories()
	require.Len(t, accs, 3)
	assert.Equal(t, accessory.AccessoryID("door"), accs[0].Id)
	assert.Equal(t, accessory.AccessoryID("fan"), accs[2].Id)

	assert.Contains(t, b.contacts, "door")
	assert.Contains(t, b.switches, "bell")
	assert.Contains(t, b.fans, "fan")
}

func TestAccessoryIDsStableAcrossBuilds(t *testing.T) {
	a, _ := newTestBridge(t)
	b, _ := newTestBridge(t)

	for i := range a.Accessories() {
		assert.Equal(t, a.Accessories()[i].Id, b.Accessories()[i].Id)
	}
}

func TestContactReadUsesStore(t *testing.T) {
	b, p := newTestBridge(t)

	door, ok := p.Accessory("door")
	require.True(t, ok)
	tickDoor := func(level bool) {
		for i := 0; i < logic.ContactPeriod; i++ {
			door.HandleTick(driver.Sample{DigitalInputs: logic.DigitalInputSample{level}})
		}
	}

	s := b.contacts["door"]
	v, code := s.ContactSensorState.ValueRequestFunc(nil)
	assert.Equal(t, 0, code)
	assert.Equal(t, characteristic.ContactSensorStateContactDetected, v)

	tickDoor(true)
	v, _ = s.ContactSensorState.ValueRequestFunc(nil)
	assert.Equal(t, characteristic.ContactSensorStateContactNotDetected, v)
	assert.Equal(t, characteristic.ContactSensorStateContactNotDetected, s.ContactSensorState.Value())
}

func TestSwitchReadIsNone(t *testing.T) {
	b, _ := newTestBridge(t)

	v, code := b.switches["bell"].ProgrammableSwitchEvent.ValueRequestFunc(nil)
	assert.Equal(t, 0, code)
	assert.Nil(t, v)
}

func remoteWrite() *http.Request {
	return httptest.NewRequest(http.MethodPut, "/characteristics", nil)
}

func TestFanCharacteristicsStartFromStore(t *testing.T) {
	b, _ := newTestBridge(t)
	s := b.fans["fan"]

	assert.Equal(t, characteristic.ActiveInactive, s.Active.Value())
	assert.Equal(t, 0.0, s.RotationSpeed.Value())
	assert.Equal(t, characteristic.SwingModeSwingDisabled, s.SwingMode.Value())
	assert.Equal(t, characteristic.TargetFanStateAuto, s.TargetFanState.Value())
}

func TestFanRemoteWritesFromDefaultState(t *testing.T) {
	b, p := newTestBridge(t)
	fan, ok := p.Fan("fan")
	require.True(t, ok)
	require.Equal(t, logic.DefaultFanState(), fan.State())
	s := b.fans["fan"]

	s.TargetFanState.SetValueRequest(characteristic.TargetFanStateManual, remoteWrite())
	assert.Equal(t, logic.TargetManual, fan.TargetFanState(), "first manual write reaches the store")

	s.Active.SetValueRequest(characteristic.ActiveActive, remoteWrite())
	s.RotationSpeed.SetValueRequest(50.0, remoteWrite())
	s.SwingMode.SetValueRequest(characteristic.SwingModeSwingEnabled, remoteWrite())

	want := logic.FanState{Active: true, RotationSpeed: 50, Boost: true, Target: logic.TargetManual}
	assert.Equal(t, want, fan.State())

	s.TargetFanState.SetValueRequest(characteristic.TargetFanStateAuto, remoteWrite())
	s.Active.SetValueRequest(characteristic.ActiveInactive, remoteWrite())
	s.SwingMode.SetValueRequest(characteristic.SwingModeSwingDisabled, remoteWrite())

	want = logic.FanState{RotationSpeed: 50, Target: logic.TargetAuto}
	assert.Equal(t, want, fan.State())

	v, _ := s.TargetFanState.ValueRequestFunc(nil)
	assert.Equal(t, characteristic.TargetFanStateAuto, v)
}

func TestFanHandlersRoundSpeed(t *testing.T) {
	_, p := newTestBridge(t)
	fan, _ := p.Fan("fan")
	h := fanHandlers{fan: fan}

	h.setRotationSpeed(74.6)
	assert.Equal(t, 75, fan.RotationSpeed())
	assert.Equal(t, characteristic.ActiveInactive, h.active())
	assert.Equal(t, characteristic.SwingModeSwingDisabled, h.swingMode())
}

func TestAccessoryInfo(t *testing.T) {
	b, _ := newTestBridge(t)

	for _, a := range b.Accessories() {
		assert.Equal(t, serialNotAvailable, a.Info.SerialNumber.Value())
	}
	assert.Equal(t, "Lunos ego", b.Accessories()[2].Info.Model.Value())
}

func TestFanStateMirroredToCharacteristics(t *testing.T) {
	b, p := newTestBridge(t)
	fan, _ := p.Fan("fan")

	fan.SetActive(true)
	fan.SetRotationSpeed(50)
	fan.SetBoost(true)
	fan.SetTargetFanState(logic.TargetManual)

	s := b.fans["fan"]
	assert.Equal(t, characteristic.ActiveActive, s.Active.Value())
	assert.Equal(t, 50.0, s.RotationSpeed.Value())
	assert.Equal(t, characteristic.SwingModeSwingEnabled, s.SwingMode.Value())
	assert.Equal(t, characteristic.TargetFanStateManual, s.TargetFanState.Value())

	v, _ := s.RotationSpeed.ValueRequestFunc(nil)
	assert.Equal(t, 50.0, v)
}

func TestNotifyIgnoresUnknownDevice(t *testing.T) {
	b, _ := newTestBridge(t)

	assert.NotPanics(t, func() {
		b.Notify(accessory.Event{Kind: accessory.EventContact, DeviceID: "nope", Timestamp: time.Now()})
		b.Notify(accessory.Event{Kind: accessory.EventPress, DeviceID: "nope"})
		b.Notify(accessory.Event{Kind: accessory.EventFanState, DeviceID: "nope"})
	})
}
