package internal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/monarco-bridge/internal/accessory"
	"github.com/sweeney/monarco-bridge/internal/config"
	"github.com/sweeney/monarco-bridge/internal/driver"
	"github.com/sweeney/monarco-bridge/internal/logic"
	"github.com/sweeney/monarco-bridge/internal/mqtt"
	"github.com/sweeney/monarco-bridge/internal/status"
)

const integrationConfig = `
cycle_interval: 20ms
watchdog_timeout: 2
mqtt:
  enabled: true
  prefix: home/monarco
devices:
  - id: door
    name: Front Door
    kind: contactSensor
    digital_input: 1
  - id: bell
    name: Doorbell
    kind: programmableSwitch
    digital_input: 2
  - id: fan-bath
    name: Bath Fan
    kind: lunosEgo
    analog_output: 1
  - id: fan-kitchen
    name: Kitchen Fan
    kind: lunosE2
    analog_output: 2
`

// TestIntegrationFullFlow drives the complete flow from driver ticks to
// published MQTT state using fakes.
func TestIntegrationFullFlow(t *testing.T) {
	cfg, err := config.Parse([]byte(integrationConfig))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}

	drv := driver.NewFakeDriver(map[driver.RegisterID]uint16{
		driver.RegWatchdog:     0,
		driver.RegCounter1Mode: 1,
		driver.RegCounter2Mode: 1,
		driver.RegRS485Baud:    96,
		driver.RegRS485Mode:    0,
	})
	platform := accessory.NewPlatform(cfg, drv, zap.NewNop())

	publisher := mqtt.NewFakePublisher()
	platform.AddNotifier(mqtt.NewNotifier(publisher, zap.NewNop()))

	tracker := status.NewTracker(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), status.Config{})
	for _, a := range platform.Accessories() {
		tracker.AddAccessory(a)
	}
	platform.AddNotifier(tracker)

	if err := platform.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if v, _ := drv.Registers().Get(driver.RegWatchdog); v != 2000 {
		t.Errorf("watchdog: got %d, want 2000", v)
	}

	// Door opens, bell pressed and released.
	drv.TickN(logic.DigitalInputSample{true, true, false, false}, logic.ContactPeriod)
	drv.TickN(logic.DigitalInputSample{true, false, false, false}, logic.SwitchPeriod)

	// Fan commands arrive over MQTT.
	commands := []mqtt.Command{
		{DeviceID: "fan-bath", Key: mqtt.KeyMode, Value: "MANUAL"},
		{DeviceID: "fan-bath", Key: mqtt.KeyActive, Value: "ON"},
		{DeviceID: "fan-bath", Key: mqtt.KeySpeed, Value: "100"},
		{DeviceID: "fan-bath", Key: mqtt.KeyBoost, Value: "ON"},
	}
	for _, c := range commands {
		if err := mqtt.ApplyCommand(platform, c); err != nil {
			t.Fatalf("command %+v: %v", c, err)
		}
	}

	drv.TickN(logic.DigitalInputSample{true, false, false, false}, logic.FanPeriod)

	bath, _ := drv.Output(1)
	kitchen, _ := drv.Output(2)
	if bath != logic.VoltsStage8+logic.SummerOffset {
		t.Errorf("bath fan: got %v V, want %v V", bath, logic.VoltsStage8+logic.SummerOffset)
	}
	if kitchen != logic.VoltsAuto {
		t.Errorf("kitchen fan: got %v V, want auto", kitchen)
	}

	counts := map[accessory.EventKind]int{}
	for _, e := range publisher.States() {
		counts[e.Kind]++
	}
	want := map[accessory.EventKind]int{
		accessory.EventContact:   1,
		accessory.EventPress:     2,
		accessory.EventFanState:  4,
		accessory.EventFanOutput: 2,
	}
	for k, n := range want {
		if counts[k] != n {
			t.Errorf("%s events: got %d, want %d", k, counts[k], n)
		}
	}

	// The first published state is the door opening.
	var first mqtt.StatePayload
	if err := json.Unmarshal(publisher.StatePayloads()[0], &first); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if first.Device.ID != "door" || first.Device.Contact != "NOT_DETECTED" {
		t.Errorf("first payload: %+v", first.Device)
	}

	snap := tracker.Snapshot()
	if snap.Counts.Press != 2 {
		t.Errorf("tracked presses: got %d, want 2", snap.Counts.Press)
	}
	for _, a := range snap.Accessories {
		if a.ID == "fan-bath" && (!a.VoltsWritten || a.Volts != bath) {
			t.Errorf("tracked bath fan: %+v", a)
		}
	}
}

// TestIntegrationInertBindings checks that out-of-range channels leave the
// rest of the bridge working.
func TestIntegrationInertBindings(t *testing.T) {
	cfg, err := config.Parse([]byte(`
devices:
  - id: ghost
    name: Ghost
    kind: contactSensor
    digital_input: 7
  - id: door
    name: Door
    kind: contactSensor
    digital_input: 4
  - id: fan
    name: Fan
    kind: lunosEgo
    analog_output: 3
`))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}

	drv := driver.NewFakeDriver(nil)
	platform := accessory.NewPlatform(cfg, drv, zap.NewNop())
	publisher := mqtt.NewFakePublisher()
	platform.AddNotifier(mqtt.NewNotifier(publisher, zap.NewNop()))

	if err := platform.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if drv.Handlers() != 1 {
		t.Errorf("subscribed handlers: got %d, want 1", drv.Handlers())
	}

	drv.TickN(logic.DigitalInputSample{true, true, true, true}, logic.FanPeriod)

	states := publisher.States()
	if len(states) != 1 || states[0].DeviceID != "door" {
		t.Errorf("expected only the door event, got %+v", states)
	}
	if _, writes := drv.Output(1); writes != 0 {
		t.Error("inert fan must not write")
	}
}
