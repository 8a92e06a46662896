package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
watchdog_timeout: 5
devices:
  - id: door-front
    name: Front Door
    kind: contactSensor
    digital_input: 1
  - id: bell
    name: Door Bell
    kind: programmableSwitch
    digital_input: 2
  - id: fan-bath
    name: Bathroom Fan
    kind: lunosEgo
    analog_output: 1
  - id: fan-kitchen
    name: Kitchen Fan
    kind: lunosE2
    analog_output: 2
`

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("devices: []\n"))
	require.NoError(t, err)

	assert.Equal(t, 20*time.Millisecond, cfg.CycleInterval)
	assert.Equal(t, 3, cfg.WatchdogTimeout)
	assert.Equal(t, BackendMonarco, cfg.Driver.Backend)
	assert.Equal(t, "/dev/spidev0.0", cfg.Driver.SPI.Port)
	assert.Equal(t, []int{17, 27, 22, 23}, cfg.Driver.GPIO.Pins)
	assert.True(t, cfg.HomeKit.Enabled)
	assert.Equal(t, "00102003", cfg.HomeKit.Pin)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "monarco", cfg.MQTT.Prefix)
	assert.Equal(t, 15*time.Minute, cfg.MQTT.Heartbeat)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Empty(t, cfg.Devices)
}

func TestParseDevices(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	require.Len(t, cfg.Devices, 4)

	assert.Equal(t, 5, cfg.WatchdogTimeout)

	d, ok := cfg.Device("fan-bath")
	require.True(t, ok)
	assert.Equal(t, "Bathroom Fan", d.Name)
	assert.Equal(t, KindLunosEgo, d.Kind)
	assert.Equal(t, 1, d.AnalogOutput)
	assert.Equal(t, 0, d.DigitalInput)
	assert.True(t, d.Kind.IsFan())

	_, ok = cfg.Device("missing")
	assert.False(t, ok)
}

func TestParseNoDevicesKey(t *testing.T) {
	cfg, err := Parse([]byte("cycle_interval: 50ms\n"))
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, cfg.CycleInterval)
	assert.Empty(t, cfg.Devices)
}

func TestSchemaRejectsBadDevices(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "devices:\n  - name: A\n    kind: contactSensor\n"},
		{"empty name", "devices:\n  - id: a\n    name: \"\"\n    kind: contactSensor\n"},
		{"unknown property", "devices:\n  - id: a\n    name: A\n    kind: contactSensor\n    colour: red\n"},
		{"string channel", "devices:\n  - id: a\n    name: A\n    kind: contactSensor\n    digital_input: one\n"},
		{"not a list", "devices: door\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestDuplicateDeviceID(t *testing.T) {
	_, err := Parse([]byte(`
devices:
  - {id: a, name: A, kind: contactSensor, digital_input: 1}
  - {id: a, name: B, kind: contactSensor, digital_input: 2}
`))
	assert.True(t, errors.Is(err, ErrDuplicateID), "got %v", err)
}

func TestAnalogOutputConflictNamesBothDevices(t *testing.T) {
	_, err := Parse([]byte(`
devices:
  - {id: fan-a, name: A, kind: lunosE2, analog_output: 2}
  - {id: fan-b, name: B, kind: lunosEgo, analog_output: 2}
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAnalogOutputConflict)
	assert.Contains(t, err.Error(), "fan-a")
	assert.Contains(t, err.Error(), "fan-b")
}

func TestOutOfRangeChannelsStillLoad(t *testing.T) {
	cfg, err := Parse([]byte(`
devices:
  - {id: s, name: S, kind: contactSensor, digital_input: 5}
  - {id: f, name: F, kind: lunosE2, analog_output: 0}
  - {id: g, name: G, kind: lunosE2, analog_output: 0}
  - {id: x, name: X, kind: dimmer}
`))
	require.NoError(t, err)
	assert.Len(t, cfg.Devices, 4)
	assert.False(t, cfg.Devices[3].Kind.Known())
}

func TestSharedDigitalInputs(t *testing.T) {
	cfg, err := Parse([]byte(`
devices:
  - {id: door, name: Door, kind: contactSensor, digital_input: 3}
  - {id: bell, name: Bell, kind: programmableSwitch, digital_input: 3}
  - {id: gate, name: Gate, kind: contactSensor, digital_input: 4}
`))
	require.NoError(t, err)

	shared := cfg.SharedDigitalInputs()
	require.Len(t, shared, 1)
	assert.Equal(t, []string{"door", "bell"}, shared[3])
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"backend", "driver:\n  backend: modbus\n", ErrInvalidBackend},
		{"cycle", "cycle_interval: 0s\n", ErrInvalidCycleInterval},
		{"pin", "homekit:\n  pin: \"1234\"\n", ErrInvalidPin},
		{"watchdog", "watchdog_timeout: 100\n", ErrInvalidWatchdog},
		{"gpio pins", "driver:\n  backend: gpio\n  gpio:\n    pins: [17, 27]\n", ErrInvalidGPIOPins},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHomeKitPinIgnoredWhenDisabled(t *testing.T) {
	_, err := Parse([]byte("homekit:\n  enabled: false\n  pin: nope\n"))
	assert.NoError(t, err)
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	t.Setenv("MONARCO_MQTT_PREFIX", "house")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "house", cfg.MQTT.Prefix)
	assert.Len(t, cfg.Devices, 4)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestYAMLIncludesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "cycle_interval: 20ms")
	assert.Contains(t, string(out), "door-front")
}

func TestKindKnown(t *testing.T) {
	for _, k := range []Kind{KindContactSensor, KindProgrammableSwitch, KindLunosE2, KindLunosEgo} {
		assert.True(t, k.Known(), string(k))
	}
	assert.False(t, Kind("lunosE3").Known())
	assert.False(t, KindContactSensor.IsFan())
}
