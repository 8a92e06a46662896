// Package config loads the bridge configuration from YAML, environment
// overrides and built-in defaults.
package config

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/monarco-bridge/internal/logic"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "/etc/monarco-bridge/config.yaml"

// Driver backends.
const (
	BackendMonarco = "monarco"
	BackendGPIO    = "gpio"
)

// Kind is the configured accessory type.
type Kind string

const (
	KindContactSensor      Kind = "contactSensor"
	KindProgrammableSwitch Kind = "programmableSwitch"
	KindLunosE2            Kind = Kind(logic.VariantE2)
	KindLunosEgo           Kind = Kind(logic.VariantEgo)
)

// IsFan reports whether the kind is one of the Lunos fan models.
func (k Kind) IsFan() bool {
	return k == KindLunosE2 || k == KindLunosEgo
}

// Known reports whether the bridge can build an accessory of this kind.
func (k Kind) Known() bool {
	switch k {
	case KindContactSensor, KindProgrammableSwitch, KindLunosE2, KindLunosEgo:
		return true
	}
	return false
}

type Config struct {
	CycleInterval   time.Duration  `mapstructure:"cycle_interval"`
	WatchdogTimeout int            `mapstructure:"watchdog_timeout"` // seconds
	Driver          DriverConfig   `mapstructure:"driver"`
	HomeKit         HomeKitConfig  `mapstructure:"homekit"`
	MQTT            MQTTConfig     `mapstructure:"mqtt"`
	HTTP            HTTPConfig     `mapstructure:"http"`
	Devices         []DeviceConfig `mapstructure:"devices"`

	settings map[string]any
}

type DriverConfig struct {
	Backend string     `mapstructure:"backend"`
	SPI     SPIConfig  `mapstructure:"spi"`
	GPIO    GPIOConfig `mapstructure:"gpio"`
}

type SPIConfig struct {
	Port        string `mapstructure:"port"`
	FrequencyHz int64  `mapstructure:"frequency_hz"`
}

type GPIOConfig struct {
	Chip      string `mapstructure:"chip"`
	Pins      []int  `mapstructure:"pins"`
	ActiveLow bool   `mapstructure:"active_low"`
}

type HomeKitConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Name     string `mapstructure:"name"`
	Pin      string `mapstructure:"pin"`
	StoreDir string `mapstructure:"store_dir"`
	Addr     string `mapstructure:"addr"`
}

type MQTTConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Broker    string        `mapstructure:"broker"`
	ClientID  string        `mapstructure:"client_id"`
	Prefix    string        `mapstructure:"prefix"`
	Heartbeat time.Duration `mapstructure:"heartbeat"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the status server
}

// DeviceConfig binds one accessory to its I/O channels. Channels are
// one-based; zero means unused.
type DeviceConfig struct {
	ID           string `mapstructure:"id" json:"id"`
	Name         string `mapstructure:"name" json:"name"`
	Kind         Kind   `mapstructure:"kind" json:"kind"`
	DigitalInput int    `mapstructure:"digital_input" json:"digital_input"`
	AnalogOutput int    `mapstructure:"analog_output" json:"analog_output"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cycle_interval", "20ms")
	v.SetDefault("watchdog_timeout", 3)

	v.SetDefault("driver.backend", BackendMonarco)
	v.SetDefault("driver.spi.port", "/dev/spidev0.0")
	v.SetDefault("driver.spi.frequency_hz", 1000000)
	v.SetDefault("driver.gpio.chip", "gpiochip0")
	v.SetDefault("driver.gpio.pins", []int{17, 27, 22, 23})
	v.SetDefault("driver.gpio.active_low", false)

	v.SetDefault("homekit.enabled", true)
	v.SetDefault("homekit.name", "Monarco Bridge")
	v.SetDefault("homekit.pin", "00102003")
	v.SetDefault("homekit.store_dir", "/var/lib/monarco-bridge/hap")
	v.SetDefault("homekit.addr", "")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "monarco-bridge")
	v.SetDefault("mqtt.prefix", "monarco")
	v.SetDefault("mqtt.heartbeat", "15m")

	v.SetDefault("http.addr", ":8080")
}

// Load reads the file at path, applies MONARCO_ environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("MONARCO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return fromViper(v)
}

// Parse is Load for an in-memory YAML document.
func Parse(data []byte) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateDevices(v.Get("devices")); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.settings = v.AllSettings()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// YAML renders the effective settings, defaults included.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.settings)
}

// Device returns the device with the given id.
func (c *Config) Device(id string) (DeviceConfig, bool) {
	for _, d := range c.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return DeviceConfig{}, false
}

// SharedDigitalInputs maps each valid digital input read by more than one
// device to the ids of those devices.
func (c *Config) SharedDigitalInputs() map[int][]string {
	users := make(map[int][]string)
	for _, d := range c.Devices {
		if d.Kind.IsFan() || !logic.ValidDigitalInput(d.DigitalInput) {
			continue
		}
		users[d.DigitalInput] = append(users[d.DigitalInput], d.ID)
	}
	for ch, ids := range users {
		if len(ids) < 2 {
			delete(users, ch)
		}
	}
	return users
}
