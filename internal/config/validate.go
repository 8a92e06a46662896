package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sweeney/monarco-bridge/internal/logic"
)

//go:embed schema/devices-v1.json
var devicesSchemaJSON string

// The watchdog register holds milliseconds in 16 bits.
const maxWatchdogTimeout = 65

var (
	ErrDuplicateID          = errors.New("duplicate device id")
	ErrAnalogOutputConflict = errors.New("analog output bound to more than one fan")
	ErrInvalidBackend       = errors.New("invalid driver backend")
	ErrInvalidCycleInterval = errors.New("cycle_interval must be positive")
	ErrInvalidPin           = errors.New("homekit pin must be 8 digits")
	ErrInvalidWatchdog      = errors.New("watchdog_timeout out of range")
	ErrInvalidGPIOPins      = errors.New("driver.gpio.pins needs one pin per digital input")
)

// Validator checks the devices list against the embedded JSON schema.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource("devices-v1.json",
		strings.NewReader(devicesSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile("devices-v1.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateDevices validates the raw devices value as decoded from YAML.
func (v *Validator) ValidateDevices(raw any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal devices: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("devices schema validation failed: %w", err)
	}
	return nil
}

// Validate runs the checks the schema cannot express. Channel numbers out
// of range are not errors here: such accessories load but stay inert.
func (c *Config) Validate() error {
	if c.CycleInterval <= 0 {
		return ErrInvalidCycleInterval
	}
	if c.WatchdogTimeout < 0 || c.WatchdogTimeout > maxWatchdogTimeout {
		return fmt.Errorf("%w: %d", ErrInvalidWatchdog, c.WatchdogTimeout)
	}

	switch c.Driver.Backend {
	case BackendMonarco:
	case BackendGPIO:
		if len(c.Driver.GPIO.Pins) != logic.NumDigitalInputs {
			return fmt.Errorf("%w: got %d", ErrInvalidGPIOPins, len(c.Driver.GPIO.Pins))
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Driver.Backend)
	}

	if c.HomeKit.Enabled && !validPin(c.HomeKit.Pin) {
		return ErrInvalidPin
	}

	seen := make(map[string]bool, len(c.Devices))
	for _, d := range c.Devices {
		if seen[d.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateID, d.ID)
		}
		seen[d.ID] = true
	}

	owner := make(map[int]string)
	for _, d := range c.Devices {
		if !d.Kind.IsFan() || !logic.ValidAnalogOutput(d.AnalogOutput) {
			continue
		}
		if first, ok := owner[d.AnalogOutput]; ok {
			return fmt.Errorf("%w: output %d used by %q and %q",
				ErrAnalogOutputConflict, d.AnalogOutput, first, d.ID)
		}
		owner[d.AnalogOutput] = d.ID
	}

	return nil
}

func validPin(pin string) bool {
	if len(pin) != 8 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
