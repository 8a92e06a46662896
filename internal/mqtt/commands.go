package mqtt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sweeney/monarco-bridge/internal/accessory"
	"github.com/sweeney/monarco-bridge/internal/logic"
)

// Command keys accepted under <prefix>/<device>/set/.
const (
	KeyActive = "active"
	KeySpeed  = "speed"
	KeyBoost  = "boost"
	KeyMode   = "mode"
)

var (
	ErrUnknownDevice = errors.New("unknown fan")
	ErrUnknownKey    = errors.New("unknown command key")
	ErrInvalidValue  = errors.New("invalid command value")
)

// Command is one fan setting received from the broker.
type Command struct {
	DeviceID string
	Key      string
	Value    string
}

// FanLookup finds fan accessories by device id.
type FanLookup interface {
	Fan(id string) (*accessory.Fan, bool)
}

// ApplyCommand validates cmd and applies it to the addressed fan. The fan
// notifies its own listeners, so the new state is republished from there.
func ApplyCommand(fans FanLookup, cmd Command) error {
	fan, ok := fans.Fan(cmd.DeviceID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDevice, cmd.DeviceID)
	}

	value := strings.ToUpper(strings.TrimSpace(cmd.Value))
	switch cmd.Key {
	case KeyActive:
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		fan.SetActive(b)
	case KeyBoost:
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		fan.SetBoost(b)
	case KeySpeed:
		speed, err := strconv.Atoi(value)
		if err != nil || speed < 0 || speed > 100 {
			return fmt.Errorf("%w: speed %q", ErrInvalidValue, cmd.Value)
		}
		fan.SetRotationSpeed(speed)
	case KeyMode:
		switch value {
		case "AUTO":
			fan.SetTargetFanState(logic.TargetAuto)
		case "MANUAL":
			fan.SetTargetFanState(logic.TargetManual)
		default:
			return fmt.Errorf("%w: mode %q", ErrInvalidValue, cmd.Value)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, cmd.Key)
	}
	return nil
}

func parseBool(v string) (bool, error) {
	switch v {
	case "ON", "TRUE", "1":
		return true, nil
	case "OFF", "FALSE", "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidValue, v)
}
