// Package logic contains the pure I/O-to-accessory translation rules.
// This package has NO external dependencies (no SPI, GPIO, HomeKit, MQTT or OS).
// Tick counters and samples are always passed in by the caller.
package logic

// NumDigitalInputs is the number of digital input channels in one sample.
const NumDigitalInputs = 4

// NumAnalogOutputs is the number of analog output slots on the controller.
const NumAnalogOutputs = 2

// DigitalInputSample is one tick's snapshot of the digital inputs.
// Index 0 is physical input DI1.
type DigitalInputSample [NumDigitalInputs]bool

// Decimation periods, in ticks, per accessory kind.
const (
	ContactPeriod = 5
	SwitchPeriod  = 5
	FanPeriod     = 64
)

// ContactState is the reported state of a contact sensor.
// Values match the HomeKit ContactSensorState characteristic.
type ContactState int

const (
	ContactDetected    ContactState = 0
	ContactNotDetected ContactState = 1
)

func (s ContactState) String() string {
	switch s {
	case ContactDetected:
		return "DETECTED"
	case ContactNotDetected:
		return "NOT_DETECTED"
	default:
		return "UNKNOWN"
	}
}

// SwitchEvent is the reported value of a stateless programmable switch.
type SwitchEvent int

const (
	// SwitchEventNone is what a read of a stateless switch always returns.
	SwitchEventNone SwitchEvent = -1
	// SwitchEventSinglePress matches HomeKit ProgrammableSwitchEvent SINGLE_PRESS.
	SwitchEventSinglePress SwitchEvent = 0
)

func (e SwitchEvent) String() string {
	if e == SwitchEventSinglePress {
		return "SINGLE_PRESS"
	}
	return "NONE"
}

// TargetFanState selects between manual speed control and the controller's
// own sensor-driven automatic mode. Values match HomeKit TargetFanState.
type TargetFanState int

const (
	TargetManual TargetFanState = 0
	TargetAuto   TargetFanState = 1
)

func (t TargetFanState) String() string {
	if t == TargetAuto {
		return "AUTO"
	}
	return "MANUAL"
}

// FanVariant is the fan hardware model, which decides the speed band mapping.
type FanVariant string

const (
	VariantE2  FanVariant = "lunosE2"
	VariantEgo FanVariant = "lunosEgo"
)

// FanState is the host-controlled state of one fan accessory.
type FanState struct {
	Active        bool
	RotationSpeed int // 0-100, step 25
	Boost         bool
	Target        TargetFanState
}

// DefaultFanState is the state a fan starts with after every restart.
func DefaultFanState() FanState {
	return FanState{Target: TargetAuto}
}

// ValidDigitalInput reports whether a one-based digital input index is usable.
func ValidDigitalInput(ch int) bool {
	return ch >= 1 && ch <= NumDigitalInputs
}

// ValidAnalogOutput reports whether a one-based analog output index is usable.
func ValidAnalogOutput(ch int) bool {
	return ch >= 1 && ch <= NumAnalogOutputs
}
