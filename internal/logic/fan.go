package logic

import (
	"errors"
	"fmt"
)

// Lunos control input voltages. Each is the centre of a 0.3 V tolerance band.
const (
	VoltsAuto    = 0.0 // 0.0 - 0.4, controller runs on its internal sensors
	VoltsStage0  = 0.7 // 0.6 - 0.9, off
	VoltsStage1  = 1.2
	VoltsStage2  = 1.7
	VoltsStage3  = 2.2
	VoltsStage4  = 2.7
	VoltsStage5  = 3.2
	VoltsStage6  = 3.7
	VoltsStage7  = 4.2
	VoltsStage8  = 4.7
	SummerOffset = 5.0 // added on top of a stage, selects summer ventilation
)

// ErrUnknownVariant is returned for a fan model without a band table.
var ErrUnknownVariant = errors.New("unknown fan variant")

// bandVolts holds the stage voltage for the speed bands <=25, <=50, <=75, >75.
var bandVolts = map[FanVariant][4]float64{
	VariantE2:  {VoltsStage2, VoltsStage4, VoltsStage6, VoltsStage8},
	VariantEgo: {VoltsStage2, VoltsStage6, VoltsStage7, VoltsStage8},
}

// KnownVariant reports whether the variant has a band table.
func KnownVariant(v FanVariant) bool {
	_, ok := bandVolts[v]
	return ok
}

// ComputeVoltage maps the requested fan state to the analog output voltage.
// An unknown variant yields VoltsAuto and ErrUnknownVariant.
func ComputeVoltage(speed int, active, auto, boost bool, variant FanVariant) (float64, error) {
	bands, ok := bandVolts[variant]
	if !ok {
		return VoltsAuto, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}

	var v float64
	switch {
	case !active || speed <= 0:
		if auto {
			v = VoltsAuto
		} else {
			v = VoltsStage0
		}
	case speed <= 25:
		v = bands[0]
	case speed <= 50:
		v = bands[1]
	case speed <= 75:
		v = bands[2]
	default:
		v = bands[3]
	}

	if boost && active {
		v += SummerOffset
	}
	return v, nil
}

// Voltage is ComputeVoltage applied to a FanState.
func (s FanState) Voltage(variant FanVariant) (float64, error) {
	return ComputeVoltage(s.RotationSpeed, s.Active, s.Target == TargetAuto, s.Boost, variant)
}
