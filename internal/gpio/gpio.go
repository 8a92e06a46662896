// Package gpio provides digital input reading with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/monarco-bridge/internal/logic"

// Reader reads the four digital input levels.
type Reader interface {
	// Read returns the logical level of every input, index 0 = DI1.
	// With active-low wiring the raw level is inverted before returning.
	Read() (logic.DigitalInputSample, error)

	// Close releases GPIO resources.
	Close() error
}

// DefaultPins are the BCM pins used for DI1-DI4 when no Monarco HAT is fitted.
var DefaultPins = [logic.NumDigitalInputs]int{17, 27, 22, 23}
