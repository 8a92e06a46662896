//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/monarco-bridge/internal/logic"
)

// RealReader reads inputs from actual hardware using the Linux GPIO character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
}

// NewRealReader requests the given BCM pins as inputs on chip (e.g. "gpiochip0").
func NewRealReader(chip string, pins [logic.NumDigitalInputs]int, activeLow bool) (*RealReader, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// Pull-down matches the Pi boot defaults, so an unwired input reads inactive.
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullDown}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	r := &RealReader{chip: c}
	for i, pin := range pins {
		line, err := c.RequestLine(pin, opts...)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request DI%d pin %d: %w", i+1, pin, err)
		}
		r.lines = append(r.lines, line)
	}
	return r, nil
}

// Read returns the logical level of every input.
func (r *RealReader) Read() (logic.DigitalInputSample, error) {
	var s logic.DigitalInputSample
	for i, line := range r.lines {
		v, err := line.Value()
		if err != nil {
			return logic.DigitalInputSample{}, fmt.Errorf("read DI%d: %w", i+1, err)
		}
		s[i] = v != 0
	}
	return s, nil
}

// Close releases GPIO resources.
// Pins are put back to input with pull-down (the Pi boot default) before
// closing so attached hardware sees a clean state at shutdown/reboot.
func (r *RealReader) Close() error {
	var errs []error

	for i, line := range r.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure DI%d: %w", i+1, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close DI%d: %w", i+1, err))
		}
	}
	r.lines = nil
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
