package logic

// Result is the outcome of processing one tick.
type Result struct {
	// Sampled is true when the tick fell on a decimation boundary.
	Sampled bool
	// Changed is true when the sampled value differs from the previous sample.
	Changed bool
	// Value is the sampled value (only meaningful when Sampled is true).
	Value bool
}

// Decimate decides what a single tick means for a decimated input.
// The input is only looked at when tick is a multiple of period; the
// caller is responsible for remembering the previous sampled value.
func Decimate(tick, period uint64, current, previous bool) Result {
	if period == 0 || tick%period != 0 {
		return Result{}
	}
	return Result{
		Sampled: true,
		Changed: current != previous,
		Value:   current,
	}
}

// EdgeDetector holds the tick counter and previous decimated value for one
// digital input. Not safe for concurrent use; callers synchronize.
type EdgeDetector struct {
	period   uint64
	tick     uint64
	previous bool
	samples  uint64
}

// NewEdgeDetector creates a detector that samples every period ticks.
// The previous value starts as false (input inactive).
func NewEdgeDetector(period int) *EdgeDetector {
	if period < 1 {
		period = 1
	}
	return &EdgeDetector{period: uint64(period)}
}

// Process counts one tick and returns the decimation result for it.
func (d *EdgeDetector) Process(current bool) Result {
	d.tick++
	r := Decimate(d.tick, d.period, current, d.previous)
	if r.Sampled {
		d.samples++
		d.previous = r.Value
	}
	return r
}

// Ticks returns the number of ticks processed so far.
func (d *EdgeDetector) Ticks() uint64 {
	return d.tick
}

// Samples returns how many ticks were actually sampled.
func (d *EdgeDetector) Samples() uint64 {
	return d.samples
}

// Previous returns the last decimated value.
func (d *EdgeDetector) Previous() bool {
	return d.previous
}
