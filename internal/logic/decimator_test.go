package logic

import "testing"

func TestDecimateOnlyOnMultiples(t *testing.T) {
	for tick := uint64(1); tick <= 200; tick++ {
		r := Decimate(tick, 32, true, false)
		want := tick%32 == 0
		if r.Sampled != want {
			t.Errorf("tick %d: expected Sampled=%v, got %v", tick, want, r.Sampled)
		}
		if r.Sampled && !r.Changed {
			t.Errorf("tick %d: expected change from false to true", tick)
		}
		if !r.Sampled && (r.Changed || r.Value) {
			t.Errorf("tick %d: unsampled tick must be zero result, got %+v", tick, r)
		}
	}
}

func TestDecimateZeroPeriod(t *testing.T) {
	r := Decimate(64, 0, true, false)
	if r.Sampled {
		t.Error("zero period must never sample")
	}
}

func TestDecimateUnchanged(t *testing.T) {
	r := Decimate(10, 5, true, true)
	if !r.Sampled {
		t.Fatal("expected sample on tick 10")
	}
	if r.Changed {
		t.Error("expected unchanged for identical samples")
	}
	if !r.Value {
		t.Error("expected Value=true")
	}
}

func TestEdgeDetectorSampleCount(t *testing.T) {
	d := NewEdgeDetector(32)
	for i := 0; i < 319; i++ {
		d.Process(i%2 == 0)
	}
	if d.Ticks() != 319 {
		t.Errorf("expected 319 ticks, got %d", d.Ticks())
	}
	if d.Samples() != 9 {
		t.Errorf("expected 9 samples, got %d", d.Samples())
	}
}

func TestEdgeDetectorSampledTicks(t *testing.T) {
	d := NewEdgeDetector(32)
	var sampled []uint64
	for i := 0; i < 319; i++ {
		if r := d.Process(false); r.Sampled {
			sampled = append(sampled, d.Ticks())
		}
	}
	want := []uint64{32, 64, 96, 128, 160, 192, 224, 256, 288}
	if len(sampled) != len(want) {
		t.Fatalf("expected %d sampled ticks, got %d (%v)", len(want), len(sampled), sampled)
	}
	for i := range want {
		if sampled[i] != want[i] {
			t.Errorf("sample %d: expected tick %d, got %d", i, want[i], sampled[i])
		}
	}
}

func TestEdgeDetectorIgnoresBetweenSamples(t *testing.T) {
	d := NewEdgeDetector(5)

	// Input bounces on ticks 1-4 but is low again at tick 5.
	inputs := []bool{true, false, true, true, false}
	for i, in := range inputs {
		r := d.Process(in)
		if r.Changed {
			t.Errorf("tick %d: bounce between samples must not report a change", i+1)
		}
	}
	if d.Previous() {
		t.Error("expected previous sample to be false")
	}
}

func TestEdgeDetectorReportsChangeOnce(t *testing.T) {
	d := NewEdgeDetector(5)
	changes := 0
	for i := 0; i < 50; i++ {
		if r := d.Process(true); r.Changed {
			changes++
		}
	}
	if changes != 1 {
		t.Errorf("expected exactly 1 change for a steady input, got %d", changes)
	}
}

func TestEdgeDetectorMinimumPeriod(t *testing.T) {
	d := NewEdgeDetector(0)
	r := d.Process(true)
	if !r.Sampled || !r.Changed {
		t.Errorf("period clamped to 1 should sample every tick, got %+v", r)
	}
}
