package logic

import "testing"

func TestContactPolarity(t *testing.T) {
	if got := ContactFromInput(true); got != ContactNotDetected {
		t.Errorf("raw true: expected NOT_DETECTED, got %s", got)
	}
	if got := ContactFromInput(false); got != ContactDetected {
		t.Errorf("raw false: expected DETECTED, got %s", got)
	}
}

func TestContactTranslatorBothDirections(t *testing.T) {
	c := NewContactTranslator()
	if c.State() != ContactDetected {
		t.Fatalf("expected initial DETECTED, got %s", c.State())
	}

	state, notify := c.Apply(Result{Sampled: true, Changed: true, Value: true})
	if !notify {
		t.Fatal("expected notification on open")
	}
	if state != ContactNotDetected {
		t.Errorf("expected NOT_DETECTED, got %s", state)
	}

	state, notify = c.Apply(Result{Sampled: true, Changed: true, Value: false})
	if !notify {
		t.Fatal("expected notification on close")
	}
	if state != ContactDetected {
		t.Errorf("expected DETECTED, got %s", state)
	}
}

func TestContactTranslatorIdempotent(t *testing.T) {
	d := NewEdgeDetector(ContactPeriod)
	c := NewContactTranslator()

	notifications := 0
	// Two full periods of the same open input.
	for i := 0; i < 2*ContactPeriod; i++ {
		if _, notify := c.Apply(d.Process(true)); notify {
			notifications++
		}
	}
	if notifications != 1 {
		t.Errorf("expected 1 notification, got %d", notifications)
	}
	if c.State() != ContactNotDetected {
		t.Errorf("expected NOT_DETECTED, got %s", c.State())
	}
}

func TestContactTranslatorIgnoresUnsampled(t *testing.T) {
	c := NewContactTranslator()
	_, notify := c.Apply(Result{Changed: true, Value: true})
	if notify {
		t.Error("unsampled result must not notify")
	}
}

func TestPressTranslatorEveryTransition(t *testing.T) {
	d := NewEdgeDetector(SwitchPeriod)
	p := NewPressTranslator()

	// press, hold, release, hold: two transitions
	levels := []bool{true, true, false, false}
	events := 0
	for _, level := range levels {
		for i := 0; i < SwitchPeriod; i++ {
			ev, ok := p.Apply(d.Process(level))
			if ok {
				events++
				if ev != SwitchEventSinglePress {
					t.Errorf("expected SINGLE_PRESS, got %s", ev)
				}
			}
		}
	}
	if events != 2 {
		t.Errorf("expected 2 press events, got %d", events)
	}
	if p.Presses() != 2 {
		t.Errorf("expected press count 2, got %d", p.Presses())
	}
	if p.State() != SwitchEventNone {
		t.Errorf("expected read to return NONE, got %s", p.State())
	}
}

func TestPressTranslatorNoEventWhenUnchanged(t *testing.T) {
	p := NewPressTranslator()
	if _, ok := p.Apply(Result{Sampled: true, Value: true}); ok {
		t.Error("unchanged sample must not press")
	}
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{ContactDetected.String(), "DETECTED"},
		{ContactNotDetected.String(), "NOT_DETECTED"},
		{ContactState(7).String(), "UNKNOWN"},
		{SwitchEventSinglePress.String(), "SINGLE_PRESS"},
		{SwitchEventNone.String(), "NONE"},
		{TargetAuto.String(), "AUTO"},
		{TargetManual.String(), "MANUAL"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, tt.got)
		}
	}
}

func TestChannelRanges(t *testing.T) {
	for _, ch := range []int{1, 2, 3, 4} {
		if !ValidDigitalInput(ch) {
			t.Errorf("digital input %d should be valid", ch)
		}
	}
	for _, ch := range []int{-1, 0, 5} {
		if ValidDigitalInput(ch) {
			t.Errorf("digital input %d should be invalid", ch)
		}
	}
	if !ValidAnalogOutput(1) || !ValidAnalogOutput(2) {
		t.Error("analog outputs 1 and 2 should be valid")
	}
	if ValidAnalogOutput(0) || ValidAnalogOutput(3) {
		t.Error("analog outputs 0 and 3 should be invalid")
	}
}
