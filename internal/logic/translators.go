package logic

// ContactTranslator turns decimated samples into contact sensor state.
// The physical input reads high while the contact is open.
type ContactTranslator struct {
	state ContactState
}

// NewContactTranslator starts in ContactDetected, which is what an
// inactive (false) input maps to.
func NewContactTranslator() *ContactTranslator {
	return &ContactTranslator{state: ContactDetected}
}

// ContactFromInput maps a raw input level to a contact state.
func ContactFromInput(raw bool) ContactState {
	if raw {
		return ContactNotDetected
	}
	return ContactDetected
}

// Apply updates the state from a decimation result.
// Returns the new state and true only if the reported state changed.
func (c *ContactTranslator) Apply(r Result) (ContactState, bool) {
	if !r.Sampled || !r.Changed {
		return c.state, false
	}
	next := ContactFromInput(r.Value)
	if next == c.state {
		return c.state, false
	}
	c.state = next
	return c.state, true
}

// State returns the last reported state.
func (c *ContactTranslator) State() ContactState {
	return c.state
}

// PressTranslator turns every decimated transition into one press event.
type PressTranslator struct {
	presses uint64
}

// NewPressTranslator creates a press translator.
func NewPressTranslator() *PressTranslator {
	return &PressTranslator{}
}

// Apply returns SwitchEventSinglePress and true for any change, in
// either direction.
func (p *PressTranslator) Apply(r Result) (SwitchEvent, bool) {
	if !r.Sampled || !r.Changed {
		return SwitchEventNone, false
	}
	p.presses++
	return SwitchEventSinglePress, true
}

// State is always SwitchEventNone: a stateless switch has no level.
func (p *PressTranslator) State() SwitchEvent {
	return SwitchEventNone
}

// Presses returns the number of press events emitted since startup.
func (p *PressTranslator) Presses() uint64 {
	return p.presses
}
