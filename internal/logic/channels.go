package logic

// Channels holds the runtime state of every channel. Pin identity is kept by
// the GPIO layer; this is state only.
type Channels struct {
	state [ChannelCount]ChannelState
}

// NewChannels creates a registry with every channel absent and disarmed.
func NewChannels() *Channels {
	return &Channels{}
}

func valid(ch int) bool {
	return ch >= 0 && ch < ChannelCount
}

// State returns a copy of channel ch's state. Out-of-range indices read as zero.
func (c *Channels) State(ch int) ChannelState {
	if !valid(ch) {
		return ChannelState{}
	}
	return c.state[ch]
}

// All returns a copy of every channel's state.
func (c *Channels) All() [ChannelCount]ChannelState {
	return c.state
}

// Reset sets a channel to its boot state.
func (c *Channels) Reset(ch int, cablePresent bool) {
	if !valid(ch) {
		return
	}
	c.state[ch] = ChannelState{CablePresent: cablePresent}
}

// SetCablePresent latches the debounced cable presence.
func (c *Channels) SetCablePresent(ch int, present bool) {
	if !valid(ch) {
		return
	}
	c.state[ch].CablePresent = present
}

// SetAlarming marks a channel as having fired.
func (c *Channels) SetAlarming(ch int, alarming bool) {
	if !valid(ch) {
		return
	}
	c.state[ch].Alarming = alarming
}

// SetArmed arms or disarms a channel. Either way the alarming flag is cleared;
// arming also marks the cable present.
func (c *Channels) SetArmed(ch int, armed bool) {
	if !valid(ch) {
		return
	}
	s := &c.state[ch]
	s.Alarming = false
	s.Armed = armed
	if armed {
		s.CablePresent = true
	}
}

// DisarmAll disarms every channel.
func (c *Channels) DisarmAll() {
	for i := range c.state {
		c.SetArmed(i, false)
	}
}

// AnyArmed reports whether at least one channel is armed.
func (c *Channels) AnyArmed() bool {
	for _, s := range c.state {
		if s.Armed {
			return true
		}
	}
	return false
}
