// Package trigger evaluates per-channel edge conditions on the sample
// stream. The evaluator only reports which channels fired; whether to
// pre-roll, stop or ignore a fired trigger is front-end policy.
package trigger

import "github.com/openla/lascope/lascope/bit"

// Mode selects the edge condition for one channel.
type Mode int

const (
	None Mode = iota
	Rising
	Falling
)

func (m Mode) String() string {
	switch m {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	default:
		return "none"
	}
}

// Channels is the number of independently triggerable channels.
const Channels = 8

// Evaluator holds the configured mode for each channel.
type Evaluator struct {
	modes [Channels]Mode
}

// New returns an evaluator with every channel set to None.
func New() *Evaluator {
	return &Evaluator{}
}

// SetMode configures one channel (0-based). Changes take effect on the
// next evaluated sample pair.
func (e *Evaluator) SetMode(channel int, m Mode) {
	e.modes[channel] = m
}

// SetModes replaces the configuration for all channels at once.
func (e *Evaluator) SetModes(modes [Channels]Mode) {
	e.modes = modes
}

// Mode returns the configured mode for one channel.
func (e *Evaluator) Mode(channel int) Mode {
	return e.modes[channel]
}

// Evaluate returns the set of channels whose edge condition fires on the
// prev -> curr transition, as a mask with bit i for channel i+1.
func (e *Evaluator) Evaluate(prev, curr byte) uint8 {
	var fired uint8
	for ch := 0; ch < Channels; ch++ {
		p := bit.GetBitValue(uint8(ch), prev)
		c := bit.GetBitValue(uint8(ch), curr)
		switch e.modes[ch] {
		case Rising:
			if bit.Rising(p, c) {
				fired = bit.Set(uint8(ch), fired)
			}
		case Falling:
			if bit.Falling(p, c) {
				fired = bit.Set(uint8(ch), fired)
			}
		}
	}
	return fired
}

// EdgeMask encodes the per-channel edge selection for the device: bit i is
// 1 when channel i+1 triggers on a rising edge. The bit is meaningless for
// channels whose trigger is disabled.
func (e *Evaluator) EdgeMask() uint8 {
	var mask uint8
	for ch := 0; ch < Channels; ch++ {
		if e.modes[ch] == Rising {
			mask = bit.Set(uint8(ch), mask)
		}
	}
	return mask
}

// PinsMask encodes which channels have a trigger enabled: bit i is 1 when
// channel i+1 is set to any mode other than None.
func (e *Evaluator) PinsMask() uint8 {
	var mask uint8
	for ch := 0; ch < Channels; ch++ {
		if e.modes[ch] != None {
			mask = bit.Set(uint8(ch), mask)
		}
	}
	return mask
}
