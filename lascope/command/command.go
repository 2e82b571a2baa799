// Package command encodes the host -> device control protocol.
//
// A command is a single ASCII digit opcode followed by zero or more
// positional arguments, each sent as the ASCII decimal string of one
// unsigned byte. There is no framing on the wire; the firmware relies on
// an inter-byte gap to separate fields, so the encoder paces every write.
package command

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/openla/lascope/lascope/bit"
)

// Op is a single-digit command opcode.
type Op byte

const (
	OpStart            Op = '0' // start acquisition
	OpStop             Op = '1' // stop acquisition
	OpTriggerEdge      Op = '2' // per-channel edge selection mask
	OpTriggerPins      Op = '3' // per-channel trigger enable mask
	OpTriggerTimer     Op = '4' // trigger timer period, 16 bit
	OpSamplePeriodHigh Op = '5' // sample timer period bits 31..16
	OpSamplePeriodLow  Op = '6' // sample timer period bits 15..0
	OpTriggerPrescaler Op = '7' // trigger timer prescaler, 16 bit
)

// TimerBaseHz is the clock feeding both device timers.
const TimerBaseHz = 72_000_000

// maskLead precedes each trigger mask argument on the wire.
const maskLead = 0

// DefaultPause is the inter-field gap. The firmware documents >= 1 ms.
const DefaultPause = time.Millisecond

// Encoder writes paced commands to the device.
type Encoder struct {
	w     io.Writer
	sleep func(time.Duration)
	pause time.Duration
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithPause overrides the inter-field gap.
func WithPause(d time.Duration) Option {
	return func(e *Encoder) { e.pause = d }
}

// WithSleep replaces the sleep function, letting tests run without
// real delays.
func WithSleep(fn func(time.Duration)) Option {
	return func(e *Encoder) { e.sleep = fn }
}

// NewEncoder wraps the device side of the serial port.
func NewEncoder(w io.Writer, opts ...Option) *Encoder {
	e := &Encoder{
		w:     w,
		sleep: time.Sleep,
		pause: DefaultPause,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// field sends one wire field (opcode or decimal argument) and paces.
func (e *Encoder) field(s string) error {
	if _, err := io.WriteString(e.w, s); err != nil {
		return fmt.Errorf("command: write %q: %w", s, err)
	}
	e.sleep(e.pause)
	return nil
}

func (e *Encoder) op(op Op) error {
	return e.field(string(rune(op)))
}

func (e *Encoder) arg(v uint8) error {
	return e.field(strconv.Itoa(int(v)))
}

// Start begins acquisition. The opcode is repeated three times; the
// firmware latches on the first and ignores the rest.
func (e *Encoder) Start() error {
	for i := 0; i < 3; i++ {
		if err := e.op(OpStart); err != nil {
			return err
		}
	}
	return nil
}

// Stop halts acquisition, with the same triple repetition as Start.
func (e *Encoder) Stop() error {
	for i := 0; i < 3; i++ {
		if err := e.op(OpStop); err != nil {
			return err
		}
	}
	return nil
}

// TriggerEdge sends the rising/falling selection mask: bit i set means
// channel i+1 triggers on a rising edge.
func (e *Encoder) TriggerEdge(mask uint8) error {
	return e.masked(OpTriggerEdge, mask)
}

// TriggerPins sends the trigger enable mask: bit i set means channel i+1
// has its trigger armed.
func (e *Encoder) TriggerPins(mask uint8) error {
	return e.masked(OpTriggerPins, mask)
}

func (e *Encoder) masked(op Op, mask uint8) error {
	if err := e.op(op); err != nil {
		return err
	}
	if err := e.arg(maskLead); err != nil {
		return err
	}
	return e.arg(mask)
}

// SampleTimer sends a 32-bit sample period in base-clock ticks, high half
// via op 5 and low half via op 6, each as two big-endian bytes.
func (e *Encoder) SampleTimer(periodTicks uint32) error {
	hi := uint16(periodTicks >> 16)
	lo := uint16(periodTicks)

	if err := e.op(OpSamplePeriodHigh); err != nil {
		return err
	}
	if err := e.arg(bit.High(hi)); err != nil {
		return err
	}
	if err := e.arg(bit.Low(hi)); err != nil {
		return err
	}

	if err := e.op(OpSamplePeriodLow); err != nil {
		return err
	}
	if err := e.arg(bit.High(lo)); err != nil {
		return err
	}
	return e.arg(bit.Low(lo))
}

// TriggerTimer sends the 16-bit trigger timer period and prescaler,
// big-endian, via ops 4 and 7.
func (e *Encoder) TriggerTimer(period16, prescaler uint16) error {
	if err := e.op(OpTriggerTimer); err != nil {
		return err
	}
	if err := e.arg(bit.High(period16)); err != nil {
		return err
	}
	if err := e.arg(bit.Low(period16)); err != nil {
		return err
	}

	if err := e.op(OpTriggerPrescaler); err != nil {
		return err
	}
	if err := e.arg(bit.High(prescaler)); err != nil {
		return err
	}
	return e.arg(bit.Low(prescaler))
}

// SamplePeriod converts a target sample rate to base-clock ticks.
func SamplePeriod(sampleRateHz int) uint32 {
	return uint32(math.Round(TimerBaseHz / float64(sampleRateHz)))
}

// SampleRate recovers the sample rate produced by a period in ticks.
func SampleRate(periodTicks uint32) float64 {
	return TimerBaseHz / float64(periodTicks)
}

// TriggerTiming computes the 16-bit trigger timer settings for capturing
// numSamples samples per trigger frame at the given sample rate. When the
// full period overflows 16 bits the prescaler absorbs the excess.
func TriggerTiming(sampleRateHz, numSamples int) (period16, prescaler uint16) {
	triggerFreq := float64(sampleRateHz) / float64(numSamples)
	period := TimerBaseHz / triggerFreq
	psc := 1.0
	if period > 1<<16 {
		psc = math.Ceil(period / (1 << 16))
		period = math.Floor((TimerBaseHz / psc) / triggerFreq)
	}
	return uint16(period), uint16(psc)
}
