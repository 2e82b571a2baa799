package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uartTrace builds a sample stream for a single data line on channel 1,
// holding each bit for the full 16-sample cell.
type uartTrace struct {
	samples []byte
}

func (t *uartTrace) hold(level uint8, cells int) {
	for i := 0; i < cells*Oversample; i++ {
		t.samples = append(t.samples, level)
	}
}

// frame encodes one 8N1-style frame: start bit, 8 LSB-first data bits,
// stopCells high stop cells.
func (t *uartTrace) frame(v uint8, stopCells int) {
	t.hold(0, 1)
	for i := 0; i < 8; i++ {
		t.hold((v>>i)&1, 1)
	}
	t.hold(1, stopCells)
}

func feedUART(d *UART, samples []byte) []Event {
	var events []Event
	for i, s := range samples {
		d.Feed(0, s, uint64(i), func(e Event) { events = append(events, e) })
	}
	return events
}

func newUARTTestDecoder(mutate func(*UARTConfig)) *UART {
	cfg := UARTConfig{
		DataChannel: 1,
		Polarity:    Standard,
		StopBits:    1,
		Enabled:     true,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewUART(cfg)
}

func TestUARTSingleByte(t *testing.T) {
	tr := &uartTrace{}
	tr.hold(1, 2) // idle line
	tr.frame(0x41, 2)

	events := feedUART(newUARTTestDecoder(nil), tr.samples)
	require.Len(t, events, 1)

	ev := events[0].(UARTEvent)
	assert.Equal(t, UARTFrameByte, ev.Kind)
	assert.Equal(t, uint8(0x41), ev.Value)
}

func TestUARTByteSequenceInOrder(t *testing.T) {
	tr := &uartTrace{}
	tr.hold(1, 1)
	for _, b := range []byte("Hi!") {
		tr.frame(b, 1)
	}
	tr.hold(1, 2)

	events := feedUART(newUARTTestDecoder(nil), tr.samples)
	require.Len(t, events, 3)
	for i, want := range []byte("Hi!") {
		assert.Equal(t, want, events[i].(UARTEvent).Value)
	}
}

func TestUARTFalseStartRejected(t *testing.T) {
	tr := &uartTrace{}
	tr.hold(1, 1)
	// A three-sample glitch, far shorter than a bit cell.
	tr.samples = append(tr.samples, 0, 0, 0)
	tr.hold(1, 12)

	events := feedUART(newUARTTestDecoder(nil), tr.samples)
	assert.Empty(t, events)
}

func TestUARTInvertedPolarity(t *testing.T) {
	tr := &uartTrace{}
	tr.hold(1, 2)
	tr.frame(0x41, 2)

	// Invert the whole trace; with Inverted polarity it decodes the same.
	for i := range tr.samples {
		tr.samples[i] ^= 1
	}

	events := feedUART(newUARTTestDecoder(func(c *UARTConfig) { c.Polarity = Inverted }), tr.samples)
	require.Len(t, events, 1)
	assert.Equal(t, uint8(0x41), events[0].(UARTEvent).Value)
}

func TestUARTTwoStopBits(t *testing.T) {
	tr := &uartTrace{}
	tr.hold(1, 1)
	tr.frame(0x55, 2)
	tr.frame(0xAA, 2)
	tr.hold(1, 1)

	events := feedUART(newUARTTestDecoder(func(c *UARTConfig) { c.StopBits = 2 }), tr.samples)
	require.Len(t, events, 2)
	assert.Equal(t, uint8(0x55), events[0].(UARTEvent).Value)
	assert.Equal(t, uint8(0xAA), events[1].(UARTEvent).Value)
}

func TestUARTZeroStopBits(t *testing.T) {
	tr := &uartTrace{}
	tr.hold(1, 1)
	tr.frame(0x7E, 1)
	tr.hold(1, 1)

	events := feedUART(newUARTTestDecoder(func(c *UARTConfig) { c.StopBits = 0 }), tr.samples)
	require.Len(t, events, 1)
	assert.Equal(t, uint8(0x7E), events[0].(UARTEvent).Value)
}

func TestUARTFrameErrorOnLowStop(t *testing.T) {
	tr := &uartTrace{}
	tr.hold(1, 1)
	tr.hold(0, 1) // start
	for i := 0; i < 8; i++ {
		tr.hold(1, 1) // data 0xFF
	}
	tr.hold(0, 1) // stop region held low
	tr.hold(1, 2)

	events := feedUART(newUARTTestDecoder(func(c *UARTConfig) { c.CheckStop = true }), tr.samples)
	require.Len(t, events, 2)
	assert.Equal(t, UARTFrameByte, events[0].(UARTEvent).Kind)
	assert.Equal(t, uint8(0xFF), events[0].(UARTEvent).Value)
	assert.Equal(t, UARTFrameError, events[1].(UARTEvent).Kind)
}

func TestUARTStopNotValidatedByDefault(t *testing.T) {
	tr := &uartTrace{}
	tr.hold(1, 1)
	tr.hold(0, 1)
	for i := 0; i < 8; i++ {
		tr.hold(1, 1)
	}
	tr.hold(0, 1)
	tr.hold(1, 2)

	events := feedUART(newUARTTestDecoder(nil), tr.samples)
	require.Len(t, events, 1)
	assert.Equal(t, UARTFrameByte, events[0].(UARTEvent).Kind)
}

func TestUARTDisabledChannelStaysSilent(t *testing.T) {
	tr := &uartTrace{}
	tr.hold(1, 1)
	tr.frame(0x41, 1)

	d := NewUART(UARTConfig{DataChannel: 1, StopBits: 1})
	assert.Empty(t, feedUART(d, tr.samples))
}
