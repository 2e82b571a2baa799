package decode

import "github.com/openla/lascope/lascope/bit"

// Polarity selects the line sense for a UART channel.
type Polarity int

const (
	Standard Polarity = iota
	Inverted // every sampled bit is complemented before decoding
)

// Oversample is the assumed ratio between sample rate and baud rate.
// The host must configure sample_rate = baud * Oversample; decoding at any
// other ratio is undefined.
const Oversample = 16

// UARTConfig assigns a data line and framing options for one UART channel.
type UARTConfig struct {
	DataChannel int // 1-based
	Polarity    Polarity
	StopBits    int  // 0..3
	CheckStop   bool // emit a frame error when the stop region is not high
	Format      Format
	Enabled     bool
}

type uartState int

const (
	uartIdle uartState = iota
	uartStartBit
	uartDataBits
	uartStopBits
)

// UART decodes one channel's asynchronous serial frames: one start bit,
// eight LSB-first data bits, then the configured stop bits. Each bit cell
// spans 16 samples and is decided by majority vote over the three mid-cell
// samples.
type UART struct {
	cfg UARTConfig

	state    uartState
	window   [Oversample]uint8
	pushed   int
	counter  int
	current  uint8
	bitIndex int
	stopLow  bool
}

// NewUART creates a decoder for the channel config.
func NewUART(cfg UARTConfig) *UART {
	d := &UART{cfg: cfg}
	d.Reset()
	return d
}

// Config returns the decoder's configuration.
func (d *UART) Config() UARTConfig {
	return d.cfg
}

// Reset returns the state machine to idle.
func (d *UART) Reset() {
	d.state = uartIdle
	d.pushed = 0
	d.counter = 0
	d.current = 0
	d.bitIndex = 0
	d.stopLow = false
}

func (d *UART) push(b uint8) {
	d.window[d.pushed%Oversample] = b
	d.pushed++
}

// midVote sums the three mid-cell samples (ordered positions 7..9) of the
// last 16 pushed samples.
func (d *UART) midVote() int {
	sum := 0
	for i := 7; i <= 9; i++ {
		sum += int(d.window[(d.pushed-Oversample+i)%Oversample])
	}
	return sum
}

// Feed advances the state machine by one sample.
func (d *UART) Feed(channel int, sample byte, idx uint64, emit Emit) {
	if !d.cfg.Enabled {
		return
	}

	b := bit.GetBitValue(uint8(d.cfg.DataChannel-1), sample)
	if d.cfg.Polarity == Inverted {
		b ^= 1
	}

	switch d.state {
	case uartIdle:
		if b == 0 {
			d.pushed = 0
			d.push(b)
			d.counter = 1
			d.state = uartStartBit
		}

	case uartStartBit:
		d.push(b)
		d.counter++
		if d.counter >= Oversample {
			if d.midVote() <= 1 {
				d.state = uartDataBits
				d.counter = 0
				d.current = 0
				d.bitIndex = 0
			} else {
				// Glitch, not a start bit.
				d.state = uartIdle
			}
		}

	case uartDataBits:
		d.push(b)
		d.counter++
		if d.counter%Oversample == 0 {
			var v uint8
			if d.midVote() >= 2 {
				v = 1
			}
			d.current |= v << d.bitIndex
			d.bitIndex++
			if d.bitIndex >= 8 {
				emit(UARTEvent{Channel: channel, Kind: UARTFrameByte, Value: d.current, Sample: idx})
				d.state = uartStopBits
				d.counter = 0
				d.bitIndex = 0
				d.stopLow = false
				if d.cfg.StopBits == 0 {
					d.state = uartIdle
				}
			}
		}

	case uartStopBits:
		d.push(b)
		d.counter++
		if d.cfg.CheckStop && d.counter%Oversample == 0 && d.midVote() < 2 {
			d.stopLow = true
		}
		if d.counter >= Oversample*d.cfg.StopBits {
			if d.stopLow {
				emit(UARTEvent{Channel: channel, Kind: UARTFrameError, Sample: idx})
			}
			d.state = uartIdle
			d.counter = 0
		}
	}
}
