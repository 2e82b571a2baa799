package decode

import "github.com/openla/lascope/lascope/bit"

// I2CConfig assigns bus lines and options for one I2C group.
// Channel numbers are 1-based, matching the probe labels.
type I2CConfig struct {
	SDAChannel   int
	SCLChannel   int
	AddressWidth int // 7 or 8; 7-bit addresses carry a trailing R/W bit
	Format       Format
	Enabled      bool
}

type i2cState int

const (
	i2cIdle i2cState = iota
	i2cAfterStart
	i2cAck
	i2cData
	i2cAck2
)

// I2C decodes one group's SDA/SCL lines into bus events.
//
// A falling SDA edge while SCL is high is always a new start condition,
// even mid-frame: the in-flight frame is abandoned without a stop event.
// Protocol violations are absorbed silently until the next start.
type I2C struct {
	cfg I2CConfig

	state    i2cState
	lastSDA  uint8
	lastSCL  uint8
	current  uint8
	bitCount int
	// index of the sample that began the byte or ack being accumulated
	objectStart uint64
}

// NewI2C creates a decoder for the group config.
func NewI2C(cfg I2CConfig) *I2C {
	d := &I2C{cfg: cfg}
	d.Reset()
	return d
}

// Config returns the decoder's configuration.
func (d *I2C) Config() I2CConfig {
	return d.cfg
}

// Reset returns the state machine to idle. The bus lines are assumed to
// rest high.
func (d *I2C) Reset() {
	d.state = i2cIdle
	d.lastSDA = 1
	d.lastSCL = 1
	d.current = 0
	d.bitCount = 0
}

// addressBits is the number of clocks in the address phase. A 7-bit
// address still occupies eight clocks because the R/W bit rides along.
func (d *I2C) addressBits() int {
	return 8
}

// Feed advances the state machine by one sample.
func (d *I2C) Feed(group int, sample byte, idx uint64, emit Emit) {
	if !d.cfg.Enabled {
		return
	}

	sda := bit.GetBitValue(uint8(d.cfg.SDAChannel-1), sample)
	scl := bit.GetBitValue(uint8(d.cfg.SCLChannel-1), sample)
	sdaFalling := bit.Falling(d.lastSDA, sda)
	sdaRising := bit.Rising(d.lastSDA, sda)
	sclRising := bit.Rising(d.lastSCL, scl)
	d.lastSDA = sda
	d.lastSCL = scl

	// Start wins over everything, including a frame in progress.
	if sdaFalling && scl == 1 {
		d.state = i2cAfterStart
		d.current = 0
		d.bitCount = 0
		emit(I2CEvent{Group: group, Kind: I2CStart, RW: -1, Sample: idx})
		return
	}

	if sdaRising && scl == 1 && d.state != i2cIdle {
		d.state = i2cIdle
		d.current = 0
		d.bitCount = 0
		emit(I2CEvent{Group: group, Kind: I2CStop, RW: -1, Sample: idx})
		return
	}

	if !sclRising {
		return
	}

	switch d.state {
	case i2cAfterStart:
		if d.bitCount == 0 {
			d.objectStart = idx
		}
		d.current = d.current<<1 | sda
		d.bitCount++
		if d.bitCount == d.addressBits() {
			ev := I2CEvent{Group: group, Kind: I2CAddress, RW: -1, Sample: d.objectStart}
			if d.cfg.AddressWidth == 7 {
				ev.Value = d.current >> 1
				ev.RW = int(d.current & 1)
			} else {
				ev.Value = d.current
			}
			emit(ev)
			d.current = 0
			d.bitCount = 0
			d.state = i2cAck
		}

	case i2cAck, i2cAck2:
		emit(I2CEvent{Group: group, Kind: I2CAck, Value: sda, RW: -1, Sample: idx})
		d.state = i2cData

	case i2cData:
		if d.bitCount == 0 {
			d.objectStart = idx
		}
		d.current = d.current<<1 | sda
		d.bitCount++
		if d.bitCount == 8 {
			emit(I2CEvent{Group: group, Kind: I2CData, Value: d.current, RW: -1, Sample: d.objectStart})
			d.current = 0
			d.bitCount = 0
			d.state = i2cAck2
		}
	}
}
