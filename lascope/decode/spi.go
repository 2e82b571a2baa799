package decode

import "github.com/openla/lascope/lascope/bit"

// BitOrder selects which end of the shift register fills first.
type BitOrder int

const (
	MSBFirst BitOrder = iota
	LSBFirst
)

// SSLevel is the logic level at which slave select is considered active.
type SSLevel int

const (
	SSActiveLow SSLevel = iota
	SSActiveHigh
)

// SPIConfig assigns bus lines and options for one SPI group.
// Channel numbers are 1-based. Only mode 0 (CPOL=0, CPHA=0) is supported:
// both lanes are sampled on the rising clock edge.
type SPIConfig struct {
	SSChannel    int
	ClockChannel int
	MOSIChannel  int
	MISOChannel  int
	Bits         int // word size, 1..32
	FirstBit     BitOrder
	SSActive     SSLevel
	Format       Format
	Enabled      bool
}

type spiState int

const (
	spiIdle spiState = iota
	spiReceive
)

// SPI decodes one group's SS-framed transfers.
type SPI struct {
	cfg SPIConfig

	state   spiState
	lastCLK uint8
	mosi    uint32
	miso    uint32
	count   int
}

// NewSPI creates a decoder for the group config.
func NewSPI(cfg SPIConfig) *SPI {
	d := &SPI{cfg: cfg}
	d.Reset()
	return d
}

// Config returns the decoder's configuration.
func (d *SPI) Config() SPIConfig {
	return d.cfg
}

// Reset returns the state machine to idle and drops any partial word.
func (d *SPI) Reset() {
	d.state = spiIdle
	d.lastCLK = 0
	d.mosi = 0
	d.miso = 0
	d.count = 0
}

func (d *SPI) activeLevel() uint8 {
	if d.cfg.SSActive == SSActiveHigh {
		return 1
	}
	return 0
}

// Feed advances the state machine by one sample.
func (d *SPI) Feed(group int, sample byte, idx uint64, emit Emit) {
	if !d.cfg.Enabled {
		return
	}

	ss := bit.GetBitValue(uint8(d.cfg.SSChannel-1), sample)
	clk := bit.GetBitValue(uint8(d.cfg.ClockChannel-1), sample)
	mosi := bit.GetBitValue(uint8(d.cfg.MOSIChannel-1), sample)
	miso := bit.GetBitValue(uint8(d.cfg.MISOChannel-1), sample)
	clkRising := bit.Rising(d.lastCLK, clk)
	d.lastCLK = clk

	active := ss == d.activeLevel()

	switch d.state {
	case spiIdle:
		if active {
			d.state = spiReceive
			d.mosi = 0
			d.miso = 0
			d.count = 0
			emit(SPIEvent{Group: group, Kind: SPISSActive, Sample: idx})
		}

	case spiReceive:
		if !active {
			// Flush whatever accumulated before the deselect.
			if d.count > 0 {
				emit(SPIEvent{
					Group:  group,
					Kind:   SPIData,
					MOSI:   d.mosi,
					MISO:   d.miso,
					Bits:   d.count,
					Sample: idx,
				})
				d.mosi = 0
				d.miso = 0
				d.count = 0
			}
			d.state = spiIdle
			emit(SPIEvent{Group: group, Kind: SPISSInactive, Sample: idx})
			return
		}

		if !clkRising {
			return
		}

		if d.cfg.FirstBit == LSBFirst {
			d.mosi |= uint32(mosi) << d.count
			d.miso |= uint32(miso) << d.count
		} else {
			d.mosi = d.mosi<<1 | uint32(mosi)
			d.miso = d.miso<<1 | uint32(miso)
		}
		d.count++

		if d.count == d.cfg.Bits {
			emit(SPIEvent{
				Group:  group,
				Kind:   SPIData,
				MOSI:   d.mosi,
				MISO:   d.miso,
				Bits:   d.count,
				Sample: idx,
			})
			d.mosi = 0
			d.miso = 0
			d.count = 0
		}
	}
}
