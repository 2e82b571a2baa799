package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spiTrace builds a sample stream with SS on channel 1, CLK on channel 2,
// MOSI on channel 3 and MISO on channel 4.
type spiTrace struct {
	samples []byte
}

func (t *spiTrace) step(ss, clk, mosi, miso uint8) {
	t.samples = append(t.samples, ss|clk<<1|mosi<<2|miso<<3)
}

// clockWord shifts out both lanes MSB first over width clock cycles.
func (t *spiTrace) clockWord(ss uint8, mosi, miso uint32, width int) {
	for i := width - 1; i >= 0; i-- {
		mo := uint8((mosi >> i) & 1)
		mi := uint8((miso >> i) & 1)
		t.step(ss, 0, mo, mi)
		t.step(ss, 1, mo, mi)
	}
	t.step(ss, 0, 0, 0)
}

func feedSPI(d *SPI, samples []byte) []Event {
	var events []Event
	for i, s := range samples {
		d.Feed(0, s, uint64(i), func(e Event) { events = append(events, e) })
	}
	return events
}

func newSPITestDecoder(mutate func(*SPIConfig)) *SPI {
	cfg := SPIConfig{
		SSChannel:    1,
		ClockChannel: 2,
		MOSIChannel:  3,
		MISOChannel:  4,
		Bits:         8,
		FirstBit:     MSBFirst,
		SSActive:     SSActiveLow,
		Enabled:      true,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewSPI(cfg)
}

func spiKinds(events []Event) []SPIKind {
	var out []SPIKind
	for _, e := range events {
		out = append(out, e.(SPIEvent).Kind)
	}
	return out
}

func TestSPIEightBitMSB(t *testing.T) {
	tr := &spiTrace{}
	tr.step(1, 0, 0, 0) // idle, SS inactive
	tr.clockWord(0, 0xB2, 0x0F, 8)
	tr.step(1, 0, 0, 0) // deselect

	events := feedSPI(newSPITestDecoder(nil), tr.samples)
	require.Len(t, events, 3)

	assert.Equal(t, []SPIKind{SPISSActive, SPIData, SPISSInactive}, spiKinds(events))

	data := events[1].(SPIEvent)
	assert.Equal(t, uint32(0xB2), data.MOSI)
	assert.Equal(t, uint32(0x0F), data.MISO)
	assert.Equal(t, 8, data.Bits)
}

func TestSPILSBFirst(t *testing.T) {
	tr := &spiTrace{}
	tr.step(1, 0, 0, 0)
	// Shift 0xB2 out LSB first: reverse the wire order.
	for i := 0; i < 8; i++ {
		mo := uint8((0xB2 >> i) & 1)
		tr.step(0, 0, mo, 0)
		tr.step(0, 1, mo, 0)
	}
	tr.step(1, 0, 0, 0)

	events := feedSPI(newSPITestDecoder(func(c *SPIConfig) { c.FirstBit = LSBFirst }), tr.samples)
	require.Len(t, events, 3)
	assert.Equal(t, uint32(0xB2), events[1].(SPIEvent).MOSI)
}

func TestSPIPartialFrameFlushedOnDeselect(t *testing.T) {
	tr := &spiTrace{}
	tr.step(1, 0, 0, 0)
	// Only 5 of 8 bits before SS goes inactive.
	for i := 0; i < 5; i++ {
		tr.step(0, 0, 1, 0)
		tr.step(0, 1, 1, 0)
	}
	tr.step(1, 0, 0, 0)

	events := feedSPI(newSPITestDecoder(nil), tr.samples)
	require.Len(t, events, 3)

	data := events[1].(SPIEvent)
	assert.Equal(t, SPIData, data.Kind)
	assert.Equal(t, uint32(0b11111), data.MOSI)
	assert.Equal(t, 5, data.Bits)
	assert.Equal(t, SPISSInactive, events[2].(SPIEvent).Kind)
}

func TestSPIActiveHighSelect(t *testing.T) {
	tr := &spiTrace{}
	tr.step(0, 0, 0, 0) // inactive for active-high SS
	tr.clockWord(1, 0xF0, 0x0F, 8)
	tr.step(0, 0, 0, 0)

	events := feedSPI(newSPITestDecoder(func(c *SPIConfig) { c.SSActive = SSActiveHigh }), tr.samples)
	require.Len(t, events, 3)
	assert.Equal(t, uint32(0xF0), events[1].(SPIEvent).MOSI)
}

func TestSPIWideWord(t *testing.T) {
	tr := &spiTrace{}
	tr.step(1, 0, 0, 0)
	tr.clockWord(0, 0xDEAD, 0xBEEF, 16)
	tr.step(1, 0, 0, 0)

	events := feedSPI(newSPITestDecoder(func(c *SPIConfig) { c.Bits = 16 }), tr.samples)
	require.Len(t, events, 3)

	data := events[1].(SPIEvent)
	assert.Equal(t, uint32(0xDEAD), data.MOSI)
	assert.Equal(t, uint32(0xBEEF), data.MISO)
	assert.Equal(t, 16, data.Bits)
}

func TestSPIDataIndexIsFinalBitSample(t *testing.T) {
	tr := &spiTrace{}
	tr.step(1, 0, 0, 0)
	tr.clockWord(0, 0xFF, 0x00, 8)
	tr.step(1, 0, 0, 0)

	events := feedSPI(newSPITestDecoder(nil), tr.samples)
	require.Len(t, events, 3)

	// Layout: sample 0 idle; clockWord emits (low, high) per bit then one
	// trailing low. The eighth rising edge lands on sample 16.
	assert.Equal(t, uint64(1), events[0].Index(), "SS activation sample")
	assert.Equal(t, uint64(16), events[1].Index(), "final bit sample")
	assert.Equal(t, uint64(len(tr.samples)-1), events[2].Index(), "SS deactivation sample")
}

func TestSPIConsecutiveWordsInOneSelect(t *testing.T) {
	tr := &spiTrace{}
	tr.step(1, 0, 0, 0)
	for _, w := range []uint32{0x12, 0x34} {
		for i := 7; i >= 0; i-- {
			mo := uint8((w >> i) & 1)
			tr.step(0, 0, mo, 0)
			tr.step(0, 1, mo, 0)
		}
	}
	tr.step(0, 0, 0, 0)
	tr.step(1, 0, 0, 0)

	events := feedSPI(newSPITestDecoder(nil), tr.samples)
	require.Len(t, events, 4)
	assert.Equal(t, uint32(0x12), events[1].(SPIEvent).MOSI)
	assert.Equal(t, uint32(0x34), events[2].(SPIEvent).MOSI)
}
