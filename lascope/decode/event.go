// Package decode turns the raw 8-channel sample stream into protocol
// events. Each decoder is a small state machine fed one sample at a time,
// in sample order; emitted events carry the index of the sample they are
// anchored to. I2C address, data and ack events use the sample of their
// first clocked bit, SPI data events the sample of their final bit, UART
// bytes the sample that completes the last data bit, and bus conditions
// (start, stop, slave select) the sample that shows them.
package decode

import "fmt"

// Event is one decoded protocol occurrence. The concrete type is one of
// I2CEvent, SPIEvent or UARTEvent.
type Event interface {
	// Index returns the sample index the event is anchored to.
	Index() uint64
	// Label renders the event for display in the given format.
	Label(f Format) string
}

// I2CKind enumerates I2C bus conditions and frame elements.
type I2CKind int

const (
	I2CStart I2CKind = iota
	I2CAddress
	I2CAck
	I2CData
	I2CStop
)

// I2CEvent is an event decoded from one I2C group.
type I2CEvent struct {
	Group  int
	Kind   I2CKind
	Value  uint8 // address byte, data byte or ack bit
	RW     int   // read/write bit for 7-bit addresses, -1 otherwise
	Sample uint64
}

func (e I2CEvent) Index() uint64 { return e.Sample }

func (e I2CEvent) Label(f Format) string {
	switch e.Kind {
	case I2CStart:
		return "START"
	case I2CAddress:
		if e.RW >= 0 {
			dir := "W"
			if e.RW == 1 {
				dir = "R"
			}
			return fmt.Sprintf("ADDR %s %s", f.Render(uint32(e.Value)), dir)
		}
		return "ADDR " + f.Render(uint32(e.Value))
	case I2CAck:
		if e.Value == 0 {
			return "ACK"
		}
		return "NACK"
	case I2CData:
		return "DATA " + f.Render(uint32(e.Value))
	default:
		return "STOP"
	}
}

// SPIKind enumerates SPI frame elements.
type SPIKind int

const (
	SPISSActive SPIKind = iota
	SPIData
	SPISSInactive
)

// SPIEvent is an event decoded from one SPI group. For Data events Bits
// holds the number of accumulated clock edges; a partial frame flushed by
// SS deactivation carries fewer bits than configured.
type SPIEvent struct {
	Group  int
	Kind   SPIKind
	MOSI   uint32
	MISO   uint32
	Bits   int
	Sample uint64
}

func (e SPIEvent) Index() uint64 { return e.Sample }

func (e SPIEvent) Label(f Format) string {
	switch e.Kind {
	case SPISSActive:
		return "SS ACTIVE"
	case SPISSInactive:
		return "SS INACTIVE"
	default:
		return fmt.Sprintf("MOSI %s MISO %s", f.Render(e.MOSI), f.Render(e.MISO))
	}
}

// UARTKind enumerates UART frame outcomes.
type UARTKind int

const (
	UARTFrameByte UARTKind = iota
	UARTFrameError
)

// UARTEvent is an event decoded from one UART channel.
type UARTEvent struct {
	Channel int
	Kind    UARTKind
	Value   uint8
	Sample  uint64
}

func (e UARTEvent) Index() uint64 { return e.Sample }

func (e UARTEvent) Label(f Format) string {
	if e.Kind == UARTFrameError {
		return "FRAME ERROR"
	}
	return f.Render(uint32(e.Value))
}

// Emit receives events as a decoder produces them, in sample order.
type Emit func(Event)
