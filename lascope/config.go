// Package lascope is the acquisition and decoding core of the logic
// analyzer. It owns the serial link to the capture board, keeps the
// per-channel sample history, evaluates triggers and runs the protocol
// decoders, emitting decoded events for any front end to consume.
package lascope

import (
	"fmt"

	"github.com/openla/lascope/lascope/buffer"
	"github.com/openla/lascope/lascope/decode"
	"github.com/openla/lascope/lascope/trigger"
)

// Channel counts per protocol decoder set.
const (
	I2CGroups    = 4
	SPIGroups    = 2
	UARTChannels = 8
)

// Limits for the device-facing settings.
const (
	MinSampleRateHz = 1
	MaxSampleRateHz = 5_000_000
	MinNumSamples   = 1
	MaxNumSamples   = 1023
)

// BaudRates lists the UART baud rates the core accepts.
var BaudRates = []int{300, 1200, 2400, 4800, 9600, 19200, 38400, 57600, 74880, 115200}

// ConfigError reports an invalid configuration value. It is returned
// synchronously and leaves the supervisor's state untouched.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// CoreConfig is the complete configuration surface of the core.
type CoreConfig struct {
	// BufferCapacity is the per-channel history depth.
	BufferCapacity int
	// SampleRateHz is the target acquisition rate.
	SampleRateHz int
	// NumSamples is the capture length per trigger frame.
	NumSamples int
	// BaudRate is the UART baud rate; the device samples at 16x this.
	BaudRate int
	// Format is the default rendering for event labels.
	Format decode.Format
	// TriggerModes holds the per-channel edge configuration.
	TriggerModes [trigger.Channels]trigger.Mode

	I2C  [I2CGroups]decode.I2CConfig
	SPI  [SPIGroups]decode.SPIConfig
	UART [UARTChannels]decode.UARTConfig

	// ClearsHistory makes Configure drop the ring buffer as well.
	ClearsHistory bool
}

// DefaultConfig mirrors the stock channel wiring: I2C group g on channels
// 2g+1/2g+2, SPI group g on channels 4g+1..4g+4, UART channel c on data
// channel c+1. All decoders start disabled.
func DefaultConfig() CoreConfig {
	cfg := CoreConfig{
		BufferCapacity: buffer.DefaultCapacity,
		SampleRateHz:   1000,
		NumSamples:     300,
		BaudRate:       9600,
		Format:         decode.Hexadecimal,
	}
	for g := 0; g < I2CGroups; g++ {
		cfg.I2C[g] = decode.I2CConfig{
			SDAChannel:   2*g + 1,
			SCLChannel:   2*g + 2,
			AddressWidth: 8,
			Format:       decode.Hexadecimal,
		}
	}
	for g := 0; g < SPIGroups; g++ {
		cfg.SPI[g] = decode.SPIConfig{
			SSChannel:    4*g + 1,
			ClockChannel: 4*g + 2,
			MOSIChannel:  4*g + 3,
			MISOChannel:  4*g + 4,
			Bits:         8,
			FirstBit:     decode.MSBFirst,
			SSActive:     decode.SSActiveLow,
			Format:       decode.Hexadecimal,
		}
	}
	for c := 0; c < UARTChannels; c++ {
		cfg.UART[c] = decode.UARTConfig{
			DataChannel: c + 1,
			Polarity:    decode.Standard,
			StopBits:    1,
			Format:      decode.Hexadecimal,
		}
	}
	return cfg
}

// ValidBaudRate reports whether b is one of the supported UART rates.
func ValidBaudRate(b int) bool {
	for _, r := range BaudRates {
		if r == b {
			return true
		}
	}
	return false
}

func validChannel(ch int) bool {
	return ch >= 1 && ch <= buffer.Channels
}

// Validate checks every field combination and returns the first problem
// found as a *ConfigError.
func (c *CoreConfig) Validate() error {
	if c.BufferCapacity <= 0 {
		return &ConfigError{"buffer_capacity", "must be positive"}
	}
	if c.SampleRateHz < MinSampleRateHz || c.SampleRateHz > MaxSampleRateHz {
		return &ConfigError{"sample_rate_hz", fmt.Sprintf("must be in %d..%d", MinSampleRateHz, MaxSampleRateHz)}
	}
	if c.NumSamples < MinNumSamples || c.NumSamples > MaxNumSamples {
		return &ConfigError{"num_samples", fmt.Sprintf("must be in %d..%d", MinNumSamples, MaxNumSamples)}
	}
	if !ValidBaudRate(c.BaudRate) {
		return &ConfigError{"baud_rate", fmt.Sprintf("unsupported rate %d", c.BaudRate)}
	}

	for g, i2c := range c.I2C {
		if !i2c.Enabled {
			continue
		}
		field := fmt.Sprintf("i2c_group[%d]", g)
		if !validChannel(i2c.SDAChannel) || !validChannel(i2c.SCLChannel) {
			return &ConfigError{field, "channels must be in 1..8"}
		}
		if i2c.SDAChannel == i2c.SCLChannel {
			return &ConfigError{field, "SDA and SCL must differ"}
		}
		if i2c.AddressWidth != 7 && i2c.AddressWidth != 8 {
			return &ConfigError{field, "address width must be 7 or 8"}
		}
	}

	for g, spi := range c.SPI {
		if !spi.Enabled {
			continue
		}
		field := fmt.Sprintf("spi_group[%d]", g)
		for _, ch := range []int{spi.SSChannel, spi.ClockChannel, spi.MOSIChannel, spi.MISOChannel} {
			if !validChannel(ch) {
				return &ConfigError{field, "channels must be in 1..8"}
			}
		}
		if spi.Bits < 1 || spi.Bits > 32 {
			return &ConfigError{field, "bits must be in 1..32"}
		}
	}

	for ch, uart := range c.UART {
		if !uart.Enabled {
			continue
		}
		field := fmt.Sprintf("uart_channel[%d]", ch)
		if !validChannel(uart.DataChannel) {
			return &ConfigError{field, "data channel must be in 1..8"}
		}
		if uart.StopBits < 0 || uart.StopBits > 3 {
			return &ConfigError{field, "stop bits must be in 0..3"}
		}
	}

	return nil
}
