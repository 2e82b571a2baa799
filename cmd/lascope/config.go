package main

// All direct use of the viper package lives in this file.

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/openla/lascope/lascope"
	"github.com/openla/lascope/lascope/decode"
	"github.com/openla/lascope/lascope/trigger"
)

// fileI2C, fileSPI and fileUART mirror the decoder configs with the
// spellings used in the config file.
type fileI2C struct {
	SDA          int    `mapstructure:"sda"`
	SCL          int    `mapstructure:"scl"`
	AddressWidth int    `mapstructure:"address_width"`
	Format       string `mapstructure:"format"`
	Enabled      bool   `mapstructure:"enabled"`
}

type fileSPI struct {
	SS       int    `mapstructure:"ss"`
	Clock    int    `mapstructure:"clk"`
	MOSI     int    `mapstructure:"mosi"`
	MISO     int    `mapstructure:"miso"`
	Bits     int    `mapstructure:"bits"`
	FirstBit string `mapstructure:"first_bit"`
	SSActive string `mapstructure:"ss_active"`
	Format   string `mapstructure:"format"`
	Enabled  bool   `mapstructure:"enabled"`
}

type fileUART struct {
	Data      int    `mapstructure:"data"`
	Polarity  string `mapstructure:"polarity"`
	StopBits  int    `mapstructure:"stop_bits"`
	CheckStop bool   `mapstructure:"check_stop"`
	Format    string `mapstructure:"format"`
	Enabled   bool   `mapstructure:"enabled"`
}

type fileConfig struct {
	BufferCapacity int        `mapstructure:"buffer_capacity"`
	SampleRateHz   int        `mapstructure:"sample_rate_hz"`
	NumSamples     int        `mapstructure:"num_samples"`
	BaudRate       int        `mapstructure:"baud_rate"`
	Format         string     `mapstructure:"format"`
	Triggers       []string   `mapstructure:"triggers"`
	I2C            []fileI2C  `mapstructure:"i2c"`
	SPI            []fileSPI  `mapstructure:"spi"`
	UART           []fileUART `mapstructure:"uart"`
}

// loadConfig builds the core configuration. Without a config file the
// defaults stand; an explicit path that fails to load is an error.
func loadConfig(path string) (lascope.CoreConfig, error) {
	cfg := lascope.DefaultConfig()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lascope")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/lascope")
	}
	if err := v.ReadInConfig(); err != nil {
		if path == "" {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", v.ConfigFileUsed(), err)
	}

	if fc.BufferCapacity > 0 {
		cfg.BufferCapacity = fc.BufferCapacity
	}
	if fc.SampleRateHz > 0 {
		cfg.SampleRateHz = fc.SampleRateHz
	}
	if fc.NumSamples > 0 {
		cfg.NumSamples = fc.NumSamples
	}
	if fc.BaudRate > 0 {
		cfg.BaudRate = fc.BaudRate
	}
	if fc.Format != "" {
		cfg.Format = decode.ParseFormat(fc.Format)
	}

	for i, mode := range fc.Triggers {
		if i >= trigger.Channels {
			break
		}
		cfg.TriggerModes[i] = parseTriggerMode(mode)
	}

	for i, g := range fc.I2C {
		if i >= lascope.I2CGroups {
			break
		}
		dst := &cfg.I2C[i]
		dst.Enabled = g.Enabled
		if g.SDA > 0 {
			dst.SDAChannel = g.SDA
		}
		if g.SCL > 0 {
			dst.SCLChannel = g.SCL
		}
		if g.AddressWidth > 0 {
			dst.AddressWidth = g.AddressWidth
		}
		if g.Format != "" {
			dst.Format = decode.ParseFormat(g.Format)
		}
	}

	for i, g := range fc.SPI {
		if i >= lascope.SPIGroups {
			break
		}
		dst := &cfg.SPI[i]
		dst.Enabled = g.Enabled
		if g.SS > 0 {
			dst.SSChannel = g.SS
		}
		if g.Clock > 0 {
			dst.ClockChannel = g.Clock
		}
		if g.MOSI > 0 {
			dst.MOSIChannel = g.MOSI
		}
		if g.MISO > 0 {
			dst.MISOChannel = g.MISO
		}
		if g.Bits > 0 {
			dst.Bits = g.Bits
		}
		if g.FirstBit == "lsb" || g.FirstBit == "LSB" {
			dst.FirstBit = decode.LSBFirst
		}
		if g.SSActive == "high" || g.SSActive == "High" {
			dst.SSActive = decode.SSActiveHigh
		}
		if g.Format != "" {
			dst.Format = decode.ParseFormat(g.Format)
		}
	}

	for i, u := range fc.UART {
		if i >= lascope.UARTChannels {
			break
		}
		dst := &cfg.UART[i]
		dst.Enabled = u.Enabled
		if u.Data > 0 {
			dst.DataChannel = u.Data
		}
		if u.Polarity == "inverted" || u.Polarity == "Inverted" {
			dst.Polarity = decode.Inverted
		}
		if u.StopBits > 0 {
			dst.StopBits = u.StopBits
		}
		dst.CheckStop = u.CheckStop
		if u.Format != "" {
			dst.Format = decode.ParseFormat(u.Format)
		}
	}

	return cfg, nil
}

func parseTriggerMode(s string) trigger.Mode {
	switch s {
	case "rising", "Rising":
		return trigger.Rising
	case "falling", "Falling":
		return trigger.Falling
	default:
		return trigger.None
	}
}
