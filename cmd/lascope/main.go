package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/openla/lascope/lascope"
	"github.com/openla/lascope/lascope/monitor"
	"github.com/openla/lascope/lascope/transport"
)

// linkBaud is the serial link speed to the acquisition board. This is the
// transport rate, unrelated to the decoded UART baud rate.
const linkBaud = 115200

func main() {
	app := cli.NewApp()
	app.Name = "lascope"
	app.Description = "An 8-channel logic analyzer with I2C, SPI and UART decoding"
	app.Usage = "lascope [options]"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "port",
			Usage: "Serial port of the acquisition board ('auto' selects by USB id)",
			Value: "auto",
		},
		cli.StringFlag{
			Name:  "config",
			Usage: "Path to a config file (default: ./lascope.*)",
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Log decoded events instead of opening the live monitor",
		},
		cli.BoolFlag{
			Name:  "single",
			Usage: "Run one capture until the buffers fill, then stop",
		},
		cli.IntFlag{
			Name:  "sample-rate",
			Usage: "Override the sample rate in Hz",
		},
		cli.BoolFlag{
			Name:  "list-ports",
			Usage: "List serial ports and exit",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("lascope failed", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Bool("list-ports") {
		ports, err := transport.List()
		if err != nil {
			return err
		}
		for _, p := range ports {
			os.Stdout.WriteString(p + "\n")
		}
		return nil
	}

	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if hz := c.Int("sample-rate"); hz > 0 {
		cfg.SampleRateHz = hz
	}

	sup, err := lascope.Connect(c.String("port"), linkBaud, cfg)
	if err != nil {
		return err
	}
	defer sup.Close()

	// Program the device before acquiring.
	if err := sup.SetSampleRate(cfg.SampleRateHz); err != nil {
		return err
	}
	if err := sup.SetNumSamples(cfg.NumSamples); err != nil {
		return err
	}
	if err := sup.SyncTriggers(); err != nil {
		return err
	}

	if c.Bool("single") {
		if err := sup.SingleCapture(); err != nil {
			return err
		}
	} else {
		if err := sup.Start(); err != nil {
			return err
		}
	}
	defer sup.Stop()

	if c.Bool("headless") {
		return runHeadless(sup)
	}

	mon, err := monitor.New(sup)
	if err != nil {
		return err
	}
	return mon.Run()
}

// runHeadless streams decoded events to the structured log until the
// process is told to stop.
func runHeadless(sup *lascope.Supervisor) error {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slog.SetDefault(slog.New(handler))

	format := sup.Config().Format
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("acquiring", "sample_rate_hz", sup.Config().SampleRateHz)

	for {
		select {
		case e := <-sup.Events():
			slog.Info("event", "sample", e.Index(), "label", e.Label(format))
		case hit := <-sup.Triggers():
			slog.Info("trigger", "sample", hit.Sample, "mask", hit.Mask)
		case err := <-sup.Errors():
			return err
		case <-signals:
			slog.Info("received signal to stop")
			return nil
		}
	}
}
