// Package monitor renders a live text view of the capture: one row per
// channel with the most recent waveform history, plus the tail of the
// decoded-event stream. It polls supervisor snapshots on its own ticker;
// the core keeps emitting regardless of render cadence.
package monitor

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/openla/lascope/lascope"
	"github.com/openla/lascope/lascope/buffer"
	"github.com/openla/lascope/lascope/decode"
)

const (
	refreshInterval = 50 * time.Millisecond
	eventTail       = 16
)

// Waveform glyphs for low and high levels.
var levelChars = [2]rune{'_', '▔'}

type eventLine struct {
	text   string
	sample uint64
}

// Monitor owns the screen and the render loop.
type Monitor struct {
	screen  tcell.Screen
	sup     *lascope.Supervisor
	format  decode.Format
	events  []eventLine
	running bool
}

// New initializes the terminal screen over a running supervisor.
func New(sup *lascope.Supervisor) (*Monitor, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("monitor: init terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("monitor: init terminal: %w", err)
	}
	return &Monitor{
		screen:  screen,
		sup:     sup,
		format:  sup.Config().Format,
		running: true,
	}, nil
}

// Run renders until Escape, 'q' or a termination signal.
func (m *Monitor) Run() error {
	defer func() {
		slog.Info("closing monitor")
		m.screen.Fini()
	}()

	m.screen.SetStyle(tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite))
	m.screen.Clear()

	go m.handleInput()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	for m.running {
		select {
		case <-ticker.C:
			m.drainEvents()
			m.render()
			m.screen.Show()
		case err := <-m.sup.Errors():
			m.running = false
			return err
		case <-signals:
			m.running = false
			slog.Info("received signal to stop")
			return nil
		}
	}

	return nil
}

func (m *Monitor) handleInput() {
	for m.running {
		ev := m.screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Rune() == 'q' {
				m.running = false
				return
			}
		case *tcell.EventResize:
			m.screen.Sync()
		}
	}
}

func (m *Monitor) drainEvents() {
	for {
		select {
		case e := <-m.sup.Events():
			m.events = append(m.events, eventLine{
				text:   e.Label(m.format),
				sample: e.Index(),
			})
			if len(m.events) > eventTail {
				m.events = m.events[len(m.events)-eventTail:]
			}
		default:
			return
		}
	}
}

func (m *Monitor) render() {
	m.screen.Clear()
	width, _ := m.screen.Size()

	total, channels := m.sup.SnapshotAll()
	m.drawText(0, 0, fmt.Sprintf("lascope  samples=%d  state=%s", total, stateName(m.sup.CurrentState())))

	// One waveform row per channel, newest sample at the right edge.
	wave := width - 6
	if wave < 1 {
		wave = 1
	}
	for ch := 0; ch < buffer.Channels; ch++ {
		row := ch + 2
		m.drawText(0, row, fmt.Sprintf("ch%d ", ch+1))

		bits := channels[ch]
		start := 0
		if len(bits) > wave {
			start = len(bits) - wave
		}
		for i, b := range bits[start:] {
			m.screen.SetContent(5+i, row, levelChars[b], nil, tcell.StyleDefault)
		}
	}

	// Decoded-event tail below the waveforms.
	base := buffer.Channels + 3
	m.drawText(0, base, "events:")
	for i, e := range m.events {
		m.drawText(2, base+1+i, fmt.Sprintf("@%-8d %s", e.sample, e.text))
	}
}

func (m *Monitor) drawText(x, y int, s string) {
	for i, r := range s {
		m.screen.SetContent(x+i, y, r, nil, tcell.StyleDefault)
	}
}

func stateName(s lascope.State) string {
	switch s {
	case lascope.Running:
		return "running"
	case lascope.Stopped:
		return "stopped"
	default:
		return "idle"
	}
}
