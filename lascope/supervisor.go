package lascope

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/openla/lascope/lascope/buffer"
	"github.com/openla/lascope/lascope/command"
	"github.com/openla/lascope/lascope/decode"
	"github.com/openla/lascope/lascope/framer"
	"github.com/openla/lascope/lascope/transport"
	"github.com/openla/lascope/lascope/trigger"
)

// State is the supervisor's acquisition state.
type State int

const (
	// Idle: constructed or cleanly stopped, ready to start.
	Idle State = iota
	// Running: the ingest task is consuming samples.
	Running
	// Stopped: a transport error ended acquisition; see Errors().
	Stopped
)

// TriggerHit reports the channels whose edge condition fired at a sample.
type TriggerHit struct {
	Mask   uint8
	Sample uint64
}

const (
	eventBacklog   = 1024
	triggerBacklog = 64
	readChunk      = 4096
)

// Supervisor owns the serial transport, the sample history and the
// decoder sets, and fans every accepted sample out to all of them.
//
// One goroutine (the ingest task) performs all appends and decoding, so
// decode order is exactly sample order. Events are delivered on a single
// ordered channel which the consumer must drain; trigger hits are
// advisory and may be dropped when their channel backs up.
type Supervisor struct {
	mu   sync.Mutex
	cfg  CoreConfig
	port io.ReadWriteCloser
	enc  *command.Encoder

	ring  *buffer.Ring
	trig  *trigger.Evaluator
	frame *framer.Framer
	i2c   [I2CGroups]*decode.I2C
	spi   [SPIGroups]*decode.SPI
	uart  [UARTChannels]*decode.UART

	events   chan decode.Event
	errs     chan error
	triggers chan TriggerHit

	state    State
	single   bool
	stopping chan struct{}
	done     chan struct{}

	prev     byte
	havePrev bool

	log *slog.Logger
}

// New builds a supervisor over an already open transport. The caller
// keeps ownership of cfg; the supervisor works on a copy.
func New(port io.ReadWriteCloser, cfg CoreConfig, opts ...command.Option) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Supervisor{
		cfg:      cfg,
		port:     port,
		enc:      command.NewEncoder(port, opts...),
		ring:     buffer.NewRing(cfg.BufferCapacity),
		trig:     trigger.New(),
		frame:    framer.New(),
		events:   make(chan decode.Event, eventBacklog),
		errs:     make(chan error, 8),
		triggers: make(chan TriggerHit, triggerBacklog),
		log:      slog.Default(),
	}
	s.trig.SetModes(cfg.TriggerModes)
	s.buildDecoders()
	return s, nil
}

// Connect opens the named serial port and builds a supervisor over it.
// The port name "auto" selects the acquisition board by USB identity.
func Connect(portName string, baud int, cfg CoreConfig) (*Supervisor, error) {
	port, err := transport.Open(portName, baud)
	if err != nil {
		return nil, err
	}
	s, err := New(port, cfg)
	if err != nil {
		port.Close()
		return nil, err
	}
	return s, nil
}

func (s *Supervisor) buildDecoders() {
	for g := range s.i2c {
		s.i2c[g] = decode.NewI2C(s.cfg.I2C[g])
	}
	for g := range s.spi {
		s.spi[g] = decode.NewSPI(s.cfg.SPI[g])
	}
	for c := range s.uart {
		s.uart[c] = decode.NewUART(s.cfg.UART[c])
	}
}

// Events returns the ordered decoded-event stream.
func (s *Supervisor) Events() <-chan decode.Event {
	return s.events
}

// Errors returns the transport error side channel.
func (s *Supervisor) Errors() <-chan error {
	return s.errs
}

// Triggers returns the advisory trigger-hit stream.
func (s *Supervisor) Triggers() <-chan TriggerHit {
	return s.triggers
}

// CurrentState returns the acquisition state.
func (s *Supervisor) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Config returns a copy of the active configuration.
func (s *Supervisor) Config() CoreConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Configure installs new settings. Every decoder is rebuilt and reset;
// the ring buffer survives unless cfg.ClearsHistory is set. A change of
// BufferCapacity replaces the ring with a new, empty one, so the history
// and the sample counter do not survive a resize. On validation failure
// nothing changes.
func (s *Supervisor) Configure(cfg CoreConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	resize := cfg.BufferCapacity != s.cfg.BufferCapacity
	s.cfg = cfg
	s.trig.SetModes(cfg.TriggerModes)
	s.buildDecoders()
	if resize {
		s.ring = buffer.NewRing(cfg.BufferCapacity)
	} else if cfg.ClearsHistory {
		s.clearLocked()
	}
	return nil
}

// Start begins continuous acquisition: op 0 goes to the device and the
// ingest task starts if it is not already running.
func (s *Supervisor) Start() error {
	return s.start(false)
}

// SingleCapture clears all history, then acquires until every channel
// buffer is full; the supervisor then sends op 1 and stops, leaving the
// capture in place.
func (s *Supervisor) SingleCapture() error {
	s.ClearBuffers()
	return s.start(true)
}

func (s *Supervisor) start(single bool) error {
	s.mu.Lock()
	if s.state == Running {
		s.mu.Unlock()
		return nil
	}
	prev := s.done
	s.mu.Unlock()

	// Wake the device first: a previous ingest task blocked in its last
	// read only finishes once bytes flow again. Never run two readers
	// against the port.
	if err := s.enc.Start(); err != nil {
		return err
	}
	if prev != nil {
		<-prev
	}

	s.mu.Lock()
	if s.state == Running {
		// Lost the race to a concurrent start; the duplicate op 0 is
		// harmless, the device latches on the first.
		s.mu.Unlock()
		return nil
	}
	s.single = single
	s.state = Running
	s.stopping = make(chan struct{})
	s.done = make(chan struct{})
	s.frame.Reset()
	s.havePrev = false
	stopping, done := s.stopping, s.done
	s.mu.Unlock()

	go s.ingest(stopping, done)
	return nil
}

// Stop sends op 1 and asks the ingest task to exit before its next read.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return nil
	}
	close(s.stopping)
	s.state = Idle
	s.mu.Unlock()

	return s.enc.Stop()
}

// Close stops acquisition and releases the transport.
func (s *Supervisor) Close() error {
	s.Stop()
	return s.port.Close()
}

// ClearBuffers drops the sample history, resets the sample counter and
// every decoder state machine. Queued events stay queued; cursor
// associations held by a front end are its own to drop.
func (s *Supervisor) ClearBuffers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *Supervisor) clearLocked() {
	s.frame.Reset()
	s.resetCaptureLocked()
}

// resetCaptureLocked drops history and decoder state but keeps any
// partially framed line: the continuous-mode wrap happens mid-stream.
func (s *Supervisor) resetCaptureLocked() {
	s.ring.Clear()
	s.havePrev = false
	for _, d := range s.i2c {
		d.Reset()
	}
	for _, d := range s.spi {
		d.Reset()
	}
	for _, d := range s.uart {
		d.Reset()
	}
}

// SetSampleRate reprograms the device sample timer (ops 5+6) and, since
// the trigger frame length depends on it, the trigger timer (ops 4+7).
func (s *Supervisor) SetSampleRate(hz int) error {
	if hz < MinSampleRateHz || hz > MaxSampleRateHz {
		return &ConfigError{"sample_rate_hz", fmt.Sprintf("must be in %d..%d", MinSampleRateHz, MaxSampleRateHz)}
	}
	s.mu.Lock()
	s.cfg.SampleRateHz = hz
	numSamples := s.cfg.NumSamples
	s.mu.Unlock()

	if err := s.enc.SampleTimer(command.SamplePeriod(hz)); err != nil {
		return err
	}
	return s.enc.TriggerTimer(command.TriggerTiming(hz, numSamples))
}

// SetNumSamples changes the per-frame capture length and reprograms the
// trigger timer (ops 4+7).
func (s *Supervisor) SetNumSamples(n int) error {
	if n < MinNumSamples || n > MaxNumSamples {
		return &ConfigError{"num_samples", fmt.Sprintf("must be in %d..%d", MinNumSamples, MaxNumSamples)}
	}
	s.mu.Lock()
	s.cfg.NumSamples = n
	hz := s.cfg.SampleRateHz
	s.mu.Unlock()

	return s.enc.TriggerTimer(command.TriggerTiming(hz, n))
}

// SetBaudRate selects the UART baud rate and retunes the sample rate to
// the 16x oversampling the decoder assumes.
func (s *Supervisor) SetBaudRate(baud int) error {
	if !ValidBaudRate(baud) {
		return &ConfigError{"baud_rate", fmt.Sprintf("unsupported rate %d", baud)}
	}
	s.mu.Lock()
	s.cfg.BaudRate = baud
	s.mu.Unlock()

	return s.SetSampleRate(baud * decode.Oversample)
}

// SyncTriggers pushes the current edge and enable masks to the device
// (ops 2+3).
func (s *Supervisor) SyncTriggers() error {
	s.mu.Lock()
	edge := s.trig.EdgeMask()
	pins := s.trig.PinsMask()
	s.mu.Unlock()

	if err := s.enc.TriggerEdge(edge); err != nil {
		return err
	}
	return s.enc.TriggerPins(pins)
}

// TotalSamples returns the number of samples accepted since the last
// clear.
func (s *Supervisor) TotalSamples() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ring.TotalSamples()
}

// Snapshot copies one channel's history, oldest first. Channels are
// 1-based.
func (s *Supervisor) Snapshot(channel int) []uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ring.Snapshot(channel - 1)
}

// SnapshotAll copies every channel at one observation point together
// with the sample counter at that point.
func (s *Supervisor) SnapshotAll() (uint64, [buffer.Channels][]uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ring.SnapshotAll()
}

// ingest is the acquisition task: it drains the transport, frames
// samples and fans each one out to the history, the trigger evaluator
// and every decoder, strictly in sample order.
func (s *Supervisor) ingest(stopping <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	buf := make([]byte, readChunk)
	for {
		select {
		case <-stopping:
			return
		default:
		}

		n, err := s.port.Read(buf)
		if err != nil {
			select {
			case <-stopping:
				// A close during shutdown is expected.
				return
			default:
			}
			s.mu.Lock()
			s.state = Stopped
			s.mu.Unlock()
			s.reportError(fmt.Errorf("read: %w", err))
			return
		}
		select {
		case <-stopping:
			// Bytes that arrived during shutdown are discarded.
			return
		default:
		}
		if n == 0 {
			continue
		}

		s.mu.Lock()
		samples := s.frame.Push(buf[:n])
		s.mu.Unlock()

		for _, sample := range samples {
			if full := s.processSample(sample); full {
				return
			}
		}
	}
}

// processSample handles one accepted sample. It returns true when the
// ingest task should end (single capture completed).
func (s *Supervisor) processSample(sample byte) bool {
	s.mu.Lock()
	idx := s.ring.TotalSamples()
	s.ring.Append(sample)

	if s.havePrev {
		if mask := s.trig.Evaluate(s.prev, sample); mask != 0 {
			select {
			case s.triggers <- TriggerHit{Mask: mask, Sample: idx}:
			default:
				// Advisory stream; the history still holds the edge.
			}
		}
	}
	s.prev = sample
	s.havePrev = true

	// Collect this sample's events under the lock, deliver after: a slow
	// consumer must not stall snapshot readers.
	var pending []decode.Event
	emit := func(e decode.Event) {
		pending = append(pending, e)
	}
	for g, d := range s.i2c {
		d.Feed(g, sample, idx, emit)
	}
	for g, d := range s.spi {
		d.Feed(g, sample, idx, emit)
	}
	for c, d := range s.uart {
		d.Feed(c, sample, idx, emit)
	}

	full := s.ring.Full()
	single := s.single
	if full && !single {
		// Continuous mode wraps to a fresh frame.
		s.resetCaptureLocked()
	}
	s.mu.Unlock()

	for _, e := range pending {
		s.events <- e
	}

	if full && single {
		if err := s.enc.Stop(); err != nil {
			s.reportError(err)
		}
		s.mu.Lock()
		s.state = Idle
		s.mu.Unlock()
		return true
	}
	return false
}

func (s *Supervisor) reportError(err error) {
	select {
	case s.errs <- err:
	default:
		s.log.Error("error channel full, dropping", "error", err)
	}
}

// IsClosed reports whether err is the read failure produced by closing
// the transport out from under the ingest task.
func IsClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe)
}
