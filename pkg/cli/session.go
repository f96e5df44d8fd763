// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package cli is an interactive command shell engine for a polled main
// loop fed by an asynchronous byte transport.
//
// A transport delivers one byte per receive completion; the session queues
// it in a lock-free ring and re-arms the receive. The foreground loop calls
// Tick, which edits the current line, dispatches complete lines to the
// command table and flushes queued output through a double buffer.
//
// Everything except OnReceiveComplete and OnTransmitComplete must be called
// from the foreground goroutine.
package cli

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/Thermoquad/kiln/pkg/circbuf"
	"github.com/Thermoquad/kiln/pkg/history"
)

// Transmitter starts an asynchronous send of p. The transport owns p until
// it calls Session.OnTransmitComplete.
type Transmitter interface {
	TransmitAsync(p []byte) error
}

// Transport is the byte channel a session runs on. ReceiveAsync arms the
// reception of len(dst) bytes into dst; the transport calls
// Session.OnReceiveComplete once they have arrived.
type Transport interface {
	Transmitter
	ReceiveAsync(dst []byte) error
}

// Config is supplied at Init
type Config struct {
	Transport Transport
	Commands  Table
	Prompt    string
	// AllowExit enables the exit built-in
	AllowExit bool
}

// Stats counts session activity
type Stats struct {
	LinesDispatched  uint64
	CommandsNotFound uint64
	UsageErrors      uint64
	RxOverruns       uint64
	TxErrors         uint64
	BytesSent        uint64
}

type stats struct {
	linesDispatched uint64
	notFound        uint64
	usageErrors     uint64
	txErrors        uint64
	bytesSent       uint64
	rxOverruns      atomic.Uint64
}

// Session is one shell instance. All of its buffers live in the regions
// passed to Create.
type Session struct {
	opts Options
	cfg  Config

	rx     *circbuf.Buffer
	rxSlot []byte
	out    outputBuffer
	hist   *history.Ring
	line   editLine
	esc    int
	args   Args

	cmdBuf []byte
	msgBuf []byte

	initialized   bool
	echo          bool
	ctrlChars     bool
	deferPrompt   bool
	displayPrompt bool
	typing        bool
	exitRequested bool

	stats stats
}

// Create builds a session whose buffers are carved from state and scratch.
// Use RequiredStateMemory and RequiredScratchMemory to size them.
func Create(state, scratch []byte, opts Options) (*Session, error) {
	if state == nil || scratch == nil {
		return nil, ErrNilMemory
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if need := RequiredStateMemory(opts); len(state) < need {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrInsufficientStateMemory, need, len(state))
	}
	if need := RequiredScratchMemory(opts); len(scratch) < need {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrInsufficientScratchMemory, need, len(scratch))
	}

	st := region(state)
	sc := region(scratch)

	s := &Session{
		opts:      opts,
		rxSlot:    st.take(1),
		rx:        circbuf.New(st.take(opts.RxBufferSize)),
		args:      newArgs(opts.MaxParams),
		echo:      true,
		ctrlChars: true,
	}
	s.out = newOutputBuffer(st.take(opts.OutputBufferSize), st.take(opts.OutputBufferSize))
	s.line.buf = st.take(opts.MaxLineLength)

	hist, err := history.NewWithStorage(st.take(history.StorageSize(opts.HistoryDepth, opts.MaxLineLength)),
		opts.HistoryDepth, opts.MaxLineLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	s.hist = hist

	s.cmdBuf = sc.take(opts.MaxLineLength)
	s.msgBuf = sc.take(opts.MessageSize)
	return s, nil
}

// Init installs the configuration, arms the first receive, clears the
// screen and shows the prompt. If arming fails the session is still set up
// and the wrapped ErrTransport is returned.
func (s *Session) Init(cfg Config) error {
	if s.initialized {
		return ErrAlreadyInitialized
	}
	if cfg.Transport == nil {
		return ErrNilTransport
	}
	if err := cfg.Commands.Validate(s.opts.MaxParams); err != nil {
		return err
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}

	s.cfg = cfg
	s.out.tx = cfg.Transport
	s.initialized = true

	var armErr error
	if err := cfg.Transport.ReceiveAsync(s.rxSlot); err != nil {
		armErr = fmt.Errorf("%w: arm receive: %v", ErrTransport, err)
	}

	s.ctrl(ctrlClearScreen)
	s.hist.Reset()
	s.line.reset()
	s.esc = escIdle
	s.displayPromptText()
	return armErr
}

// OnReceiveComplete must be called by the transport after the byte armed
// by ReceiveAsync arrived. It queues the byte and re-arms the receive. A
// full ring drops the byte and reports circbuf.ErrFull.
func (s *Session) OnReceiveComplete() error {
	overrun := s.rx.WriteByte(s.rxSlot[0])
	if overrun != nil {
		s.stats.rxOverruns.Add(1)
	}
	if err := s.cfg.Transport.ReceiveAsync(s.rxSlot); err != nil {
		return fmt.Errorf("%w: re-arm receive: %v", ErrTransport, err)
	}
	return overrun
}

// OnTransmitComplete must be called by the transport once the buffer passed
// to TransmitAsync has been sent
func (s *Session) OnTransmitComplete() {
	s.out.onTransmitComplete()
}

// Tick runs one main loop iteration: it redraws a pending prompt, edits
// the line with every buffered byte up to the end of a line, dispatches a
// completed line and attempts one flush.
func (s *Session) Tick() error {
	if !s.initialized {
		return ErrNotInitialized
	}
	if s.displayPrompt {
		s.OverwriteLineWithPrompt()
	}

	for {
		c, err := s.rx.ReadByte()
		if err != nil {
			break
		}
		if s.processByte(c) {
			s.completeLine()
			break
		}
	}

	if _, err := s.Flush(); err != nil {
		return err
	}
	if s.exitRequested {
		return ErrExit
	}
	return nil
}

func (s *Session) completeLine() {
	n := copy(s.cmdBuf, s.line.text())
	s.displayPrompt = true
	s.ctrl(ctrlNewline)
	// Usage errors were already reported to the user
	_ = s.dispatch(s.cmdBuf[:n])
}

// Dispatch runs line as if it had been typed. Unknown commands and misuse
// return ErrInvalidCommand after the user has been told.
func (s *Session) Dispatch(line string) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	n := copy(s.cmdBuf, line)
	return s.dispatch(s.cmdBuf[:n])
}

// Flush hands queued output to the transport if it is free
func (s *Session) Flush() (FlushStatus, error) {
	if !s.initialized {
		return FlushIdle, ErrNotInitialized
	}
	queued := s.out.stored
	status, err := s.out.flush()
	if err != nil {
		s.stats.txErrors++
		return status, err
	}
	if status == FlushSent {
		s.stats.bytesSent += uint64(queued)
	}
	return status, nil
}

// FlushAll flushes until nothing is left, yielding while a transmit is in
// flight. It gives up with ErrTransmissionInProgress after maxAttempts.
func (s *Session) FlushAll(maxAttempts int) error {
	for i := 0; i < maxAttempts; i++ {
		status, err := s.Flush()
		if err != nil {
			return err
		}
		switch status {
		case FlushIdle:
			return nil
		case FlushBusy:
			runtime.Gosched()
		}
	}
	return ErrTransmissionInProgress
}

// DisplayPrompt prints the prompt at the start of the current line
func (s *Session) DisplayPrompt() {
	s.displayPromptText()
}

// OverwriteLineWithPrompt drops the current line and reprints the prompt
func (s *Session) OverwriteLineWithPrompt() {
	s.deferPrompt = false
	s.displayPrompt = false
	s.clearLine()
	s.displayPromptText()
}

// NewLine drops the current line and moves to a fresh terminal line
func (s *Session) NewLine() {
	s.clearLine()
	s.ctrl(ctrlNewline)
}

// DeferPrompt postpones the prompt until the user presses a key. Useful
// after printing unsolicited output.
func (s *Session) DeferPrompt(enable bool) {
	s.deferPrompt = enable
}

// UserIsTyping reports whether a line is being entered
func (s *Session) UserIsTyping() bool {
	return s.typing
}

// NumCharsWaiting returns the number of received bytes not yet processed
func (s *Session) NumCharsWaiting() int {
	return int(s.rx.Available())
}

// GetChar takes one received byte directly, bypassing the line editor
func (s *Session) GetChar() (byte, bool) {
	c, err := s.rx.ReadByte()
	return c, err == nil
}

// Stats returns a snapshot of the counters
func (s *Session) Stats() Stats {
	return Stats{
		LinesDispatched:  s.stats.linesDispatched,
		CommandsNotFound: s.stats.notFound,
		UsageErrors:      s.stats.usageErrors,
		RxOverruns:       s.stats.rxOverruns.Load(),
		TxErrors:         s.stats.txErrors,
		BytesSent:        s.stats.bytesSent,
	}
}

// State is a snapshot of the editor and buffers for display and tests
type State struct {
	Line          string
	Cursor        int
	Pending       int
	Escape        string
	Echo          bool
	ControlChars  bool
	Typing        bool
	RxAvailable   int
	RxCapacity    int
	OutStored     int
	OutCapacity   int
	InFlight      bool
	History       []string
	PromptPending bool
}

// State returns a snapshot of the session
func (s *Session) State() State {
	return State{
		Line:          string(s.line.text()),
		Cursor:        s.line.cur,
		Pending:       s.line.pending,
		Escape:        escStateNames[s.esc],
		Echo:          s.echo,
		ControlChars:  s.ctrlChars,
		Typing:        s.typing,
		RxAvailable:   int(s.rx.Available()),
		RxCapacity:    int(s.rx.Cap()),
		OutStored:     s.out.stored,
		OutCapacity:   s.out.capacity(),
		InFlight:      s.out.inFlight.Load(),
		History:       s.hist.Entries(),
		PromptPending: s.displayPrompt || s.deferPrompt,
	}
}

// Options returns the dimensions the session was created with
func (s *Session) Options() Options {
	return s.opts
}
