// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Thermoquad/kiln/pkg/vt"
)

// fakeTransport records transmitted bytes and holds the armed receive slot.
// Completions are driven by the test.
type fakeTransport struct {
	out       bytes.Buffer
	screen    *vt.Screen
	transmits int
	arms      int
	rxSlot    []byte
	txErr     error
	rxErr     error

	// syncSession completes every transmit before TransmitAsync returns
	syncSession *Session
}

func (f *fakeTransport) TransmitAsync(p []byte) error {
	if f.txErr != nil {
		return f.txErr
	}
	f.transmits++
	f.out.Write(p)
	if f.screen != nil {
		f.screen.Write(p)
	}
	if f.syncSession != nil {
		f.syncSession.OnTransmitComplete()
	}
	return nil
}

func (f *fakeTransport) ReceiveAsync(dst []byte) error {
	f.arms++
	f.rxSlot = dst
	return f.rxErr
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.RxBufferSize = 128
	opts.OutputBufferSize = 4096
	opts.MaxLineLength = 64
	opts.HistoryDepth = 4
	return opts
}

func newSession(t *testing.T, opts Options) *Session {
	t.Helper()
	s, err := Create(make([]byte, RequiredStateMemory(opts)), make([]byte, RequiredScratchMemory(opts)), opts)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}

// rig is an initialized session wired to a fake transport and a screen
type rig struct {
	t      *testing.T
	s      *Session
	tr     *fakeTransport
	screen *vt.Screen
}

func newRig(t *testing.T, cfg Config) *rig {
	return newRigWithOptions(t, cfg, testOptions())
}

func newRigWithOptions(t *testing.T, cfg Config, opts Options) *rig {
	t.Helper()
	r := &rig{
		t:      t,
		s:      newSession(t, opts),
		screen: vt.New(200, 24),
	}
	r.tr = &fakeTransport{screen: r.screen}
	cfg.Transport = r.tr
	if err := r.s.Init(cfg); err != nil {
		t.Fatalf("Init: %v", err)
	}
	r.drain()
	r.take()
	r.tr.transmits = 0
	return r
}

// feed delivers input as receive completions without running the loop
func (r *rig) feed(input string) {
	r.t.Helper()
	for i := 0; i < len(input); i++ {
		r.tr.rxSlot[0] = input[i]
		if err := r.s.OnReceiveComplete(); err != nil {
			r.t.Fatalf("OnReceiveComplete(%q): %v", input[i], err)
		}
	}
}

// tick runs one loop iteration and completes whatever it transmitted
func (r *rig) tick() error {
	err := r.s.Tick()
	r.complete()
	return err
}

func (r *rig) complete() {
	if r.s.out.inFlight.Load() {
		r.s.OnTransmitComplete()
	}
}

// drain sends everything that is still queued
func (r *rig) drain() {
	r.t.Helper()
	for {
		status, err := r.s.Flush()
		if err != nil {
			r.t.Fatalf("Flush: %v", err)
		}
		r.complete()
		if status == FlushIdle {
			return
		}
	}
}

// settle ticks until every received byte is consumed, then once more so a
// pending prompt is drawn
func (r *rig) settle() error {
	var last error
	for r.s.NumCharsWaiting() > 0 {
		if err := r.tick(); err != nil {
			last = err
		}
	}
	if err := r.tick(); err != nil {
		last = err
	}
	r.drain()
	return last
}

// paste delivers input as a single burst
func (r *rig) paste(input string) error {
	r.feed(input)
	return r.settle()
}

// typeKeys delivers input one byte per loop iteration
func (r *rig) typeKeys(input string) error {
	var last error
	for i := 0; i < len(input); i++ {
		r.feed(input[i : i+1])
		if err := r.tick(); err != nil {
			last = err
		}
	}
	if err := r.settle(); err != nil {
		last = err
	}
	return last
}

// take returns the bytes transmitted since the last call
func (r *rig) take() string {
	out := r.tr.out.String()
	r.tr.out.Reset()
	return out
}

// dispatch runs line and drains its output
func (r *rig) dispatch(line string) (string, error) {
	r.take()
	err := r.s.Dispatch(line)
	r.drain()
	return r.take(), err
}

// wantLine checks that the prompt row shows the logical line and that the
// terminal cursor sits where the editor thinks it is
func (r *rig) wantLine(row int, prompt string) {
	r.t.Helper()
	st := r.s.State()
	if got, want := r.screen.Line(row), strings.TrimRight(prompt+st.Line, " "); got != want {
		r.t.Errorf("screen row %d = %q, want %q", row, got, want)
	}
	gotRow, gotCol := r.screen.Cursor()
	if gotRow != row || gotCol != len(prompt)+st.Cursor {
		r.t.Errorf("screen cursor = (%d, %d), want (%d, %d)", gotRow, gotCol, row, len(prompt)+st.Cursor)
	}
}

// recorder is a handler that remembers how it was called
type recorder struct {
	calls [][]string
	kinds [][]Kind
	err   error
}

func (rec *recorder) Handle(_ Console, args *Args) error {
	vals := make([]string, args.Len())
	kinds := make([]Kind, args.Len())
	for i := range vals {
		vals[i] = args.At(i).String()
		kinds[i] = args.At(i).Kind()
	}
	rec.calls = append(rec.calls, vals)
	rec.kinds = append(rec.kinds, kinds)
	return rec.err
}
