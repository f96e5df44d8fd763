// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"errors"
	"io"
)

// ErrNotArmed is returned by Pipe.Feed when the session has not asked for
// another byte
var ErrNotArmed = errors.New("transport: receive not armed")

// Pipe is a transport driven entirely by its owner's goroutine. Feed
// delivers input as if it had been typed; Complete finishes the pending
// transmit by copying it to the sink.
type Pipe struct {
	c       Completer
	sink    io.Writer
	armed   []byte
	pending []byte
	sent    uint64
}

// NewPipe returns a pipe writing session output to sink
func NewPipe(sink io.Writer) *Pipe {
	return &Pipe{sink: sink}
}

// Attach sets the session that receives completions. It must be called
// before Feed or Complete.
func (p *Pipe) Attach(c Completer) {
	p.c = c
}

// ReceiveAsync implements cli.Transport
func (p *Pipe) ReceiveAsync(dst []byte) error {
	p.armed = dst
	return nil
}

// TransmitAsync implements cli.Transport
func (p *Pipe) TransmitAsync(b []byte) error {
	if p.pending != nil {
		return ErrBusy
	}
	p.pending = b
	return nil
}

// Feed delivers input one byte per receive completion. It stops at the
// first byte the session rejects and reports how many were consumed.
func (p *Pipe) Feed(input []byte) (int, error) {
	for i, b := range input {
		dst := p.armed
		if dst == nil {
			return i, ErrNotArmed
		}
		p.armed = nil
		dst[0] = b
		if err := p.c.OnReceiveComplete(); err != nil {
			return i + 1, err
		}
	}
	return len(input), nil
}

// Pending reports whether a transmit waits for Complete
func (p *Pipe) Pending() bool {
	return p.pending != nil
}

// Complete writes the pending transmit to the sink and signals the
// session. It returns the number of bytes written.
func (p *Pipe) Complete() (int, error) {
	if p.pending == nil {
		return 0, nil
	}
	b := p.pending
	p.pending = nil
	n, err := p.sink.Write(b)
	p.sent += uint64(n)
	p.c.OnTransmitComplete()
	return n, err
}

// Sent returns the total bytes written to the sink
func (p *Pipe) Sent() uint64 {
	return p.sent
}
