// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport connects shell sessions to real byte streams.
//
// Stream drives a session from two goroutines over any io.ReadWriter
// (serial port, websocket, SSH channel, local terminal). Pipe is a
// synchronous in-memory transport for embedding a session in a UI loop.
package transport

import (
	"context"
	"errors"
	"io"
	"sync"

	"pkt.systems/pslog"
)

// Completer receives transfer completions. *cli.Session implements it.
type Completer interface {
	OnReceiveComplete() error
	OnTransmitComplete()
}

// ErrBusy is returned when a transfer is requested while the previous one
// of the same direction is still pending
var ErrBusy = errors.New("transport: transfer already pending")

const readChunk = 256

// Stream is an asynchronous transport over an io.ReadWriter. ReceiveAsync
// and TransmitAsync only queue the request; the goroutines started by
// Start perform the I/O and report completions.
type Stream struct {
	rw  io.ReadWriter
	log pslog.Logger

	rxArm chan []byte
	tx    chan []byte
	err   chan error
	once  sync.Once
}

// NewStream wraps rw. The logger may be nil.
func NewStream(rw io.ReadWriter, log pslog.Logger) *Stream {
	return &Stream{
		rw:    rw,
		log:   log,
		rxArm: make(chan []byte, 1),
		tx:    make(chan []byte, 1),
		err:   make(chan error, 1),
	}
}

// ReceiveAsync arms the reception of len(dst) bytes
func (s *Stream) ReceiveAsync(dst []byte) error {
	select {
	case s.rxArm <- dst:
		return nil
	default:
		return ErrBusy
	}
}

// TransmitAsync queues p for writing. p must stay untouched until the
// completion.
func (s *Stream) TransmitAsync(p []byte) error {
	select {
	case s.tx <- p:
		return nil
	default:
		return ErrBusy
	}
}

// Start runs the receive and transmit goroutines until ctx is done or the
// stream fails. A Read blocked in the underlying stream only returns once
// the caller closes it.
func (s *Stream) Start(ctx context.Context, c Completer) {
	go s.receive(ctx, c)
	go s.transmit(ctx, c)
}

// Err delivers the first I/O failure, io.EOF included
func (s *Stream) Err() <-chan error {
	return s.err
}

func (s *Stream) fail(err error) {
	s.once.Do(func() {
		s.err <- err
	})
}

func (s *Stream) receive(ctx context.Context, c Completer) {
	buf := make([]byte, readChunk)
	for {
		n, err := s.rw.Read(buf)
		for _, b := range buf[:n] {
			if !s.deliver(ctx, c, b) {
				return
			}
		}
		if err != nil {
			if s.log != nil {
				s.log.Debug("transport receive stopped", "err", err)
			}
			s.fail(err)
			return
		}
	}
}

// deliver hands one byte to the armed destination
func (s *Stream) deliver(ctx context.Context, c Completer, b byte) bool {
	var dst []byte
	select {
	case dst = <-s.rxArm:
	case <-ctx.Done():
		return false
	}
	dst[0] = b
	if err := c.OnReceiveComplete(); err != nil && s.log != nil {
		s.log.Warn("receive completion failed", "err", err)
	}
	return true
}

func (s *Stream) transmit(ctx context.Context, c Completer) {
	for {
		select {
		case p := <-s.tx:
			_, err := s.rw.Write(p)
			c.OnTransmitComplete()
			if err != nil {
				if s.log != nil {
					s.log.Debug("transport transmit stopped", "err", err)
				}
				s.fail(err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
