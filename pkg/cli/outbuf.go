// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cli

import (
	"fmt"
	"sync/atomic"
)

// outputBuffer is a ping-pong pair: one half fills while the other is owned
// by the transport until it reports completion
type outputBuffer struct {
	bufs     [2][]byte
	active   int
	stored   int
	inFlight atomic.Bool
	tx       Transmitter

	// reserved bytes stay free for a truncation notice. The first write
	// refused while they are held sets dropped, and every later write is
	// refused too so output is never cut in the middle.
	reserved int
	dropped  bool
}

func newOutputBuffer(a, b []byte) outputBuffer {
	return outputBuffer{bufs: [2][]byte{a, b}}
}

func (o *outputBuffer) capacity() int {
	return len(o.bufs[0])
}

// fits reports whether n more bytes can be appended. One byte of each half
// is never used.
func (o *outputBuffer) fits(n int) bool {
	if o.dropped {
		return false
	}
	if o.stored+n+o.reserved < o.capacity() {
		return true
	}
	if o.reserved > 0 {
		o.dropped = true
	}
	return false
}

func (o *outputBuffer) free() int {
	if f := o.capacity() - o.stored - o.reserved - 1; f > 0 {
		return f
	}
	return 0
}

func (o *outputBuffer) pending() []byte {
	return o.bufs[o.active][:o.stored]
}

func appendOut[T string | []byte](o *outputBuffer, p T) error {
	if !o.fits(len(p)) {
		return ErrBufferFull
	}
	o.stored += copy(o.bufs[o.active][o.stored:], p)
	return nil
}

func (o *outputBuffer) appendByte(c byte) error {
	if !o.fits(1) {
		return ErrBufferFull
	}
	o.bufs[o.active][o.stored] = c
	o.stored++
	return nil
}

// flush hands the filling half to the transport. A transmit error drops the
// payload and frees the channel again.
func (o *outputBuffer) flush() (FlushStatus, error) {
	if o.stored == 0 {
		return FlushIdle, nil
	}
	if !o.inFlight.CompareAndSwap(false, true) {
		return FlushBusy, nil
	}

	payload := o.bufs[o.active][:o.stored]
	o.active ^= 1
	o.stored = 0

	if err := o.tx.TransmitAsync(payload); err != nil {
		o.inFlight.Store(false)
		return FlushIdle, fmt.Errorf("%w: transmit: %v", ErrTransport, err)
	}
	return FlushSent, nil
}

func (o *outputBuffer) onTransmitComplete() {
	o.inFlight.Store(false)
}
