// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package circbuf implements a fixed-capacity byte FIFO shared between one
// producer and one consumer without locks.
//
// The producer (typically a transport completion callback) calls Write or
// WriteByte. The consumer (the foreground loop) calls Read, ReadByte, Peek
// and Skip. Each side stores only its own index, so no further
// synchronization is needed as long as there is exactly one of each.
package circbuf

import (
	"errors"
	"math"
	"sync/atomic"
)

var (
	// ErrFull is returned when a write does not fit in the free space
	ErrFull = errors.New("circbuf: not enough free space")
	// ErrShort is returned when fewer bytes are buffered than requested
	ErrShort = errors.New("circbuf: not enough data")
)

// Buffer is a single-producer/single-consumer ring over a caller supplied
// region. The zero value is not usable; call New.
type Buffer struct {
	base []byte
	size uint32

	// Both indices run over [0, 2*size). Keeping twice the range lets a
	// full buffer (write-read == size) be told apart from an empty one
	// without reserving any bytes.
	read  atomic.Uint32
	write atomic.Uint32
}

// New creates a ring buffer that stores its bytes in base
func New(base []byte) *Buffer {
	if len(base) == 0 || len(base) > math.MaxUint32/2 {
		panic("circbuf: invalid capacity")
	}
	return &Buffer{base: base, size: uint32(len(base))}
}

// Cap returns the capacity in bytes
func (b *Buffer) Cap() uint32 {
	return b.size
}

// Available returns the number of bytes ready to be read
func (b *Buffer) Available() uint32 {
	return b.distance(b.write.Load(), b.read.Load())
}

// Free returns the number of bytes that can be written
func (b *Buffer) Free() uint32 {
	return b.size - b.Available()
}

// IsFull reports whether no more bytes can be written
func (b *Buffer) IsFull() bool {
	return b.Available() == b.size
}

// Write appends all of p, or nothing if p does not fit
func (b *Buffer) Write(p []byte) error {
	w := b.write.Load()
	free := b.size - b.distance(w, b.read.Load())
	if uint32(len(p)) > free {
		return ErrFull
	}
	if len(p) == 0 {
		return nil
	}

	pos := b.offset(w)
	n := copy(b.base[pos:], p)
	copy(b.base, p[n:])

	b.write.Store(b.advance(w, uint32(len(p))))
	return nil
}

// WriteByte appends a single byte
func (b *Buffer) WriteByte(c byte) error {
	w := b.write.Load()
	if b.distance(w, b.read.Load()) == b.size {
		return ErrFull
	}
	b.base[b.offset(w)] = c
	b.write.Store(b.advance(w, 1))
	return nil
}

// Read fills p completely, or returns ErrShort and consumes nothing
func (b *Buffer) Read(p []byte) error {
	r := b.read.Load()
	if err := b.copyOut(p, r); err != nil {
		return err
	}
	b.read.Store(b.advance(r, uint32(len(p))))
	return nil
}

// ReadByte removes and returns the oldest byte
func (b *Buffer) ReadByte() (byte, error) {
	r := b.read.Load()
	if b.distance(b.write.Load(), r) == 0 {
		return 0, ErrShort
	}
	c := b.base[b.offset(r)]
	b.read.Store(b.advance(r, 1))
	return c, nil
}

// Peek copies len(p) bytes without consuming them
func (b *Buffer) Peek(p []byte) error {
	return b.copyOut(p, b.read.Load())
}

// Skip discards up to n bytes and returns how many were dropped
func (b *Buffer) Skip(n uint32) uint32 {
	r := b.read.Load()
	if avail := b.distance(b.write.Load(), r); n > avail {
		n = avail
	}
	b.read.Store(b.advance(r, n))
	return n
}

func (b *Buffer) copyOut(p []byte, r uint32) error {
	if uint32(len(p)) > b.distance(b.write.Load(), r) {
		return ErrShort
	}
	if len(p) == 0 {
		return nil
	}
	pos := b.offset(r)
	n := copy(p, b.base[pos:])
	copy(p[n:], b.base)
	return nil
}

// distance returns w-r over the doubled index range
func (b *Buffer) distance(w, r uint32) uint32 {
	if w >= r {
		return w - r
	}
	return w + 2*b.size - r
}

func (b *Buffer) advance(i, n uint32) uint32 {
	i += n
	if i >= 2*b.size {
		i -= 2 * b.size
	}
	return i
}

func (b *Buffer) offset(i uint32) uint32 {
	if i >= b.size {
		return i - b.size
	}
	return i
}
