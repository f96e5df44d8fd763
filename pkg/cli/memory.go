// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cli

import (
	"fmt"

	"github.com/Thermoquad/kiln/pkg/history"
)

// Default sizes
const (
	DefaultRxBufferSize     = 256
	DefaultOutputBufferSize = 10 * 1024
	DefaultMaxLineLength    = 128
	DefaultMaxParams        = 8
	DefaultMessageSize      = 512
	DefaultPrompt           = "> "
)

// Options fixes the dimensions of a session. They decide how much state
// and scratch memory Create needs.
type Options struct {
	RxBufferSize     int // receive ring capacity
	OutputBufferSize int // size of each half of the output buffer
	MaxLineLength    int // edit line size, including one reserved byte
	MaxParams        int // argument slots per command
	HistoryDepth     int // remembered command lines
	MessageSize      int // formatted message staging
}

// DefaultOptions returns the stock dimensions
func DefaultOptions() Options {
	return Options{
		RxBufferSize:     DefaultRxBufferSize,
		OutputBufferSize: DefaultOutputBufferSize,
		MaxLineLength:    DefaultMaxLineLength,
		MaxParams:        DefaultMaxParams,
		HistoryDepth:     history.DefaultDepth,
		MessageSize:      DefaultMessageSize,
	}
}

func (o Options) validate() error {
	switch {
	case o.RxBufferSize < 1:
		return fmt.Errorf("%w: rx buffer size %d", ErrInvalidOptions, o.RxBufferSize)
	case o.OutputBufferSize < 2:
		return fmt.Errorf("%w: output buffer size %d", ErrInvalidOptions, o.OutputBufferSize)
	case o.MaxLineLength < 2:
		return fmt.Errorf("%w: max line length %d", ErrInvalidOptions, o.MaxLineLength)
	case o.MaxParams < 1:
		return fmt.Errorf("%w: max params %d", ErrInvalidOptions, o.MaxParams)
	case o.HistoryDepth < 1:
		return fmt.Errorf("%w: history depth %d", ErrInvalidOptions, o.HistoryDepth)
	case o.MessageSize < 1:
		return fmt.Errorf("%w: message size %d", ErrInvalidOptions, o.MessageSize)
	}
	return nil
}

// RequiredStateMemory returns the size of the state region for opts
func RequiredStateMemory(opts Options) int {
	return 1 + // receive slot
		opts.RxBufferSize +
		2*opts.OutputBufferSize +
		opts.MaxLineLength +
		history.StorageSize(opts.HistoryDepth, opts.MaxLineLength)
}

// RequiredScratchMemory returns the size of the scratch region for opts
func RequiredScratchMemory(opts Options) int {
	return opts.MaxLineLength + opts.MessageSize
}

// region hands out consecutive, capacity-limited pieces of a buffer
type region []byte

func (r *region) take(n int) []byte {
	b := (*r)[:n:n]
	*r = (*r)[n:]
	return b
}
