// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cli

import (
	"errors"
	"fmt"
)

// Configuration errors, returned by Create and Init
var (
	ErrNilMemory                 = errors.New("cli: nil memory region")
	ErrInsufficientStateMemory   = errors.New("cli: insufficient state memory")
	ErrInsufficientScratchMemory = errors.New("cli: insufficient scratch memory")
	ErrInvalidOptions            = errors.New("cli: invalid options")
	ErrNilTransport              = errors.New("cli: nil transport")
	ErrDuplicateCommand          = errors.New("cli: duplicate command name")
	ErrInvalidTable              = errors.New("cli: invalid command table")
	ErrNotInitialized            = errors.New("cli: session not initialized")
	ErrAlreadyInitialized        = errors.New("cli: session already initialized")
)

// ErrTransport wraps failures reported by the injected transport
var ErrTransport = errors.New("cli: communication error")

// ErrBufferFull is returned when output does not fit in the filling buffer.
// Nothing is written in that case.
var ErrBufferFull = errors.New("cli: output buffer full")

// ErrInvalidCommand is returned by Dispatch for unknown commands, malformed
// arguments and handlers that report misuse. The user has already been told
// on the output channel.
var ErrInvalidCommand = errors.New("cli: invalid command")

// Dispatch failures are wrapped once here so reporting them costs nothing
var (
	errCommandNotFound = fmt.Errorf("%w: command not found", ErrInvalidCommand)
	errIncorrectUsage  = fmt.Errorf("%w: incorrect usage", ErrInvalidCommand)
	errNoHelp          = fmt.Errorf("%w: no help for command", ErrInvalidCommand)
)

// ErrTransmissionInProgress is returned by FlushAll when the transmit in
// flight did not complete within the allowed attempts
var ErrTransmissionInProgress = errors.New("cli: transmission in progress")

// ErrExit is returned by Tick and Dispatch after the exit built-in ran
var ErrExit = errors.New("cli: exit requested")

// FlushStatus is the outcome of a flush attempt
type FlushStatus int

const (
	// FlushIdle means there was nothing to send
	FlushIdle FlushStatus = iota
	// FlushSent means the filling buffer was handed to the transport
	FlushSent
	// FlushBusy means a transmit is still in flight; retry later
	FlushBusy
)

func (f FlushStatus) String() string {
	switch f {
	case FlushIdle:
		return "idle"
	case FlushSent:
		return "sent"
	case FlushBusy:
		return "busy"
	default:
		return "unknown"
	}
}
