// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cli

import "fmt"

// Severity selects the decoration of a message
type Severity uint8

const (
	// SeverityRaw is sent as is
	SeverityRaw Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
	// SeverityDebug is dropped unless built with -tags clidebug
	SeverityDebug
)

const messageSuffix = "\n\r"

var severityPrefix = [...]string{
	SeverityRaw:   "",
	SeverityInfo:  "[INFO] ",
	SeverityWarn:  "[WARN] ",
	SeverityError: "[ERROR] ",
	SeverityDebug: "[DEBUG] ",
}

func (sev Severity) String() string {
	switch sev {
	case SeverityRaw:
		return "raw"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	case SeverityDebug:
		return "debug"
	default:
		return fmt.Sprintf("severity(%d)", uint8(sev))
	}
}

// Print queues msg with the prefix and line ending of sev. A message that
// does not fit is rejected whole with ErrBufferFull.
func (s *Session) Print(sev Severity, msg string) error {
	return emit(s, sev, msg)
}

// Info prints an informational message
func (s *Session) Info(msg string) error { return emit(s, SeverityInfo, msg) }

// Warn prints a warning
func (s *Session) Warn(msg string) error { return emit(s, SeverityWarn, msg) }

// Error prints an error message
func (s *Session) Error(msg string) error { return emit(s, SeverityError, msg) }

// Debug prints a debug message in clidebug builds
func (s *Session) Debug(msg string) error { return emit(s, SeverityDebug, msg) }

func emit[T string | []byte](s *Session, sev Severity, msg T) error {
	if sev == SeverityDebug && !debugMessages {
		return nil
	}
	if int(sev) >= len(severityPrefix) {
		return fmt.Errorf("cli: unknown severity %d", uint8(sev))
	}
	if sev == SeverityRaw {
		return appendOut(&s.out, msg)
	}

	prefix := severityPrefix[sev]
	if !s.out.fits(len(prefix) + len(msg) + len(messageSuffix)) {
		return ErrBufferFull
	}
	_ = appendOut(&s.out, prefix)
	_ = appendOut(&s.out, msg)
	_ = appendOut(&s.out, messageSuffix)
	return nil
}

// appendClipped appends as much of p as the capacity of b allows
func appendClipped[T string | []byte](b []byte, p T) []byte {
	n := copy(b[len(b):cap(b)], p)
	return b[:len(b)+n]
}

// printQuoted prints before, name and after as one message assembled in
// the scratch buffer
func (s *Session) printQuoted(sev Severity, before string, name []byte, after string) error {
	b := appendClipped(s.msgBuf[:0], before)
	b = appendClipped(b, name)
	b = appendClipped(b, after)
	return emit(s, sev, b)
}

// putStrings queues each part in turn
func (s *Session) putStrings(parts ...string) {
	for _, p := range parts {
		_ = appendOut(&s.out, p)
	}
}

// putPadded queues text left-aligned in a field of width bytes
func (s *Session) putPadded(text string, width int) {
	_ = appendOut(&s.out, text)
	for i := len(text); i < width; i++ {
		_ = s.out.appendByte(' ')
	}
}

const truncatedNotice = "[WARN] Output truncated" + messageSuffix

// holdNotice keeps room for the truncation notice while a command writes.
// It reports false when the buffer cannot take the notice at all or a hold
// is already active.
func (s *Session) holdNotice() bool {
	need := len(SeqNormal) + len(truncatedNotice)
	if s.out.reserved > 0 || !s.out.fits(need) {
		return false
	}
	s.out.reserved = need
	return true
}

// releaseNotice ends a hold. If a write was refused the terminal attributes
// are reset, the notice is queued in the held room and ErrBufferFull
// replaces a nil err.
func (s *Session) releaseNotice(held bool, err error) error {
	if !held {
		return err
	}
	s.out.reserved = 0
	if !s.out.dropped {
		return err
	}
	s.out.dropped = false
	s.ctrl(ctrlNormal)
	_ = appendOut(&s.out, truncatedNotice)
	if err == nil {
		err = ErrBufferFull
	}
	return err
}

// Write queues p unchanged. It implements io.Writer for handlers that
// format with fmt.Fprintf.
func (s *Session) Write(p []byte) (int, error) {
	if err := appendOut(&s.out, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// PutChar queues a single byte
func (s *Session) PutChar(c byte) error {
	return s.out.appendByte(c)
}

// PutString queues str unchanged
func (s *Session) PutString(str string) error {
	return appendOut(&s.out, str)
}

// FreeMessageSpace returns how many bytes can still be queued before the
// next flush
func (s *Session) FreeMessageSpace() int {
	return s.out.free()
}
