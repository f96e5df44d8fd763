// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cli

import (
	"errors"
	"strconv"
	"strings"
)

const (
	// commandDelims separate the command name and numeric arguments
	commandDelims = " ,;\t"
	// stringDelims separate string arguments; commas stay in the value
	stringDelims = " \t"
)

// Kind identifies the type held by a Value
type Kind uint8

const (
	KindNone Kind = iota
	KindString
	KindChar
	KindFloat
	KindInt
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindChar:
		return "char"
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	default:
		return "none"
	}
}

// Value is one parsed positional argument
type Value struct {
	kind Kind
	s    []byte
	c    byte
	f    float64
	i    int64
}

// Kind returns the parsed type
func (v Value) Kind() Kind { return v.kind }

// Bytes returns a string argument without copying. The slice is only
// valid during the handler call.
func (v Value) Bytes() []byte { return v.s }

// Char returns a char argument
func (v Value) Char() byte { return v.c }

// Float returns a float argument
func (v Value) Float() float64 { return v.f }

// Int returns an integer argument
func (v Value) Int() int64 { return v.i }

// String formats the value whatever its kind
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return string(v.s)
	case KindChar:
		return string(rune(v.c))
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	default:
		return ""
	}
}

// Choice returns the index of the first choice the value names, ignoring
// ASCII case, or -1. A char value matches one byte choices only.
func (v Value) Choice(choices ...string) int {
	for i, c := range choices {
		switch v.kind {
		case KindString:
			if equalFoldASCII(v.s, c) {
				return i
			}
		case KindChar:
			if len(c) == 1 && lowerASCII(c[0]) == lowerASCII(v.c) {
				return i
			}
		}
	}
	return -1
}

func lowerASCII(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

func equalFoldASCII(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := range b {
		if lowerASCII(b[i]) != lowerASCII(s[i]) {
			return false
		}
	}
	return true
}

// Args holds the arguments parsed for one dispatch. Missing trailing
// arguments are not an error; check Len.
type Args struct {
	n int
	v []Value
}

func newArgs(max int) Args {
	return Args{v: make([]Value, max)}
}

// Len returns the number of arguments that were supplied
func (a *Args) Len() int { return a.n }

// At returns argument i, or the zero Value when it was not supplied
func (a *Args) At(i int) Value {
	if i < 0 || i >= a.n {
		return Value{}
	}
	return a.v[i]
}

func (a *Args) reset() {
	a.n = 0
	for i := range a.v {
		a.v[i] = Value{}
	}
}

var (
	errTooManyParams = errors.New("parameter pattern longer than argument slots")
	errBadArgument   = errors.New("argument conversion failed")
	errBadPattern    = errors.New("unknown parameter type")
)

// tokenizer walks a command line like strtok: leading delimiters are
// skipped and the delimiter ending a token is consumed with it
type tokenizer struct {
	rest []byte
}

func (t *tokenizer) next(delims string) []byte {
	i := 0
	for i < len(t.rest) && strings.IndexByte(delims, t.rest[i]) >= 0 {
		i++
	}
	if i == len(t.rest) {
		t.rest = nil
		return nil
	}
	start := i
	for i < len(t.rest) && strings.IndexByte(delims, t.rest[i]) < 0 {
		i++
	}
	tok := t.rest[start:i]
	if i < len(t.rest) {
		i++
	}
	t.rest = t.rest[i:]
	return tok
}

// nextString returns the next string argument. A token opening with a
// single or double quote runs to the matching quote and may contain
// delimiters; an unterminated quote runs to the end of the line.
func (t *tokenizer) nextString() []byte {
	i := 0
	for i < len(t.rest) && strings.IndexByte(stringDelims, t.rest[i]) >= 0 {
		i++
	}
	if i == len(t.rest) {
		t.rest = nil
		return nil
	}

	q := t.rest[i]
	if q != '"' && q != '\'' {
		t.rest = t.rest[i:]
		return t.next(stringDelims)
	}

	start := i + 1
	end := start
	for end < len(t.rest) && t.rest[end] != q {
		end++
	}
	tok := t.rest[start:end]
	if end < len(t.rest) {
		end++
	}
	t.rest = t.rest[end:]
	return tok
}

// scanArgs fills a from the remaining tokens according to pattern
func scanArgs(a *Args, tok *tokenizer, pattern string) error {
	if len(pattern) > len(a.v) {
		return errTooManyParams
	}
	for i := 0; i < len(pattern); i++ {
		var raw []byte
		if p := pattern[i]; p == 's' || p == 'S' {
			raw = tok.nextString()
		} else {
			raw = tok.next(commandDelims)
		}
		if raw == nil {
			continue
		}

		v := &a.v[i]
		switch pattern[i] {
		case 's', 'S':
			v.kind, v.s = KindString, raw
		case 'f', 'F':
			f, err := strconv.ParseFloat(string(raw), 64)
			if err != nil {
				return errBadArgument
			}
			v.kind, v.f = KindFloat, f
		case 'd', 'D', 'x', 'X':
			n, err := strconv.ParseInt(string(raw), 0, 64)
			if err != nil {
				return errBadArgument
			}
			v.kind, v.i = KindInt, n
		case 'c', 'C':
			v.kind, v.c = KindChar, raw[0]
		default:
			return errBadPattern
		}
		a.n = i + 1
	}
	return nil
}

// validPattern reports whether every pattern character is a known type
func validPattern(pattern string) bool {
	for i := 0; i < len(pattern); i++ {
		if strings.IndexByte("sSfFdDxXcC", pattern[i]) < 0 {
			return false
		}
	}
	return true
}
