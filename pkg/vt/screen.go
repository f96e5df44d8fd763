// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package vt is a small VT100 screen model. It understands the subset of
// control sequences a shell session emits and keeps the resulting text
// grid, so output can be checked as a user would see it.
package vt

import (
	"strings"
)

type parserState int

const (
	stateGround parserState = iota
	stateEscape             // after ESC
	stateCSI                // after ESC [
)

const maxParams = 8

// Screen is a fixed size character grid with a cursor. It implements
// io.Writer and never returns an error.
type Screen struct {
	width, height int
	cells         [][]byte
	bold          [][]bool

	row, col           int
	savedRow, savedCol int
	boldOn             bool
	bells              int

	state  parserState
	params [maxParams]int
	nParam int
}

// New returns a blank screen. Dimensions below 1 are raised to 1.
func New(width, height int) *Screen {
	s := &Screen{width: max(width, 1), height: max(height, 1)}
	s.cells = make([][]byte, s.height)
	s.bold = make([][]bool, s.height)
	for i := range s.cells {
		s.cells[i] = blankRow(s.width)
		s.bold[i] = make([]bool, s.width)
	}
	return s
}

func blankRow(width int) []byte {
	return []byte(strings.Repeat(" ", width))
}

// Write feeds p through the parser
func (s *Screen) Write(p []byte) (int, error) {
	for _, b := range p {
		s.processByte(b)
	}
	return len(p), nil
}

func (s *Screen) processByte(b byte) {
	switch s.state {
	case stateGround:
		s.handleGround(b)
	case stateEscape:
		s.handleEscape(b)
	case stateCSI:
		s.handleCSI(b)
	}
}

func (s *Screen) handleGround(b byte) {
	switch b {
	case 0x1b:
		s.state = stateEscape
	case '\r':
		s.col = 0
	case '\n':
		s.lineFeed()
	case '\a':
		s.bells++
	case '\b':
		if s.col > 0 {
			s.col--
		}
	case '\t':
		s.col = min((s.col/8+1)*8, s.width-1)
	default:
		if b >= 0x20 && b != 0x7f {
			s.put(b)
		}
	}
}

func (s *Screen) handleEscape(b byte) {
	s.state = stateGround
	switch b {
	case '[':
		s.state = stateCSI
		s.nParam = 0
		s.params = [maxParams]int{}
	case '7':
		s.savedRow, s.savedCol = s.row, s.col
	case '8':
		s.row, s.col = s.savedRow, s.savedCol
	case 'c':
		s.Reset()
	}
}

func (s *Screen) handleCSI(b byte) {
	switch {
	case b >= '0' && b <= '9':
		if s.nParam == 0 {
			s.nParam = 1
		}
		if i := s.nParam - 1; i < maxParams {
			s.params[i] = s.params[i]*10 + int(b-'0')
		}
	case b == ';':
		if s.nParam == 0 {
			s.nParam = 1
		}
		s.nParam++
	case b >= 0x40 && b <= 0x7e:
		s.state = stateGround
		s.executeCSI(b)
	}
}

// param returns parameter idx, or def when it is absent or zero
func (s *Screen) param(idx, def int) int {
	if idx >= s.nParam || idx >= maxParams || s.params[idx] == 0 {
		return def
	}
	return s.params[idx]
}

func (s *Screen) executeCSI(final byte) {
	switch final {
	case 'A':
		s.row = max(s.row-s.param(0, 1), 0)
	case 'B':
		s.row = min(s.row+s.param(0, 1), s.height-1)
	case 'C':
		s.col = min(s.col+s.param(0, 1), s.width-1)
	case 'D':
		s.col = max(s.col-s.param(0, 1), 0)
	case 'H', 'f':
		s.row = min(s.param(0, 1), s.height) - 1
		s.col = min(s.param(1, 1), s.width) - 1
	case 'J':
		s.eraseDisplay(s.param(0, 0))
	case 'K':
		s.eraseLine(s.param(0, 0))
	case 'm':
		if s.nParam == 0 {
			s.boldOn = false
		}
		for i := 0; i < s.nParam && i < maxParams; i++ {
			switch s.params[i] {
			case 0:
				s.boldOn = false
			case 1:
				s.boldOn = true
			}
		}
	}
}

func (s *Screen) eraseDisplay(mode int) {
	switch mode {
	case 0:
		s.eraseLine(0)
		for r := s.row + 1; r < s.height; r++ {
			s.clearRow(r)
		}
	case 1:
		s.eraseLine(1)
		for r := 0; r < s.row; r++ {
			s.clearRow(r)
		}
	default:
		for r := range s.cells {
			s.clearRow(r)
		}
	}
}

func (s *Screen) eraseLine(mode int) {
	from, to := s.col, s.width
	switch mode {
	case 1:
		from, to = 0, s.col+1
	case 2:
		from = 0
	}
	for c := from; c < to && c < s.width; c++ {
		s.cells[s.row][c] = ' '
		s.bold[s.row][c] = false
	}
}

func (s *Screen) clearRow(r int) {
	copy(s.cells[r], blankRow(s.width))
	clear(s.bold[r])
}

// put writes b at the cursor, wrapping to the next line at the margin
func (s *Screen) put(b byte) {
	if s.col >= s.width {
		s.col = 0
		s.lineFeed()
	}
	s.cells[s.row][s.col] = b
	s.bold[s.row][s.col] = s.boldOn
	s.col++
}

func (s *Screen) lineFeed() {
	if s.row < s.height-1 {
		s.row++
		return
	}
	first, firstBold := s.cells[0], s.bold[0]
	copy(s.cells, s.cells[1:])
	copy(s.bold, s.bold[1:])
	s.cells[s.height-1], s.bold[s.height-1] = first, firstBold
	s.clearRow(s.height - 1)
}

// Reset blanks the screen and homes the cursor
func (s *Screen) Reset() {
	for r := range s.cells {
		s.clearRow(r)
	}
	s.row, s.col = 0, 0
	s.savedRow, s.savedCol = 0, 0
	s.boldOn = false
	s.state = stateGround
}

// Size returns the screen dimensions
func (s *Screen) Size() (width, height int) {
	return s.width, s.height
}

// Cursor returns the zero based cursor position. The column equals the
// width after a character was written in the last column.
func (s *Screen) Cursor() (row, col int) {
	return s.row, s.col
}

// Bells returns how many BEL characters were received
func (s *Screen) Bells() int {
	return s.bells
}

// Line returns row r without trailing blanks
func (s *Screen) Line(r int) string {
	if r < 0 || r >= s.height {
		return ""
	}
	return strings.TrimRight(string(s.cells[r]), " ")
}

// Lines returns every row without trailing blanks
func (s *Screen) Lines() []string {
	lines := make([]string, s.height)
	for r := range lines {
		lines[r] = s.Line(r)
	}
	return lines
}

// IsBold reports whether the cell at row, col was drawn bold
func (s *Screen) IsBold(row, col int) bool {
	if row < 0 || row >= s.height || col < 0 || col >= s.width {
		return false
	}
	return s.bold[row][col]
}

// String returns the rows joined by newlines, without trailing blank rows
func (s *Screen) String() string {
	lines := s.Lines()
	n := len(lines)
	for n > 0 && lines[n-1] == "" {
		n--
	}
	return strings.Join(lines[:n], "\n")
}
