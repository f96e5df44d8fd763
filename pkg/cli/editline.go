// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cli

// Escape decoder states
const (
	escIdle = iota
	escSawEscape
	escSawBracket
	escAwaitingFinal
)

var escStateNames = [...]string{
	escIdle:          "idle",
	escSawEscape:     "esc",
	escSawBracket:    "esc[",
	escAwaitingFinal: "esc[n",
}

// editLine is the line being typed. Bytes in [cur, cur+pending) were
// inserted but not echoed yet; the terminal cursor sits at cur.
type editLine struct {
	buf     []byte
	cur     int
	end     int
	pending int
}

func (l *editLine) reset() {
	l.cur, l.end, l.pending = 0, 0, 0
}

// limit is the largest usable end index
func (l *editLine) limit() int {
	return len(l.buf) - 1
}

func (l *editLine) text() []byte {
	return l.buf[:l.end]
}

// insert places c after the pending span. On a full line the last byte
// falls off; if c itself would be that byte it is dropped.
func (l *editLine) insert(c byte) {
	idx := l.cur + l.pending
	switch {
	case l.end < l.limit():
		copy(l.buf[idx+1:l.end+1], l.buf[idx:l.end])
		l.end++
	case idx < l.limit():
		copy(l.buf[idx+1:l.end], l.buf[idx:l.end-1])
	default:
		return
	}
	l.buf[idx] = c
	l.pending++
}

// processByte runs one input byte through the escape decoder and the
// control table. It reports true once a line is complete.
func (s *Session) processByte(c byte) bool {
	s.typing = true
	if s.deferPrompt {
		s.ctrl(ctrlNewline)
		s.OverwriteLineWithPrompt()
	}

	switch s.esc {
	case escIdle:
		if c == keyEsc {
			s.foldPending()
			s.esc = escSawEscape
			return false
		}
		return s.processChar(c)

	case escSawEscape:
		if c == '[' {
			s.esc = escSawBracket
		} else {
			s.esc = escIdle
		}

	case escSawBracket:
		s.esc = escIdle
		switch c {
		case 'A':
			if cmd, ok := s.hist.ScrollUp(); ok {
				s.fillLine(cmd)
			}
		case 'B':
			if cmd, ok := s.hist.ScrollDown(); ok {
				s.fillLine(cmd)
			} else {
				s.resetLine()
			}
		case 'C':
			s.cursorForward()
		case 'D':
			s.cursorBack()
		case '1':
			s.cursorToStart()
			s.esc = escAwaitingFinal
		case '4':
			s.cursorToEnd()
			s.esc = escAwaitingFinal
		default:
			s.esc = escAwaitingFinal
		}

	default:
		// Only '~' is expected here, but anything resets
		s.esc = escIdle
	}
	return false
}

func (s *Session) processChar(c byte) bool {
	if !isControl(c) {
		s.line.insert(c)
		if s.rx.Available() == 0 {
			s.foldPending()
		}
		return false
	}

	s.foldPending()
	switch c {
	case keyCtrlA:
		s.cursorToStart()
	case keyCtrlE:
		s.cursorToEnd()
	case keyCtrlB, keyCtrlP:
		s.cursorBack()
	case keyCtrlF, keyCtrlN:
		s.cursorForward()
	case keyCtrlK:
		s.killToEnd()
	case keyCtrlH, keyDEL:
		s.deleteBefore()
	case keyCR, keyLF:
		s.hist.Append(s.line.text())
		s.typing = false
		return true
	case keyCtrlL:
		s.resetLine()
	case keyCtrlC:
		s.line.reset()
		s.typing = false
		return true
	default:
		s.ctrl(ctrlBell)
	}
	return false
}

// foldPending echoes the not yet echoed span and redraws whatever follows
// it, leaving the terminal cursor after the span
func (s *Session) foldPending() {
	l := &s.line
	if l.pending == 0 {
		return
	}
	if s.echo {
		_ = appendOut(&s.out, l.buf[l.cur:l.cur+l.pending])
	}
	l.cur += l.pending
	l.pending = 0

	if l.cur < l.end && s.echo {
		s.ctrl(ctrlSave)
		_ = appendOut(&s.out, l.buf[l.cur:l.end])
		s.ctrl(ctrlRestore)
	}
}

func (s *Session) cursorBack() {
	if s.line.cur > 0 {
		s.line.cur--
		s.ctrl(ctrlPrev)
	}
}

func (s *Session) cursorForward() {
	if s.line.cur < s.line.end {
		s.line.cur++
		s.ctrl(ctrlNext)
	}
}

func (s *Session) cursorToStart() {
	for i := s.line.cur; i > 0; i-- {
		s.ctrl(ctrlPrev)
	}
	s.line.cur = 0
}

func (s *Session) cursorToEnd() {
	for i := s.line.cur; i < s.line.end; i++ {
		s.ctrl(ctrlNext)
	}
	s.line.cur = s.line.end
}

func (s *Session) killToEnd() {
	s.ctrl(ctrlKill)
	s.line.end = s.line.cur
}

// deleteBefore removes the byte left of the cursor and repaints the tail,
// blanking the column that became free
func (s *Session) deleteBefore() {
	l := &s.line
	if l.cur == 0 {
		return
	}
	l.cur--
	s.ctrl(ctrlPrev)
	s.ctrl(ctrlSave)
	copy(l.buf[l.cur:l.end-1], l.buf[l.cur+1:l.end])
	l.end--
	if s.echo {
		_ = appendOut(&s.out, l.buf[l.cur:l.end])
		_ = s.out.appendByte(' ')
	}
	s.ctrl(ctrlRestore)
}

// resetLine empties the line and repaints a bare prompt
func (s *Session) resetLine() {
	s.line.reset()
	s.ctrl(ctrlCR)
	s.ctrl(ctrlKill)
	s.displayPromptText()
}

// fillLine replaces the line with a recalled command, cursor at the end
func (s *Session) fillLine(cmd []byte) {
	s.resetLine()
	l := &s.line
	if len(cmd) > l.limit() {
		cmd = cmd[:l.limit()]
	}
	l.end = copy(l.buf, cmd)
	l.cur = l.end
	if s.echo {
		_ = appendOut(&s.out, l.buf[:l.end])
	}
}

// clearLine forgets the line and returns the terminal cursor to column 0
func (s *Session) clearLine() {
	s.line.reset()
	s.ctrl(ctrlCR)
}
