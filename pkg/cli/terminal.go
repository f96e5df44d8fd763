// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cli

// Input control codes
const (
	keyCtrlA = 0x01
	keyCtrlB = 0x02
	keyCtrlC = 0x03
	keyCtrlE = 0x05
	keyCtrlF = 0x06
	keyCtrlH = 0x08
	keyLF    = 0x0A
	keyCtrlK = 0x0B
	keyCtrlL = 0x0C
	keyCR    = 0x0D
	keyCtrlN = 0x0E
	keyCtrlP = 0x10
	keyEsc   = 0x1B
	keyDEL   = 0x7F
)

// VT100 output sequences
const (
	SeqBold          = "\x1b[1m"
	SeqNormal        = "\x1b[0m"
	SeqClearScreen   = "\x1b[2J\x1b[H"
	SeqKillLine      = "\x1b[K"
	SeqCursorLeft    = "\x1b[1D"
	SeqCursorRight   = "\x1b[1C"
	SeqSaveCursor    = "\x1b7"
	SeqRestoreCursor = "\x1b8"
	SeqNewline       = "\r\n"
)

type ctrlSeq int

const (
	ctrlCR ctrlSeq = iota
	ctrlNewline
	ctrlBell
	ctrlBold
	ctrlNormal
	ctrlClearScreen
	ctrlKill
	ctrlPrev
	ctrlNext
	ctrlSave
	ctrlRestore
)

var ctrlSeqs = [...]string{
	ctrlCR:          "\r",
	ctrlNewline:     SeqNewline,
	ctrlBell:        "\a",
	ctrlBold:        SeqBold,
	ctrlNormal:      SeqNormal,
	ctrlClearScreen: SeqClearScreen,
	ctrlKill:        SeqKillLine,
	ctrlPrev:        SeqCursorLeft,
	ctrlNext:        SeqCursorRight,
	ctrlSave:        SeqSaveCursor,
	ctrlRestore:     SeqRestoreCursor,
}

func isControl(c byte) bool {
	return c < 0x20 || c == keyDEL
}

// ctrl emits a terminal control sequence. Nothing is sent while control
// output is disabled; everything but CR and CRLF also needs echo.
func (s *Session) ctrl(id ctrlSeq) {
	if !s.ctrlChars {
		return
	}
	if id != ctrlCR && id != ctrlNewline && !s.echo {
		return
	}
	_ = appendOut(&s.out, ctrlSeqs[id])
}

func (s *Session) putBold(text string) {
	s.ctrl(ctrlBold)
	_ = appendOut(&s.out, text)
	s.ctrl(ctrlNormal)
}

// displayPromptText writes CR and the bold prompt
func (s *Session) displayPromptText() {
	if !s.ctrlChars {
		return
	}
	s.ctrl(ctrlCR)
	s.putBold(s.cfg.Prompt)
}
