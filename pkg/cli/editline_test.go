// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cli

import (
	"math/rand"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

const prompt = "> "

// both runs fn once with the input pasted and once typed key by key
func both(t *testing.T, fn func(t *testing.T, deliver func(r *rig, input string) error)) {
	t.Run("paste", func(t *testing.T) {
		fn(t, (*rig).paste)
	})
	t.Run("keys", func(t *testing.T) {
		fn(t, (*rig).typeKeys)
	})
}

// ============================================================
// Insertion and Deletion
// ============================================================

func TestEdit_BackspaceThenType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"hello\b\bp", "help"},
		{"hello\b\b\bp", "hep"},
		{"hello\x7f\x7fp", "help"},
		{"\b\bab", "ab"},
	}
	for _, tt := range tests {
		t.Run(strconv.Quote(tt.input), func(t *testing.T) {
			both(t, func(t *testing.T, deliver func(*rig, string) error) {
				r := newRig(t, Config{})
				_ = deliver(r, tt.input)
				if got := r.s.State().Line; got != tt.want {
					t.Errorf("line = %q, want %q", got, tt.want)
				}
				r.wantLine(0, prompt)
			})
		})
	}
}

func TestEdit_InsertMidLine(t *testing.T) {
	both(t, func(t *testing.T, deliver func(*rig, string) error) {
		r := newRig(t, Config{})
		_ = deliver(r, "hlp\x02\x02e")
		st := r.s.State()
		if st.Line != "help" || st.Cursor != 2 {
			t.Errorf("line = %q cursor %d, want %q cursor 2", st.Line, st.Cursor, "help")
		}
		r.wantLine(0, prompt)
	})
}

func TestEdit_PendingEchoIsDeferred(t *testing.T) {
	r := newRig(t, Config{})
	r.feed("ab")

	// One byte is still queued, so nothing is echoed yet
	c, _ := r.s.rx.ReadByte()
	r.s.processByte(c)
	if st := r.s.State(); st.Pending != 1 || r.s.out.stored != 0 {
		t.Fatalf("pending = %d stored = %d, want 1 and 0", st.Pending, r.s.out.stored)
	}

	c, _ = r.s.rx.ReadByte()
	r.s.processByte(c)
	if st := r.s.State(); st.Pending != 0 || string(r.s.out.pending()) != "ab" {
		t.Errorf("pending = %d output %q, want 0 and %q", st.Pending, r.s.out.pending(), "ab")
	}
}

func TestEdit_KillToEnd(t *testing.T) {
	both(t, func(t *testing.T, deliver func(*rig, string) error) {
		r := newRig(t, Config{})
		_ = deliver(r, "status\x02\x02\x02\x0b")
		if got := r.s.State().Line; got != "sta" {
			t.Errorf("line = %q, want %q", got, "sta")
		}
		r.wantLine(0, prompt)
	})
}

func TestEdit_HomeEndKeys(t *testing.T) {
	both(t, func(t *testing.T, deliver func(*rig, string) error) {
		r := newRig(t, Config{})
		_ = deliver(r, "bc\x01a\x05d")
		if got := r.s.State().Line; got != "abcd" {
			t.Errorf("line = %q, want %q", got, "abcd")
		}
		r.wantLine(0, prompt)
	})
}

func TestEdit_CursorStopsAtEdges(t *testing.T) {
	r := newRig(t, Config{})
	_ = r.paste("ab\x06\x06\x02\x02\x02\x02")
	st := r.s.State()
	if st.Cursor != 0 {
		t.Errorf("cursor = %d, want 0", st.Cursor)
	}
	r.wantLine(0, prompt)
}

func TestEdit_FullLineDropsLastByte(t *testing.T) {
	opts := testOptions()
	opts.MaxLineLength = 6
	r := newRigWithOptions(t, Config{}, opts)

	_ = r.paste("abcdefg")
	if got := r.s.State().Line; got != "abcde" {
		t.Fatalf("line = %q, want %q", got, "abcde")
	}

	_ = r.paste("\x01X")
	if got := r.s.State().Line; got != "Xabcd" {
		t.Errorf("line = %q, want %q", got, "Xabcd")
	}
	r.wantLine(0, prompt)
}

// ============================================================
// Escape Sequences
// ============================================================

func TestEdit_ArrowKeys(t *testing.T) {
	both(t, func(t *testing.T, deliver func(*rig, string) error) {
		r := newRig(t, Config{})
		_ = deliver(r, "abc\x1b[D\x1b[DX\x1b[CY")
		if got := r.s.State().Line; got != "aXbYc" {
			t.Errorf("line = %q, want %q", got, "aXbYc")
		}
		r.wantLine(0, prompt)
	})
}

func TestEdit_HomeEndSequences(t *testing.T) {
	both(t, func(t *testing.T, deliver func(*rig, string) error) {
		r := newRig(t, Config{})
		_ = deliver(r, "mid\x1b[1~<\x1b[4~>")
		if got := r.s.State().Line; got != "<mid>" {
			t.Errorf("line = %q, want %q", got, "<mid>")
		}
		r.wantLine(0, prompt)
	})
}

func TestEdit_EscapeStates(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "idle"},
		{"\x1b", "esc"},
		{"\x1b[", "esc["},
		{"\x1b[1", "esc[n"},
		{"\x1b[1~", "idle"},
		{"\x1bx", "idle"},
		{"\x1b[9", "esc[n"},
	}
	for _, tt := range tests {
		t.Run(strconv.Quote(tt.input), func(t *testing.T) {
			r := newRig(t, Config{})
			_ = r.paste(tt.input)
			if got := r.s.State().Escape; got != tt.want {
				t.Errorf("escape state = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEdit_FinalByteIsSwallowed(t *testing.T) {
	r := newRig(t, Config{})
	_ = r.paste("ab\x1b[1zc")
	if got := r.s.State().Line; got != "cab" {
		t.Errorf("line = %q, want %q", got, "cab")
	}
}

func TestEdit_UnknownEscapeDropsNextByte(t *testing.T) {
	r := newRig(t, Config{})
	_ = r.paste("a\x1bOb")
	if got := r.s.State().Line; got != "ab" {
		t.Errorf("line = %q, want %q", got, "ab")
	}
}

// ============================================================
// History Recall
// ============================================================

func TestEdit_HistoryRecall(t *testing.T) {
	r := newRig(t, Config{})
	_ = r.typeKeys("one\r")
	_ = r.typeKeys("two\r")

	steps := []struct {
		key  string
		want string
	}{
		{"\x1b[A", "two"},
		{"\x1b[A", "one"},
		{"\x1b[A", "one"},
		{"\x1b[B", "two"},
		{"\x1b[B", ""},
		{"\x1b[A", "two"},
	}
	for i, step := range steps {
		_ = r.typeKeys(step.key)
		if got := r.s.State().Line; got != step.want {
			t.Fatalf("step %d: line = %q, want %q", i, got, step.want)
		}
		row, _ := r.screen.Cursor()
		r.wantLine(row, prompt)
	}
}

func TestEdit_RecalledLineIsEditable(t *testing.T) {
	r := newRig(t, Config{})
	_ = r.typeKeys("led 1 on\r")
	_ = r.typeKeys("\x1b[A\bff")
	if got := r.s.State().Line; got != "led 1 off" {
		t.Errorf("line = %q, want %q", got, "led 1 off")
	}
	row, _ := r.screen.Cursor()
	r.wantLine(row, prompt)
}

func TestEdit_EnterStoresTrimmedHistory(t *testing.T) {
	r := newRig(t, Config{})
	_ = r.paste("  reboot  \r")
	_ = r.paste("\r")
	hist := r.s.State().History
	if len(hist) != 1 || hist[0] != "reboot" {
		t.Errorf("history = %q, want [reboot]", hist)
	}
}

// ============================================================
// Line Control
// ============================================================

func TestEdit_CtrlCAbandonsLine(t *testing.T) {
	rec := &recorder{}
	r := newRig(t, Config{Commands: Table{{Name: "abc", Handler: rec}}})
	_ = r.paste("abc\x03")

	if len(rec.calls) != 0 {
		t.Errorf("handler ran %d times after ^C", len(rec.calls))
	}
	if got := r.s.State().Line; got != "" {
		t.Errorf("line = %q, want empty", got)
	}
	if hist := r.s.State().History; len(hist) != 0 {
		t.Errorf("history = %q, want empty", hist)
	}
	if got := r.screen.Line(1); got != ">" {
		t.Errorf("row 1 = %q, want a fresh prompt", got)
	}
}

func TestEdit_CtrlLRedrawsPrompt(t *testing.T) {
	r := newRig(t, Config{})
	_ = r.paste("garbage\x0c")
	if got := r.s.State().Line; got != "" {
		t.Errorf("line = %q, want empty", got)
	}
	r.wantLine(0, prompt)
}

func TestEdit_UnknownControlRingsBell(t *testing.T) {
	r := newRig(t, Config{})
	_ = r.paste("a\x07\x12b")
	if r.screen.Bells() != 2 {
		t.Errorf("bells = %d, want 2", r.screen.Bells())
	}
	if got := r.s.State().Line; got != "ab" {
		t.Errorf("line = %q, want %q", got, "ab")
	}
}

func TestEdit_TypingFlag(t *testing.T) {
	r := newRig(t, Config{})
	if r.s.UserIsTyping() {
		t.Fatal("typing before any input")
	}
	_ = r.paste("x")
	if !r.s.UserIsTyping() {
		t.Error("not typing after a key")
	}
	_ = r.paste("\r")
	if r.s.UserIsTyping() {
		t.Error("still typing after enter")
	}
}

// ============================================================
// Screen Consistency Fuzzing
// ============================================================

func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 200
}

func newFuzzRng(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if s, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

var fuzzKeys = []string{
	"\x01", "\x05", "\x02", "\x06", "\x0b", "\b", "\x7f", "\x0c",
	"\x1b[C", "\x1b[D", "\x1b[1~", "\x1b[4~",
}

func randomEdits(rng *rand.Rand, n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if rng.Intn(3) == 0 {
			sb.WriteString(fuzzKeys[rng.Intn(len(fuzzKeys))])
			continue
		}
		sb.WriteByte(byte('a' + rng.Intn(26)))
	}
	return sb.String()
}

// TestFuzz_ScreenMatchesLine applies random edits and checks that the
// terminal always shows the logical line with the cursor in place
func TestFuzz_ScreenMatchesLine(t *testing.T) {
	rng := newFuzzRng(t)
	opts := testOptions()
	opts.OutputBufferSize = 16 * 1024
	opts.RxBufferSize = 256
	r := newRigWithOptions(t, Config{}, opts)

	for round := 0; round < getFuzzRounds(); round++ {
		edits := randomEdits(rng, 1+rng.Intn(24))
		if rng.Intn(2) == 0 {
			_ = r.paste(edits)
		} else {
			_ = r.typeKeys(edits)
		}

		st := r.s.State()
		if got, want := r.screen.Line(0), strings.TrimRight(prompt+st.Line, " "); got != want {
			t.Fatalf("round %d after %q: screen %q, want %q", round, edits, got, want)
		}
		if _, col := r.screen.Cursor(); col != len(prompt)+st.Cursor {
			t.Fatalf("round %d after %q: cursor column %d, want %d", round, edits, col, len(prompt)+st.Cursor)
		}
	}
}
