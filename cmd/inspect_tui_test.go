// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/Thermoquad/kiln/pkg/nvm"
	tea "github.com/charmbracelet/bubbletea"
)

func newTestInspectModel(t *testing.T) *inspectModel {
	t.Helper()
	useDefaultConfig(t)
	m, err := newInspectModel(newTestController(nvm.NewMemDevice(int(cfg.NVM.Size))))
	if err != nil {
		t.Fatalf("newInspectModel: %v", err)
	}
	return m
}

func typeKeys(m *inspectModel, text string) {
	for _, r := range text {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

// ============================================================
// Key Translation
// ============================================================

func TestKeyBytes(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
		want []byte
	}{
		{"rune", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")}, []byte("a")},
		{"space", tea.KeyMsg{Type: tea.KeySpace}, []byte(" ")},
		{"enter", tea.KeyMsg{Type: tea.KeyEnter}, []byte{'\r'}},
		{"backspace", tea.KeyMsg{Type: tea.KeyBackspace}, []byte{0x7F}},
		{"ctrl+a", tea.KeyMsg{Type: tea.KeyCtrlA}, []byte{0x01}},
		{"up", tea.KeyMsg{Type: tea.KeyUp}, []byte("\x1b[A")},
		{"left", tea.KeyMsg{Type: tea.KeyLeft}, []byte("\x1b[D")},
		{"home", tea.KeyMsg{Type: tea.KeyHome}, []byte("\x1b[1~")},
		{"end", tea.KeyMsg{Type: tea.KeyEnd}, []byte("\x1b[4~")},
		{"f1", tea.KeyMsg{Type: tea.KeyF1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := keyBytes(tt.key); !bytes.Equal(got, tt.want) {
				t.Errorf("keyBytes = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuoteBytes(t *testing.T) {
	if got := quoteBytes([]byte("a\r\n"), 8); got != `"a\r\n"` {
		t.Errorf("short = %s", got)
	}
	if got := quoteBytes([]byte("abcdef"), 3); got != `"abc"...` {
		t.Errorf("cut = %s", got)
	}
}

// ============================================================
// Inspector Model
// ============================================================

func TestInspect_TypedCommandRuns(t *testing.T) {
	m := newTestInspectModel(t)

	if got := m.screen.Line(0); got != strings.TrimRight(cfg.Prompt, " ") {
		t.Fatalf("first row = %q, want prompt", got)
	}

	typeKeys(m, "status")
	if st := m.session.State(); st.Line != "status" || st.Cursor != 6 {
		t.Errorf("state = %+v", st)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if !strings.Contains(m.screen.String(), "temperature 21.0 C") {
		t.Errorf("screen:\n%s", m.screen.String())
	}
	if got := m.session.Stats().LinesDispatched; got != 1 {
		t.Errorf("LinesDispatched = %d, want 1", got)
	}
	if h := m.session.State().History; len(h) != 1 || h[0] != "status" {
		t.Errorf("History = %q", h)
	}
	if !strings.Contains(m.View(), "KILN - SHELL INSPECTOR") {
		t.Error("view has no title")
	}
}

func TestInspect_EditingKeys(t *testing.T) {
	m := newTestInspectModel(t)

	typeKeys(m, "fam")
	m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	typeKeys(m, "n 40")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.Contains(m.screen.String(), "[INFO] fan 40 %") {
		t.Errorf("screen:\n%s", m.screen.String())
	}

	// Up recalls the previous line
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if st := m.session.State(); st.Line != "fan 40" {
		t.Errorf("recalled %q", st.Line)
	}
}

func TestInspect_ExitQuits(t *testing.T) {
	m := newTestInspectModel(t)

	typeKeys(m, "exit")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.quitting || cmd == nil {
		t.Fatalf("quitting = %v, cmd = %v", m.quitting, cmd)
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("exit did not quit the program")
	}
}

// ============================================================
// Console
// ============================================================

// chunkReader returns one chunk per Read
type chunkReader struct{ chunks [][]byte }

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("line down") }

func TestForwardKeys(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   string
	}{
		{"until eof", []string{"ab", "c\r"}, "abc\r"},
		{"stops at escape", []string{"ab", "c\x1dzz", "more"}, "abc"},
		{"escape first", []string{"\x1d"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &chunkReader{}
			for _, c := range tt.chunks {
				src.chunks = append(src.chunks, []byte(c))
			}
			var dst bytes.Buffer
			if err := forwardKeys(&dst, src); err != nil {
				t.Fatalf("forwardKeys: %v", err)
			}
			if dst.String() != tt.want {
				t.Errorf("forwarded %q, want %q", dst.String(), tt.want)
			}
		})
	}

	err := forwardKeys(failWriter{}, &chunkReader{chunks: [][]byte{[]byte("x")}})
	if err == nil {
		t.Error("write failure not reported")
	}
}
