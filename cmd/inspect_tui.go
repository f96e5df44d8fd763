// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/kiln/pkg/cli"
	"github.com/Thermoquad/kiln/pkg/transport"
	"github.com/Thermoquad/kiln/pkg/vt"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Shell pane dimensions
const (
	shellWidth  = 80
	shellHeight = 20
)

// Event log entry
type inspectLogEntry struct {
	timestamp time.Time
	kind      string
	message   string
	isError   bool
}

// TUI model
type inspectModel struct {
	session *cli.Session
	pipe    *transport.Pipe
	screen  *vt.Screen
	log     viewport.Model

	entries       []inspectLogEntry
	maxLogEntries int
	lastStats     cli.Stats
	width         int
	height        int
	quitting      bool
}

// Messages
type inspectTickMsg time.Time

// screenSink receives the session's transmits
type screenSink struct {
	m *inspectModel
}

func (w screenSink) Write(p []byte) (int, error) {
	w.m.addLog("tx", fmt.Sprintf("%3d bytes %s", len(p), quoteBytes(p, 48)), false)
	return w.m.screen.Write(p)
}

func newInspectModel(ctl *controller) (*inspectModel, error) {
	s, err := newShell()
	if err != nil {
		return nil, err
	}

	m := &inspectModel{
		session:       s,
		screen:        vt.New(shellWidth, shellHeight),
		log:           viewport.New(shellWidth, 8),
		maxLogEntries: 200,
		width:         120,
		height:        40,
	}
	m.pipe = transport.NewPipe(screenSink{m: m})
	m.pipe.Attach(s)

	if err := s.Init(cli.Config{
		Transport: m.pipe,
		Commands:  ctl.commands(),
		Prompt:    cfg.Prompt,
		AllowExit: true,
	}); err != nil {
		return nil, err
	}
	m.pump()
	return m, nil
}

func (m *inspectModel) Init() tea.Cmd {
	return inspectTickCmd()
}

func inspectTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return inspectTickMsg(t)
	})
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+q" {
			m.quitting = true
			return m, tea.Quit
		}
		if b := keyBytes(msg); len(b) > 0 {
			m.feed(b)
		}
		if m.quitting {
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.log.Width = max(msg.Width-4, 20)
		m.log.Height = max(msg.Height-shellHeight-8, 3)

	case inspectTickMsg:
		m.pump()
		if m.quitting {
			return m, tea.Quit
		}
		return m, inspectTickCmd()
	}

	var cmd tea.Cmd
	m.log, cmd = m.log.Update(msg)
	return m, cmd
}

// feed delivers keystroke bytes as receive completions and runs the loop
func (m *inspectModel) feed(b []byte) {
	m.addLog("rx", quoteBytes(b, 48), false)
	if _, err := m.pipe.Feed(b); err != nil {
		m.addLog("rx", err.Error(), true)
	}
	m.pump()
}

// pump ticks the session until it has nothing more to send
func (m *inspectModel) pump() {
	for i := 0; i < 64; i++ {
		err := m.session.Tick()
		switch {
		case errors.Is(err, cli.ErrExit):
			m.quitting = true
		case err != nil:
			m.addLog("tick", err.Error(), true)
		}
		n, err := m.pipe.Complete()
		if err != nil {
			m.addLog("tx", err.Error(), true)
		}
		if n == 0 && m.session.NumCharsWaiting() == 0 {
			break
		}
	}
	m.logStats()
}

// logStats reports counters that moved since the last pump
func (m *inspectModel) logStats() {
	st := m.session.Stats()
	prev := m.lastStats
	m.lastStats = st
	if d := st.LinesDispatched - prev.LinesDispatched; d > 0 {
		m.addLog("cmd", fmt.Sprintf("dispatched %d line(s)", d), false)
	}
	if d := st.CommandsNotFound - prev.CommandsNotFound; d > 0 {
		m.addLog("cmd", "command not found", true)
	}
	if d := st.UsageErrors - prev.UsageErrors; d > 0 {
		m.addLog("cmd", "usage error", true)
	}
	if d := st.RxOverruns - prev.RxOverruns; d > 0 {
		m.addLog("rx", fmt.Sprintf("%d byte(s) lost to overrun", d), true)
	}
}

func (m *inspectModel) addLog(kind, message string, isError bool) {
	m.entries = append(m.entries, inspectLogEntry{
		timestamp: time.Now(),
		kind:      kind,
		message:   message,
		isError:   isError,
	})
	if len(m.entries) > m.maxLogEntries {
		m.entries = m.entries[len(m.entries)-m.maxLogEntries:]
	}
	m.refreshLog()
}

func (m *inspectModel) refreshLog() {
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	var b strings.Builder
	for _, e := range m.entries {
		line := fmt.Sprintf("%-4s %s", e.kind, e.message)
		if e.isError {
			line = errorStyle.Render(line)
		}
		b.WriteString(headerStyle.Render(e.timestamp.Format("15:04:05.000")))
		b.WriteString(" ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	m.log.SetContent(b.String())
	m.log.GotoBottom()
}

// keyBytes translates a key event into what a VT100 terminal would send
func keyBytes(msg tea.KeyMsg) []byte {
	switch msg.Type {
	case tea.KeyRunes:
		return []byte(string(msg.Runes))
	case tea.KeySpace:
		return []byte{' '}
	case tea.KeyUp:
		return []byte("\x1b[A")
	case tea.KeyDown:
		return []byte("\x1b[B")
	case tea.KeyRight:
		return []byte("\x1b[C")
	case tea.KeyLeft:
		return []byte("\x1b[D")
	case tea.KeyHome:
		return []byte("\x1b[1~")
	case tea.KeyEnd:
		return []byte("\x1b[4~")
	}
	// Control keys carry their ASCII code
	if t := int(msg.Type); (t >= 0 && t < 0x20) || t == 0x7F {
		return []byte{byte(t)}
	}
	return nil
}

// quoteBytes renders b as a Go string literal cut to limit bytes
func quoteBytes(b []byte, limit int) string {
	if len(b) > limit {
		return strconv.Quote(string(b[:limit])) + "..."
	}
	return strconv.Quote(string(b))
}

func (m *inspectModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("KILN - SHELL INSPECTOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render("Keys go to the shell | Ctrl+Q to quit | PgUp/PgDn scroll the log"))
	s.WriteString("\n\n")

	shell := boxStyle.Render(m.renderScreen())

	st := m.session.State()
	stats := m.session.Stats()
	row := func(label, value string) string {
		return fmt.Sprintf("%s %s\n", labelStyle.Render(fmt.Sprintf("%-10s", label)), valueStyle.Render(value))
	}
	flag := func(on bool) string {
		if on {
			return "on"
		}
		return "off"
	}

	var panel strings.Builder
	panel.WriteString(row("Line", strconv.Quote(st.Line)))
	panel.WriteString(row("Cursor", fmt.Sprintf("%d (pending %d)", st.Cursor, st.Pending)))
	panel.WriteString(row("Escape", st.Escape))
	panel.WriteString(row("Echo", fmt.Sprintf("%s, controls %s", flag(st.Echo), flag(st.ControlChars))))
	panel.WriteString(row("Typing", flag(st.Typing)))
	panel.WriteString(row("Prompt", map[bool]string{true: "pending", false: "drawn"}[st.PromptPending]))
	panel.WriteString(row("Rx ring", fmt.Sprintf("%d / %d", st.RxAvailable, st.RxCapacity)))
	panel.WriteString(row("Output", fmt.Sprintf("%d / %d", st.OutStored, st.OutCapacity)))
	panel.WriteString(row("In flight", flag(st.InFlight)))
	panel.WriteString("\n")
	panel.WriteString(labelStyle.Render("History"))
	panel.WriteString("\n")
	if len(st.History) == 0 {
		panel.WriteString(headerStyle.Render("  (empty)"))
		panel.WriteString("\n")
	}
	for i, h := range st.History {
		panel.WriteString(fmt.Sprintf("  %s %s\n", headerStyle.Render(strconv.Itoa(i+1)), h))
	}
	panel.WriteString("\n")
	panel.WriteString(row("Lines", strconv.FormatUint(stats.LinesDispatched, 10)))
	panel.WriteString(row("Not found", strconv.FormatUint(stats.CommandsNotFound, 10)))
	panel.WriteString(row("Usage", strconv.FormatUint(stats.UsageErrors, 10)))
	panel.WriteString(row("Overruns", strconv.FormatUint(stats.RxOverruns, 10)))
	panel.WriteString(row("Sent", fmt.Sprintf("%d bytes", stats.BytesSent)))
	if bells := m.screen.Bells(); bells > 0 {
		panel.WriteString(warningStyle.Render(fmt.Sprintf("Bell rung %d time(s)", bells)))
	}

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, shell, " ", boxStyle.Render(panel.String())))
	s.WriteString("\n")
	s.WriteString(labelStyle.Render("Events:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(max(m.width-4, 20)).Render(m.log.View()))
	return s.String()
}

// renderScreen draws the shell pane with bold cells and the cursor
func (m *inspectModel) renderScreen() string {
	boldStyle := lipgloss.NewStyle().Bold(true)
	cursorStyle := lipgloss.NewStyle().Reverse(true)

	curRow, curCol := m.screen.Cursor()
	var b strings.Builder
	for r := 0; r < shellHeight; r++ {
		line := m.screen.Line(r)
		for c := 0; c < shellWidth; c++ {
			ch := " "
			if c < len(line) {
				ch = line[c : c+1]
			}
			switch {
			case r == curRow && c == curCol:
				b.WriteString(cursorStyle.Render(ch))
			case m.screen.IsBold(r, c):
				b.WriteString(boldStyle.Render(ch))
			default:
				b.WriteString(ch)
			}
		}
		if r < shellHeight-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
