// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cli

import (
	"errors"
	"strings"
	"testing"
)

func helpTable() Table {
	return Table{
		{
			Name:        "led",
			Params:      "dd",
			Handler:     &recorder{},
			Summary:     "Set an LED",
			Synopsis:    "<index> <state>",
			Description: "Drives one LED.",
		},
		{Name: "reboot", Handler: &recorder{}, Hidden: true, Summary: "Restart", Synopsis: ""},
		{Name: "version", Handler: &recorder{}, Summary: "Show version"},
		{Name: "expert", Handler: ExpertHelp(), Hidden: true, Params: "s"},
	}
}

// ============================================================
// Command Listing
// ============================================================

func TestHelp_ListsVisibleCommands(t *testing.T) {
	r := newRig(t, Config{Commands: helpTable()})

	out, err := r.dispatch("help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}

	// Column width is the longest name plus one
	for _, want := range []string{
		SeqBold + "\r\n\t COMMANDS  PARAMETERS\r\n" + SeqNormal,
		"\t  led       <index> <state>\r\n",
		"\t  version   \r\n",
		"[INFO] \r\nCommand specific help is displayed with 'help <command>'\n\r",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q\ngot: %q", want, out)
		}
	}
	if strings.Contains(out, "reboot") || strings.Contains(out, "expert") {
		t.Errorf("hidden command listed: %q", out)
	}
}

func TestHelp_ExpertListsHiddenCommands(t *testing.T) {
	r := newRig(t, Config{Commands: helpTable()})

	out, err := r.dispatch("expert")
	if err != nil {
		t.Fatalf("expert: %v", err)
	}
	if !strings.Contains(out, "\t  reboot    \r\n") {
		t.Errorf("hidden command missing: %q", out)
	}
	if strings.Contains(out, "led") {
		t.Errorf("visible command listed by expert help: %q", out)
	}
}

// ============================================================
// Command Detail
// ============================================================

func TestHelp_CommandDetail(t *testing.T) {
	r := newRig(t, Config{Commands: helpTable()})
	if _, err := r.dispatch("echo off off"); err != nil {
		t.Fatalf("echo off off: %v", err)
	}

	out, err := r.dispatch("help LED")
	if err != nil {
		t.Fatalf("help LED: %v", err)
	}
	want := "\tCOMMAND:\r\n" +
		"\t  led - Set an LED\r\n" +
		"\n\tSYNOPSIS:\r\n" +
		"\t  led <index> <state>" +
		"\n\tDESCRIPTION:\r\n" +
		"Drives one LED."
	if out != want {
		t.Errorf("help LED =\n%q\nwant\n%q", out, want)
	}
}

func TestHelp_CommandDetailWithControls(t *testing.T) {
	r := newRig(t, Config{Commands: helpTable()})

	out, _ := r.dispatch("help version")
	want := SeqNewline +
		SeqBold + "\tCOMMAND:\r\n" + SeqNormal +
		"\t  version - Show version\r\n" +
		"\r" +
		SeqBold + "\n\tSYNOPSIS:\r\n" + SeqNormal +
		"\t  version " +
		SeqNewline
	if out != want {
		t.Errorf("help version =\n%q\nwant\n%q", out, want)
	}
}

func TestHelp_Describer(t *testing.T) {
	table := helpTable()
	table[2].Extra = DescriberFunc(func(c Console) {
		_, _ = c.Write([]byte("built 2025"))
	})
	r := newRig(t, Config{Commands: table})

	out, _ := r.dispatch("help version")
	if !strings.Contains(out, "DESCRIPTION:") || !strings.Contains(out, "built 2025") {
		t.Errorf("describer output missing: %q", out)
	}
}

func TestHelp_UnknownCommand(t *testing.T) {
	r := newRig(t, Config{Commands: helpTable()})

	out, err := r.dispatch("help nope")
	if !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("error = %v, want ErrInvalidCommand", err)
	}
	if want := "[WARN] Command 'nope' not found\n\r"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestHelp_TruncationIsReported(t *testing.T) {
	opts := testOptions()
	opts.OutputBufferSize = 96
	r := newRigWithOptions(t, Config{Commands: helpTable()}, opts)

	out, err := r.dispatch("help")
	if !errors.Is(err, ErrBufferFull) {
		t.Errorf("error = %v, want ErrBufferFull", err)
	}
	if !strings.HasPrefix(out, SeqBold+"\r\n\t COMMANDS  PARAMETERS\r\n"+SeqNormal) {
		t.Errorf("listing header missing: %q", out)
	}
	if !strings.HasSuffix(out, SeqNormal+"[WARN] Output truncated\n\r") {
		t.Errorf("no truncation notice: %q", out)
	}
	// Nothing is written after the first refused write
	if strings.Contains(out, "version") || strings.Contains(out, "Command specific help") {
		t.Errorf("output continued past the cut: %q", out)
	}

	if got := r.s.FreeMessageSpace(); got != 95 {
		t.Errorf("FreeMessageSpace after drain = %d, want 95", got)
	}
	if err := r.s.Info("ok"); err != nil {
		t.Errorf("Info after truncation: %v", err)
	}
}

func TestEcho_TruncationIsReported(t *testing.T) {
	opts := testOptions()
	opts.OutputBufferSize = 96
	r := newRigWithOptions(t, Config{}, opts)

	fill := strings.Repeat("x", 60)
	if err := r.s.PutString(fill); err != nil {
		t.Fatalf("PutString: %v", err)
	}
	out, err := r.dispatch("echo")
	if !errors.Is(err, ErrBufferFull) {
		t.Errorf("error = %v, want ErrBufferFull", err)
	}
	if want := fill + SeqNormal + "[WARN] Output truncated\n\r"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestHelp_FitsWithoutNotice(t *testing.T) {
	r := newRig(t, Config{Commands: helpTable()})
	out, err := r.dispatch("help led")
	if err != nil {
		t.Fatalf("help led: %v", err)
	}
	if strings.Contains(out, "truncated") {
		t.Errorf("notice on output that fits: %q", out)
	}
}

// ============================================================
// Echo and Exit
// ============================================================

func TestEcho_OffStopsEcho(t *testing.T) {
	r := newRig(t, Config{})
	if _, err := r.dispatch("echo off"); err != nil {
		t.Fatalf("echo off: %v", err)
	}

	_ = r.paste("secret")
	if out := r.take(); out != "" {
		t.Errorf("typed text echoed: %q", out)
	}
	if got := r.s.State().Line; got != "secret" {
		t.Errorf("line = %q, want %q", got, "secret")
	}

	_ = r.paste("\r")
	if out := r.take(); !strings.HasPrefix(out, SeqNewline) {
		t.Errorf("enter did not emit a line break: %q", out)
	}
}

func TestEcho_OffOffSilencesControls(t *testing.T) {
	r := newRig(t, Config{})
	_, _ = r.dispatch("echo off off")

	_ = r.paste("x\x07\r")
	if out := r.take(); out != "[WARN] Command 'x' not found\n\r" {
		t.Errorf("output = %q, want only the warning", out)
	}

	out, _ := r.dispatch("echo on")
	if out != "[INFO] echo on\n\r" {
		t.Errorf("echo on = %q", out)
	}
	st := r.s.State()
	if !st.Echo || !st.ControlChars {
		t.Errorf("state = %+v, want echo and controls on", st)
	}
}

func TestEcho_Usage(t *testing.T) {
	r := newRig(t, Config{})
	tests := []struct {
		line string
		want string
	}{
		{"echo", "[INFO] echo on\n\r"},
		{"echo maybe", "[WARN] Invalid configuration choice. Usage: echo on/off\n\r"},
		{"echo off", "[INFO] echo off\n\r"},
		{"echo", "[INFO] echo off\n\r"},
	}
	for _, tt := range tests {
		out, err := r.dispatch(tt.line)
		if err != nil {
			t.Errorf("Dispatch(%q): %v", tt.line, err)
		}
		if out != tt.want {
			t.Errorf("Dispatch(%q) output = %q, want %q", tt.line, out, tt.want)
		}
	}
}

func TestExit_Disabled(t *testing.T) {
	r := newRig(t, Config{})
	if _, err := r.dispatch("exit"); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("exit without AllowExit = %v, want ErrInvalidCommand", err)
	}
}

func TestExit_Enabled(t *testing.T) {
	r := newRig(t, Config{AllowExit: true})
	if err := r.typeKeys("exit\r"); !errors.Is(err, ErrExit) {
		t.Errorf("typing exit = %v, want ErrExit", err)
	}
	if err := r.tick(); !errors.Is(err, ErrExit) {
		t.Errorf("Tick after exit = %v, want ErrExit", err)
	}
}
