// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/kiln/pkg/vt"
	"github.com/spf13/cobra"
)

var (
	probeTimeout  int
	probeCommands []string
	probePrompt   string
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that a shell answers, optionally running commands",
	Long: `Wait for a shell prompt on the connection until timeout.

The probe sends an empty line and waits for the prompt to be redrawn. Each
--command is then typed in turn and its output printed with terminal
control sequences removed.

Exit codes:
  0 - Prompt seen and every command completed
  1 - Timeout reached waiting for a prompt
  2 - Connection error

Useful for scripting checks against devices and kiln servers.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds for each prompt")
	probeCmd.Flags().StringArrayVarP(&probeCommands, "command", "c", nil, "Command to run (repeatable)")
	probeCmd.Flags().StringVar(&probePrompt, "prompt", "", "Prompt to wait for (default from config)")
}

// errPromptTimeout is returned when no prompt appears in time
var errPromptTimeout = errors.New("no prompt received")

// prober drives a remote shell through a screen model
type prober struct {
	conn   io.Writer
	prompt string
	screen *vt.Screen
	chunks chan []byte
	errs   chan error
}

func newProber(conn io.ReadWriter, prompt string) *prober {
	p := &prober{
		conn:   conn,
		prompt: prompt,
		screen: vt.New(200, 1000),
		chunks: make(chan []byte, 16),
		errs:   make(chan error, 1),
	}
	go func() {
		for {
			buf := make([]byte, 256)
			n, err := conn.Read(buf)
			if n > 0 {
				p.chunks <- buf[:n]
			}
			if err != nil {
				p.errs <- err
				return
			}
		}
	}()
	return p
}

// atPrompt reports whether the cursor sits right after a freshly drawn
// prompt below row from
func (p *prober) atPrompt(from int) bool {
	row, col := p.screen.Cursor()
	return row > from && col == len(p.prompt) &&
		p.screen.Line(row) == strings.TrimRight(p.prompt, " ")
}

// waitPrompt consumes output until the prompt appears below row from
func (p *prober) waitPrompt(ctx context.Context, from int, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for !p.atPrompt(from) {
		select {
		case b := <-p.chunks:
			p.screen.Write(b)
		case err := <-p.errs:
			return err
		case <-timer.C:
			return errPromptTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// run types line and returns the lines printed before the next prompt
func (p *prober) run(ctx context.Context, line string, timeout time.Duration) ([]string, error) {
	p.screen.Reset()
	if _, err := io.WriteString(p.conn, line+"\r"); err != nil {
		return nil, err
	}
	if err := p.waitPrompt(ctx, 0, timeout); err != nil {
		return nil, err
	}
	row, _ := p.screen.Cursor()
	lines := p.screen.Lines()
	return lines[1:row], nil
}

// sync sends an empty line and waits for the prompt it causes
func (p *prober) sync(ctx context.Context, timeout time.Duration) error {
	_, err := p.run(ctx, "", timeout)
	return err
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	prompt := probePrompt
	if prompt == "" {
		prompt = cfg.Prompt
	}
	timeout := time.Duration(probeTimeout) * time.Second

	fmt.Printf("Kiln - Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for prompt %q...\n\n", prompt)

	p := newProber(conn, prompt)
	if err := p.sync(ctx, timeout); err != nil {
		exitProbe(err)
	}
	fmt.Printf("SUCCESS: Shell answered\n")

	for _, line := range probeCommands {
		out, err := p.run(ctx, line, timeout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Command %q: ", line)
			exitProbe(err)
		}
		fmt.Printf("\n%s%s\n", prompt, line)
		for _, l := range out {
			fmt.Println(l)
		}
	}
	os.Exit(0)
	return nil
}

func exitProbe(err error) {
	if errors.Is(err, errPromptTimeout) {
		fmt.Fprintf(os.Stderr, "TIMEOUT: No prompt received within %d seconds\n", probeTimeout)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
	os.Exit(2)
}
