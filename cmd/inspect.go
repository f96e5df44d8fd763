// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/kiln/pkg/nvm"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Drive a local shell in a TUI showing its internal state",
	Long: `Run the demo shell in-process and show what the engine does with every
keystroke.

The left pane is the terminal the shell draws on. The right pane shows the
edit line, cursor, pending echo, escape decoder state, ring and output
buffer usage, history and counters. The bottom pane logs every byte fed in
and every transmit handed out.

NVM lives in memory for the session. Press Ctrl+Q to quit.`,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctl := newController(nvm.NewStore(nvm.NewMemDevice(int(cfg.NVM.Size)), nvm.Config{}))
	m, err := newInspectModel(ctl)
	if err != nil {
		return err
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
