// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/kiln/pkg/cli"
	"github.com/Thermoquad/kiln/pkg/nvm"
	"github.com/Thermoquad/kiln/pkg/transport"
	"pkt.systems/pslog"
)

// newShell allocates a session sized by the configuration
func newShell() (*cli.Session, error) {
	opts := cfg.Shell.Options()
	state := make([]byte, cli.RequiredStateMemory(opts))
	scratch := make([]byte, cli.RequiredScratchMemory(opts))
	return cli.Create(state, scratch, opts)
}

// openController attaches the demo controller to the configured NVM image
func openController() (*controller, io.Closer, error) {
	dev, err := nvm.OpenFileDevice(cfg.NVM.File, cfg.NVM.Size)
	if err != nil {
		return nil, nil, err
	}
	return newController(nvm.NewStore(dev, nvm.Config{})), dev, nil
}

// serveShell runs one session on conn until it closes or the user exits
func serveShell(ctx context.Context, conn io.ReadWriter, ctl *controller, allowExit bool) error {
	tick, err := cfg.Shell.TickInterval()
	if err != nil {
		return err
	}
	s, err := newShell()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	start := time.Now()
	err = transport.Run(ctx, s, conn, cli.Config{
		Commands:  ctl.commands(),
		Prompt:    cfg.Prompt,
		AllowExit: allowExit,
	}, tick)

	st := s.Stats()
	pslog.Ctx(ctx).Info("session ended",
		"duration", time.Since(start).Round(time.Millisecond).String(),
		"lines", st.LinesDispatched,
		"not_found", st.CommandsNotFound,
		"usage_errors", st.UsageErrors,
		"rx_overruns", st.RxOverruns,
		"tx_errors", st.TxErrors,
		"bytes_sent", st.BytesSent,
	)
	return err
}
