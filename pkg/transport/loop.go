// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/Thermoquad/kiln/pkg/cli"
	"pkt.systems/pslog"
)

// DefaultTick is the main loop period used when none is configured
const DefaultTick = 10 * time.Millisecond

// Run initializes s on a Stream over rw and ticks it every interval until
// ctx is done, the stream fails or the user runs exit. A closed stream and
// exit both end the loop without error.
func Run(ctx context.Context, s *cli.Session, rw io.ReadWriter, cfg cli.Config, interval time.Duration) error {
	log := pslog.Ctx(ctx)
	if interval <= 0 {
		interval = DefaultTick
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := NewStream(rw, log)
	cfg.Transport = st
	if err := s.Init(cfg); err != nil {
		return err
	}
	st.Start(ctx, s)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-st.Err():
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case <-ticker.C:
		}

		err := s.Tick()
		switch {
		case err == nil:
		case errors.Is(err, cli.ErrExit):
			// Send the line ending still queued
			_ = s.FlushAll(100)
			return nil
		case errors.Is(err, cli.ErrTransport):
			log.Warn("session output dropped", "err", err)
		default:
			return err
		}
	}
}
