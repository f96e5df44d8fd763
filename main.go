// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Kiln - Embeddable Interactive Command Shell
//
// Serves a line-editing command shell over serial ports, websockets, SSH
// and the local terminal, and connects to remote shells as a client.

package main

import (
	"context"
	"log"
	"os"

	"github.com/Thermoquad/kiln/cmd"
	"pkt.systems/pslog"
)

func main() {
	os.Exit(run(context.Background()))
}

func run(ctx context.Context) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	if err := cmd.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("kiln command failed")
		return 1
	}
	return 0
}
