// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"pkt.systems/pslog"
)

// consoleEscape ends a console session (Ctrl+])
const consoleEscape = 0x1D

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Attach the terminal to a remote shell",
	Long: `Connect the local terminal to a shell on a serial port or websocket.

The terminal is switched to raw mode so line editing, history and control
keys are handled by the remote shell. Press Ctrl+] to disconnect.`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	log := pslog.Ctx(cmd.Context())

	conn, connInfo, err := OpenConnection(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Kiln - Console\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+] to exit\n\n")

	local, err := openStdio()
	if err != nil {
		return err
	}
	defer local.Close()

	remoteErr := make(chan error, 1)
	go func() {
		_, err := io.Copy(local, conn)
		remoteErr <- err
	}()

	localErr := make(chan error, 1)
	go func() {
		localErr <- forwardKeys(conn, local)
	}()

	select {
	case err := <-remoteErr:
		if err == nil || errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
			log.Info("connection closed")
			return nil
		}
		return err
	case err := <-localErr:
		return err
	}
}

// forwardKeys copies keystrokes to the remote shell until the escape key
func forwardKeys(dst io.Writer, src io.Reader) error {
	buf := make([]byte, 64)
	for {
		n, err := src.Read(buf)
		for i := 0; i < n; i++ {
			if buf[i] == consoleEscape {
				if i > 0 {
					if _, err := dst.Write(buf[:i]); err != nil {
						return err
					}
				}
				return nil
			}
		}
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return err
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
