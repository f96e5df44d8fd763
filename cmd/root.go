// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Thermoquad/kiln/pkg/config"
	"github.com/spf13/cobra"
	"pkt.systems/pslog"
)

var (
	configPath string
	logLevel   string

	// Client connection flags
	portName      string
	baudRate      int
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// settings holds the viper state flags are bound to
	settings = config.New()
	// cfg is the decoded configuration, valid once a command runs
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "kiln",
	Short: "Embeddable interactive command shell",
	Long: `Kiln - An interactive command shell for byte-stream transports.

Serves a line-editing shell with history, built-in help and a demo command
table over a serial port, websockets, SSH or the local terminal, and talks
to remote shells as a client.

Serving:
  Serial:    kiln serve --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: kiln serve --ws :8023
  Terminal:  kiln serve --stdio
  SSH:       kiln ssh --listen :2222

Connecting:
  Serial:    kiln console --port /dev/ttyUSB0
  WebSocket: kiln console --url ws://host:8023/shell [--username user]

Settings come from kiln.yaml (or --config), KILN_* environment variables and
flags, in increasing priority. For WebSocket authentication the password is
read from KILN_PASSWORD, or prompted interactively if not set.`,
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if logLevel != "" {
			logger, err := newLogger(logLevel)
			if err != nil {
				return err
			}
			ctx = pslog.ContextWithLogger(ctx, logger)
		}

		explicit := cmd.Flags().Changed("config")
		loaded, ok, err := config.Load(settings, configPath, explicit)
		if err != nil {
			return err
		}
		cfg = loaded
		if ok {
			pslog.Ctx(ctx).Debug("config loaded", "path", configPath)
		}
		cmd.SetContext(ctx)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Minimum log level (trace, debug, info, warn, error)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")
	bindFlag(rootCmd, "serial.port", "port")
	bindFlag(rootCmd, "serial.baud", "baud")

	// WebSocket client flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// bindFlag ties a flag of c to a config key. Persistent flags are looked up
// first so subcommands can share root flags.
func bindFlag(c *cobra.Command, key, flag string) {
	f := c.PersistentFlags().Lookup(flag)
	if f == nil {
		f = c.Flags().Lookup(flag)
	}
	if f == nil {
		panic(fmt.Sprintf("bindFlag: no flag %q on %s", flag, c.Name()))
	}
	if err := settings.BindPFlag(key, f); err != nil {
		panic(err)
	}
}

func newLogger(level string) (pslog.Logger, error) {
	opts := pslog.Options{Mode: pslog.ModeConsole}
	switch strings.ToLower(level) {
	case "trace":
		opts.MinLevel = pslog.TraceLevel
	case "debug":
		opts.MinLevel = pslog.DebugLevel
	case "info":
		opts.MinLevel = pslog.InfoLevel
	case "warn", "warning":
		opts.MinLevel = pslog.WarnLevel
	case "error":
		opts.MinLevel = pslog.ErrorLevel
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return pslog.NewWithOptions(os.Stderr, opts), nil
}

// ExecuteContext runs the root command with ctx carrying the logger
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
