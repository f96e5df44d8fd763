// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"pkt.systems/pslog"
)

var (
	serveStdio bool
	serveWS    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the shell over serial, websockets or the terminal",
	Long: `Serve the demo shell.

Modes:
  --stdio           the local terminal, in raw mode; 'exit' quits
  --ws ADDR         websocket clients at ADDR (path from ws.path), one
                    session per connection
  --port DEVICE     a serial port, default from serial.port

The shell runs against a simulated heater whose settings 'save' and 'load'
keep in the NVM image (nvm.file).`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveStdio, "stdio", false, "Serve the local terminal")
	serveCmd.Flags().StringVar(&serveWS, "ws", "", "Listen address for websocket clients")
	bindFlag(serveCmd, "ws.listen", "ws")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctl, closer, err := openController()
	if err != nil {
		return err
	}
	defer closer.Close()

	switch {
	case serveStdio:
		conn, err := openStdio()
		if err != nil {
			return err
		}
		defer conn.Close()
		return serveShell(ctx, conn, ctl, true)

	case cmd.Flags().Changed("ws"):
		return serveWebSocket(ctx, cfg.WS.Listen, cfg.WS.Path, ctl)

	case cfg.Serial.Port != "":
		return serveSerial(ctx, ctl)
	}
	return errors.New("one of --stdio, --ws or --port must be specified")
}

// serveSerial keeps a shell on the serial port, reopening it after errors
// such as a USB adapter being unplugged
func serveSerial(ctx context.Context, ctl *controller) error {
	log := pslog.Ctx(ctx).With("port", cfg.Serial.Port, "baud", cfg.Serial.Baud)
	for {
		conn, err := OpenSerialConnection(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			return err
		}
		log.Info("serving shell")

		err = serveShell(ctx, conn, ctl, false)
		conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		log.Warn("serial session ended, reopening", "err", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// sessionTracker counts live websocket sessions. Upgraded connections are
// hijacked, so server.Shutdown does not wait for them.
type sessionTracker struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// begin registers a session, failing once shutdown has started
func (t *sessionTracker) begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.wg.Add(1)
	return true
}

func (t *sessionTracker) done() {
	t.wg.Done()
}

// shutdown refuses further sessions and waits for the live ones
func (t *sessionTracker) shutdown() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.wg.Wait()
}

// shellHandler upgrades each request and serves it its own session
func shellHandler(ctx context.Context, ctl *controller, sessions *sessionTracker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := pslog.Ctx(ctx).With("remote", r.RemoteAddr)
		if !sessions.begin() {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		defer sessions.done()

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "err", err)
			return
		}
		conn := NewWebSocketConnection(ws)
		defer conn.Close()

		// Closing the socket unblocks the session's reader on shutdown
		sessCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			<-sessCtx.Done()
			conn.Close()
		}()

		log.Info("websocket session opened")
		if err := serveShell(pslog.ContextWithLogger(sessCtx, log), conn, ctl, true); err != nil {
			log.Warn("websocket session failed", "err", err)
		}
	})
}

func serveWebSocket(ctx context.Context, addr, path string, ctl *controller) error {
	log := pslog.Ctx(ctx)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	var sessions sessionTracker
	mux := http.NewServeMux()
	mux.Handle(path, shellHandler(ctx, ctl, &sessions))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          pslog.LogLoggerWithLevel(log, pslog.ErrorLevel),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()
	log.Info("serving websocket shell", "addr", ln.Addr().String(), "path", path)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		sessions.shutdown()
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
