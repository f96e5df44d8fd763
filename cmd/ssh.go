// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	gliderssh "github.com/gliderlabs/ssh"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"
	"pkt.systems/pslog"
)

var (
	sshListen  string
	sshHostKey string
)

var sshCmd = &cobra.Command{
	Use:   "ssh",
	Short: "Serve the shell over SSH",
	Long: `Serve the demo shell to SSH clients, one session per channel.

Clients must request a PTY (ssh -t). An ed25519 host key is generated at
ssh.host_key on first start. When KILN_PASSWORD is set, clients must log in
with it; otherwise any client is accepted.`,
	RunE: runSSH,
}

func init() {
	sshCmd.Flags().StringVar(&sshListen, "listen", "", "Listen address")
	sshCmd.Flags().StringVar(&sshHostKey, "host-key", "", "Host key path")
	bindFlag(sshCmd, "ssh.listen", "listen")
	bindFlag(sshCmd, "ssh.host_key", "host-key")
	rootCmd.AddCommand(sshCmd)
}

func runSSH(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctl, closer, err := openController()
	if err != nil {
		return err
	}
	defer closer.Close()

	srv := &sshServer{
		Addr:        cfg.SSH.Listen,
		HostKeyPath: cfg.SSH.HostKey,
		Password:    os.Getenv("KILN_PASSWORD"),
		ctl:         ctl,
	}
	return srv.ListenAndServe(ctx)
}

// sshServer serves one shell per SSH session
type sshServer struct {
	Addr        string
	HostKeyPath string
	Password    string
	ctl         *controller
	logger      pslog.Logger
}

// ListenAndServe starts the SSH server and shuts down on context cancellation
func (s *sshServer) ListenAndServe(ctx context.Context) error {
	s.logger = pslog.Ctx(ctx)

	signer, err := ensureHostKey(s.HostKeyPath)
	if err != nil {
		return err
	}

	server := &gliderssh.Server{
		Addr:    s.Addr,
		Handler: func(sess gliderssh.Session) { s.handleSession(ctx, sess) },
	}
	if s.Password != "" {
		server.PasswordHandler = s.handlePassword
	}
	server.AddHostKey(signer)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	s.logger.Info("serving ssh shell", "addr", s.Addr, "fingerprint", ssh.FingerprintSHA256(signer.PublicKey()))

	select {
	case <-ctx.Done():
		_ = server.Close()
		return nil
	case err := <-errCh:
		if errors.Is(err, gliderssh.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *sshServer) handlePassword(ctx gliderssh.Context, password string) bool {
	ok := subtle.ConstantTimeCompare([]byte(password), []byte(s.Password)) == 1
	if !ok {
		s.logger.Warn("ssh login rejected", "user", ctx.User(), "remote", ctx.RemoteAddr().String())
	}
	return ok
}

func (s *sshServer) handleSession(ctx context.Context, sess gliderssh.Session) {
	log := s.logger.With("user", sess.User(), "remote", sess.RemoteAddr().String())
	if id := sess.Context().SessionID(); id != "" {
		log = log.With("ssh_session", id)
	}

	pty, _, ok := sess.Pty()
	if !ok {
		log.Info("ssh session rejected", "reason", "pty required")
		_, _ = io.WriteString(sess, "pty required\n")
		_ = sess.Exit(1)
		return
	}
	log.Info("ssh session opened", "term", pty.Term)

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-sess.Context().Done():
		case <-sessCtx.Done():
		}
		cancel()
	}()

	if err := serveShell(pslog.ContextWithLogger(sessCtx, log), sess, s.ctl, true); err != nil {
		log.Warn("ssh session failed", "err", err)
		_ = sess.Exit(1)
		return
	}
	_ = sess.Exit(0)
}

// ensureHostKey loads the host key at path, generating an ed25519 key on
// first use
func ensureHostKey(path string) (ssh.Signer, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ssh host key path is required")
	}
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read host key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("parse host key: %w", err)
		}
		return signer, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat host key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create host key dir: %w", err)
	}
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate host key: %w", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "kiln")
	if err != nil {
		return nil, fmt.Errorf("marshal host key: %w", err)
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return nil, fmt.Errorf("write host key: %w", err)
	}
	return ssh.NewSignerFromKey(priv)
}
