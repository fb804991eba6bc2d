// Package sshutil provides reusable SSH client helpers for beamfleet's
// remote transport layer.
package sshutil

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// DefaultPort is the standard SSH port.
const DefaultPort = 22

// ConnectTimeout is the default dial timeout for SSH connections.
const ConnectTimeout = 15 * time.Second

// KeepAliveInterval is how often a keepalive packet is sent to the server.
const KeepAliveInterval = 15 * time.Second

// DefaultExecTimeout is the default timeout for a short-lived exec, per
// spec §4.B.
const DefaultExecTimeout = 10 * time.Second

// ClientConfig builds an ssh.ClientConfig from process-wide PEM key
// material. dialTimeout of zero falls back to ConnectTimeout. Host key
// verification is intentionally permissive — managed nodes live on
// operator-controlled fleet hosts and there is no persisted
// known_hosts store (spec §1: no state persisted across restarts).
func ClientConfig(user string, privateKeyPEM []byte, dialTimeout time.Duration) (*ssh.ClientConfig, error) {
	signer, err := ssh.ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	if dialTimeout <= 0 {
		dialTimeout = ConnectTimeout
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		Timeout:         dialTimeout,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
	}, nil
}

// Dial establishes an SSH connection to addr (host:port) using cfg.
func Dial(addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %q: %w", addr, err)
	}
	return client, nil
}

// RunCommand executes cmd on client and returns its trimmed stdout. The
// caller is responsible for enforcing any timeout around the call.
func RunCommand(client *ssh.Client, cmd string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("new session: %w", err)
	}
	defer session.Close()
	return RunSession(session, cmd)
}

// RunSession runs cmd on an already-open session and returns its
// trimmed stdout. Unlike RunCommand, the caller owns session's
// lifetime — closing it (e.g. to enforce a timeout) terminates the
// remote command instead of leaving it running unobserved.
func RunSession(session *ssh.Session, cmd string) (string, error) {
	var stdout bytes.Buffer
	session.Stdout = &stdout

	if err := session.Run(cmd); err != nil {
		return strings.TrimSpace(stdout.String()), err
	}
	return strings.TrimSpace(stdout.String()), nil
}

// StreamedSession holds a started (but not waited-on) remote command
// along with the pipes needed to keep it alive and the channel that
// reports when it exits.
type StreamedSession struct {
	Session *ssh.Session
	Stdin   io.WriteCloser
	Stdout  io.Reader
	Done    chan error // receives the Wait() error, then is closed
}

// StartStreamed opens a new session on client, starts cmd, and returns
// immediately without waiting for it to exit. The caller owns the
// returned session's lifetime; closing Stdin or the session itself
// ends the remote process.
func StartStreamed(client *ssh.Client, cmd string) (*StreamedSession, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := session.Start(cmd); err != nil {
		session.Close()
		return nil, fmt.Errorf("start %q: %w", cmd, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
		close(done)
	}()

	return &StreamedSession{Session: session, Stdin: stdin, Stdout: stdout, Done: done}, nil
}

// Close ends the remote process by closing its session.
func (s *StreamedSession) Close() error {
	return s.Session.Close()
}
