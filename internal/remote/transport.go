// Package remote implements the core of beamfleet: SSH transport, host
// and node registries, the RPC evaluator, lifecycle operations, and the
// trace supervisor.
package remote

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/f9-o/beamfleet/internal/core/logger"
	"github.com/f9-o/beamfleet/pkg/errs"
	"github.com/f9-o/beamfleet/pkg/sshutil"
)

// connection holds a live SSH connection to one host.
type connection struct {
	client   *ssh.Client
	lastUsed time.Time
	cancel   context.CancelFunc
}

// Channel is an open, caller-owned remote stream — the long-running
// process that keeps a managed node alive. Closed surfaces exactly
// once on the Done channel when the remote process exits for any
// reason (explicit close or the process dying on its own).
type Channel struct {
	stream *sshutil.StreamedSession
	Done   <-chan error
}

// Write sends data to the remote process's stdin.
func (c *Channel) Write(p []byte) (int, error) {
	return c.stream.Stdin.Write(p)
}

// Close ends the remote process.
func (c *Channel) Close() error {
	return c.stream.Close()
}

// Pool manages persistent, multiplexed SSH connections to fleet hosts —
// one client per host label, shared by all concurrent operations
// targeting that host (spec §4.B, §5).
type Pool struct {
	mu         sync.Mutex
	conns      map[string]*connection // host label → connection
	dialing    map[string]*dialWaiter // host label → in-flight dial
	privKeyPEM []byte
	log        *logger.Logger

	dialTimeout       time.Duration
	execTimeout       time.Duration
	keepaliveInterval time.Duration
}

type dialWaiter struct {
	done   chan struct{}
	client *ssh.Client
	err    error
}

// NewPool creates an empty connection pool authenticating with the
// given process-wide PEM private key. dialTimeout, execTimeout, and
// keepaliveInterval are the fleet.yaml-tunable `ssh.*` settings (spec
// SPEC_FULL.md §4.I); zero falls back to the matching sshutil default.
func NewPool(privateKeyPEM []byte, log *logger.Logger, dialTimeout, execTimeout, keepaliveInterval time.Duration) *Pool {
	if execTimeout <= 0 {
		execTimeout = sshutil.DefaultExecTimeout
	}
	if keepaliveInterval <= 0 {
		keepaliveInterval = sshutil.KeepAliveInterval
	}
	return &Pool{
		conns:             make(map[string]*connection),
		dialing:           make(map[string]*dialWaiter),
		privKeyPEM:        privateKeyPEM,
		log:               log,
		dialTimeout:       dialTimeout,
		execTimeout:       execTimeout,
		keepaliveInterval: keepaliveInterval,
	}
}

// dialTarget describes the endpoint used to open a connection.
type dialTarget struct {
	label    string
	user     string
	hostname string
	port     int
}

// Connect returns the cached client for target.label, dialing and
// caching a new one if absent or dead. Only one dial is ever in flight
// per host label; concurrent callers await the same result (spec §5).
func (p *Pool) Connect(ctx context.Context, target dialTarget) (*ssh.Client, error) {
	p.mu.Lock()
	if c, ok := p.conns[target.label]; ok {
		if _, _, err := c.client.Conn.SendRequest("keepalive@beamfleet", true, nil); err == nil {
			c.lastUsed = time.Now()
			p.mu.Unlock()
			return c.client, nil
		}
		c.cancel()
		c.client.Close()
		delete(p.conns, target.label)
	}

	if w, ok := p.dialing[target.label]; ok {
		p.mu.Unlock()
		select {
		case <-w.done:
			return w.client, w.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	w := &dialWaiter{done: make(chan struct{})}
	p.dialing[target.label] = w
	p.mu.Unlock()

	client, err := p.dial(target)

	p.mu.Lock()
	delete(p.dialing, target.label)
	if err == nil {
		connCtx, cancel := context.WithCancel(context.Background())
		p.conns[target.label] = &connection{client: client, lastUsed: time.Now(), cancel: cancel}
		go p.keepalive(connCtx, target.label, client)
	}
	p.mu.Unlock()

	w.client, w.err = client, err
	close(w.done)

	if err != nil {
		return nil, err
	}
	p.log.Info("ssh connected", "host", target.label, "hostname", target.hostname)
	return client, nil
}

func (p *Pool) dial(target dialTarget) (*ssh.Client, error) {
	if len(p.privKeyPEM) == 0 {
		return nil, errs.New(errs.ErrConfigMissing, "transport.dial", fmt.Errorf("no SSH private key configured"))
	}

	cfg, err := sshutil.ClientConfig(target.user, p.privKeyPEM, p.dialTimeout)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrSshDial, "transport.dial").WithNode(target.label)
	}

	port := target.port
	if port == 0 {
		port = sshutil.DefaultPort
	}
	addr := net.JoinHostPort(target.hostname, fmt.Sprintf("%d", port))

	client, err := sshutil.Dial(addr, cfg)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrSshDial, "transport.dial").WithNode(target.label)
	}
	return client, nil
}

// ExecSimple opens an independent session on the host's client, writes
// cmd, collects stdout to EOF, and returns it trimmed. timeout is
// enforced by closing the session if it's exceeded — which ends the
// remote process rather than merely abandoning it — zero means the
// pool's configured execTimeout.
func (p *Pool) ExecSimple(ctx context.Context, target dialTarget, cmd string, timeout time.Duration) (string, error) {
	client, err := p.Connect(ctx, target)
	if err != nil {
		return "", err
	}
	if timeout == 0 {
		timeout = p.execTimeout
	}

	session, err := client.NewSession()
	if err != nil {
		return "", errs.Wrap(err, errs.ErrSshSpawn, "transport.execSimple").WithNode(target.label)
	}

	select {
	case <-time.After(timeout):
		session.Close()
		prefix := cmd
		if len(prefix) > 80 {
			prefix = prefix[:80]
		}
		return "", errs.Newf(errs.ErrSshTimeout, "transport.execSimple", "command timed out: %s", prefix).WithNode(target.label)
	case out := <-runSessionAsync(session, cmd):
		session.Close()
		if out.err != nil {
			return out.out, errs.Wrap(out.err, errs.ErrSshSpawn, "transport.execSimple").WithNode(target.label)
		}
		return out.out, nil
	case <-ctx.Done():
		session.Close()
		return "", ctx.Err()
	}
}

type execResult struct {
	out string
	err error
}

// runSessionAsync runs cmd on an already-open session in the
// background; the caller retains ownership of session and must close
// it once it is no longer needed (the timeout branch above closes it
// to actually terminate the remote command, not just stop waiting on
// it).
func runSessionAsync(session *ssh.Session, cmd string) <-chan execResult {
	ch := make(chan execResult, 1)
	go func() {
		out, err := sshutil.RunSession(session, cmd)
		ch <- execResult{out: out, err: err}
	}()
	return ch
}

// ExecStream opens a session, starts cmd, and returns the open channel
// without waiting for it to exit. The caller owns the channel's
// lifetime and MUST observe Done to know when the remote process exits.
func (p *Pool) ExecStream(ctx context.Context, target dialTarget, cmd string) (*Channel, error) {
	client, err := p.Connect(ctx, target)
	if err != nil {
		return nil, err
	}

	stream, err := sshutil.StartStreamed(client, cmd)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrSshSpawn, "transport.execStream").WithNode(target.label)
	}

	return &Channel{stream: stream, Done: stream.Done}, nil
}

// Disconnect closes the cached connection for a host label, if any.
func (p *Pool) Disconnect(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.conns[label]; ok {
		c.cancel()
		c.client.Close()
		delete(p.conns, label)
	}
}

// Close disconnects all cached connections and returns the first close
// error, if any.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for label, c := range p.conns {
		c.cancel()
		if err := c.client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, label)
		p.log.Info("ssh connection closed", "host", label)
	}
	return firstErr
}

// keepalive sends periodic keepalive packets and stops, with a warning,
// once one fails. It leaves the cache entry in place; the next Connect
// call's own liveness check drops the dead client and redials.
func (p *Pool) keepalive(ctx context.Context, label string, client *ssh.Client) {
	ticker := time.NewTicker(p.keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := client.Conn.SendRequest("keepalive@beamfleet", true, nil); err != nil {
				p.log.Warn("ssh keepalive failed, connection may be dead", "host", label, "err", err)
				return
			}
		}
	}
}
