package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	v1 "github.com/f9-o/beamfleet/api/v1"
	"github.com/f9-o/beamfleet/internal/core/logger"
	"github.com/f9-o/beamfleet/pkg/errs"
	"github.com/f9-o/beamfleet/pkg/shellquote"
)

// defaultCookie is the hard-coded fallback used when neither the caller
// nor the remote host's ~/.erlang.cookie supply one (spec §4.E).
const defaultCookie = "beamfleet"

// defaultProbeDelay is how long start() waits before probing a newly
// launched node when no fleet.yaml override is configured (spec §4.E:
// "~2 s... BEAM short-name registration is not instant after process
// spawn").
const defaultProbeDelay = 2 * time.Second

// nodeEntry is the registry's mutable record for one managed node.
type nodeEntry struct {
	node       v1.ManagedNode
	channel    *Channel
	generation uint64
}

// NodeRegistry tracks managed nodes and drives their
// starting → running/error → stopped state machine (spec §4.E).
type NodeRegistry struct {
	mu    sync.Mutex
	nodes map[string]*nodeEntry

	pool       *Pool
	hosts      *HostRegistry
	eval       *Evaluator
	log        *logger.Logger
	probeDelay time.Duration

	nextGeneration uint64
}

// NewNodeRegistry constructs a NodeRegistry. probeDelay is the
// fleet.yaml-tunable `node.probe_delay` (spec SPEC_FULL.md §4.I);
// zero falls back to defaultProbeDelay.
func NewNodeRegistry(pool *Pool, hosts *HostRegistry, eval *Evaluator, log *logger.Logger, probeDelay time.Duration) *NodeRegistry {
	if probeDelay <= 0 {
		probeDelay = defaultProbeDelay
	}
	return &NodeRegistry{
		nodes:      make(map[string]*nodeEntry),
		pool:       pool,
		hosts:      hosts,
		eval:       eval,
		log:        log,
		probeDelay: probeDelay,
	}
}

// Get returns a copy of the ManagedNode for name, or NodeUnknown.
func (r *NodeRegistry) Get(name string) (v1.ManagedNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.nodes[name]
	if !ok {
		return v1.ManagedNode{}, errs.Newf(errs.ErrNodeUnknown, "nodes.get", "node %q not found", name).WithNode(name)
	}
	return e.node, nil
}

// List returns a snapshot of every managed node.
func (r *NodeRegistry) List() []v1.ManagedNode {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]v1.ManagedNode, 0, len(r.nodes))
	for _, e := range r.nodes {
		out = append(out, e.node)
	}
	return out
}

// RequireRunning returns the node if it exists and is in NodeRunning
// state, else NodeUnknown or NodeBadState (spec §8, property 2).
func (r *NodeRegistry) RequireRunning(name string) (v1.ManagedNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.nodes[name]
	if !ok {
		return v1.ManagedNode{}, errs.Newf(errs.ErrNodeUnknown, "nodes.requireRunning", "node %q not found", name).WithNode(name)
	}
	if e.node.Status != v1.NodeRunning {
		return v1.ManagedNode{}, errs.Newf(errs.ErrNodeBadState, "nodes.requireRunning", "node %q is %s, not running", name, e.node.Status).WithNode(name)
	}
	return e.node, nil
}

// Start launches a new managed node, inserting it with status=starting
// and scheduling a one-shot probe (spec §4.E).
func (r *NodeRegistry) Start(ctx context.Context, name string, nodeType v1.NodeType, cookie, hostLabel string) (v1.ManagedNode, error) {
	if !shellquote.ValidAtomName(name) {
		return v1.ManagedNode{}, errs.Newf(errs.ErrBadAtomName, "nodes.start", "invalid node name %q", name).WithNode(name)
	}

	r.mu.Lock()
	if _, exists := r.nodes[name]; exists {
		r.mu.Unlock()
		return v1.ManagedNode{}, errs.Newf(errs.ErrNameTaken, "nodes.start", "node %q already exists", name).WithNode(name)
	}
	r.mu.Unlock()

	if hostLabel == "" {
		var ok bool
		hostLabel, ok = r.hosts.Default()
		if !ok {
			return v1.ManagedNode{}, errs.New(errs.ErrConfigMissing, "nodes.start", fmt.Errorf("no hosts configured"))
		}
	}

	target, err := r.hosts.target(hostLabel)
	if err != nil {
		return v1.ManagedNode{}, err
	}

	shortHost, err := r.hosts.ShortHostname(ctx, hostLabel)
	if err != nil {
		return v1.ManagedNode{}, err
	}

	erlPath, elixirPath, err := r.hosts.Paths(hostLabel)
	if err != nil {
		return v1.ManagedNode{}, err
	}

	resolvedCookie := r.resolveCookie(ctx, target, cookie)

	var launchCmd string
	switch nodeType {
	case v1.NodeTypeErlang:
		launchCmd = fmt.Sprintf("%s -sname %s -setcookie %s -noshell",
			erlPath, shellquote.Quote(name), shellquote.Quote(resolvedCookie))
		launchCmd = pathPrefix(erlPath) + launchCmd
	case v1.NodeTypeElixir:
		launchCmd = fmt.Sprintf("%s --sname %s --cookie %s --no-halt",
			elixirPath, shellquote.Quote(name), shellquote.Quote(resolvedCookie))
		launchCmd = pathPrefix(elixirPath) + launchCmd
	default:
		return v1.ManagedNode{}, errs.Newf(errs.ErrConfigMissing, "nodes.start", "unknown node type %q", nodeType)
	}

	channel, err := r.pool.ExecStream(ctx, target, launchCmd)
	if err != nil {
		return v1.ManagedNode{}, err
	}

	r.mu.Lock()
	// Re-check existence under lock: two concurrent starts on the same
	// name race up to this point; the registry lock covering the
	// exist-check-and-insert is what spec §5 requires.
	if _, exists := r.nodes[name]; exists {
		r.mu.Unlock()
		channel.Close()
		return v1.ManagedNode{}, errs.Newf(errs.ErrNameTaken, "nodes.start", "node %q already exists", name).WithNode(name)
	}
	r.nextGeneration++
	gen := r.nextGeneration
	node := v1.ManagedNode{
		Name:            name,
		HostLabel:       hostLabel,
		RemoteShortHost: shortHost,
		Type:            nodeType,
		Cookie:          resolvedCookie,
		StartedAt:       time.Now(),
		Status:          v1.NodeStarting,
		Generation:      gen,
	}
	r.nodes[name] = &nodeEntry{node: node, channel: channel, generation: gen}
	r.mu.Unlock()

	go r.watchClose(name, gen, channel)
	go r.scheduleProbe(name, gen, erlPath)

	return node, nil
}

// resolveCookie picks arg if non-empty, else the remote
// ~/.erlang.cookie contents, else the hard-coded fallback (spec §4.E).
func (r *NodeRegistry) resolveCookie(ctx context.Context, target dialTarget, arg string) string {
	if arg != "" {
		return arg
	}
	out, err := r.pool.ExecSimple(ctx, target, "cat ~/.erlang.cookie 2>/dev/null", 5*time.Second)
	if err == nil && out != "" {
		return out
	}
	return defaultCookie
}

// watchClose is wired to the channel's close event (spec §4.E): it
// always flips status to stopped, exactly once, for this generation.
func (r *NodeRegistry) watchClose(name string, gen uint64, channel *Channel) {
	<-channel.Done

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.nodes[name]
	if !ok || e.generation != gen {
		return // stopped (and possibly restarted) under this name already
	}
	e.node.Status = v1.NodeStopped
	r.log.Info("node channel closed", "node", name)
}

// scheduleProbe waits r.probeDelay then probes the node, flipping
// starting → running/error. A probe result for a stale generation, or
// for a node that no longer exists, is discarded (spec §5 ordering).
func (r *NodeRegistry) scheduleProbe(name string, gen uint64, erlPath string) {
	timer := time.NewTimer(r.probeDelay)
	defer timer.Stop()
	<-timer.C

	r.mu.Lock()
	e, ok := r.nodes[name]
	if !ok || e.generation != gen || e.node.Status != v1.NodeStarting {
		r.mu.Unlock()
		return
	}
	node := e.node
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pong, err := r.eval.Probe(ctx, node, erlPath, 0)

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok = r.nodes[name]
	if !ok || e.generation != gen || e.node.Status != v1.NodeStarting {
		return // stopped (and possibly restarted) before the probe landed
	}
	if err == nil && pong {
		e.node.Status = v1.NodeRunning
		r.log.Info("node probe succeeded", "node", name)
	} else {
		e.node.Status = v1.NodeError
		r.log.Debug("node probe failed", "node", name, "err", err)
	}
}

// Stop closes the channel and removes the entry synchronously. Any
// concurrent probe result arriving after removal is discarded because
// its generation no longer matches (or the entry is simply gone).
func (r *NodeRegistry) Stop(name string) error {
	r.mu.Lock()
	e, ok := r.nodes[name]
	if !ok {
		r.mu.Unlock()
		return errs.Newf(errs.ErrNodeUnknown, "nodes.stop", "node %q not found", name).WithNode(name)
	}
	delete(r.nodes, name)
	r.mu.Unlock()

	_ = e.channel.Close()
	return nil
}

// Restart performs stop then a new start with the same configuration.
func (r *NodeRegistry) Restart(ctx context.Context, name string) (v1.ManagedNode, error) {
	r.mu.Lock()
	e, ok := r.nodes[name]
	if !ok {
		r.mu.Unlock()
		return v1.ManagedNode{}, errs.Newf(errs.ErrNodeUnknown, "nodes.restart", "node %q not found", name).WithNode(name)
	}
	cfg := e.node
	r.mu.Unlock()

	if err := r.Stop(name); err != nil {
		return v1.ManagedNode{}, err
	}
	return r.Start(ctx, name, cfg.Type, cfg.Cookie, cfg.HostLabel)
}
