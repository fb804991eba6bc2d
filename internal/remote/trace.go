// Package remote: trace supervisor — per-node periodic pollers that
// accumulate message-flow counts between probes (spec §4.G).
package remote

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	v1 "github.com/f9-o/beamfleet/api/v1"
	"github.com/f9-o/beamfleet/internal/core/logger"
	"github.com/f9-o/beamfleet/pkg/errs"
)

// defaultPollInterval is how often each traced node is polled for edge
// deltas when no fleet.yaml override is configured.
const defaultPollInterval = 3 * time.Second

// traceEntry is the supervisor's mutable record for one traced node.
type traceEntry struct {
	cancel context.CancelFunc
	edges  []v1.TraceEdge
}

// TraceSupervisor runs one goroutine per traced node, polling the
// remote agent-side trace handle for edge deltas and holding the most
// recent poll's result for retrieval. Grounded on the teacher's
// heartbeat Engine (ticker-per-node goroutine, cancel-map), repointed
// from connectivity probing to message-trace polling.
type TraceSupervisor struct {
	eval         *Evaluator
	nodes        *NodeRegistry
	log          *logger.Logger
	pollInterval time.Duration

	mu      sync.Mutex
	entries map[string]*traceEntry
}

// NewTraceSupervisor constructs a TraceSupervisor. pollInterval is the
// fleet.yaml-tunable `trace.poll_interval` (spec SPEC_FULL.md §4.I);
// zero falls back to defaultPollInterval.
func NewTraceSupervisor(eval *Evaluator, nodes *NodeRegistry, log *logger.Logger, pollInterval time.Duration) *TraceSupervisor {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &TraceSupervisor{
		eval:         eval,
		nodes:        nodes,
		log:          log,
		pollInterval: pollInterval,
		entries:      make(map[string]*traceEntry),
	}
}

// Start turns tracing on for name: evaluates the register expression
// and, on success, begins the poll loop (every pollInterval, 3 s by
// default; idempotent — a second
// Start on an already-traced node is a no-op returning its ok text).
func (s *TraceSupervisor) Start(ctx context.Context, name, erlPath string) (string, error) {
	node, err := s.nodes.RequireRunning(name)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if _, exists := s.entries[name]; exists {
		s.mu.Unlock()
		return "already tracing", nil
	}
	s.mu.Unlock()

	out, err := s.eval.RPCRaw(ctx, node, erlPath, registerTraceExpr(), 0)
	if err != nil {
		return "", err
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if _, exists := s.entries[name]; exists {
		// Lost a race against a concurrent Start; keep the winner's loop.
		s.mu.Unlock()
		cancel()
		return "already tracing", nil
	}
	s.entries[name] = &traceEntry{cancel: cancel}
	s.mu.Unlock()

	go s.pollLoop(loopCtx, name, erlPath)
	s.log.Info("trace started", "node", name)
	return out, nil
}

// Stop removes the node's entry (and with it the edge view), cancels
// the poller, then issues the un-register expression. It does not wait
// for the poller to exit; a poll already in flight finds the entry gone
// and discards its result. If the node itself is no longer registered,
// the poller is still cancelled and NodeUnknown is returned without a
// remote call.
func (s *TraceSupervisor) Stop(ctx context.Context, name, erlPath string) (string, error) {
	node, nodeErr := s.nodes.Get(name)

	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		if nodeErr != nil {
			return "", nodeErr
		}
		return "not tracing", nil
	}
	delete(s.entries, name)
	s.mu.Unlock()

	e.cancel()
	if nodeErr != nil {
		return "", nodeErr
	}

	out, err := s.eval.RPCRaw(ctx, node, erlPath, unregisterTraceExpr(), 0)
	if err != nil {
		return "", err
	}
	s.log.Info("trace stopped", "node", name)
	return out, nil
}

// Poll returns the most recent poll window's edges for name, or
// NodeUnknown if tracing isn't active for it.
func (s *TraceSupervisor) Poll(name string) (v1.TraceView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return v1.TraceView{}, errs.Newf(errs.ErrNodeUnknown, "trace.poll", "node %q is not being traced", name).WithNode(name)
	}
	return v1.TraceView{Name: name, Edges: e.edges}, nil
}

// StopAll cancels every active poller without issuing the remote
// un-register call — used only by the shutdown coordinator, where the
// node channels themselves are about to be torn down anyway (spec §4H).
func (s *TraceSupervisor) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, e := range s.entries {
		e.cancel()
		delete(s.entries, name)
		s.log.Info("trace stopped (shutdown)", "node", name)
	}
}

func (s *TraceSupervisor) pollLoop(ctx context.Context, name, erlPath string) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			node, err := s.nodes.Get(name)
			if err != nil {
				continue // node gone; stop-node does not cancel this loop, stop-trace does
			}

			out, err := s.eval.RPCRaw(ctx, node, erlPath, pollTraceExpr(), 0)
			if err != nil {
				s.log.Debug("trace poll failed", "node", name, "err", err)
				continue // no back-off, per spec §4.G
			}

			edges := parseTraceEdges(out)

			s.mu.Lock()
			if e, ok := s.entries[name]; ok {
				e.edges = edges
			}
			s.mu.Unlock()
		}
	}
}

// registerTraceExpr is the Erlang expression start-trace evaluates to
// turn on message tracing for the calling process's registered set and
// install the agent-side edge accumulator.
func registerTraceExpr() string {
	return `mcp_trace:register()`
}

// unregisterTraceExpr tears down the trace handle installed above.
func unregisterTraceExpr() string {
	return `mcp_trace:unregister()`
}

// pollTraceExpr asks the agent-side handle for edges observed since
// the previous poll, pipe-delimited one per line: `From|To|Count`.
func pollTraceExpr() string {
	return `mcp_trace:poll()`
}

// parseTraceEdges parses pipe-delimited `from|to|count` lines, silently
// dropping malformed ones (same tolerance as inspect-node's parser).
func parseTraceEdges(out string) []v1.TraceEdge {
	lines := strings.Split(out, "\n")
	edges := make([]v1.TraceEdge, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) != 3 {
			continue
		}
		count, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}
		edges = append(edges, v1.TraceEdge{From: fields[0], To: fields[1], Count: count})
	}
	return edges
}
