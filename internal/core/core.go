// Package core wires every component into a single Core value and
// exposes one method per operation-surface row (spec §6, §9: "model
// ambient singletons as... a single Core value the operation surface
// is a method on").
package core

import (
	"context"
	"errors"
	"time"

	v1 "github.com/f9-o/beamfleet/api/v1"
	"github.com/f9-o/beamfleet/internal/core/config"
	"github.com/f9-o/beamfleet/internal/core/logger"
	"github.com/f9-o/beamfleet/internal/metrics"
	"github.com/f9-o/beamfleet/internal/remote"
)

// Core bundles every wired component for the lifetime of the process.
// Constructed once from environment/config, passed by reference
// thereafter.
type Core struct {
	Config  *config.Config
	Log     *logger.Logger
	Metrics *metrics.Metrics

	pool  *remote.Pool
	hosts *remote.HostRegistry
	nodes *remote.NodeRegistry
	eval  *remote.Evaluator
	trace *remote.TraceSupervisor
	ops   *remote.Operations
}

// New wires every component from cfg.
func New(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) *Core {
	pool := remote.NewPool(cfg.PrivateKeyPEM, log, cfg.SSH.DialTimeout, cfg.SSH.ExecTimeout, cfg.SSH.Keepalive)
	hosts := remote.NewHostRegistry(cfg.Hosts, pool)
	eval := remote.NewEvaluator(pool, hosts)
	nodes := remote.NewNodeRegistry(pool, hosts, eval, log, cfg.Node.ProbeDelay)
	trace := remote.NewTraceSupervisor(eval, nodes, log, cfg.Trace.PollInterval)
	ops := remote.NewOperations(hosts, nodes, eval, trace)

	return &Core{
		Config:  cfg,
		Log:     log,
		Metrics: m,
		pool:    pool,
		hosts:   hosts,
		nodes:   nodes,
		eval:    eval,
		trace:   trace,
		ops:     ops,
	}
}

// audit wraps an operation with audit logging and metric recording,
// mirroring the {ok: Text} | {err: Reason} discriminated result shape
// spec §3 assigns to every operation.
func (c *Core) audit(op, node string, result v1.Result) v1.Result {
	status, detail := "ok", result.OK
	var metricErr error
	if result.IsErr() {
		status, detail = "err", result.Err
		metricErr = errors.New(result.Err)
	}
	c.Metrics.ObserveOperation(op, metricErr)
	c.Log.Audit(logger.AuditEntry{Timestamp: now(), Op: op, Node: node, Result: status, Detail: detail})
	return result
}

// now is a seam so shutdown/test code never needs time.Now() directly
// wired through Core.
func now() time.Time { return time.Now() }

// StartNode implements the start-node operation.
func (c *Core) StartNode(ctx context.Context, name string, nodeType v1.NodeType, cookie, hostLabel string) v1.Result {
	node, err := c.ops.StartNode(ctx, name, nodeType, cookie, hostLabel)
	if err != nil {
		return c.audit("start-node", name, v1.ErrResult(err.Error()))
	}
	return c.audit("start-node", name, v1.Ok("starting "+node.FullName()))
}

// StopNode implements the stop-node operation.
func (c *Core) StopNode(name string) v1.Result {
	if err := c.ops.StopNode(name); err != nil {
		return c.audit("stop-node", name, v1.ErrResult(err.Error()))
	}
	return c.audit("stop-node", name, v1.Ok("stopped "+name))
}

// RestartNode implements the restart-node operation.
func (c *Core) RestartNode(ctx context.Context, name string) v1.Result {
	node, err := c.ops.RestartNode(ctx, name)
	if err != nil {
		return c.audit("restart-node", name, v1.ErrResult(err.Error()))
	}
	return c.audit("restart-node", name, v1.Ok("restarting "+node.FullName()))
}

// ListNodes implements the list-nodes operation.
func (c *Core) ListNodes(ctx context.Context) []v1.NodeListEntry {
	entries := c.ops.ListNodes(ctx)
	c.Metrics.ManagedNodesGauge.Set(float64(len(entries)))
	c.audit("list-nodes", "", v1.Ok("listed"))
	return entries
}

// InspectNode implements the inspect-node operation.
func (c *Core) InspectNode(ctx context.Context, name string) (v1.InspectView, v1.Result) {
	view, err := c.ops.InspectNode(ctx, name)
	if err != nil {
		return v1.InspectView{}, c.audit("inspect-node", name, v1.ErrResult(err.Error()))
	}
	return view, c.audit("inspect-node", name, v1.Ok("inspected"))
}

// DeployModule implements the deploy-module operation.
func (c *Core) DeployModule(ctx context.Context, name, code, language string) v1.Result {
	out, err := c.ops.DeployModule(ctx, name, code, language)
	if err != nil {
		return c.audit("deploy-module", name, v1.ErrResult(err.Error()))
	}
	return c.audit("deploy-module", name, v1.Ok(out))
}

// StartGenserver implements the start-genserver operation.
func (c *Core) StartGenserver(ctx context.Context, name, module, args, registerAs string) v1.Result {
	out, err := c.ops.StartGenserver(ctx, name, module, args, registerAs)
	if err != nil {
		return c.audit("start-genserver", name, v1.ErrResult(err.Error()))
	}
	return c.audit("start-genserver", name, v1.Ok(out))
}

// CallGenserver implements the call-genserver operation.
func (c *Core) CallGenserver(ctx context.Context, name, server, message string, timeoutMS int) v1.Result {
	start := now()
	out, err := c.ops.CallGenserver(ctx, name, server, message, timeoutMS)
	c.Metrics.ObserveRPC("call-genserver", time.Since(start))
	if err != nil {
		return c.audit("call-genserver", name, v1.ErrResult(err.Error()))
	}
	return c.audit("call-genserver", name, v1.Ok(out))
}

// StopGenserver implements the stop-genserver operation.
func (c *Core) StopGenserver(ctx context.Context, name, server string) v1.Result {
	out, err := c.ops.StopGenserver(ctx, name, server)
	if err != nil {
		return c.audit("stop-genserver", name, v1.ErrResult(err.Error()))
	}
	return c.audit("stop-genserver", name, v1.Ok(out))
}

// StartTrace implements the start-trace operation.
func (c *Core) StartTrace(ctx context.Context, name string) v1.Result {
	out, err := c.ops.StartTrace(ctx, name)
	if err != nil {
		return c.audit("start-trace", name, v1.ErrResult(err.Error()))
	}
	c.Metrics.ActiveTracesGauge.Inc()
	return c.audit("start-trace", name, v1.Ok(out))
}

// StopTrace implements the stop-trace operation.
func (c *Core) StopTrace(ctx context.Context, name string) v1.Result {
	out, err := c.ops.StopTrace(ctx, name)
	if err != nil {
		return c.audit("stop-trace", name, v1.ErrResult(err.Error()))
	}
	c.Metrics.ActiveTracesGauge.Dec()
	return c.audit("stop-trace", name, v1.Ok(out))
}

// PollTrace implements the poll-trace operation.
func (c *Core) PollTrace(name string) (v1.TraceView, v1.Result) {
	view, err := c.ops.PollTrace(name)
	if err != nil {
		return v1.TraceView{}, c.audit("poll-trace", name, v1.ErrResult(err.Error()))
	}
	return view, c.audit("poll-trace", name, v1.Ok("polled"))
}

// Shutdown is consumed by internal/core/shutdown; it exposes the raw
// handles that need best-effort teardown.
func (c *Core) Shutdown() {
	c.trace.StopAll()
	for _, n := range c.nodes.List() {
		_ = c.nodes.Stop(n.Name)
	}
	_ = c.pool.Close()
}
