// Package remote: lifecycle operations — the start/stop/restart/list/
// inspect/deploy-module/gen-server/trace operation surface composed
// from the host registry, node registry, RPC evaluator, and trace
// supervisor (spec §4.F).
package remote

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	v1 "github.com/f9-o/beamfleet/api/v1"
	"github.com/f9-o/beamfleet/pkg/errs"
	"github.com/f9-o/beamfleet/pkg/shellquote"
)

// Operations composes the lower components into one operation per
// spec §6's surface table. Grounded on the teacher's
// internal/orchestrator/lifecycle.go (Up/Down composing a Docker
// client + state store into one operation).
type Operations struct {
	hosts *HostRegistry
	nodes *NodeRegistry
	eval  *Evaluator
	trace *TraceSupervisor
}

// NewOperations constructs the lifecycle operation surface.
func NewOperations(hosts *HostRegistry, nodes *NodeRegistry, eval *Evaluator, trace *TraceSupervisor) *Operations {
	return &Operations{hosts: hosts, nodes: nodes, eval: eval, trace: trace}
}

// requireConfigured is the configuration-guard precheck (spec §4.F):
// at least one host and a private key must be configured. Every
// operation except stop-node, list-nodes and poll-trace runs it.
func (o *Operations) requireConfigured() error {
	if !o.hosts.Any() {
		return errs.New(errs.ErrConfigMissing, "operations.precheck", fmt.Errorf("no hosts configured"))
	}
	if len(o.pool().privKeyPEM) == 0 {
		return errs.New(errs.ErrConfigMissing, "operations.precheck", fmt.Errorf("no SSH private key configured"))
	}
	return nil
}

// StartNode launches a fresh named node (spec §6 start-node).
func (o *Operations) StartNode(ctx context.Context, name string, nodeType v1.NodeType, cookie, hostLabel string) (v1.ManagedNode, error) {
	if err := o.requireConfigured(); err != nil {
		return v1.ManagedNode{}, err
	}
	return o.nodes.Start(ctx, name, nodeType, cookie, hostLabel)
}

// StopNode closes the channel and removes the entry (spec §6 stop-node).
func (o *Operations) StopNode(name string) error {
	return o.nodes.Stop(name)
}

// RestartNode performs stop + re-start with the same config (spec §6 restart-node).
func (o *Operations) RestartNode(ctx context.Context, name string) (v1.ManagedNode, error) {
	if err := o.requireConfigured(); err != nil {
		return v1.ManagedNode{}, err
	}
	return o.nodes.Restart(ctx, name)
}

// ListNodes returns a view entry per managed node. process_count is
// collected sequentially per running node (spec §9: left to the
// implementer, kept sequential to match the straightforward style of
// the teacher's own orchestrator.Down loop); a failed count leaves the
// field null without flipping the node's status (spec §7 policy).
func (o *Operations) ListNodes(ctx context.Context) []v1.NodeListEntry {
	nodes := o.nodes.List()
	out := make([]v1.NodeListEntry, 0, len(nodes))
	for _, n := range nodes {
		entry := v1.NodeListEntry{Name: n.Name, Type: n.Type, Status: n.Status, StartedAt: n.StartedAt}
		if n.Status == v1.NodeRunning {
			erlPath, _, err := o.hosts.Paths(n.HostLabel)
			if err == nil {
				if out1, err := o.eval.RPCPrinted(ctx, n, erlPath, "erlang:system_info(process_count)", 0); err == nil {
					if count, err := strconv.Atoi(strings.TrimSpace(out1)); err == nil {
						entry.ProcessCount = &count
					}
				}
			}
		}
		out = append(out, entry)
	}
	return out
}

// InspectNode returns the fold-over-registered() view (spec §6 inspect-node, §4.F).
func (o *Operations) InspectNode(ctx context.Context, name string) (v1.InspectView, error) {
	if err := o.requireConfigured(); err != nil {
		return v1.InspectView{}, err
	}
	node, err := o.nodes.RequireRunning(name)
	if err != nil {
		return v1.InspectView{}, err
	}
	erlPath, _, err := o.hosts.Paths(node.HostLabel)
	if err != nil {
		return v1.InspectView{}, err
	}

	out, err := o.eval.RPCRaw(ctx, node, erlPath, inspectExpr(), 0)
	if err != nil {
		return v1.InspectView{}, err
	}

	return v1.InspectView{
		NodeName:  node.Name,
		NodeType:  node.Type,
		UptimeMS:  time.Since(node.StartedAt).Milliseconds(),
		Processes: parseProcessInfo(out),
	}, nil
}

// inspectExpr folds over erlang:registered(), printing one pipe-
// delimited record per live registered process (spec §4.F).
func inspectExpr() string {
	return `lists:foreach(fun(N) -> ` +
		`case whereis(N) of undefined -> ok; P -> ` +
		`case erlang:process_info(P, [status, message_queue_len, memory, current_function]) of ` +
		`undefined -> ok; ` +
		`[{status,S},{message_queue_len,Q},{memory,M},{current_function,{Mod,Fun,Ar}}] -> ` +
		`io:format("~s|~s|~p|~p|~s:~s/~p~n", [N, S, Q, M, Mod, Fun, Ar]) end end end, erlang:registered())`
}

// parseProcessInfo parses inspect-node's pipe-delimited records,
// silently dropping any line not containing exactly the expected
// field count (spec §8, boundary behaviour).
func parseProcessInfo(out string) []v1.ProcessInfo {
	lines := strings.Split(out, "\n")
	procs := make([]v1.ProcessInfo, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) != 5 {
			continue
		}
		queueLen, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}
		memory, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			continue
		}
		procs = append(procs, v1.ProcessInfo{
			Name:            fields[0],
			Status:          fields[1],
			MessageQueueLen: queueLen,
			Memory:          memory,
			CurrentFunction: fields[4],
		})
	}
	return procs
}

// DeployModule uploads source via a base64 round-trip and
// compiles-and-loads it, always cleaning up its temp file regardless
// of compile outcome (spec §6 deploy-module, §4.F).
func (o *Operations) DeployModule(ctx context.Context, name, code, language string) (string, error) {
	if err := o.requireConfigured(); err != nil {
		return "", err
	}
	node, err := o.nodes.RequireRunning(name)
	if err != nil {
		return "", err
	}
	erlPath, _, err := o.hosts.Paths(node.HostLabel)
	if err != nil {
		return "", err
	}

	ext := "erl"
	if language == "elixir" {
		ext = "ex"
	}
	tempPath := deployTempName(time.Now().UnixMilli(), ext)
	b64 := base64.StdEncoding.EncodeToString([]byte(code))

	uploadCmd := fmt.Sprintf("printf %%s %s | base64 -d > %s", shellquote.Quote(b64), shellquote.Quote(tempPath))

	target, err := o.hosts.target(node.HostLabel)
	if err != nil {
		return "", err
	}
	if _, err := o.pool().ExecSimple(ctx, target, uploadCmd, 0); err != nil {
		return "", err
	}

	var expr string
	if language == "elixir" {
		expr = deployElixirExpr(tempPath)
	} else {
		expr = deployErlangExpr(tempPath)
	}

	result, evalErr := o.eval.RPCPrinted(ctx, node, erlPath, expr, 0)

	// Cleanup is always attempted; its own failure is not reported (spec §4.F, §7).
	cleanupCmd := fmt.Sprintf("rm -f %s", shellquote.Quote(tempPath))
	_, _ = o.pool().ExecSimple(ctx, target, cleanupCmd, 0)

	return result, evalErr
}

// pool exposes the shared transport pool via the evaluator, since
// deploy-module needs a raw upload exec that isn't an RPC-evaluator
// bootstrap.
func (o *Operations) pool() *Pool {
	return o.eval.pool
}

func deployErlangExpr(tempPath string) string {
	return fmt.Sprintf(
		`case compile:file(%s, [binary, return_errors]) of `+
			`{ok, Mod, Bin} -> {module, Mod} = code:load_binary(Mod, %s, Bin), {ok, Mod}; `+
			`Error -> Error end`,
		shellquote.Quote(strings.TrimSuffix(tempPath, ".erl")), shellquote.Quote(tempPath))
}

func deployElixirExpr(tempPath string) string {
	return fmt.Sprintf(
		`try 'Elixir.Code':compile_file(%s) of Result -> {ok, Result} `+
			`catch Class:Reason -> {error, {Class, Reason}} end`,
		shellquote.Quote(tempPath))
}

// StartGenserver starts a gen_server on the node (spec §6 start-genserver, §4.F).
func (o *Operations) StartGenserver(ctx context.Context, name, module, args, registerAs string) (string, error) {
	if err := o.requireConfigured(); err != nil {
		return "", err
	}
	node, err := o.nodes.RequireRunning(name)
	if err != nil {
		return "", err
	}
	if !shellquote.ValidAtomName(module) {
		return "", errs.Newf(errs.ErrBadAtomName, "operations.startGenserver", "invalid module name %q", module).WithNode(name)
	}
	if registerAs != "" && !shellquote.ValidAtomName(registerAs) {
		return "", errs.Newf(errs.ErrBadAtomName, "operations.startGenserver", "invalid register name %q", registerAs).WithNode(name)
	}
	erlPath, _, err := o.hosts.Paths(node.HostLabel)
	if err != nil {
		return "", err
	}
	if args == "" {
		args = "[]"
	}

	var expr string
	if registerAs != "" {
		expr = fmt.Sprintf(`gen_server:start({local, '%s'}, '%s', %s, [])`, registerAs, module, args)
	} else {
		expr = fmt.Sprintf(`gen_server:start('%s', %s, [])`, module, args)
	}

	return o.eval.RPCPrinted(ctx, node, erlPath, expr, 0)
}

// CallGenserver calls a registered gen_server (spec §6 call-genserver,
// §4.F). The outer SSH timeout is max(callTimeout+5s, 10s) so the
// transport never terminates the RPC before the callee's own timeout
// fires. A printed `{error, _}` result, including the one produced when
// the call itself times out, is returned as RemoteEvalError.
func (o *Operations) CallGenserver(ctx context.Context, name, server, message string, callTimeoutMS int) (string, error) {
	if err := o.requireConfigured(); err != nil {
		return "", err
	}
	node, err := o.nodes.RequireRunning(name)
	if err != nil {
		return "", err
	}
	if !shellquote.ValidAtomName(server) {
		return "", errs.Newf(errs.ErrBadAtomName, "operations.callGenserver", "invalid server name %q", server).WithNode(name)
	}
	erlPath, _, err := o.hosts.Paths(node.HostLabel)
	if err != nil {
		return "", err
	}
	if callTimeoutMS <= 0 {
		callTimeoutMS = 5000
	}

	expr := fmt.Sprintf(`gen_server:call('%s', %s, %d)`, server, message, callTimeoutMS)

	outerTimeout := time.Duration(callTimeoutMS)*time.Millisecond + 5*time.Second
	if outerTimeout < 10*time.Second {
		outerTimeout = 10 * time.Second
	}

	out, err := o.eval.RPCPrinted(ctx, node, erlPath, expr, outerTimeout)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(out, "{error,") {
		return "", errs.Newf(errs.ErrRemoteEval, "operations.callGenserver", "%s", out).WithNode(name)
	}
	return out, nil
}

// StopGenserver stops a registered gen_server (spec §6 stop-genserver, §4.F).
func (o *Operations) StopGenserver(ctx context.Context, name, server string) (string, error) {
	if err := o.requireConfigured(); err != nil {
		return "", err
	}
	node, err := o.nodes.RequireRunning(name)
	if err != nil {
		return "", err
	}
	if !shellquote.ValidAtomName(server) {
		return "", errs.Newf(errs.ErrBadAtomName, "operations.stopGenserver", "invalid server name %q", server).WithNode(name)
	}
	erlPath, _, err := o.hosts.Paths(node.HostLabel)
	if err != nil {
		return "", err
	}

	expr := fmt.Sprintf(`gen_server:stop('%s', normal, 5000)`, server)
	return o.eval.RPCPrinted(ctx, node, erlPath, expr, 0)
}

// StartTrace turns on tracing for a node (spec §6 start-trace, §4.G).
func (o *Operations) StartTrace(ctx context.Context, name string) (string, error) {
	if err := o.requireConfigured(); err != nil {
		return "", err
	}
	node, err := o.nodes.RequireRunning(name)
	if err != nil {
		return "", err
	}
	erlPath, _, err := o.hosts.Paths(node.HostLabel)
	if err != nil {
		return "", err
	}
	return o.trace.Start(ctx, name, erlPath)
}

// StopTrace turns off tracing for a node (spec §6 stop-trace, §4.G).
func (o *Operations) StopTrace(ctx context.Context, name string) (string, error) {
	if err := o.requireConfigured(); err != nil {
		return "", err
	}
	node, err := o.nodes.Get(name)
	if err != nil {
		return "", err
	}
	erlPath, _, err := o.hosts.Paths(node.HostLabel)
	if err != nil {
		return "", err
	}
	return o.trace.Stop(ctx, name, erlPath)
}

// PollTrace returns the most recent poll window's edges (spec §6 poll-trace, §4.G).
func (o *Operations) PollTrace(name string) (v1.TraceView, error) {
	return o.trace.Poll(name)
}
