package remote

import (
	"context"
	"fmt"
	"math/rand"
	"path"
	"strconv"
	"strings"
	"time"

	v1 "github.com/f9-o/beamfleet/api/v1"
	"github.com/f9-o/beamfleet/pkg/errs"
	"github.com/f9-o/beamfleet/pkg/shellquote"
)

// unreachableSentinel is the exact stdout line printed by a bootstrap
// node when its ping to the target comes back `pang` (spec §4.D).
const unreachableSentinel = "error:node_unreachable"

// Evaluator synthesises ephemeral "bootstrap" BEAM nodes that perform
// one RPC against a managed node and exit, per spec §4.D. No
// persistent agent ever runs on the target.
type Evaluator struct {
	pool  *Pool
	hosts *HostRegistry
}

// NewEvaluator constructs an Evaluator backed by the given pool and
// host registry.
func NewEvaluator(pool *Pool, hosts *HostRegistry) *Evaluator {
	return &Evaluator{pool: pool, hosts: hosts}
}

// randomBootstrapName returns a unique short name of the form
// `<prefix>_<ms-epoch>_<6-random-base36>` (spec §6).
func randomBootstrapName(prefix string, nowMS int64) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, 6)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return fmt.Sprintf("%s_%d_%s", prefix, nowMS, string(b))
}

// pathPrefix returns the `PATH=<dir>:$PATH ` assignment needed so that
// `elixir` (or `erl` invoked via an absolute path) can find its own
// `erl` binary on the remote host (spec §4.D).
func pathPrefix(binPath string) string {
	if !strings.HasPrefix(binPath, "/") {
		return ""
	}
	return fmt.Sprintf("PATH=%s:$PATH ", shellquote.Quote(path.Dir(binPath)))
}

// bootstrapCmd builds the shell command line that launches an ephemeral
// `erl` bootstrap node, pings target, and either prints a sentinel on
// failure or evaluates expr via rpc:call and prints (for printed=true)
// or simply runs (for printed=false) the result.
func bootstrapCmd(erlPath, bootstrapName, cookie, targetFullName, expr string, printed bool, execTimeout time.Duration) string {
	var resultExpr string
	if printed {
		resultExpr = fmt.Sprintf(
			`case rpc:call(TargetNode, erlang, apply, [fun() -> %s end, []]) of `+
				`{badrpc, Reason} -> io:format("~p~n", [{error, Reason}]); `+
				`Result -> io:format("~p~n", [Result]) end`,
			expr,
		)
	} else {
		resultExpr = fmt.Sprintf(
			`rpc:call(TargetNode, erlang, apply, [fun() -> %s end, []])`,
			expr,
		)
	}

	eval := fmt.Sprintf(
		`TargetNode = '%s', case net_adm:ping(TargetNode) of `+
			`pang -> io:format("%s~n"), halt(1); `+
			`pong -> %s, halt(0) end.`,
		targetFullName, unreachableSentinel, resultExpr,
	)

	// -noshell with -eval runs the expression and exits on its own via
	// halt(0) or halt(1) above; -noinput avoids waiting on stdin.
	cmd := fmt.Sprintf(
		`%s -sname %s -setcookie %s -noshell -noinput -eval %s`,
		erlPath,
		shellquote.Quote(bootstrapName),
		shellquote.Quote(cookie),
		shellquote.Quote(eval),
	)

	return pathPrefix(erlPath) + cmd
}

// RPCPrinted evaluates expr on target and returns its pretty-printed
// textual representation (spec §4.D, rpcPrinted).
func (e *Evaluator) RPCPrinted(ctx context.Context, node v1.ManagedNode, erlPath string, expr string, timeout time.Duration) (string, error) {
	return e.eval(ctx, node, erlPath, expr, true, timeout)
}

// RPCRaw fires a side-effectful expression and returns whatever the
// ephemeral node printed — used when expr controls its own output
// formatting (spec §4.D, rpcRaw).
func (e *Evaluator) RPCRaw(ctx context.Context, node v1.ManagedNode, erlPath string, expr string, timeout time.Duration) (string, error) {
	return e.eval(ctx, node, erlPath, expr, false, timeout)
}

func (e *Evaluator) eval(ctx context.Context, node v1.ManagedNode, erlPath string, expr string, printed bool, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	target, err := e.hosts.target(node.HostLabel)
	if err != nil {
		return "", err
	}

	bootstrap := randomBootstrapName("mcptmp", time.Now().UnixMilli())

	cmd := bootstrapCmd(erlPath, bootstrap, node.Cookie, node.FullName(), expr, printed, timeout)

	out, err := e.pool.ExecSimple(ctx, target, cmd, timeout)
	if err != nil {
		if fe := errs.AsFleet(err); fe != nil {
			return "", fe
		}
		return "", errs.Wrap(err, errs.ErrSshDial, "evaluator.eval").WithNode(node.Name)
	}

	if strings.Contains(out, unreachableSentinel) {
		return "", errs.Newf(errs.ErrNodeUnreach, "evaluator.eval", "node %s unreachable", node.FullName()).WithNode(node.Name)
	}

	return out, nil
}

// Probe evaluates the stock net_adm:ping expression against target and
// reports whether it answered `pong` (spec §4.E's 2s start-probe). It
// uses the "mcpchk_" bootstrap name family (spec §6) to distinguish
// probes operationally from ordinary evaluation bootstraps.
func (e *Evaluator) Probe(ctx context.Context, node v1.ManagedNode, erlPath string, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	target, err := e.hosts.target(node.HostLabel)
	if err != nil {
		return false, err
	}

	bootstrap := checkBootstrapName(time.Now().UnixMilli())
	cmd := probeCmd(erlPath, bootstrap, node.Cookie, node.FullName())

	out, err := e.pool.ExecSimple(ctx, target, cmd, timeout)
	if err != nil {
		if fe := errs.AsFleet(err); fe != nil {
			return false, fe
		}
		return false, errs.Wrap(err, errs.ErrSshDial, "evaluator.probe").WithNode(node.Name)
	}

	return strings.TrimSpace(out) == "pong", nil
}

// probeCmd builds the bootstrap command used purely to confirm
// reachability: it pings target and prints "pong" or the unreachable
// sentinel, with no further rpc:call.
func probeCmd(erlPath, bootstrapName, cookie, targetFullName string) string {
	eval := fmt.Sprintf(
		`TargetNode = '%s', case net_adm:ping(TargetNode) of `+
			`pang -> io:format("%s~n"), halt(1); `+
			`pong -> io:format("pong~n"), halt(0) end.`,
		targetFullName, unreachableSentinel,
	)
	cmd := fmt.Sprintf(
		`%s -sname %s -setcookie %s -noshell -noinput -eval %s`,
		erlPath,
		shellquote.Quote(bootstrapName),
		shellquote.Quote(cookie),
		shellquote.Quote(eval),
	)
	return pathPrefix(erlPath) + cmd
}

// checkBootstrapName returns a unique short name for the probe family,
// distinguishing it operationally from evaluation bootstraps (spec §6:
// "mcpchk_<…> for probes").
func checkBootstrapName(nowMS int64) string {
	return randomBootstrapName("mcpchk", nowMS)
}

// deployTempName builds the remote temp-file path used by deploy-module
// (spec §4.F): /tmp/mcp_deploy_<ts>.<ext>
func deployTempName(nowMS int64, ext string) string {
	return "/tmp/mcp_deploy_" + strconv.FormatInt(nowMS, 10) + "." + ext
}
