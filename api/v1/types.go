// Package v1 defines the public data types shared across all beamfleet layers.
package v1

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Status enumerations
// ─────────────────────────────────────────────────────────────────────────────

// NodeType selects which BEAM launcher is used to start a managed node.
type NodeType string

const (
	NodeTypeErlang NodeType = "erlang"
	NodeTypeElixir NodeType = "elixir"
)

// NodeState is the lifecycle state of a managed node.
type NodeState string

const (
	NodeStarting NodeState = "starting"
	NodeRunning  NodeState = "running"
	NodeError    NodeState = "error"
	NodeStopped  NodeState = "stopped"
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration-derived types
// ─────────────────────────────────────────────────────────────────────────────

// HostSpec is the declarative definition of an SSH-accessible host,
// decoded from the SSH_HOSTS environment variable.
type HostSpec struct {
	Label      string `mapstructure:"label"`
	User       string `mapstructure:"user"`
	Hostname   string `mapstructure:"hostname"`
	Port       int    `mapstructure:"port"`
	ErlPath    string `mapstructure:"erl_path"`
	ElixirPath string `mapstructure:"elixir_path"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Runtime state types (in-memory only — never persisted)
// ─────────────────────────────────────────────────────────────────────────────

// ManagedNode is the runtime record for a node this process launched.
type ManagedNode struct {
	Name            string    `json:"name"`
	HostLabel       string    `json:"host_label"`
	RemoteShortHost string    `json:"remote_short_host"`
	Type            NodeType  `json:"type"`
	Cookie          string    `json:"-"` // never serialised — it's a shared secret
	StartedAt       time.Time `json:"started_at"`
	Status          NodeState `json:"status"`
	Generation      uint64    `json:"-"` // internal probe/launch generation marker
}

// FullName returns the BEAM short name `name@remoteShortHost`.
func (n ManagedNode) FullName() string {
	return n.Name + "@" + n.RemoteShortHost
}

// TraceEdge is one `(from, to)` process-name pair with its observed
// message count for the most recent poll window.
type TraceEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// TraceState is the per-node trace supervisor state.
type TraceState struct {
	Active bool        `json:"active"`
	Edges  []TraceEdge `json:"edges"`
}

// ─────────────────────────────────────────────────────────────────────────────
// View payloads (§6) — fixed schema, JSON-null-distinguishable fields
// ─────────────────────────────────────────────────────────────────────────────

// NodeListEntry is one row of the list-nodes view payload.
type NodeListEntry struct {
	Name         string    `json:"name"`
	Type         NodeType  `json:"type"`
	Status       NodeState `json:"status"`
	StartedAt    time.Time `json:"startedAt"`
	ProcessCount *int      `json:"processCount"` // nil => not queryable this tick
}

// ProcessInfo is one row of an inspect-node view payload.
type ProcessInfo struct {
	Name            string `json:"name"`
	Status          string `json:"status"`
	MessageQueueLen int    `json:"messageQueueLen"`
	Memory          int64  `json:"memory"`
	CurrentFunction string `json:"currentFunction"`
}

// InspectView is the inspect-node view payload.
type InspectView struct {
	NodeName  string        `json:"nodeName"`
	NodeType  NodeType      `json:"nodeType"`
	UptimeMS  int64         `json:"uptime"`
	Processes []ProcessInfo `json:"processes"`
}

// TraceView is the poll-trace view payload: per-poll deltas, not
// accumulated — the caller is responsible for cumulative totals.
type TraceView struct {
	Name  string      `json:"name"`
	Edges []TraceEdge `json:"edges"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Operation result
// ─────────────────────────────────────────────────────────────────────────────

// Result is the discriminated `{ok: Text} | {err: Reason}` shape every
// operation returns, per spec §3.
type Result struct {
	OK  string `json:"ok,omitempty"`
	Err string `json:"err,omitempty"`
}

// IsErr reports whether this Result represents a failure.
func (r Result) IsErr() bool { return r.Err != "" }

// Ok constructs a successful Result.
func Ok(text string) Result { return Result{OK: text} }

// ErrResult constructs a failed Result.
func ErrResult(reason string) Result { return Result{Err: reason} }
