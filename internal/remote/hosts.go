package remote

import (
	"context"
	"strings"
	"sync"

	v1 "github.com/f9-o/beamfleet/api/v1"
	"github.com/f9-o/beamfleet/pkg/errs"
)

// hostEntry is the registry's mutable record for one configured host.
// remoteShortHost and resolved are the only fields mutated after
// init, and only by ShortHostname. The SSH connection itself is cached
// by the Pool, not here.
type hostEntry struct {
	spec            v1.HostSpec
	remoteShortHost string
	resolved        bool
}

// HostRegistry is the keyed, read-mostly mapping from host label to its
// SSH configuration and cached short hostname. Populated once at
// startup; never reloaded at runtime.
type HostRegistry struct {
	mu    sync.Mutex
	hosts map[string]*hostEntry
	pool  *Pool
}

// NewHostRegistry populates a HostRegistry from the given host specs.
func NewHostRegistry(specs []v1.HostSpec, pool *Pool) *HostRegistry {
	hosts := make(map[string]*hostEntry, len(specs))
	for _, s := range specs {
		hosts[s.Label] = &hostEntry{spec: s}
	}
	return &HostRegistry{hosts: hosts, pool: pool}
}

// Get returns the HostSpec for label, or ErrUnknownHost.
func (r *HostRegistry) Get(label string) (v1.HostSpec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.hosts[label]
	if !ok {
		return v1.HostSpec{}, errs.Newf(errs.ErrUnknownHost, "hosts.get", "unknown host %q", label)
	}
	return e.spec, nil
}

// Any reports whether at least one host is configured (part of the
// configuration-guard precheck, spec §4.F).
func (r *HostRegistry) Any() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hosts) > 0
}

// Default returns the label of the host used when an operation's
// caller doesn't name one explicitly: the lexicographically smallest
// configured label, so the choice is stable within a process (the host
// list is never reloaded after startup).
func (r *HostRegistry) Default() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	best, found := "", false
	for label := range r.hosts {
		if !found || label < best {
			best, found = label, true
		}
	}
	return best, found
}

// ShortHostname returns the host's remote short hostname, resolving it
// via `hostname -s` on first use and caching it for the process
// lifetime (spec §4.B: "resolved lazily on first successful connect
// and cached until process exit").
func (r *HostRegistry) ShortHostname(ctx context.Context, label string) (string, error) {
	r.mu.Lock()
	e, ok := r.hosts[label]
	if !ok {
		r.mu.Unlock()
		return "", errs.Newf(errs.ErrUnknownHost, "hosts.shortHostname", "unknown host %q", label)
	}
	if e.resolved {
		short := e.remoteShortHost
		r.mu.Unlock()
		return short, nil
	}
	spec := e.spec
	r.mu.Unlock()

	target := dialTarget{label: spec.Label, user: spec.User, hostname: spec.Hostname, port: spec.Port}
	out, err := r.pool.ExecSimple(ctx, target, "hostname -s", 0)
	short := strings.TrimSpace(out)
	if err != nil || short == "" {
		// Fall back to the domain's leftmost label of `hostname` (spec §4.B).
		short = leftmostLabel(spec.Hostname)
	}

	r.mu.Lock()
	if e2, ok := r.hosts[label]; ok && !e2.resolved {
		e2.remoteShortHost = short
		e2.resolved = true
	}
	r.mu.Unlock()

	return short, nil
}

// leftmostLabel returns the first dot-separated component of a domain
// name, e.g. "db-01.internal.example.com" → "db-01".
func leftmostLabel(hostname string) string {
	if i := strings.IndexByte(hostname, '.'); i >= 0 {
		return hostname[:i]
	}
	return hostname
}

// target builds the dial target for a host label.
func (r *HostRegistry) target(label string) (dialTarget, error) {
	spec, err := r.Get(label)
	if err != nil {
		return dialTarget{}, err
	}
	return dialTarget{label: spec.Label, user: spec.User, hostname: spec.Hostname, port: spec.Port}, nil
}

// Paths returns the configured erl and elixir launcher paths for label.
func (r *HostRegistry) Paths(label string) (erlPath, elixirPath string, err error) {
	spec, err := r.Get(label)
	if err != nil {
		return "", "", err
	}
	erlPath = spec.ErlPath
	if erlPath == "" {
		erlPath = "erl"
	}
	elixirPath = spec.ElixirPath
	if elixirPath == "" {
		elixirPath = "elixir"
	}
	return erlPath, elixirPath, nil
}
