package remote

import (
	"testing"
	"time"

	v1 "github.com/f9-o/beamfleet/api/v1"
	"github.com/f9-o/beamfleet/pkg/errs"
)

func TestNewNodeRegistryFallsBackToDefaultProbeDelay(t *testing.T) {
	r := NewNodeRegistry(nil, nil, nil, nil, 0)
	if r.probeDelay != defaultProbeDelay {
		t.Errorf("probeDelay = %v, want default %v", r.probeDelay, defaultProbeDelay)
	}
}

func TestNewNodeRegistryHonoursConfiguredProbeDelay(t *testing.T) {
	r := NewNodeRegistry(nil, nil, nil, nil, 500*time.Millisecond)
	if r.probeDelay != 500*time.Millisecond {
		t.Errorf("probeDelay = %v, want 500ms", r.probeDelay)
	}
}

func TestRequireRunningReportsBadStateForNonRunningNode(t *testing.T) {
	r := NewNodeRegistry(nil, nil, nil, nil, 0)
	r.nodes["w1"] = &nodeEntry{node: v1.ManagedNode{Name: "w1", Status: v1.NodeStarting}}

	_, err := r.RequireRunning("w1")
	if err == nil {
		t.Fatal("RequireRunning on a starting node should error")
	}
	if !errs.IsCode(err, errs.ErrNodeBadState) {
		t.Fatalf("RequireRunning(%v) err = %v, want ErrNodeBadState", v1.NodeStarting, err)
	}
}

func TestRequireRunningReportsUnknownForMissingNode(t *testing.T) {
	r := NewNodeRegistry(nil, nil, nil, nil, 0)
	_, err := r.RequireRunning("ghost")
	if !errs.IsCode(err, errs.ErrNodeUnknown) {
		t.Fatalf("RequireRunning(ghost) err = %v, want ErrNodeUnknown", err)
	}
}
