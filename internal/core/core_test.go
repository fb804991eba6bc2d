package core

import (
	"context"
	"strings"
	"testing"

	v1 "github.com/f9-o/beamfleet/api/v1"
	"github.com/f9-o/beamfleet/internal/core/config"
	"github.com/f9-o/beamfleet/internal/core/logger"
	"github.com/f9-o/beamfleet/internal/metrics"
)

func testCore(t *testing.T) *Core {
	t.Helper()
	log, err := logger.Init("error", "text", "", "", false)
	if err != nil {
		t.Fatalf("logger.Init: %v", err)
	}
	return New(&config.Config{}, log, metrics.New(""))
}

func TestListNodesOnEmptyFleet(t *testing.T) {
	c := testCore(t)
	entries := c.ListNodes(context.Background())
	if len(entries) != 0 {
		t.Fatalf("ListNodes = %+v, want empty", entries)
	}
}

func TestStopUnknownNodeIsNodeUnknown(t *testing.T) {
	c := testCore(t)
	result := c.StopNode("ghost")
	if !result.IsErr() || !strings.Contains(result.Err, "NodeUnknown") {
		t.Fatalf("StopNode(ghost) = %+v, want a NodeUnknown error", result)
	}
}

func TestInspectNodeWithoutConfiguredHostsIsConfigMissing(t *testing.T) {
	// inspect-node runs the configuration precheck before looking the
	// node up, so an empty fleet surfaces ConfigMissing rather than
	// NodeUnknown even for a name that was never started.
	c := testCore(t)
	_, result := c.InspectNode(context.Background(), "ghost")
	if !result.IsErr() || !strings.Contains(result.Err, "ConfigMissing") {
		t.Fatalf("InspectNode(ghost) result = %+v, want a ConfigMissing error", result)
	}
}

func TestStartNodeWithoutConfiguredHostsIsConfigMissing(t *testing.T) {
	c := testCore(t)
	result := c.StartNode(context.Background(), "w1", v1.NodeTypeErlang, "", "")
	if !result.IsErr() || !strings.Contains(result.Err, "ConfigMissing") {
		t.Fatalf("StartNode with no hosts configured = %+v, want a ConfigMissing error", result)
	}
}

func TestShutdownOnEmptyFleetDoesNotPanic(t *testing.T) {
	c := testCore(t)
	c.Shutdown()
}
