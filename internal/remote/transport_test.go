package remote

import (
	"testing"
	"time"

	"github.com/f9-o/beamfleet/pkg/sshutil"
)

func TestNewPoolFallsBackToDefaultsWhenTunablesAreZero(t *testing.T) {
	p := NewPool(nil, nil, 0, 0, 0)
	if p.execTimeout != sshutil.DefaultExecTimeout {
		t.Errorf("execTimeout = %v, want default %v", p.execTimeout, sshutil.DefaultExecTimeout)
	}
	if p.keepaliveInterval != sshutil.KeepAliveInterval {
		t.Errorf("keepaliveInterval = %v, want default %v", p.keepaliveInterval, sshutil.KeepAliveInterval)
	}
	if p.dialTimeout != 0 {
		t.Errorf("dialTimeout = %v, want 0 (sshutil.ClientConfig applies its own fallback)", p.dialTimeout)
	}
}

func TestNewPoolHonoursConfiguredTunables(t *testing.T) {
	p := NewPool(nil, nil, 5*time.Second, 20*time.Second, 30*time.Second)
	if p.dialTimeout != 5*time.Second {
		t.Errorf("dialTimeout = %v, want 5s", p.dialTimeout)
	}
	if p.execTimeout != 20*time.Second {
		t.Errorf("execTimeout = %v, want 20s", p.execTimeout)
	}
	if p.keepaliveInterval != 30*time.Second {
		t.Errorf("keepaliveInterval = %v, want 30s", p.keepaliveInterval)
	}
}
