package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewTwiceDoesNotPanicOnDuplicateRegistration(t *testing.T) {
	New("")
	New("")
}

func TestObserveOperationIncrementsByResult(t *testing.T) {
	m := New("")
	m.ObserveOperation("start-node", nil)
	m.ObserveOperation("start-node", errors.New("boom"))
	m.ObserveOperation("start-node", nil)

	if got := testutil.ToFloat64(m.OperationsTotal.WithLabelValues("start-node", "ok")); got != 2 {
		t.Errorf("ok count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.OperationsTotal.WithLabelValues("start-node", "err")); got != 1 {
		t.Errorf("err count = %v, want 1", got)
	}
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	m := New("")
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop on an unstarted server: %v", err)
	}
}
