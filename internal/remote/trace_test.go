package remote

import (
	"strings"
	"testing"

	v1 "github.com/f9-o/beamfleet/api/v1"
	"github.com/f9-o/beamfleet/pkg/errs"
)

func TestParseTraceEdgesDropsMalformedLines(t *testing.T) {
	out := strings.Join([]string{
		"pid1|pid2|4",
		"this has only one pipe|oops",
		"pid2|pid3|notanumber",
		"pid3|pid4|9",
	}, "\n")

	got := parseTraceEdges(out)
	want := []v1.TraceEdge{
		{From: "pid1", To: "pid2", Count: 4},
		{From: "pid3", To: "pid4", Count: 9},
	}
	if len(got) != len(want) {
		t.Fatalf("parseTraceEdges returned %d edges, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("edge %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseTraceEdgesEmpty(t *testing.T) {
	if got := parseTraceEdges(""); len(got) != 0 {
		t.Fatalf("parseTraceEdges(\"\") = %+v, want empty", got)
	}
}

func TestPollIsNodeUnknownWhenNotTracing(t *testing.T) {
	s := NewTraceSupervisor(nil, nil, nil, 0)
	_, err := s.Poll("w1")
	if !errs.IsCode(err, errs.ErrNodeUnknown) {
		t.Fatalf("Poll on an untraced node err = %v, want ErrNodeUnknown", err)
	}
}
