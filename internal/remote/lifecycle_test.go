package remote

import (
	"strings"
	"testing"

	v1 "github.com/f9-o/beamfleet/api/v1"
)

func TestParseProcessInfoDropsMalformedLines(t *testing.T) {
	out := strings.Join([]string{
		"init|running|0|2704|init:loop/1",
		"not a valid line",
		"code_server|running|3|1048|code_server:loop/1",
	}, "\n")

	got := parseProcessInfo(out)
	want := []v1.ProcessInfo{
		{Name: "init", Status: "running", MessageQueueLen: 0, Memory: 2704, CurrentFunction: "init:loop/1"},
		{Name: "code_server", Status: "running", MessageQueueLen: 3, Memory: 1048, CurrentFunction: "code_server:loop/1"},
	}
	if len(got) != len(want) {
		t.Fatalf("parseProcessInfo returned %d entries, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseProcessInfoEmpty(t *testing.T) {
	if got := parseProcessInfo(""); len(got) != 0 {
		t.Fatalf("parseProcessInfo(\"\") = %+v, want empty", got)
	}
}

func TestDeployErlangExprUsesBaseNameWithoutExtension(t *testing.T) {
	expr := deployErlangExpr("/tmp/mcp_deploy_123.erl")
	if !strings.Contains(expr, "'/tmp/mcp_deploy_123'") {
		t.Fatalf("deployErlangExpr should compile the extensionless module path, got: %s", expr)
	}
	if !strings.Contains(expr, "'/tmp/mcp_deploy_123.erl'") {
		t.Fatalf("deployErlangExpr should load the binary from the original temp path, got: %s", expr)
	}
}

func TestDeployElixirExprWrapsInTryCatch(t *testing.T) {
	expr := deployElixirExpr("/tmp/mcp_deploy_456.ex")
	if !strings.Contains(expr, "try 'Elixir.Code':compile_file") {
		t.Fatalf("deployElixirExpr should call Code.compile_file, got: %s", expr)
	}
	if !strings.Contains(expr, "catch Class:Reason") {
		t.Fatalf("deployElixirExpr should catch compile errors, got: %s", expr)
	}
}

func TestPathPrefixOnlyAppliesToAbsolutePaths(t *testing.T) {
	if got := pathPrefix("erl"); got != "" {
		t.Fatalf("pathPrefix(%q) = %q, want empty for a bare $PATH lookup", "erl", got)
	}
	got := pathPrefix("/opt/erl/bin/erl")
	if !strings.HasPrefix(got, "PATH=") || !strings.Contains(got, "/opt/erl/bin") {
		t.Fatalf("pathPrefix(%q) = %q, want a PATH= assignment naming the binary's dir", "/opt/erl/bin/erl", got)
	}
}
