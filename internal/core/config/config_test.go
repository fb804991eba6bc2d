package config

import (
	"reflect"
	"testing"

	v1 "github.com/f9-o/beamfleet/api/v1"
)

func TestParseHostsWellFormed(t *testing.T) {
	got := ParseHosts("a:u@h")
	want := []v1.HostSpec{{Label: "a", User: "u", Hostname: "h", Port: 22, ErlPath: "erl", ElixirPath: "elixir"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseHosts = %+v, want %+v", got, want)
	}
}

func TestParseHostsFullGrammar(t *testing.T) {
	got := ParseHosts("db:deploy@10.0.0.1:2222:/opt/erl/bin/erl:/opt/elixir/bin/elixir")
	want := []v1.HostSpec{{
		Label: "db", User: "deploy", Hostname: "10.0.0.1", Port: 2222,
		ErlPath: "/opt/erl/bin/erl", ElixirPath: "/opt/elixir/bin/elixir",
	}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseHosts = %+v, want %+v", got, want)
	}
}

func TestParseHostsSkipsMalformedEntries(t *testing.T) {
	// "foo" has no ':'; "foo:" has an empty rest; "foo:bar" has no '@'.
	// A well-formed entry following malformed ones is still accepted
	// (spec §8 boundary behaviour).
	got := ParseHosts("foo,foo:,foo:bar,a:u@h")
	want := []v1.HostSpec{{Label: "a", User: "u", Hostname: "h", Port: 22, ErlPath: "erl", ElixirPath: "elixir"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseHosts = %+v, want %+v", got, want)
	}
}

func TestParseHostsEmpty(t *testing.T) {
	if got := ParseHosts(""); len(got) != 0 {
		t.Fatalf("ParseHosts(\"\") = %+v, want empty", got)
	}
}

func TestParseHostsBadPortFallsBackToDefault(t *testing.T) {
	got := ParseHosts("a:u@h:notaport")
	if len(got) != 1 || got[0].Port != 22 {
		t.Fatalf("ParseHosts = %+v, want port 22 fallback", got)
	}
}

func TestIsSensitiveKey(t *testing.T) {
	sensitive := []string{"ssh.password", "SSH_PRIVATE_KEY", "node.cookie", "api_token", "passphrase"}
	for _, k := range sensitive {
		if !IsSensitiveKey(k) {
			t.Errorf("IsSensitiveKey(%q) = false, want true", k)
		}
	}
	if IsSensitiveKey("log.level") {
		t.Error("IsSensitiveKey(\"log.level\") = true, want false")
	}
}
