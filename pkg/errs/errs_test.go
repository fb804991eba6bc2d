package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewfFormatsCauseAndCode(t *testing.T) {
	err := Newf(ErrNodeUnknown, "nodes.get", "node %q not found", "w1").WithNode("w1")

	if err.Code != ErrNodeUnknown {
		t.Fatalf("Code = %v, want %v", err.Code, ErrNodeUnknown)
	}
	want := `[NodeUnknown] nodes.get (w1): node "w1" not found`
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestErrorOmitsNodeWhenUnset(t *testing.T) {
	err := New(ErrConfigMissing, "transport.dial", fmt.Errorf("no SSH private key configured"))
	want := "[ConfigMissing] transport.dial: no SSH private key configured"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if got := Wrap(nil, ErrSshDial, "transport.dial"); got != nil {
		t.Fatalf("Wrap(nil, ...) = %v, want nil", got)
	}
}

func TestIsCodeAndAsFleet(t *testing.T) {
	fe := Newf(ErrNameTaken, "nodes.start", "node %q already exists", "w1")
	var wrapped error = fmt.Errorf("start failed: %w", fe)

	if !IsCode(wrapped, ErrNameTaken) {
		t.Fatal("IsCode should see through fmt.Errorf's %w wrapping")
	}
	if IsCode(wrapped, ErrNodeUnknown) {
		t.Fatal("IsCode should not match an unrelated code")
	}

	got := AsFleet(wrapped)
	if got == nil || got.Code != ErrNameTaken {
		t.Fatalf("AsFleet = %v, want a FleetError with code %v", got, ErrNameTaken)
	}

	if AsFleet(errors.New("plain error")) != nil {
		t.Fatal("AsFleet should return nil for a non-FleetError")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	fe := New(ErrSshSpawn, "transport.execStream", cause)
	if !errors.Is(fe, cause) {
		t.Fatal("errors.Is should see through FleetError.Unwrap")
	}
}
