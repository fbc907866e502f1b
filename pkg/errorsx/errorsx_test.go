package errorsx

import (
	"fmt"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonTransport)
	if Reason(err) != ReasonTransport {
		t.Fatalf("expected reason %s, got %s", ReasonTransport, Reason(err))
	}
	if !HasReason(err, ReasonTransport) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonDecode)
	second := Wrap(fmt.Errorf("outer: %w", first), ReasonShape)
	if Reason(second) != ReasonDecode {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestNewFormatsMessage(t *testing.T) {
	err := New(ReasonConfig, "missing %s", "api key")
	if err.Error() != "missing api key" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if Reason(err).Absorbable() {
		t.Fatalf("config failures must not be absorbable")
	}
	if !ReasonTransport.Absorbable() {
		t.Fatalf("transport failures should be absorbable")
	}
}

func TestReasonNil(t *testing.T) {
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("expected unknown reason for nil error")
	}
	if Wrap(nil, ReasonShape) != nil {
		t.Fatalf("expected nil wrap of nil error")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
