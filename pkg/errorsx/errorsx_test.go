package errorsx

import "testing"

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonConnectionFailed)
	if Reason(err) != ReasonConnectionFailed {
		t.Fatalf("expected reason %s, got %s", ReasonConnectionFailed, Reason(err))
	}
	if !HasReason(err, ReasonConnectionFailed) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonMediaAccessDenied)
	second := Wrap(first, ReasonConnectionFailed)
	if Reason(second) != ReasonMediaAccessDenied {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestNewCarriesReason(t *testing.T) {
	err := New(ReasonPersistenceFailure, "sink unavailable")
	if Reason(err) != ReasonPersistenceFailure {
		t.Fatalf("expected reason %s, got %s", ReasonPersistenceFailure, Reason(err))
	}
	if err.Error() != "sink unavailable" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
