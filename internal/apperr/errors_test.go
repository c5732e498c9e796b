package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("place order: %w", NotFound("product not found"))
	if KindOf(err) != KindNotFound {
		t.Fatalf("KindOf = %v", KindOf(err))
	}
	if !Is(err, KindNotFound) {
		t.Fatal("Is(NotFound) = false")
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatal("plain errors must classify as internal")
	}
	if Is(nil, KindInternal) {
		t.Fatal("nil error classified")
	}
}

func TestInternalHidesDetail(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := Internal(cause)
	if err.Message != "internal server error" {
		t.Fatalf("message = %q", err.Message)
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause not reachable through Unwrap")
	}
}

func TestFields(t *testing.T) {
	var f Fields
	if f.Err("invalid") != nil {
		t.Fatal("empty Fields produced an error")
	}
	f.Add("name", "is required")
	err := f.Err("invalid catalog")
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindValidation || len(e.Fields) != 1 {
		t.Fatalf("unexpected error %#v", err)
	}
}
