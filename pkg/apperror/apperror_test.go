package apperror

import (
	"context"
	"errors"
	"testing"
)

func TestValidationErrorMessage(t *testing.T) {
	err := NewValidation("name %q is empty", "")
	if err.Error() != `validation: name "" is empty` {
		t.Fatalf("got %q", err.Error())
	}
}

func TestAbortErrorUnwrapsContextCancelled(t *testing.T) {
	err := NewAbort(context.Canceled)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected AbortError to unwrap to context.Canceled")
	}
}

func TestDecryptionErrorUnwraps(t *testing.T) {
	cause := errors.New("bad key")
	err := NewDecryption("content-key", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected DecryptionError to unwrap to cause")
	}
}

func TestNotFoundErrorAs(t *testing.T) {
	var err error = NewNotFound("node", "vol1~node1")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected errors.As to match NotFoundError")
	}
	if nf.Kind != "node" || nf.UID != "vol1~node1" {
		t.Fatalf("got %+v", nf)
	}
}

func TestTransportErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewTransport("GetNode", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected TransportError to unwrap to cause")
	}
}

func TestInternalErrorMessage(t *testing.T) {
	err := NewInternal("operation %s requires a folder", "move")
	if err.Error() != "internal: operation move requires a folder" {
		t.Fatalf("got %q", err.Error())
	}
}
