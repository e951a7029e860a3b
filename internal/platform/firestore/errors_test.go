package firestore

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestWrapErrorNil(t *testing.T) {
	if err := WrapError("orders.find_by_id", nil); err != nil {
		t.Fatalf("expected nil got %v", err)
	}
}

func TestWrapErrorClassification(t *testing.T) {
	cases := []struct {
		name        string
		code        codes.Code
		notFound    bool
		conflict    bool
		unavailable bool
	}{
		{name: "not found", code: codes.NotFound, notFound: true},
		{name: "already exists", code: codes.AlreadyExists, conflict: true},
		{name: "aborted transaction", code: codes.Aborted, conflict: true},
		{name: "failed precondition", code: codes.FailedPrecondition, conflict: true},
		{name: "backend unavailable", code: codes.Unavailable, unavailable: true},
		{name: "quota exhausted", code: codes.ResourceExhausted, unavailable: true},
		{name: "unclassified", code: codes.PermissionDenied},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := WrapError("orders.save", status.Error(tc.code, "firestore failure"))
			var repoErr *Error
			if !errors.As(wrapped, &repoErr) {
				t.Fatalf("expected *Error got %T", wrapped)
			}
			if repoErr.IsNotFound() != tc.notFound {
				t.Fatalf("IsNotFound = %v want %v", repoErr.IsNotFound(), tc.notFound)
			}
			if repoErr.IsConflict() != tc.conflict {
				t.Fatalf("IsConflict = %v want %v", repoErr.IsConflict(), tc.conflict)
			}
			if repoErr.IsUnavailable() != tc.unavailable {
				t.Fatalf("IsUnavailable = %v want %v", repoErr.IsUnavailable(), tc.unavailable)
			}
		})
	}
}

func TestWrapErrorKeepsOperationLabel(t *testing.T) {
	wrapped := WrapError("orders.find_by_session", status.Error(codes.NotFound, "no document"))
	if got := wrapped.Error(); got != "orders.find_by_session: rpc error: code = NotFound desc = no document" {
		t.Fatalf("unexpected error text %q", got)
	}
}

func TestWrapErrorContextPassthrough(t *testing.T) {
	if err := WrapError("orders.save", context.Canceled); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled got %v", err)
	}
	if err := WrapError("orders.save", status.Error(codes.Canceled, "canceled")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected grpc Canceled mapped to context.Canceled got %v", err)
	}
	if err := WrapError("orders.save", status.Error(codes.DeadlineExceeded, "deadline")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected grpc DeadlineExceeded mapped got %v", err)
	}
}

func TestWrapErrorDoesNotRelabel(t *testing.T) {
	inner := WrapError("carts.save", status.Error(codes.Aborted, "contention"))
	outer := WrapError("carts.checkout", inner)

	var repoErr *Error
	if !errors.As(outer, &repoErr) {
		t.Fatalf("expected *Error got %T", outer)
	}
	if repoErr.op != "carts.save" {
		t.Fatalf("expected original op kept, got %q", repoErr.op)
	}
}
