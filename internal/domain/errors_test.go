package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundMatchesSentinelWhenWrappingAKind(t *testing.T) {
	err := fmt.Errorf("quote: %w", NotFoundError{Resource: "fare", Err: ErrFareNotFound})

	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound to match %v", err)
	}
	if !errors.Is(err, ErrFareNotFound) {
		t.Fatalf("expected the wrapped kind to match %v", err)
	}
	if got := Code(err); got != "fare_not_found" {
		t.Fatalf("code = %q, want fare_not_found", got)
	}
	if !errors.Is(NotFoundError{Resource: "trip"}, ErrNotFound) {
		t.Fatalf("bare NotFoundError must match ErrNotFound")
	}
}

func TestCodes(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ConflictError{Resource: "trip", Err: ErrActiveTripExists}, "active_trip_exists"},
		{ValidationError{Field: "seq"}, "validation_error"},
		{UploadError{RecordType: "ticket", Err: errors.Join(ErrTimeout, errors.New("slow"))}, "timeout"},
		{UploadError{RecordType: "ticket"}, "upload_failed"},
		{NotFoundError{Resource: "ticket"}, "not_found"},
		{errors.New("boom"), "internal_error"},
	}
	for _, tc := range cases {
		if got := Code(tc.err); got != tc.want {
			t.Errorf("Code(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
