package bitfield

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsMatchSentinelsByKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		target error
		want   string
	}{
		{
			name:   "value",
			err:    ValueTooLarge("Status", "mode", 4),
			target: ErrValueTooLarge,
			want:   "bitfield Status.mode: value is too big to fit within the field bits (4 bits)",
		},
		{
			name:   "bounds",
			err:    IndexOutOfBounds("Status", 16, 16),
			target: ErrIndexOutOfBounds,
			want:   "bitfield Status: index out of bounds at bit 16 (16 bits)",
		},
		{
			name:   "read",
			err:    NoAccess("Status", 3, false),
			target: ErrNoAccess,
			want:   "bitfield Status: no access at bit 3: can't read from a write-only field",
		},
		{
			name:   "write",
			err:    NoAccess("Status", 3, true),
			target: ErrNoAccess,
			want:   "bitfield Status: no access at bit 3: can't write to a non-writable or padding field",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			wrapped := fmt.Errorf("decode: %w", tc.err)
			if !errors.Is(wrapped, tc.target) {
				t.Fatalf("expected %v to match sentinel", tc.err)
			}
			if got := tc.err.Error(); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestErrorsDoNotMatchOtherKinds(t *testing.T) {
	if errors.Is(ValueTooLarge("T", "f", 1), ErrNoAccess) {
		t.Fatalf("value error must not match ErrNoAccess")
	}
	if errors.Is(errors.New("other"), ErrIndexOutOfBounds) {
		t.Fatalf("plain error must not match ErrIndexOutOfBounds")
	}
}

func TestInvalidLength(t *testing.T) {
	err := InvalidLength("Status", 3, 2)
	if !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
	want := "bitfield Status: invalid encoded length (16 bits): got 3 bytes, want 2"
	if got := err.Error(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
