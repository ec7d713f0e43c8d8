package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := NewError(ErrRetrievalUnavailable, "qdrant search failed").WithCause(cause)

	if !errors.Is(err, cause) {
		t.Fatal("errors.Is must see the cause through Unwrap")
	}
	if got := err.Error(); got != "[RETRIEVAL_UNAVAILABLE] qdrant search failed: connection refused" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestGetErrorCode(t *testing.T) {
	t.Parallel()

	base := NewError(ErrGenerationFailed, "provider died")

	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"direct", base, ErrGenerationFailed},
		{"fmt wrapped", fmt.Errorf("run graph: %w", base), ErrGenerationFailed},
		{"double wrapped", fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", base)), ErrGenerationFailed},
		{"plain error", errors.New("nope"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.want {
				t.Fatalf("GetErrorCode() = %q, want %q", got, tt.want)
			}
		})
	}
}
