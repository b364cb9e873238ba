package terminator

import (
	"errors"
	"fmt"
	"testing"
)

func TestTerminate(t *testing.T) {
	term := New()
	err := term.Terminate("index out of range")

	if !IsFatal(err) {
		t.Error("expected Terminate() result to be fatal")
	}
	if err.Error() != "index out of range" {
		t.Errorf("Error() = %q, want %q", err.Error(), "index out of range")
	}
}

func TestTerminateWithCause(t *testing.T) {
	term := New()
	cause := errors.New("connection refused")
	err := term.TerminateWithCause("engine unreachable", cause)

	if !IsFatal(err) {
		t.Error("expected TerminateWithCause() result to be fatal")
	}
	if !errors.Is(err, cause) {
		t.Error("expected Unwrap() to expose the cause via errors.Is")
	}
}

func TestIsFatal_WrappedByFmtErrorf(t *testing.T) {
	term := New()
	fatal := term.Terminate("boom")
	wrapped := fmt.Errorf("download_item failed: %w", fatal)

	if !IsFatal(wrapped) {
		t.Error("expected IsFatal to see through fmt.Errorf wrapping")
	}
}

func TestIsFatal_NonFatalError(t *testing.T) {
	if IsFatal(errors.New("transient")) {
		t.Error("expected a plain error to not be fatal")
	}
	if IsFatal(nil) {
		t.Error("expected nil to not be fatal")
	}
}
