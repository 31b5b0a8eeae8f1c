package errs

import (
	"errors"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

// TestKindSurvivesWrapping verifies that kinds can be matched through several layers of context
func TestKindSurvivesWrapping(t *testing.T) {
	err := pkgerrors.Wrapf(ErrChannelNotFound, "%q", "Background")
	err = pkgerrors.Wrap(err, "heatmap")

	if !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("Expected ErrChannelNotFound through wrapping, got %v", err)
	}
	if errors.Is(err, ErrShapeMismatch) {
		t.Error("Did not expect ErrShapeMismatch to match")
	}
	if !strings.Contains(err.Error(), "Background") {
		t.Errorf("Expected message to name the channel, got %q", err.Error())
	}
}

func TestSubprocessError(t *testing.T) {
	err := pkgerrors.Wrap(&SubprocessError{Program: "mibio", ExitCode: 2, Output: "a\nb\n\nfailed\n"}, "bg_au_050")
	if !errors.Is(err, ErrSubprocess) {
		t.Fatalf("Expected ErrSubprocess, got %v", err)
	}

	var se *SubprocessError
	if !errors.As(err, &se) || se.ExitCode != 2 {
		t.Fatalf("Expected SubprocessError with exit code 2, got %v", err)
	}
	if !strings.HasSuffix(err.Error(), "a\nb\nfailed") {
		t.Errorf("Expected output tail in message, got %q", err.Error())
	}
}

func TestTail(t *testing.T) {
	if got := Tail("1\n2\n3\n4\n", 2); got != "3\n4" {
		t.Errorf("Expected \"3\\n4\", got %q", got)
	}
	if got := Tail("", 3); got != "" {
		t.Errorf("Expected empty tail, got %q", got)
	}
}
