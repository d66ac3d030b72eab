package errors

import (
	"errors"
	"testing"
	"time"
)

func TestSearchErrorBasics(t *testing.T) {
	underlying := errors.New("underlying error")
	err := New(KindPerFile, "stat", underlying).
		WithPath("/path/to/file").
		WithRecoverable(true)

	if err.Kind != KindPerFile {
		t.Errorf("Kind = %v, want %v", err.Kind, KindPerFile)
	}
	if err.Path != "/path/to/file" {
		t.Errorf("Path = %q", err.Path)
	}
	if err.Op != "stat" {
		t.Errorf("Op = %q", err.Op)
	}
	if !errors.Is(err, underlying) {
		t.Errorf("expected error to unwrap to underlying")
	}
	if !err.Recoverable {
		t.Errorf("expected Recoverable true")
	}

	want := `per_file: stat /path/to/file: underlying error`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestSearchErrorWithoutPath(t *testing.T) {
	err := New(KindConfig, "acl-probe", errors.New("unsupported"))
	want := "config: acl-probe: unsupported"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsRace(t *testing.T) {
	race := New(KindRace, "stat", errors.New("no such file or directory"))
	if !IsRace(race) {
		t.Errorf("expected IsRace to recognize a KindRace error")
	}

	other := New(KindPerFile, "stat", errors.New("permission denied"))
	if IsRace(other) {
		t.Errorf("expected IsRace to reject a non-race error")
	}
	if IsRace(errors.New("plain error")) {
		t.Errorf("expected IsRace to reject a non-SearchError")
	}
}

func TestMultiError(t *testing.T) {
	var m MultiError
	if m.HasErrors() {
		t.Errorf("expected empty MultiError to report no errors")
	}
	if got := m.Error(); got != "no errors" {
		t.Errorf("Error() = %q", got)
	}

	m.Append(nil)
	if m.HasErrors() {
		t.Errorf("nil append should not count as an error")
	}

	err1 := errors.New("error 1")
	m.Append(err1)
	if got := m.Error(); got != "error 1" {
		t.Errorf("Error() = %q, want single error passthrough", got)
	}

	m.Append(errors.New("error 2"))
	if !m.HasErrors() {
		t.Errorf("expected HasErrors true with 2 errors")
	}
	want := "2 errors, first: error 1"
	if got := m.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if len(m.Unwrap()) != 2 {
		t.Errorf("Unwrap() returned %d errors, want 2", len(m.Unwrap()))
	}
}

func TestSearchErrorTimestamp(t *testing.T) {
	err := New(KindInvariant, "assert", errors.New("bug"))
	if err.At.IsZero() {
		t.Errorf("expected non-zero timestamp")
	}
	if now := time.Now(); err.At.After(now) || now.Sub(err.At) > time.Second {
		t.Errorf("timestamp looks wrong: %v", err.At)
	}
}
