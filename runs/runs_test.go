package runs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func testService(t *testing.T) *Service {
	t.Helper()
	return NewService(t.TempDir(), zerolog.Nop())
}

func TestSaveCreatesSequentialRuns(t *testing.T) {
	s := testService(t)

	first, err := s.Save("prompt one", "output one")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Name != "run-0001" {
		t.Errorf("first run should be run-0001, got %q", first.Name)
	}

	second, err := s.Save("prompt two", "output two")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Name != "run-0002" {
		t.Errorf("second run should be run-0002, got %q", second.Name)
	}

	output, err := s.Output(second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output != "output two" {
		t.Errorf("got %q, want %q", output, "output two")
	}
}

func TestSaveMarksRunCurrent(t *testing.T) {
	s := testService(t)
	if _, err := s.Save("p1", "o1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save("p2", "o2"); err != nil {
		t.Fatal(err)
	}

	current, err := s.Current()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if current.Name != "run-0002" {
		t.Errorf("latest save should be current, got %q", current.Name)
	}
}

func TestCurrentWithoutRuns(t *testing.T) {
	s := testService(t)
	if _, err := s.Current(); !errors.Is(err, ErrNoCurrentRun) {
		t.Errorf("expected ErrNoCurrentRun, got %v", err)
	}
}

func TestCurrentWithStalePointer(t *testing.T) {
	dir := t.TempDir()
	s := NewService(dir, zerolog.Nop())
	if _, err := s.Save("p", "o"); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(filepath.Join(dir, "run-0001")); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Current(); !errors.Is(err, ErrNoCurrentRun) {
		t.Errorf("deleted run directory should read as no current run, got %v", err)
	}
}

func TestListIgnoresForeignEntries(t *testing.T) {
	dir := t.TempDir()
	s := NewService(dir, zerolog.Nop())
	if _, err := s.Save("p", "o"); err != nil {
		t.Fatal(err)
	}
	// The pointer file and unrelated directories must not list as runs.
	if err := os.MkdirAll(filepath.Join(dir, "not-a-run"), 0o750); err != nil {
		t.Fatal(err)
	}

	runs, err := s.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 || runs[0].Name != "run-0001" {
		t.Errorf("unexpected listing %v", runs)
	}
}

func TestListEmptyBaseDir(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "never-created"), zerolog.Nop())
	runs, err := s.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("missing base dir should list empty, got %v", runs)
	}
}

func TestUse(t *testing.T) {
	s := testService(t)
	if _, err := s.Save("p1", "o1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save("p2", "o2"); err != nil {
		t.Fatal(err)
	}

	run, err := s.Use("run-0001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Name != "run-0001" {
		t.Errorf("got %q", run.Name)
	}

	current, err := s.Current()
	if err != nil {
		t.Fatal(err)
	}
	if current.Name != "run-0001" {
		t.Errorf("Use should update the pointer, current is %q", current.Name)
	}

	if _, err := s.Use("run-9999"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := s.Use("../escape"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("non run-NNNN names should be rejected, got %v", err)
	}
}

func TestGetDoesNotMoveCurrent(t *testing.T) {
	s := testService(t)
	if _, err := s.Save("p1", "o1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save("p2", "o2"); err != nil {
		t.Fatal(err)
	}

	run, err := s.Get("run-0001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Name != "run-0001" {
		t.Errorf("got %q", run.Name)
	}

	current, err := s.Current()
	if err != nil {
		t.Fatal(err)
	}
	if current.Name != "run-0002" {
		t.Errorf("Get must not update the pointer, current is %q", current.Name)
	}

	if _, err := s.Get("run-9999"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestNumberingSkipsGaps(t *testing.T) {
	dir := t.TempDir()
	s := NewService(dir, zerolog.Nop())
	for i := 0; i < 3; i++ {
		if _, err := s.Save("p", "o"); err != nil {
			t.Fatal(err)
		}
	}
	// Deleting an older run must not cause the next save to reuse its name.
	if err := os.RemoveAll(filepath.Join(dir, "run-0002")); err != nil {
		t.Fatal(err)
	}

	run, err := s.Save("p", "o")
	if err != nil {
		t.Fatal(err)
	}
	if run.Name != "run-0004" {
		t.Errorf("numbering should continue past the highest, got %q", run.Name)
	}
}
