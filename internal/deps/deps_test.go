package deps

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestLookBinaryResolvesFromPath(t *testing.T) {
	binDir := t.TempDir()
	want := writeExecutable(t, binDir, "tmsu")
	t.Setenv("PATH", binDir)

	got, err := LookBinary(" tmsu ")
	if err != nil {
		t.Fatalf("LookBinary: %v", err)
	}
	if got != want {
		t.Fatalf("resolved %q, want %q", got, want)
	}
}

func TestLookBinaryAbsolutePath(t *testing.T) {
	want := writeExecutable(t, t.TempDir(), "tagger")
	t.Setenv("PATH", "")

	got, err := LookBinary(want)
	if err != nil || got != want {
		t.Fatalf("LookBinary(%q) = %q, %v", want, got, err)
	}
}

func TestLookBinaryMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := LookBinary("clearly-not-present-binary")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLookBinaryNotExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmsu")
	if err := os.WriteFile(path, []byte("not a program"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := LookBinary(path); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-executable file, got %v", err)
	}
}

func TestLookBinaryEmptyCommand(t *testing.T) {
	if _, err := LookBinary("  "); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
