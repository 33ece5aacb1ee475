// Package deps resolves the external executables derpisync shells out to.
package deps

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

var (
	// ErrNotConfigured is returned for an empty command.
	ErrNotConfigured = errors.New("command not configured")
	// ErrNotFound is returned when the command does not resolve to an executable.
	ErrNotFound = errors.New("binary not found")
)

// LookBinary resolves command the way exec.Command would and returns the
// absolute path of the executable. Commands containing a separator are checked
// in place; bare names are searched on PATH.
func LookBinary(command string) (string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", ErrNotConfigured
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrNotFound, command)
	}
	if abs, err := filepath.Abs(resolved); err == nil {
		resolved = abs
	}
	return resolved, nil
}
