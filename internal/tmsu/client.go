package tmsu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

var (
	// ErrToolMissing reports that the tmsu binary could not be executed.
	ErrToolMissing = errors.New("tmsu not found; install it and make sure it is on PATH")
	// ErrDatabaseMissing reports that tmsu has no database for the working directory.
	ErrDatabaseMissing = errors.New("tmsu database not found; run 'tmsu init' first")
	// ErrTagging reports a failed tag invocation.
	ErrTagging = errors.New("tmsu tag failed")
)

const maxStderrLines = 20

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStderr func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithDatabase points every invocation at an explicit database file.
func WithDatabase(path string) Option {
	return func(c *Client) {
		c.database = strings.TrimSpace(path)
	}
}

// Client wraps tmsu CLI interactions.
type Client struct {
	binary   string
	database string
	exec     Executor
}

// New constructs a tmsu client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("tmsu binary required")
	}
	client := &Client{
		binary: binary,
		exec:   commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Binary returns the configured executable name.
func (c *Client) Binary() string {
	return c.binary
}

// CheckEnvironment verifies that tmsu runs and that a database is reachable.
func (c *Client) CheckEnvironment(ctx context.Context) error {
	if _, err := c.run(ctx, "--version"); err != nil {
		return fmt.Errorf("%w: %v", ErrToolMissing, err)
	}
	if err := c.CheckDatabase(ctx); err != nil {
		return err
	}
	return nil
}

// CheckDatabase runs `tmsu info`.
func (c *Client) CheckDatabase(ctx context.Context) error {
	if stderr, err := c.run(ctx, "info"); err != nil {
		return fmt.Errorf("%w: %s", ErrDatabaseMissing, describe(err, stderr))
	}
	return nil
}

// Tag applies tags to path. Tags are passed through in order.
func (c *Client) Tag(ctx context.Context, path string, tags []string) error {
	if path == "" {
		return fmt.Errorf("%w: path required", ErrTagging)
	}
	args := make([]string, 0, len(tags)+2)
	args = append(args, "tag", path)
	args = append(args, tags...)
	if stderr, err := c.run(ctx, args...); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrTagging, path, describe(err, stderr))
	}
	return nil
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	full := args
	if c.database != "" {
		full = append([]string{"--database=" + c.database}, args...)
	}
	var stderr []string
	err := c.exec.Run(ctx, c.binary, full, func(line string) {
		if len(stderr) < maxStderrLines {
			stderr = append(stderr, line)
		}
	})
	return strings.Join(stderr, "\n"), err
}

func describe(err error, stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return err.Error()
	}
	return fmt.Sprintf("%v (%s)", err, stderr)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStderr func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Stdout = io.Discard
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if onStderr != nil {
				onStderr(scanner.Text())
			}
		}
		if scanErr = scanner.Err(); scanErr != nil {
			_, _ = io.Copy(io.Discard, stderr)
		}
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	if scanErr != nil {
		return fmt.Errorf("scan stderr: %w", scanErr)
	}
	return nil
}
