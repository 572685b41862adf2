package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// maxCapture bounds how much of each stream is kept in a Result.
const maxCapture = 1 << 20

const defaultGracefulTimeout = 3 * time.Second

// Spec describes one invocation.
type Spec struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the executable, resolved through PATH when not absolute.
	Binary string

	Args []string

	// Env adds key=value pairs on top of the parent environment.
	Env []string

	// Dir is the working directory. Empty means the parent's.
	Dir string

	// GracefulTimeout is how long a cancelled program gets between SIGTERM
	// and SIGKILL. Zero means 3s.
	GracefulTimeout time.Duration
}

// Result is what a finished program left behind.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Output returns stdout and stderr joined, the way a terminal would show them.
func (r Result) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	return r.Stdout + r.Stderr
}

// Runner runs a Spec to completion.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// Logger defines the logging interface for the runner.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Exec runs programs with os/exec in their own process group.
type Exec struct {
	logger Logger
}

// NewExec creates a runner that logs nothing until SetLogger is called.
func NewExec() *Exec {
	return &Exec{logger: noopLogger{}}
}

// SetLogger sets the logger used for start, exit and output lines.
func (e *Exec) SetLogger(logger Logger) {
	e.logger = logger
}

// Run starts the program and waits for it.
//
// Returns:
//   - Result: Captured output and exit code (also populated on ErrExit)
//   - error: ErrNotFound, ErrExit (wrapping *exec.ExitError) or ErrCancelled
func (e *Exec) Run(ctx context.Context, spec Spec) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	path, err := exec.LookPath(spec.Binary)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrNotFound, spec.Binary, err)
	}

	cmd := exec.Command(path, spec.Args...) //nolint:gosec // binary comes from operator config
	setProcessGroup(cmd)
	if spec.Env != nil {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.Dir = spec.Dir

	stdout := &capture{logger: e.logger, name: spec.Name, stream: "stdout"}
	stderr := &capture{logger: e.logger, name: spec.Name, stream: "stderr"}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("starting %s: %w", spec.Name, err)
	}
	e.logger.Debug("process started", "name", spec.Name, "pid", cmd.Process.Pid, "args", spec.Args)

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	var waitErr error
	cancelled := false
	select {
	case waitErr = <-exited:
	case <-ctx.Done():
		cancelled = true
		waitErr = e.stop(cmd, spec, exited)
	}

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(started),
	}
	e.logger.Debug("process exited", "name", spec.Name, "code", res.ExitCode, "duration", res.Duration)

	if cancelled {
		return res, fmt.Errorf("%w: %s: %w", ErrCancelled, spec.Name, ctx.Err())
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return res, fmt.Errorf("%w: %s exited with %d: %w", ErrExit, spec.Name, res.ExitCode, exitErr)
		}
		return res, fmt.Errorf("waiting for %s: %w", spec.Name, waitErr)
	}
	return res, nil
}

// stop terminates the process group, escalating to kill after the graceful
// timeout, and returns the Wait result.
func (e *Exec) stop(cmd *exec.Cmd, spec Spec, exited <-chan error) error {
	grace := spec.GracefulTimeout
	if grace <= 0 {
		grace = defaultGracefulTimeout
	}

	if err := terminate(cmd); err != nil {
		e.logger.Warn("failed to signal process", "name", spec.Name, "error", err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case err := <-exited:
		return err
	case <-timer.C:
		e.logger.Warn("graceful stop timed out, killing", "name", spec.Name, "timeout", grace)
	}

	if err := kill(cmd); err != nil {
		e.logger.Warn("failed to kill process", "name", spec.Name, "error", err)
	}
	return <-exited
}

// Resolve returns the first of the candidates found on PATH.
func Resolve(candidates ...string) (string, error) {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if p, err := exec.LookPath(c); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrNotFound, strings.Join(candidates, ", "))
}

// capture keeps up to maxCapture bytes of a stream and logs complete lines.
type capture struct {
	logger Logger
	name   string
	stream string

	mu      sync.Mutex
	buf     bytes.Buffer
	partial []byte
}

func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if room := maxCapture - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
		} else {
			c.buf.Write(p)
		}
	}

	c.partial = append(c.partial, p...)
	for {
		i := bytes.IndexByte(c.partial, '\n')
		if i < 0 {
			break
		}
		if line := strings.TrimRight(string(c.partial[:i]), "\r"); line != "" {
			c.logger.Debug("process output", "name", c.name, "stream", c.stream, "line", line)
		}
		c.partial = c.partial[i+1:]
	}
	if len(c.partial) > maxCapture {
		c.partial = c.partial[:0]
	}
	return len(p), nil
}

func (c *capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}
