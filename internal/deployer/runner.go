package deployer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// MaxCaptureBytes bounds each captured stream. External tools can be
// extremely verbose; exceeding the bound is reported as a fault rather
// than silently truncated.
const MaxCaptureBytes = 10 << 20 // 10 MiB

// ErrOutputOverflow is returned when a command produced more output
// than the capture bound allows.
var ErrOutputOverflow = errors.New("command output exceeded capture limit")

// RunResult carries the captured streams of one command invocation.
// Both streams are populated on success and on failure.
type RunResult struct {
	Stdout string
	Stderr string
}

// Runner executes one external command to completion and captures its
// output. It knows nothing about the deployment domain.
type Runner interface {
	Run(ctx context.Context, spec CommandSpec) (RunResult, error)
}

// execRunner is the os/exec-backed Runner.
type execRunner struct {
	logger *slog.Logger
	limit  int
}

// NewRunner creates the default process runner.
func NewRunner(logger *slog.Logger) Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &execRunner{logger: logger, limit: MaxCaptureBytes}
}

// Run executes the spec's command in its working directory with its
// environment merged over the ambient process environment. A non-zero
// exit, a spawn failure, a capture overflow, or a context deadline all
// surface as errors alongside whatever output was captured; callers
// can test the error with errors.Is against context.DeadlineExceeded
// and ErrOutputOverflow.
func (r *execRunner) Run(ctx context.Context, spec CommandSpec) (RunResult, error) {
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	stdout := newBoundedBuffer(r.limit)
	stderr := newBoundedBuffer(r.limit)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	res := RunResult{Stdout: stdout.String(), Stderr: stderr.String()}

	r.logger.Debug("command finished",
		slog.String("command", spec.Name),
		slog.Duration("duration", duration),
		slog.Bool("error", runErr != nil),
	)

	if stdout.Overflowed() || stderr.Overflowed() {
		return res, fmt.Errorf("%s: %w", spec.Name, ErrOutputOverflow)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("%s: %w", spec.Name, ctxErr)
	}
	if runErr != nil {
		return res, fmt.Errorf("%s: %w", spec.Name, runErr)
	}
	return res, nil
}

// boundedBuffer accumulates writes up to a fixed limit and rejects
// anything beyond it. Rejecting (rather than discarding) makes the
// overflow observable as a command failure.
type boundedBuffer struct {
	buf        []byte
	limit      int
	overflowed bool
}

func newBoundedBuffer(limit int) *boundedBuffer {
	return &boundedBuffer{limit: limit}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if b.overflowed {
		return 0, ErrOutputOverflow
	}
	if len(b.buf)+len(p) > b.limit {
		remaining := b.limit - len(b.buf)
		if remaining > 0 {
			b.buf = append(b.buf, p[:remaining]...)
		}
		b.overflowed = true
		return 0, ErrOutputOverflow
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	return string(b.buf)
}

// Overflowed reports whether the limit was hit.
func (b *boundedBuffer) Overflowed() bool {
	return b.overflowed
}
