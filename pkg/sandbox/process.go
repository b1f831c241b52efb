package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// waitDelay bounds how long Wait blocks on inherited pipes after the process is killed.
const waitDelay = 2 * time.Second

// ProcessExecutor writes each snippet to a fresh work directory and runs it with
// the configured interpreter in its own process group.
type ProcessExecutor struct {
	config Config
	logger *zap.Logger
}

// NewProcessExecutor creates a new ProcessExecutor.
func NewProcessExecutor(config Config, logger *zap.Logger) *ProcessExecutor {
	config.applyDefaults()
	return &ProcessExecutor{
		config: config,
		logger: logger,
	}
}

// Timeout returns the effective wall-clock limit.
func (e *ProcessExecutor) Timeout() time.Duration {
	return e.config.Timeout
}

// Execute runs code and returns its captured output.
func (e *ProcessExecutor) Execute(ctx context.Context, code string) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	interpreter, err := exec.LookPath(e.config.Interpreter)
	if err != nil {
		return nil, &ExecutionError{Message: fmt.Sprintf("interpreter %q not available", e.config.Interpreter), Err: err}
	}

	workDir, err := os.MkdirTemp(e.config.TempDir, "quizagent-exec-*")
	if err != nil {
		return nil, &ExecutionError{Message: "could not create work directory", Err: err}
	}
	defer os.RemoveAll(workDir)

	script := filepath.Join(workDir, "snippet"+e.config.Extension)
	if err := os.WriteFile(script, []byte(code), 0o600); err != nil {
		return nil, &ExecutionError{Message: "could not write snippet", Err: err}
	}

	runCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	name, args := e.command(interpreter, script)
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = workDir
	cmd.Env = e.environ(workDir)
	cmd.WaitDelay = waitDelay

	stdout := &cappedBuffer{limit: e.config.MaxOutputBytes}
	stderr := &cappedBuffer{limit: e.config.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	isolateProcessGroup(cmd)

	e.logger.Debug("executing snippet",
		zap.String("interpreter", interpreter),
		zap.Int("code_bytes", len(code)),
		zap.Duration("timeout", e.config.Timeout),
	)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &ExecutionError{Message: "could not start interpreter", Err: err}
	}
	waitErr := cmd.Wait()

	outcome := &Outcome{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		ExitCode:  -1,
		Duration:  time.Since(start),
		Truncated: stdout.Truncated() || stderr.Truncated(),
	}
	if cmd.ProcessState != nil {
		outcome.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err := ctx.Err(); err != nil {
		return outcome, err
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		outcome.TimedOut = true
	} else if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			e.logger.Warn("snippet wait failed", zap.Error(waitErr))
		}
	}

	e.logger.Debug("snippet finished",
		zap.Int("exit_code", outcome.ExitCode),
		zap.Bool("timed_out", outcome.TimedOut),
		zap.Bool("truncated", outcome.Truncated),
		zap.Duration("duration", outcome.Duration),
	)

	return outcome, nil
}

// command wraps the interpreter in a shell applying ulimit quotas when configured.
func (e *ProcessExecutor) command(interpreter, script string) (string, []string) {
	var limits []string
	if e.config.CPUSeconds > 0 {
		limits = append(limits, fmt.Sprintf("ulimit -t %d", e.config.CPUSeconds))
	}
	if e.config.MemoryMB > 0 {
		limits = append(limits, fmt.Sprintf("ulimit -v %d", e.config.MemoryMB*1024))
	}
	if len(limits) == 0 {
		return interpreter, []string{script}
	}

	wrapper := strings.Join(limits, " && ") + ` && exec "$0" "$1"`
	return "/bin/sh", []string{"-c", wrapper, interpreter, script}
}

func (e *ProcessExecutor) environ(workDir string) []string {
	env := []string{
		"HOME=" + workDir,
		"TMPDIR=" + workDir,
		"PYTHONDONTWRITEBYTECODE=1",
		"PYTHONUNBUFFERED=1",
	}
	for _, key := range append([]string{"PATH", "LANG"}, e.config.Env...) {
		if value, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+value)
		}
	}
	return env
}

// cappedBuffer keeps the first limit bytes written and discards the rest.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *cappedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
