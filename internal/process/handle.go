// Package process owns the lifecycle of the agent subprocess: one live
// process per conversational turn, with independently addressable stdin,
// stdout and stderr, and exactly-once exit notification.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// killGrace is how long a terminated process gets to exit on SIGTERM
// before it is forcibly killed.
const killGrace = 5 * time.Second

// maxStderrBytes bounds the captured diagnostic buffer.
const maxStderrBytes = 64 * 1024

// Config describes a subprocess invocation.
type Config struct {
	Command    string
	Args       []string
	WorkingDir string
	Env        map[string]string
}

// Handle wraps one live agent subprocess. It is exclusively owned by the
// orchestrator for the duration of a turn.
type Handle struct {
	cmd    *exec.Cmd
	stdin  *os.File
	stdout *os.File
	stderr *os.File

	logger *slog.Logger

	killed   atomic.Bool
	waitOnce sync.Once
	exited   chan struct{}

	mu        sync.Mutex
	stderrBuf strings.Builder
}

// Start spawns a subprocess with stdin, stdout and stderr wired as pipes.
// Spawn failures (missing executable, permission errors) are returned
// synchronously. The stderr channel is drained into a bounded diagnostic
// buffer; it never produces structured events.
func Start(ctx context.Context, cfg Config, logger *slog.Logger) (*Handle, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("command cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	if cfg.WorkingDir != "" {
		cmd.Dir = cfg.WorkingDir
	}
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	// Plain pipes rather than cmd.StdinPipe and friends: Wait must not
	// close the read side while the stream consumer is still draining
	// buffered events.
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		_ = stdinR.Close()
		_ = stdinW.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		_ = stdinR.Close()
		_ = stdinW.Close()
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	err = cmd.Start()
	// The child holds its own copies of these ends now.
	_ = stdinR.Close()
	_ = stdoutW.Close()
	_ = stderrW.Close()
	if err != nil {
		_ = stdinW.Close()
		_ = stdoutR.Close()
		_ = stderrR.Close()
		return nil, fmt.Errorf("spawn %s: %w", cfg.Command, err)
	}

	h := &Handle{
		cmd:    cmd,
		stdin:  stdinW,
		stdout: stdoutR,
		stderr: stderrR,
		logger: logger,
		exited: make(chan struct{}),
	}
	go h.drainStderr()
	return h, nil
}

// Close releases the parent-held pipe ends. Call after the stream has
// been fully consumed.
func (h *Handle) Close() error {
	_ = h.stdin.Close()
	_ = h.stdout.Close()
	return h.stderr.Close()
}

// Stdin returns the subprocess's writable input channel.
func (h *Handle) Stdin() io.WriteCloser { return h.stdin }

// Stdout returns the subprocess's readable output channel.
func (h *Handle) Stdout() io.Reader { return h.stdout }

// NotifyExit waits for the subprocess in a background goroutine and
// invokes fn exactly once with the exit code, or nil if the process was
// forcibly terminated. Subsequent calls are no-ops.
func (h *Handle) NotifyExit(fn func(code *int)) {
	h.waitOnce.Do(func() {
		go func() {
			err := h.cmd.Wait()
			close(h.exited)

			if h.killed.Load() {
				fn(nil)
				return
			}
			code := 0
			if err != nil {
				var exitErr *exec.ExitError
				if !errors.As(err, &exitErr) {
					h.logger.Warn("agent process wait failed", "error", err)
					fn(nil)
					return
				}
				code = exitErr.ExitCode()
				if code < 0 {
					// Terminated by a signal we didn't send.
					fn(nil)
					return
				}
			}
			fn(&code)
		}()
	})
}

// Kill sends a graceful termination signal to the subprocess, escalating
// to SIGKILL after a grace period. It is idempotent and a no-op once the
// process has exited.
func (h *Handle) Kill() error {
	if h.killed.Swap(true) {
		return nil
	}
	if h.cmd.Process == nil {
		return nil
	}

	if h.stdin != nil {
		_ = h.stdin.Close()
	}

	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already gone.
		return nil
	}

	go func() {
		select {
		case <-h.exited:
		case <-time.After(killGrace):
			_ = h.cmd.Process.Kill()
		}
	}()
	return nil
}

// StderrText returns the diagnostic output captured from the subprocess's
// error channel so far.
func (h *Handle) StderrText() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stderrBuf.String()
}

func (h *Handle) drainStderr() {
	scanner := bufio.NewScanner(h.stderr)
	scanner.Buffer(make([]byte, 0, 4*1024), 256*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		h.logger.Debug("agent stderr", "line", line)

		h.mu.Lock()
		if h.stderrBuf.Len() < maxStderrBytes {
			h.stderrBuf.WriteString(line)
			h.stderrBuf.WriteByte('\n')
		}
		h.mu.Unlock()
	}
}
