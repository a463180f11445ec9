package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"bargo/internal/logging"
)

// execCommandContext is swapped in tests.
var execCommandContext = exec.CommandContext

// Live runs tools with os/exec.
type Live struct {
	mu     sync.RWMutex
	out    io.Writer
	errOut io.Writer

	// auditCallback is called for execution events
	auditCallback func(logging.AuditEvent)
}

// NewLive returns a Live runner that forwards Run output to out (nil
// discards it).
func NewLive(out io.Writer) *Live {
	if out == nil {
		out = io.Discard
	}
	return &Live{out: out, errOut: io.Discard}
}

// SetErrOutput sets where Run forwards a successful tool's stderr. Tools
// such as bb and forge print progress and warnings there.
func (l *Live) SetErrOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errOut = w
}

// SetAuditCallback sets the callback for tool events.
func (l *Live) SetAuditCallback(callback func(logging.AuditEvent)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.auditCallback = callback
}

func (l *Live) emitAudit(ev logging.AuditEvent) {
	l.mu.RLock()
	callback := l.auditCallback
	l.mu.RUnlock()
	if callback != nil {
		callback(ev)
	}
}

// Run executes spec and forwards its stdout and stderr to the runner's
// outputs.
func (l *Live) Run(ctx context.Context, spec CmdSpec) error {
	stdout, stderr, err := l.execute(ctx, spec)
	if err != nil {
		return err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(stdout) > 0 {
		_, _ = io.WriteString(l.out, stdout)
	}
	if len(stderr) > 0 {
		_, _ = io.WriteString(l.errOut, stderr)
	}
	return nil
}

// RunCapture executes spec and returns its stdout. Stderr is only logged.
func (l *Live) RunCapture(ctx context.Context, spec CmdSpec) (string, error) {
	stdout, stderr, err := l.execute(ctx, spec)
	if err == nil && len(stderr) > 0 {
		logging.RunnerDebug("%s stderr: %s", spec.Name(), stderr)
	}
	return stdout, err
}

func (l *Live) execute(ctx context.Context, spec CmdSpec) (string, string, error) {
	if spec.Program == "" {
		return "", "", fmt.Errorf("program is required")
	}

	timer := logging.StartTimer(logging.CategoryRunner, spec.Name())
	logging.Runner("Executing: %s", spec.String())
	if spec.Dir != "" {
		logging.RunnerDebug("  in %s", spec.Dir)
	}

	l.emitAudit(logging.AuditEvent{
		Type:    logging.AuditToolInvoke,
		Command: spec.String(),
	})

	cmd := execCommandContext(ctx, spec.Program, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = spec.Environ(os.Environ())
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	elapsed := timer.Stop()

	if err != nil {
		failure := &ToolExecutionFailure{
			Spec:     spec,
			ExitCode: -1,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			failure.ExitCode = exitErr.ExitCode()
		} else {
			failure.Err = err
		}
		logging.RunnerError("Command failed: %s -> %v", spec.Name(), err)
		l.emitAudit(logging.AuditEvent{
			Type:       logging.AuditToolError,
			Command:    spec.String(),
			ExitCode:   failure.ExitCode,
			DurationMs: elapsed.Milliseconds(),
			Message:    err.Error(),
		})
		return "", "", failure
	}

	logging.RunnerDebug("Command completed: %s in %s, stdout=%d bytes",
		spec.Name(), elapsed.Round(time.Millisecond), stdout.Len())
	l.emitAudit(logging.AuditEvent{
		Type:       logging.AuditToolComplete,
		Command:    spec.String(),
		DurationMs: elapsed.Milliseconds(),
	})
	return stdout.String(), stderr.String(), nil
}
