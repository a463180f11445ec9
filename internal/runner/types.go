// Package runner executes external tools. Two strategies implement Runner:
// Live spawns real processes, Simulate only records and prints what would
// run and fabricates output that downstream parsers accept.
package runner

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// EnvVar is a single KEY=VALUE override.
type EnvVar struct {
	Key   string
	Value string
}

func (e EnvVar) String() string { return e.Key + "=" + e.Value }

// CmdSpec describes one external invocation. Builder methods return copies,
// so a CmdSpec can be shared safely.
type CmdSpec struct {
	Program string
	Args    []string
	Dir     string
	Env     []EnvVar
}

// Cmd builds a CmdSpec.
func Cmd(program string, args ...string) CmdSpec {
	return CmdSpec{Program: program, Args: append([]string(nil), args...)}
}

// WithDir sets the working directory.
func (c CmdSpec) WithDir(dir string) CmdSpec {
	c = c.clone()
	c.Dir = dir
	return c
}

// WithEnv appends one environment override.
func (c CmdSpec) WithEnv(key, value string) CmdSpec {
	c = c.clone()
	c.Env = append(c.Env, EnvVar{Key: key, Value: value})
	return c
}

// WithEnvs appends several environment overrides, in order.
func (c CmdSpec) WithEnvs(vars ...EnvVar) CmdSpec {
	c = c.clone()
	c.Env = append(c.Env, vars...)
	return c
}

// WithArgs appends arguments.
func (c CmdSpec) WithArgs(args ...string) CmdSpec {
	c = c.clone()
	c.Args = append(c.Args, args...)
	return c
}

func (c CmdSpec) clone() CmdSpec {
	out := c
	out.Args = append([]string(nil), c.Args...)
	if c.Env != nil {
		out.Env = append([]EnvVar(nil), c.Env...)
	}
	return out
}

// Name is the executable's base name ("garaga" for "/opt/bin/garaga").
func (c CmdSpec) Name() string { return filepath.Base(c.Program) }

// Subcommand is the first argument, or "".
func (c CmdSpec) Subcommand() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[0]
}

// String renders "program arg1 arg2".
func (c CmdSpec) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Program)
	parts = append(parts, c.Args...)
	return strings.Join(parts, " ")
}

// Environ merges the overrides into base. Later values override earlier ones.
func (c CmdSpec) Environ(base []string) []string {
	out := make([]string, len(base))
	copy(out, base)
	for _, e := range c.Env {
		out = setEnvKey(out, e.Key, e.Value)
	}
	return out
}

func setEnvKey(env []string, key, value string) []string {
	prefix := key + "="
	for i, e := range env {
		if strings.HasPrefix(e, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}

// Runner runs external tools.
type Runner interface {
	// Run executes spec. Live runners forward the tool's stdout.
	Run(ctx context.Context, spec CmdSpec) error
	// RunCapture executes spec and returns its stdout.
	RunCapture(ctx context.Context, spec CmdSpec) (string, error)
}

// New selects the strategy once, from the dry-run flag. Output of the
// live tools or of the simulated trace goes to out.
func New(dryRun bool, out io.Writer) Runner {
	if dryRun {
		return NewSimulate(out)
	}
	return NewLive(out)
}

// ToolExecutionFailure is returned when a tool cannot be started or exits
// non-zero.
type ToolExecutionFailure struct {
	Spec     CmdSpec
	ExitCode int // -1 when the process never started
	Stdout   string
	Stderr   string
	Err      error
}

func (e *ToolExecutionFailure) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("Command '%s' could not be started: %v", e.Spec.String(), e.Err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Command '%s' failed with exit code %d", e.Spec.String(), e.ExitCode)
	if s := strings.TrimSpace(e.Stdout); s != "" {
		fmt.Fprintf(&b, "\nStdout: %s", s)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, "\nStderr: %s", s)
	}
	return b.String()
}

func (e *ToolExecutionFailure) Unwrap() error { return e.Err }
