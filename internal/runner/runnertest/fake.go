// Package runnertest provides a scriptable Runner for workflow tests.
package runnertest

import (
	"context"
	"strings"
	"sync"

	"bargo/internal/runner"
)

// Handler produces the stdout (or failure) for one invocation.
type Handler func(spec runner.CmdSpec) (string, error)

// Fake records every invocation and answers through Handler. A nil Handler
// succeeds with empty output.
type Fake struct {
	Handler Handler

	mu    sync.Mutex
	calls []runner.CmdSpec
}

var _ runner.Runner = (*Fake)(nil)

// New returns a Fake answering through h.
func New(h Handler) *Fake { return &Fake{Handler: h} }

func (f *Fake) Run(ctx context.Context, spec runner.CmdSpec) error {
	_, err := f.RunCapture(ctx, spec)
	return err
}

func (f *Fake) RunCapture(_ context.Context, spec runner.CmdSpec) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, spec)
	h := f.Handler
	f.mu.Unlock()
	if h == nil {
		return "", nil
	}
	return h(spec)
}

// Calls returns the recorded invocations in order.
func (f *Fake) Calls() []runner.CmdSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.CmdSpec(nil), f.calls...)
}

// Commands renders each call as "name subcommand", e.g. "starkli deploy".
func (f *Fake) Commands() []string {
	var out []string
	for _, c := range f.Calls() {
		out = append(out, strings.TrimSpace(c.Name()+" "+c.Subcommand()))
	}
	return out
}

// Failing is a Handler that must never be reached.
func Failing(t interface{ Fatalf(string, ...interface{}) }) Handler {
	return func(spec runner.CmdSpec) (string, error) {
		t.Fatalf("unexpected invocation: %s", spec.String())
		return "", nil
	}
}
