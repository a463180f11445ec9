package runner

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Record is one entry of the simulate history.
type Record struct {
	Spec    CmdSpec
	Capture bool
	// Trace is the line printed for the call.
	Trace string
	// Output is the fabricated stdout, empty for Run.
	Output string
}

// Simulate never spawns a process. It prints what would run and keeps an
// append-only history, safe for concurrent use.
type Simulate struct {
	mu      sync.Mutex
	out     io.Writer
	history []Record
}

// NewSimulate returns a Simulate runner printing to out (nil discards).
func NewSimulate(out io.Writer) *Simulate {
	if out == nil {
		out = io.Discard
	}
	return &Simulate{out: out}
}

// Run records spec and prints the would-be command.
func (s *Simulate) Run(_ context.Context, spec CmdSpec) error {
	s.record(Record{Spec: spec.clone(), Trace: trace(spec, false)})
	return nil
}

// RunCapture records spec and returns a deterministic fake payload.
func (s *Simulate) RunCapture(_ context.Context, spec CmdSpec) (string, error) {
	out := FakeOutput(spec)
	s.record(Record{Spec: spec.clone(), Capture: true, Trace: trace(spec, true), Output: out})
	return out, nil
}

func (s *Simulate) record(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, r)
	fmt.Fprintln(s.out, r.Trace)
}

// History returns a snapshot of every recorded call, oldest first.
func (s *Simulate) History() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.history))
	copy(out, s.history)
	return out
}

// Specs returns just the command specs of History.
func (s *Simulate) Specs() []CmdSpec {
	h := s.History()
	out := make([]CmdSpec, len(h))
	for i, r := range h {
		out[i] = r.Spec
	}
	return out
}

// Len returns the number of recorded calls.
func (s *Simulate) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// Clear empties the history.
func (s *Simulate) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

func trace(spec CmdSpec, capture bool) string {
	var b strings.Builder
	if len(spec.Env) > 0 {
		for _, e := range spec.Env {
			b.WriteString(e.String())
			b.WriteByte(' ')
		}
	}
	b.WriteString("Would run")
	if spec.Dir != "" {
		fmt.Fprintf(&b, " in directory '%s'", spec.Dir)
	}
	if capture {
		b.WriteString(" (capturing output)")
	}
	b.WriteString(": ")
	b.WriteString(spec.String())
	return b.String()
}

// Fake payloads. Values are fixed so repeated simulations are identical.
const (
	FakeContractAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	FakeTxHash          = "0x3e3f7c5b1f6a2d8e9c4b7a1d2e3f4a5b6c7d8e9f0a1b2c3d4e5f6a7b8c9d0e1f"
	fakeCalldata        = `{"calldata": ["0x1", "0x2a", "0x3", "0x4d2"]}`
)

// FakeOutput synthesizes stdout for a simulated capture, keyed on the
// executable and its subcommand.
func FakeOutput(spec CmdSpec) string {
	switch {
	case spec.Name() == "garaga" && spec.Subcommand() == "calldata":
		return fakeCalldata
	case spec.Name() == "forge" && spec.Subcommand() == "create":
		return fmt.Sprintf("Deployer: 0x0000000000000000000000000000000000000001\nDeployed to: %s\nTransaction hash: %s\n",
			FakeContractAddress, FakeTxHash)
	default:
		return fmt.Sprintf("Simulated %s completed successfully", spec.Name())
	}
}
