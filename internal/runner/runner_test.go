package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"bargo/internal/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestHelperProcess is the fake tool the live tests re-exec into.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	if v := os.Getenv("MOCK_STDERR"); v != "" {
		fmt.Fprint(os.Stderr, v)
	}
	if v := os.Getenv("MOCK_OUTPUT"); v != "" {
		fmt.Fprint(os.Stdout, v)
	} else {
		for i, arg := range os.Args {
			if arg == "--" {
				fmt.Fprint(os.Stdout, strings.Join(os.Args[i+1:], " "))
				break
			}
		}
	}
	if v := os.Getenv("MOCK_ENV_KEY"); v != "" {
		fmt.Fprintf(os.Stdout, "|%s=%s", v, os.Getenv(v))
	}
	code, _ := strconv.Atoi(os.Getenv("MOCK_EXIT"))
	os.Exit(code)
}

func fakeExecCommandContext(ctx context.Context, command string, args ...string) *exec.Cmd {
	cs := []string{"-test.run=TestHelperProcess", "--", command}
	cs = append(cs, args...)
	return exec.CommandContext(ctx, os.Args[0], cs...)
}

func useFakeExec(t *testing.T) {
	t.Helper()
	old := execCommandContext
	execCommandContext = fakeExecCommandContext
	t.Cleanup(func() { execCommandContext = old })
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
}

func TestCmdSpecBuildersDoNotAlias(t *testing.T) {
	base := Cmd("bb", "prove")
	a := base.WithArgs("-b", "x").WithEnv("A", "1")
	b := base.WithDir("/tmp").WithEnvs(EnvVar{"B", "2"}, EnvVar{"C", "3"})

	assert.Equal(t, []string{"prove"}, base.Args)
	assert.Empty(t, base.Env)
	assert.Equal(t, "bb prove -b x", a.String())
	assert.Equal(t, "/tmp", b.Dir)
	assert.Empty(t, a.Dir)
	assert.Equal(t, []EnvVar{{"B", "2"}, {"C", "3"}}, b.Env)
	assert.Equal(t, "prove", base.Subcommand())
	assert.Equal(t, "garaga", Cmd("/opt/bin/garaga").Name())
}

func TestEnvironOverrides(t *testing.T) {
	spec := Cmd("x").WithEnv("PATH", "/bin").WithEnv("NEW", "1")
	got := spec.Environ([]string{"PATH=/usr/bin", "HOME=/root"})
	if diff := cmp.Diff([]string{"PATH=/bin", "HOME=/root", "NEW=1"}, got); diff != "" {
		t.Errorf("Environ mismatch (-want +got):\n%s", diff)
	}
}

func TestNewSelectsStrategy(t *testing.T) {
	_, ok := New(true, nil).(*Simulate)
	assert.True(t, ok)
	_, ok = New(false, nil).(*Live)
	assert.True(t, ok)
}

func TestSimulateRunPrintsAndRecords(t *testing.T) {
	var out bytes.Buffer
	s := NewSimulate(&out)
	ctx := context.Background()

	require.NoError(t, s.Run(ctx, Cmd("nargo", "execute")))
	require.NoError(t, s.Run(ctx, Cmd("bb", "prove").WithDir("/work")))
	require.NoError(t, s.Run(ctx, Cmd("forge", "build").WithEnv("FOUNDRY_PROFILE", "ci")))

	want := "Would run: nargo execute\n" +
		"Would run in directory '/work': bb prove\n" +
		"FOUNDRY_PROFILE=ci Would run: forge build\n"
	assert.Equal(t, want, out.String())

	h := s.History()
	require.Len(t, h, 3)
	assert.False(t, h[0].Capture)
	assert.Empty(t, h[0].Output)
	assert.Equal(t, "Would run: nargo execute", h[0].Trace)
}

func TestSimulateHistoryOrderAcrossRunAndCapture(t *testing.T) {
	s := NewSimulate(nil)
	ctx := context.Background()

	specs := []CmdSpec{
		Cmd("nargo", "execute"),
		Cmd("garaga", "calldata", "--system", "ultra_starknet_zk_honk"),
		Cmd("bb", "verify"),
		Cmd("forge", "create", "Verifier.sol:Verifier"),
	}
	for i, sp := range specs {
		var err error
		if i%2 == 0 {
			err = s.Run(ctx, sp)
		} else {
			_, err = s.RunCapture(ctx, sp)
		}
		require.NoError(t, err)
	}

	assert.Equal(t, len(specs), s.Len())
	if diff := cmp.Diff(specs, s.Specs()); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}

	s.Clear()
	assert.Zero(t, s.Len())
	assert.Empty(t, s.History())
}

func TestSimulateHistorySnapshotIsIsolated(t *testing.T) {
	s := NewSimulate(nil)
	require.NoError(t, s.Run(context.Background(), Cmd("nargo", "check")))
	snap := s.History()
	snap[0].Spec.Args[0] = "mutated"
	assert.Equal(t, "check", s.History()[0].Spec.Args[0])
}

func TestSimulateGaragaCalldataIsJSON(t *testing.T) {
	s := NewSimulate(nil)
	out, err := s.RunCapture(context.Background(), Cmd("garaga", "calldata", "--system", "ultra_starknet_zk_honk"))
	require.NoError(t, err)

	var payload struct {
		Calldata []string `json:"calldata"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.NotEmpty(t, payload.Calldata)

	h := s.History()
	require.Len(t, h, 1)
	assert.True(t, h[0].Capture)
	assert.Equal(t, out, h[0].Output)
	assert.Equal(t, "Would run (capturing output): garaga calldata --system ultra_starknet_zk_honk", h[0].Trace)
}

func TestSimulateForgeCreateHasAddress(t *testing.T) {
	s := NewSimulate(nil)
	out, err := s.RunCapture(context.Background(), Cmd("forge", "create", "src/Verifier.sol:Verifier"))
	require.NoError(t, err)

	m := regexp.MustCompile(`Deployed to: (0x[0-9a-fA-F]{40})`).FindStringSubmatch(out)
	require.Len(t, m, 2)
	assert.Equal(t, FakeContractAddress, m[1])
}

func TestSimulateGenericPayload(t *testing.T) {
	out := FakeOutput(Cmd("starkli", "declare", "x.json"))
	assert.Equal(t, "Simulated starkli completed successfully", out)
}

func TestSimulateConcurrentUse(t *testing.T) {
	s := NewSimulate(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = s.Run(context.Background(), Cmd("nargo", "execute"))
			} else {
				_, _ = s.RunCapture(context.Background(), Cmd("garaga", "calldata"))
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}

func TestLiveRunForwardsStdout(t *testing.T) {
	useFakeExec(t)
	t.Setenv("MOCK_OUTPUT", "compiled ok")

	var out bytes.Buffer
	l := NewLive(&out)
	require.NoError(t, l.Run(context.Background(), Cmd("nargo", "execute")))
	assert.Equal(t, "compiled ok", out.String())
}

func TestLiveRunForwardsStderrOnSuccess(t *testing.T) {
	useFakeExec(t)
	t.Setenv("MOCK_OUTPUT", "proof written")
	t.Setenv("MOCK_STDERR", "warning: circuit size close to limit")

	var out, errOut bytes.Buffer
	l := NewLive(&out)
	l.SetErrOutput(&errOut)
	require.NoError(t, l.Run(context.Background(), Cmd("bb", "prove")))
	assert.Equal(t, "proof written", out.String())
	assert.Equal(t, "warning: circuit size close to limit", errOut.String())

	errOut.Reset()
	got, err := l.RunCapture(context.Background(), Cmd("bb", "prove"))
	require.NoError(t, err)
	assert.Equal(t, "proof written", got)
	assert.Empty(t, errOut.String(), "captured runs keep stderr out of the terminal")
}

func TestLiveRunCaptureReturnsStdout(t *testing.T) {
	useFakeExec(t)

	var out bytes.Buffer
	l := NewLive(&out)
	got, err := l.RunCapture(context.Background(), Cmd("garaga", "calldata", "--proof", "p"))
	require.NoError(t, err)
	assert.Equal(t, "garaga calldata --proof p", got)
	assert.Empty(t, out.String(), "captured output must not be forwarded")
}

func TestLivePassesEnvOverrides(t *testing.T) {
	useFakeExec(t)
	t.Setenv("MOCK_OUTPUT", "ok")
	t.Setenv("MOCK_ENV_KEY", "BARGO_TEST_VALUE")

	got, err := NewLive(nil).RunCapture(context.Background(),
		Cmd("forge", "create").WithEnv("BARGO_TEST_VALUE", "42"))
	require.NoError(t, err)
	assert.Equal(t, "ok|BARGO_TEST_VALUE=42", got)
}

func TestLiveFailureCarriesOutputAndExitCode(t *testing.T) {
	useFakeExec(t)
	t.Setenv("MOCK_OUTPUT", "partial")
	t.Setenv("MOCK_STDERR", "boom")
	t.Setenv("MOCK_EXIT", "3")

	var events []logging.AuditEvent
	l := NewLive(nil)
	l.SetAuditCallback(func(ev logging.AuditEvent) { events = append(events, ev) })

	err := l.Run(context.Background(), Cmd("bb", "prove"))
	require.Error(t, err)

	var failure *ToolExecutionFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, 3, failure.ExitCode)
	assert.Equal(t, "partial", failure.Stdout)
	assert.Equal(t, "boom", failure.Stderr)
	assert.Contains(t, err.Error(), "Command 'bb prove' failed with exit code 3")
	assert.Contains(t, err.Error(), "Stderr: boom")

	require.Len(t, events, 2)
	assert.Equal(t, logging.AuditToolInvoke, events[0].Type)
	assert.Equal(t, logging.AuditToolError, events[1].Type)
	assert.Equal(t, 3, events[1].ExitCode)
}

func TestLiveMissingBinary(t *testing.T) {
	err := NewLive(nil).Run(context.Background(), Cmd("bargo-definitely-not-installed"))
	require.Error(t, err)

	var failure *ToolExecutionFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, -1, failure.ExitCode)
	assert.ErrorIs(t, err, exec.ErrNotFound)
	assert.Contains(t, err.Error(), "not found")
}

func TestLiveRejectsEmptyProgram(t *testing.T) {
	_, err := NewLive(nil).RunCapture(context.Background(), CmdSpec{})
	assert.Error(t, err)
}
