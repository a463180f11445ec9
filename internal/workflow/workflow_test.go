package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bargo/internal/config"
	"bargo/internal/logging"
	"bargo/internal/paths"
	"bargo/internal/runner"
	"bargo/internal/runner/runnertest"
	"bargo/internal/ux"
)

const manifest = "[package]\nname = \"demo\"\ntype = \"bin\"\n"

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, paths.ManifestName), []byte(manifest), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.nr"), []byte("fn main() {}\n"), 0644))
	return root
}

func newEnv(t *testing.T, root string, r runner.Runner, dryRun bool) (*Env, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	e := NewEnv(root, r, ux.NewPrinter(ux.Plain(&out)), config.DefaultConfig())
	e.DryRun = dryRun
	return e, &out
}

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestSimulatedBuildRecordsOneExecute(t *testing.T) {
	root := newProject(t)
	var trace bytes.Buffer
	sim := runner.NewSimulate(&trace)
	e, out := newEnv(t, root, sim, true)

	require.NoError(t, Build(context.Background(), e))

	history := sim.History()
	require.Len(t, history, 1)
	assert.Equal(t, "nargo", history[0].Spec.Name())
	assert.Contains(t, history[0].Spec.Args, "execute")
	assert.Contains(t, trace.String(), "Would run")
	assert.Contains(t, out.String(), "Would move "+filepath.Join("target", "demo.json"))

	_, err := os.Stat(filepath.Join(root, "target"))
	assert.True(t, os.IsNotExist(err), "simulate must not create target/")
}

func TestBuildPassesPackageOverride(t *testing.T) {
	sim := runner.NewSimulate(nil)
	e, _ := newEnv(t, newProject(t), sim, true)
	e.PkgOverride = "other"

	require.NoError(t, Build(context.Background(), e))
	assert.Equal(t, []string{"execute", "--package", "other"}, sim.Specs()[0].Args)
}

func TestBuildUpToDateSkipsCompiler(t *testing.T) {
	root := newProject(t)
	l := paths.New(root)
	old := time.Now().Add(-time.Hour)
	for _, p := range []string{l.Manifest(), filepath.Join(root, "src", "main.nr")} {
		require.NoError(t, os.Chtimes(p, old, old))
	}
	touch(t, l.Bytecode("demo", paths.FlavourBB), time.Now())
	touch(t, l.Witness("demo", paths.FlavourBB), time.Now())

	fake := runnertest.New(runnertest.Failing(t))
	e, out := newEnv(t, root, fake, false)

	require.NoError(t, Build(context.Background(), e))
	assert.Contains(t, out.String(), "Build is up to date")
	assert.Empty(t, fake.Calls())
}

func TestBuildCompilesAndOrganizes(t *testing.T) {
	root := newProject(t)
	l := paths.New(root)

	fake := runnertest.New(func(spec runner.CmdSpec) (string, error) {
		// nargo writes its outputs flat under target/
		touch(t, l.CompilerOutput("demo", ".json"), time.Now())
		touch(t, l.CompilerOutput("demo", ".gz"), time.Now())
		return "", nil
	})
	e, out := newEnv(t, root, fake, false)

	require.NoError(t, Build(context.Background(), e))
	assert.Equal(t, []string{"nargo execute"}, fake.Commands())
	assert.Equal(t, root, fake.Calls()[0].Dir)
	assert.FileExists(t, l.Bytecode("demo", paths.FlavourBB))
	assert.FileExists(t, l.Witness("demo", paths.FlavourBB))
	assert.NoFileExists(t, l.CompilerOutput("demo", ".json"))
	assert.Contains(t, out.String(), "Build completed")
}

func TestBuildToolFailureIsEnhanced(t *testing.T) {
	fake := runnertest.New(func(spec runner.CmdSpec) (string, error) {
		return "", &runner.ToolExecutionFailure{Spec: spec, ExitCode: 1, Stderr: "error: bad"}
	})
	e, _ := newEnv(t, newProject(t), fake, false)

	err := Build(context.Background(), e)
	require.Error(t, err)

	var tool *runner.ToolExecutionFailure
	require.True(t, errors.As(err, &tool))
	assert.Equal(t, 1, tool.ExitCode)

	var se *SuggestedError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Suggestions()[0], "--verbose")
}

func TestSimulatedCleanLeavesFilesystem(t *testing.T) {
	root := newProject(t)
	l := paths.New(root)
	touch(t, l.Bytecode("demo", paths.FlavourBB), time.Now())
	touch(t, l.Proof(paths.FlavourEVM), time.Now())

	e, out := newEnv(t, root, runner.NewSimulate(nil), true)
	require.NoError(t, Clean(context.Background(), e, CleanAll))

	assert.Equal(t, "Would run: rm -rf target/\n", out.String())
	assert.DirExists(t, l.TargetDir(paths.FlavourBB))
	assert.DirExists(t, l.TargetDir(paths.FlavourEVM))
	assert.FileExists(t, l.Proof(paths.FlavourEVM))
}

func TestClean(t *testing.T) {
	root := newProject(t)
	l := paths.New(root)
	touch(t, l.Proof(paths.FlavourEVM), time.Now())
	touch(t, l.Proof(paths.FlavourStarknet), time.Now())

	e, out := newEnv(t, root, runnertest.New(runnertest.Failing(t)), false)

	require.NoError(t, Clean(context.Background(), e, "evm"))
	assert.NoDirExists(t, l.TargetDir(paths.FlavourEVM))
	assert.DirExists(t, l.TargetDir(paths.FlavourStarknet))
	assert.Contains(t, out.String(), "Removed "+filepath.Join("target", "evm")+"/")

	require.NoError(t, Clean(context.Background(), e, CleanAll))
	assert.NoDirExists(t, l.TargetRoot())

	require.NoError(t, Clean(context.Background(), e, CleanAll))
	assert.Contains(t, out.String(), "target/ already clean")

	assert.Error(t, Clean(context.Background(), e, "cairo"))

	err := Clean(context.Background(), e, "evn")
	var se *SuggestedError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{"Did you mean 'bargo clean evm'?"}, se.Suggestions())
}

func TestDidYouMean(t *testing.T) {
	candidates := []string{"all", "bb", "evm", "starknet"}
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"starkent", "starknet", true},
		{"EVM", "evm", true},
		{"al", "all", true},
		{"solana", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := DidYouMean(tt.in, candidates)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRebuildSimulated(t *testing.T) {
	sim := runner.NewSimulate(nil)
	e, out := newEnv(t, newProject(t), sim, true)

	require.NoError(t, Rebuild(context.Background(), e))
	assert.Contains(t, out.String(), "Would run: rm -rf target/")
	assert.Equal(t, 1, sim.Len())
}

func TestValidateListsEveryMissingPath(t *testing.T) {
	root := newProject(t)
	l := paths.New(root)
	touch(t, l.Proof(paths.FlavourStarknet), time.Now())

	e, _ := newEnv(t, root, nil, false)
	err := e.Validate(
		l.Bytecode("demo", paths.FlavourBB),
		l.Proof(paths.FlavourStarknet),
		l.Witness("demo", paths.FlavourBB),
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingArtifact))

	var missing *MissingArtifactError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{
		filepath.Join("target", "bb", "demo.json"),
		filepath.Join("target", "bb", "demo.gz"),
	}, missing.Paths)

	e.DryRun = true
	assert.NoError(t, e.Validate(l.Bytecode("demo", paths.FlavourBB)))
}

func TestEnhance(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "missing bytecode",
			err:  &MissingArtifactError{Paths: []string{filepath.Join("target", "bb", "demo.json")}},
			want: "Run 'bargo build'",
		},
		{
			name: "missing evm proof",
			err:  &MissingArtifactError{Paths: []string{filepath.Join("target", "evm", "proof")}},
			want: "Run 'bargo evm prove'",
		},
		{
			name: "missing calldata",
			err:  &MissingArtifactError{Paths: []string{filepath.Join("target", "starknet", "calldata.json")}},
			want: "Run 'bargo cairo calldata'",
		},
		{
			name: "manifest",
			err:  fmt.Errorf("resolve: %w", paths.ErrManifestNotFound),
			want: "Noir project",
		},
		{
			name: "tool not installed",
			err: &runner.ToolExecutionFailure{
				Spec: runner.Cmd("garaga", "calldata"), ExitCode: -1, Err: exec.ErrNotFound,
			},
			want: "pip install garaga",
		},
		{
			name: "missing env",
			err:  config.MissingEnv("PRIVATE_KEY", ".env"),
			want: "PRIVATE_KEY=<value>",
		},
		{
			name: "parse failure",
			err:  &ParseFailure{Tool: "starkli", Expected: "class hash"},
			want: "starkli output format",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Enhance(tt.err)
			var se *SuggestedError
			require.True(t, errors.As(got, &se))
			require.NotEmpty(t, se.Suggestions())
			assert.Contains(t, se.Suggestions()[0], tt.want)
			assert.True(t, errors.Is(got, tt.err), "cause must stay reachable")
		})
	}

	plain := errors.New("boom")
	assert.Same(t, plain, Enhance(plain))
	assert.Nil(t, Enhance(nil))

	explicit := Suggest(plain, "do this")
	assert.Same(t, explicit, Enhance(explicit))
}

func TestStageHeadingUnderVerbose(t *testing.T) {
	root := newProject(t)
	e, out := newEnv(t, root, runnertest.New(nil), true)

	require.NoError(t, e.Stage(context.Background(), "evm gen", func(context.Context) error { return nil }))
	assert.NotContains(t, out.String(), "evm gen")

	e.Verbose = true
	require.NoError(t, e.Stage(context.Background(), "evm gen", func(context.Context) error { return nil }))
	assert.Contains(t, out.String(), "🔧 evm gen")
}

func TestStageWritesAudit(t *testing.T) {
	root := newProject(t)
	a, err := logging.OpenAudit(paths.New(root).AuditDir())
	require.NoError(t, err)

	e, _ := newEnv(t, root, runnertest.New(nil), false)
	e.Audit = a

	require.NoError(t, e.Stage(context.Background(), "ok", func(context.Context) error { return nil }))
	require.Error(t, e.Stage(context.Background(), "bad", func(context.Context) error {
		return errors.New("broken")
	}))
	require.NoError(t, a.Close())

	events, err := logging.ReadAudit(a.Path())
	require.NoError(t, err)
	var types []logging.AuditEventType
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []logging.AuditEventType{
		logging.AuditStageStart, logging.AuditStageComplete,
		logging.AuditStageStart, logging.AuditStageError,
	}, types)
	assert.Equal(t, "broken", events[3].Message)
}
