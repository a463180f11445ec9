package cairo

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bargo/internal/config"
	"bargo/internal/paths"
	"bargo/internal/runner"
	"bargo/internal/runner/runnertest"
	"bargo/internal/store"
	"bargo/internal/ux"
	"bargo/internal/workflow"
)

const (
	classHash = "0x04a1c2b3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f"
	address   = "0x0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
)

var deploySecrets = map[string]string{
	"SEPOLIA_RPC_URL":   "https://rpc.example/sepolia",
	"STARKNET_ACCOUNT":  "account.json",
	"STARKNET_KEYSTORE": "keystore.json",
}

func newEnv(t *testing.T, r runner.Runner, dryRun bool) (*workflow.Env, *bytes.Buffer) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, paths.ManifestName),
		[]byte("[package]\nname = \"demo\"\n"), 0644))

	var out bytes.Buffer
	e := workflow.NewEnv(root, r, ux.NewPrinter(ux.Plain(&out)), config.DefaultConfig())
	e.DryRun = dryRun
	e.Secrets = config.StaticSecrets(deploySecrets)
	return e, &out
}

func writeFiles(t *testing.T, files ...string) {
	t.Helper()
	for _, f := range files {
		require.NoError(t, os.MkdirAll(filepath.Dir(f), 0755))
		require.NoError(t, os.WriteFile(f, []byte("data"), 0644))
	}
}

func TestProveMissingBuildArtifacts(t *testing.T) {
	fake := runnertest.New(runnertest.Failing(t))
	e, _ := newEnv(t, fake, false)

	err := New(e).Prove(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, workflow.ErrMissingArtifact))

	var missing *workflow.MissingArtifactError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{
		filepath.Join("target", "bb", "demo.json"),
		filepath.Join("target", "bb", "demo.gz"),
	}, missing.Paths)
	assert.Empty(t, fake.Calls(), "no process may start")
}

func TestProveArguments(t *testing.T) {
	fake := runnertest.New(nil)
	e, _ := newEnv(t, fake, false)
	writeFiles(t, e.Layout.Bytecode("demo", paths.FlavourBB), e.Layout.Witness("demo", paths.FlavourBB))

	require.NoError(t, New(e).Prove(context.Background()))

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "bb prove --scheme ultra_honk --oracle_hash starknet --zk -b target/bb/demo.json -w target/bb/demo.gz -o target/starknet/",
		calls[0].String())
	assert.Equal(t, "bb write_vk --oracle_hash starknet -b target/bb/demo.json -o target/starknet/",
		calls[1].String())
	assert.DirExists(t, e.Layout.TargetDir(paths.FlavourStarknet))
}

func TestDeployUsesCachedClassHash(t *testing.T) {
	fake := runnertest.New(func(spec runner.CmdSpec) (string, error) {
		return "Deploying class " + classHash + "\nContract deployed:\n" + address + "\n", nil
	})
	e, _ := newEnv(t, fake, false)
	w := New(e)
	require.NoError(t, w.Store().Put(store.ClassIdentifier, classHash))
	require.True(t, w.Policy().AutoDeclare, "auto-declare is the default")

	got, err := w.Deploy(context.Background(), "sepolia")
	require.NoError(t, err)
	assert.Equal(t, address, got)

	assert.Equal(t, []string{"starkli deploy"}, fake.Commands())
	args := fake.Calls()[0].Args
	assert.Equal(t, classHash, args[1])
	assert.Contains(t, strings.Join(args, " "), "--rpc https://rpc.example/sepolia")

	stored, err := w.Store().Get(store.ContractAddress)
	require.NoError(t, err)
	assert.Equal(t, address, stored)

	state, err := CurrentState(w.Store())
	require.NoError(t, err)
	assert.Equal(t, Deployed, state)
}

func TestDeployAutoDeclares(t *testing.T) {
	fake := runnertest.New(func(spec runner.CmdSpec) (string, error) {
		if spec.Subcommand() == "declare" {
			return "Declaring Cairo 1 class: " + classHash + "\nClass hash declared:\n" + classHash + "\n", nil
		}
		return "Contract deployed:\n" + address + "\n", nil
	})
	e, _ := newEnv(t, fake, false)
	l := e.Layout
	writeFiles(t, l.CairoContractClass(), l.CairoCompiledClass())
	w := New(e)

	state, err := CurrentState(w.Store())
	require.NoError(t, err)
	assert.Equal(t, NoClassHash, state)

	_, err = w.Deploy(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"starkli declare", "starkli deploy"}, fake.Commands())

	snap, err := w.Store().Snapshot()
	require.NoError(t, err)
	assert.Equal(t, map[store.Key]string{
		store.ClassIdentifier: classHash,
		store.ContractAddress: address,
	}, snap)
}

func TestExplicitClassHashSkipsDeclare(t *testing.T) {
	fake := runnertest.New(func(spec runner.CmdSpec) (string, error) {
		return address, nil
	})
	e, _ := newEnv(t, fake, false)
	w := New(e)
	require.NoError(t, w.Configure(DeployConfig{ClassHash: "0xfeed", NoDeclare: true}))

	_, err := w.Deploy(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"starkli deploy"}, fake.Commands())
	assert.Equal(t, "0xfeed", fake.Calls()[0].Args[1])
}

func TestConflictingPolicyRejectedBeforeAnyCall(t *testing.T) {
	fake := runnertest.New(runnertest.Failing(t))
	e, _ := newEnv(t, fake, false)
	w := New(e)

	bad := DeployConfig{AutoDeclare: true, NoDeclare: true}
	err := w.Configure(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrConfiguration))

	w.policy = bad
	_, err = w.Deploy(context.Background(), "sepolia")
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrConfiguration))
	assert.Empty(t, fake.Calls())
}

func TestNoDeclareWithoutClassHash(t *testing.T) {
	fake := runnertest.New(runnertest.Failing(t))
	e, _ := newEnv(t, fake, false)
	w := New(e)
	require.NoError(t, w.Configure(DeployConfig{NoDeclare: true}))

	_, err := w.Deploy(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no class hash")
	assert.Empty(t, fake.Calls())
}

func TestSimulatedDeployUsesPlaceholder(t *testing.T) {
	sim := runner.NewSimulate(nil)
	e, out := newEnv(t, sim, true)
	e.Secrets = nil
	w := New(e)

	_, err := w.Deploy(context.Background(), "sepolia")
	require.NoError(t, err)

	specs := sim.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "declare", specs[0].Subcommand())
	assert.Equal(t, workflow.Placeholder("class_hash"), specs[1].Args[1])
	assert.Contains(t, out.String(), "Would declare contract on network: sepolia")
	assert.Contains(t, out.String(), "Would deploy contract with class hash: <class_hash>")

	_, err = os.Stat(e.Layout.TargetRoot())
	assert.True(t, os.IsNotExist(err), "no breadcrumbs in simulate mode")
}

func TestGenerateRelocatesScaffold(t *testing.T) {
	var e *workflow.Env
	fake := runnertest.New(func(spec runner.CmdSpec) (string, error) {
		if spec.Name() == "garaga" {
			writeFiles(t, filepath.Join(e.Layout.CairoScaffold(), "src", "lib.cairo"))
		}
		return "", nil
	})
	e, out := newEnv(t, fake, false)
	l := e.Layout
	writeFiles(t, l.Bytecode("demo", paths.FlavourBB), l.Witness("demo", paths.FlavourBB),
		filepath.Join(l.CairoContractsDir(), "stale.txt"))

	require.NoError(t, New(e).Generate(context.Background()))

	assert.Equal(t, []string{"bb prove", "bb write_vk", "garaga gen"}, fake.Commands())
	assert.FileExists(t, filepath.Join(l.CairoContractsDir(), "src", "lib.cairo"))
	assert.NoFileExists(t, filepath.Join(l.CairoContractsDir(), "stale.txt"))
	assert.NoDirExists(t, l.CairoScaffold())
	assert.Contains(t, out.String(), "Next steps:")
}

func TestCalldataWritesCapturedOutput(t *testing.T) {
	fake := runnertest.New(func(spec runner.CmdSpec) (string, error) {
		return "[1, 2, 3]", nil
	})
	e, _ := newEnv(t, fake, false)
	proof, vk, pub := New(e).proofArtifacts()
	writeFiles(t, proof, vk, pub)

	require.NoError(t, New(e).Calldata(context.Background()))

	data, err := os.ReadFile(e.Layout.Calldata(paths.FlavourStarknet))
	require.NoError(t, err)
	assert.Equal(t, "[1, 2, 3]", string(data))
	assert.Contains(t, fake.Calls()[0].String(), "--system ultra_starknet_zk_honk")
}

func TestVerifyOnchainResolvesAddress(t *testing.T) {
	fake := runnertest.New(nil)
	e, _ := newEnv(t, fake, false)
	w := New(e)
	proof, vk, pub := w.proofArtifacts()
	writeFiles(t, proof, vk, pub, e.Layout.Calldata(paths.FlavourStarknet))

	err := w.VerifyOnchain(context.Background(), "", "")
	require.Error(t, err)
	assert.Empty(t, fake.Calls())

	require.NoError(t, w.Store().Put(store.ContractAddress, address))
	require.NoError(t, w.VerifyOnchain(context.Background(), "", ""))
	assert.Contains(t, fake.Calls()[0].String(), "--contract-address "+address+" --network sepolia")
}

func TestParseClassHash(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want string
	}{
		{"full length", "Class hash declared:\n" + classHash, classHash},
		{"prefers 64 digits", "tx 0x" + strings.Repeat("1", 62) + " class " + classHash, classHash},
		{"trimmed zeros", "Class hash: 0x" + strings.Repeat("a", 61), "0x" + strings.Repeat("a", 61)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClassHash(tt.out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseClassHash("no hash here 0x1234")
	assert.True(t, errors.Is(err, workflow.ErrParse))
}

func TestParseContractAddress(t *testing.T) {
	got, err := ParseContractAddress("Deploying class " + classHash + "\nContract deployed:\n" + address)
	require.NoError(t, err)
	assert.Equal(t, address, got)

	_, err = ParseContractAddress("Simulated starkli completed successfully")
	var pf *workflow.ParseFailure
	require.True(t, errors.As(err, &pf))
	assert.Equal(t, "contract address", pf.Expected)
}

func TestRPCEnvVar(t *testing.T) {
	assert.Equal(t, "SEPOLIA_RPC_URL", RPCEnvVar("sepolia"))
	assert.Equal(t, "MAINNET_RPC_URL", RPCEnvVar("Mainnet"))
	assert.Equal(t, "RPC_URL", RPCEnvVar("devnet"))
}
