// Package cairo drives the Starknet target: Starknet-flavoured proofs, the
// garaga-generated Cairo verifier, and its two-phase declare/deploy
// lifecycle on chain.
package cairo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bargo/internal/logging"
	"bargo/internal/paths"
	"bargo/internal/runner"
	"bargo/internal/store"
	"bargo/internal/ux"
	"bargo/internal/workflow"
)

// System is the garaga proof system for Starknet verifiers.
const System = "ultra_starknet_zk_honk"

const flavour = paths.FlavourStarknet

// Workflow runs the Starknet commands against one environment.
type Workflow struct {
	env    *workflow.Env
	policy DeployConfig
}

// New returns a Workflow whose deploy policy defaults to the project's
// auto_declare setting.
func New(env *workflow.Env) *Workflow {
	return &Workflow{
		env:    env,
		policy: DeployConfig{AutoDeclare: env.Config.Cairo.AutoDeclare},
	}
}

// Configure installs a deploy policy after validating it.
func (w *Workflow) Configure(c DeployConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}
	w.policy = c
	return nil
}

// Policy returns the active deploy policy.
func (w *Workflow) Policy() DeployConfig { return w.policy }

// Store is the Starknet breadcrumb store.
func (w *Workflow) Store() *store.Store { return w.env.Store(flavour) }

func (w *Workflow) bb(args ...string) runner.CmdSpec {
	return w.env.Cmd(w.env.Tools().BB, args...)
}

func (w *Workflow) garaga(args ...string) runner.CmdSpec {
	return w.env.Cmd(w.env.Tools().Garaga, args...)
}

func (w *Workflow) starkli(args ...string) runner.CmdSpec {
	return w.env.Cmd(w.env.Tools().Starkli, args...)
}

func (w *Workflow) rel(p string) string { return w.env.Rel(p) }

// buildInputs resolves the package and checks its compiled circuit.
func (w *Workflow) buildInputs() (bytecode, witness string, err error) {
	pkg, err := w.env.Package()
	if err != nil {
		return "", "", err
	}
	l := w.env.Layout
	bytecode, witness = l.Bytecode(pkg, paths.FlavourBB), l.Witness(pkg, paths.FlavourBB)
	if err := w.env.Validate(bytecode, witness); err != nil {
		return "", "", err
	}
	return bytecode, witness, nil
}

func (w *Workflow) proofArtifacts() (proof, vk, publicInputs string) {
	l := w.env.Layout
	return l.Proof(flavour), l.VerificationKey(flavour), l.PublicInputs(flavour)
}

func (w *Workflow) proveSteps(ctx context.Context, bytecode, witness string, summary *ux.Summary) error {
	e := w.env
	out := e.Rel(e.Layout.TargetDir(flavour)) + "/"
	if !e.DryRun {
		if err := e.Layout.EnsureDir(flavour); err != nil {
			return err
		}
	}

	start := time.Now()
	if err := e.Runner.Run(ctx, w.bb("prove",
		"--scheme", "ultra_honk",
		"--oracle_hash", flavour.OracleHash(),
		"--zk",
		"-b", w.rel(bytecode),
		"-w", w.rel(witness),
		"-o", out,
	)); err != nil {
		return err
	}
	proof, vk, _ := w.proofArtifacts()
	if !e.DryRun {
		e.Printer.Result("Starknet proof generated", w.rel(proof), time.Since(start))
		summary.Add(fmt.Sprintf("Starknet proof (%s)", ux.FileSize(proof)))
	}

	start = time.Now()
	if err := e.Runner.Run(ctx, w.bb("write_vk",
		"--oracle_hash", flavour.OracleHash(),
		"-b", w.rel(bytecode),
		"-o", out,
	)); err != nil {
		return err
	}
	if !e.DryRun {
		e.Printer.Result("Starknet VK generated", w.rel(vk), time.Since(start))
		summary.Add(fmt.Sprintf("Verification key (%s)", ux.FileSize(vk)))
	}
	return nil
}

// Prove writes target/starknet/{proof,vk,public_inputs}.
func (w *Workflow) Prove(ctx context.Context) error {
	return w.env.Stage(ctx, "cairo prove", func(ctx context.Context) error {
		bytecode, witness, err := w.buildInputs()
		if err != nil {
			return err
		}
		logging.Backend("cairo: proving %s", w.rel(bytecode))
		return w.proveSteps(ctx, bytecode, witness, ux.NewSummary())
	})
}

// Generate proves, generates the Cairo verifier with garaga and moves it to
// contracts/cairo.
func (w *Workflow) Generate(ctx context.Context) error {
	return w.env.Stage(ctx, "cairo gen", func(ctx context.Context) error {
		e := w.env
		bytecode, witness, err := w.buildInputs()
		if err != nil {
			return err
		}

		summary := ux.NewSummary()
		if err := w.proveSteps(ctx, bytecode, witness, summary); err != nil {
			return err
		}

		start := time.Now()
		_, vk, _ := w.proofArtifacts()
		if err := e.Runner.Run(ctx, w.garaga("gen",
			"--system", System,
			"--vk", w.rel(vk),
			"--project-name", paths.CairoProjectName,
		)); err != nil {
			return err
		}

		scaffold, dest := e.Layout.CairoScaffold(), e.Layout.CairoContractsDir()
		if e.DryRun {
			e.Printer.Println(fmt.Sprintf("Would move %s/ to %s/", w.rel(scaffold), w.rel(dest)))
			return nil
		}
		if err := relocate(scaffold, dest); err != nil {
			return err
		}

		e.Printer.Result("Cairo verifier contract generated", w.rel(dest)+"/", time.Since(start))
		summary.Add("Cairo verifier contract")
		e.Printer.Summary(summary)
		e.Printer.NextSteps(
			"Generate calldata: bargo cairo calldata",
			"Declare contract: bargo cairo declare --network <network>",
		)
		return nil
	})
}

// relocate replaces dst with src.
func relocate(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("garaga did not produce %s: %w", src, err)
	}
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dst, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}
	logging.BackendDebug("cairo: moved %s -> %s", src, dst)
	return nil
}

// Verify checks the Starknet proof locally with bb.
func (w *Workflow) Verify(ctx context.Context) error {
	return w.env.Stage(ctx, "cairo verify", func(ctx context.Context) error {
		e := w.env
		proof, vk, pub := w.proofArtifacts()
		if err := e.Validate(proof, vk, pub); err != nil {
			return err
		}
		start := time.Now()
		if err := e.Runner.Run(ctx, w.bb("verify",
			"--scheme", "ultra_honk",
			"--zk",
			"--oracle_hash", flavour.OracleHash(),
			"-p", w.rel(proof),
			"-k", w.rel(vk),
			"-i", w.rel(pub),
		)); err != nil {
			return err
		}
		if !e.DryRun {
			e.Printer.Success(fmt.Sprintf("Starknet proof verified successfully (%s)", ux.FormatDuration(time.Since(start))))
		}
		return nil
	})
}

// Calldata captures garaga's calldata into target/starknet/calldata.json.
func (w *Workflow) Calldata(ctx context.Context) error {
	return w.env.Stage(ctx, "cairo calldata", func(ctx context.Context) error {
		e := w.env
		proof, vk, pub := w.proofArtifacts()
		if err := e.Validate(proof, vk, pub); err != nil {
			return err
		}

		start := time.Now()
		out, err := e.Runner.RunCapture(ctx, w.garaga("calldata",
			"--system", System,
			"--proof", w.rel(proof),
			"--vk", w.rel(vk),
			"--public-inputs", w.rel(pub),
		))
		if err != nil {
			return err
		}

		dest := e.Layout.Calldata(flavour)
		if e.DryRun {
			e.Printer.Println("Would write calldata to " + w.rel(dest))
			return nil
		}
		if err := e.Layout.EnsureDir(flavour); err != nil {
			return err
		}
		if err := os.WriteFile(dest, []byte(out), 0644); err != nil {
			return fmt.Errorf("failed to write calldata file: %w", err)
		}

		summary := ux.NewSummary()
		e.Printer.Result("Calldata generated", w.rel(dest), time.Since(start))
		summary.Add(fmt.Sprintf("Calldata for proof verification (%s)", ux.FileSize(dest)))
		e.Printer.Summary(summary)
		e.Printer.NextSteps("Verify on-chain: bargo cairo verify-onchain")
		return nil
	})
}

// account resolves the RPC url and starkli signer for network.
func (w *Workflow) account(network string) (rpc, account, keystore string, err error) {
	if rpc, err = w.env.Secret(RPCEnvVar(network)); err != nil {
		return
	}
	if account, err = w.env.Secret("STARKNET_ACCOUNT"); err != nil {
		return
	}
	keystore, err = w.env.Secret("STARKNET_KEYSTORE")
	return
}

func (w *Workflow) network(network string) string {
	if network == "" {
		return w.env.Config.Cairo.Network
	}
	return network
}

// Declare registers the verifier class on network and records its class
// hash. Simulate mode returns a placeholder hash and records nothing.
func (w *Workflow) Declare(ctx context.Context, network string) (string, error) {
	network = w.network(network)
	var hash string
	err := w.env.Stage(ctx, "cairo declare", func(ctx context.Context) error {
		e := w.env
		l := e.Layout
		if err := e.Validate(l.CairoContractClass(), l.CairoCompiledClass()); err != nil {
			return err
		}
		rpc, account, keystore, err := w.account(network)
		if err != nil {
			return err
		}

		if e.DryRun {
			e.Printer.Println("Would declare contract on network: " + network)
		}
		start := time.Now()
		out, err := e.Runner.RunCapture(ctx, w.starkli("declare",
			w.rel(l.CairoContractClass()),
			"--casm-file", w.rel(l.CairoCompiledClass()),
			"--rpc", rpc,
			"--account", account,
			"--keystore", keystore,
		))
		if err != nil {
			return err
		}

		if e.DryRun {
			hash = workflow.Placeholder("class_hash")
			return nil
		}
		if hash, err = ParseClassHash(out); err != nil {
			return err
		}
		if err := w.Store().Put(store.ClassIdentifier, hash); err != nil {
			return err
		}
		e.RecordBreadcrumb(flavour, store.ClassIdentifier, hash)
		e.Printer.Result("Contract declared on "+network, hash, time.Since(start))
		return nil
	})
	return hash, err
}

// resolveClassHash applies the deploy policy: an explicit hash wins, then a
// cached one; otherwise auto-declare declares and no-declare fails.
func (w *Workflow) resolveClassHash(ctx context.Context, network string) (string, error) {
	if w.policy.ClassHash != "" {
		logging.BackendDebug("cairo: using explicit class hash %s", w.policy.ClassHash)
		return w.policy.ClassHash, nil
	}

	cached, ok, err := w.Store().Lookup(store.ClassIdentifier)
	if err != nil {
		return "", err
	}
	if ok {
		logging.Backend("cairo: using cached class hash %s", cached)
		return cached, nil
	}

	if !w.policy.AutoDeclare || w.policy.NoDeclare {
		if w.env.DryRun {
			return workflow.Placeholder("class_hash"), nil
		}
		return "", workflow.Suggest(
			fmt.Errorf("no class hash provided and no saved class hash found"),
			"Provide class hash with --class-hash option",
			"Or run 'bargo cairo declare' first to save class hash",
		)
	}

	logging.Backend("cairo: no class hash cached, declaring first")
	return w.Declare(ctx, network)
}

// Deploy instantiates the verifier class on network and records the
// contract address. The class hash comes from the deploy policy.
func (w *Workflow) Deploy(ctx context.Context, network string) (string, error) {
	if err := w.policy.Validate(); err != nil {
		return "", workflow.Enhance(err)
	}
	network = w.network(network)

	classHash, err := w.resolveClassHash(ctx, network)
	if err != nil {
		return "", err
	}

	var address string
	err = w.env.Stage(ctx, "cairo deploy", func(ctx context.Context) error {
		e := w.env
		rpc, account, keystore, err := w.account(network)
		if err != nil {
			return err
		}

		if e.DryRun {
			e.Printer.Println("Would deploy contract with class hash: " + classHash)
		}
		start := time.Now()
		out, err := e.Runner.RunCapture(ctx, w.starkli("deploy",
			classHash,
			"--rpc", rpc,
			"--account", account,
			"--keystore", keystore,
		))
		if err != nil {
			return err
		}

		if e.DryRun {
			address = workflow.Placeholder("contract_address")
			return nil
		}
		if address, err = ParseContractAddress(out); err != nil {
			return err
		}
		if err := w.Store().Put(store.ContractAddress, address); err != nil {
			return err
		}
		e.RecordBreadcrumb(flavour, store.ContractAddress, address)
		e.Printer.Result("Contract deployed on "+network, address, time.Since(start))
		e.Printer.NextSteps("Verify on-chain: bargo cairo verify-onchain")
		return nil
	})
	return address, err
}

// VerifyOnchain submits the proof to the deployed verifier with garaga.
// address falls back to the recorded contract address.
func (w *Workflow) VerifyOnchain(ctx context.Context, network, address string) error {
	network = w.network(network)
	return w.env.Stage(ctx, "cairo verify-onchain", func(ctx context.Context) error {
		e := w.env
		if address == "" {
			cached, ok, err := w.Store().Lookup(store.ContractAddress)
			if err != nil {
				return err
			}
			switch {
			case ok:
				address = cached
			case e.DryRun:
				address = workflow.Placeholder("contract_address")
			default:
				return workflow.Suggest(
					fmt.Errorf("no contract address provided and no saved address found"),
					"Provide contract address with --address option",
					"Or run 'bargo cairo deploy' first to save contract address",
				)
			}
		}

		proof, vk, pub := w.proofArtifacts()
		if err := e.Validate(e.Layout.Calldata(flavour), proof, vk, pub); err != nil {
			return err
		}

		start := time.Now()
		if err := e.Runner.Run(ctx, w.garaga("verify-onchain",
			"--system", System,
			"--contract-address", address,
			"--network", network,
			"--vk", w.rel(vk),
			"--proof", w.rel(proof),
			"--public-inputs", w.rel(pub),
		)); err != nil {
			return err
		}
		if !e.DryRun {
			e.Printer.Success(fmt.Sprintf("Proof verified on-chain at %s (%s)", address, ux.FormatDuration(time.Since(start))))
		}
		return nil
	})
}
