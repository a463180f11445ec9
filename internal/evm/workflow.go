// Package evm drives the EVM target: keccak-flavoured proofs, the Solidity
// verifier generated by bb, and its one-phase deployment with Foundry.
package evm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"bargo/internal/logging"
	"bargo/internal/paths"
	"bargo/internal/runner"
	"bargo/internal/store"
	"bargo/internal/ux"
	"bargo/internal/workflow"
)

// System is the garaga proof system for EVM verifiers.
const System = "ultra_keccak_zk_honk"

// VerifierContract is the contract name inside Verifier.sol.
const VerifierContract = "Verifier"

const flavour = paths.FlavourEVM

// Workflow runs the EVM commands against one environment.
type Workflow struct {
	env *workflow.Env
}

// New returns an EVM Workflow.
func New(env *workflow.Env) *Workflow { return &Workflow{env: env} }

// Store is the EVM breadcrumb store.
func (w *Workflow) Store() *store.Store { return w.env.Store(flavour) }

func (w *Workflow) rel(p string) string { return w.env.Rel(p) }

func (w *Workflow) tool(program string, args ...string) runner.CmdSpec {
	return w.env.Cmd(program, args...)
}

func (w *Workflow) proofArtifacts() (proof, vk, publicInputs string) {
	l := w.env.Layout
	return l.Proof(flavour), l.VerificationKey(flavour), l.PublicInputs(flavour)
}

func (w *Workflow) network(network string) string {
	if network == "" {
		return w.env.Config.EVM.Network
	}
	return network
}

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

func (w *Workflow) proveSteps(ctx context.Context, bytecode, witness string, summary *ux.Summary) error {
	e := w.env
	bb := e.Tools().BB
	out := w.rel(e.Layout.TargetDir(flavour)) + "/"
	if !e.DryRun {
		if err := e.Layout.EnsureDir(flavour); err != nil {
			return err
		}
	}

	start := time.Now()
	if err := e.Runner.Run(ctx, w.tool(bb, "prove",
		"-b", w.rel(bytecode),
		"-w", w.rel(witness),
		"-o", out,
		"--oracle_hash", flavour.OracleHash(),
		"--output_format", "bytes_and_fields",
	)); err != nil {
		return err
	}
	proof, vk, _ := w.proofArtifacts()
	if !e.DryRun {
		e.Printer.Result("EVM proof generated", w.rel(proof), time.Since(start))
		summary.Add(fmt.Sprintf("EVM proof (%s)", ux.FileSize(proof)))
	}

	start = time.Now()
	if err := e.Runner.Run(ctx, w.tool(bb, "write_vk",
		"--oracle_hash", flavour.OracleHash(),
		"-b", w.rel(bytecode),
		"-o", out,
	)); err != nil {
		return err
	}
	if !e.DryRun {
		e.Printer.Result("EVM VK generated", w.rel(vk), time.Since(start))
		summary.Add(fmt.Sprintf("Verification key (%s)", ux.FileSize(vk)))
	}
	return nil
}

// Prove writes target/evm/{proof,vk,public_inputs}.
func (w *Workflow) Prove(ctx context.Context) error {
	return w.env.Stage(ctx, "evm prove", func(ctx context.Context) error {
		bytecode, witness, err := w.buildInputs()
		if err != nil {
			return err
		}
		logging.Backend("evm: proving %s", w.rel(bytecode))
		return w.proveSteps(ctx, bytecode, witness, ux.NewSummary())
	})
}

// Generate initializes the Foundry project, proves, and writes the Solidity
// verifier into contracts/evm/src.
func (w *Workflow) Generate(ctx context.Context) error {
	return w.env.Stage(ctx, "evm gen", func(ctx context.Context) error {
		e := w.env
		l := e.Layout
		bytecode, witness, err := w.buildInputs()
		if err != nil {
			return err
		}

		summary := ux.NewSummary()
		start := time.Now()
		if err := e.Runner.Run(ctx, w.tool(e.Tools().Forge, "init", "--force", w.rel(l.EVMContractsDir()))); err != nil {
			return err
		}
		if !e.DryRun {
			e.Printer.Result("Foundry project initialized", w.rel(l.EVMContractsDir())+"/", time.Since(start))
			summary.Add("Foundry project")
		}

		if err := w.proveSteps(ctx, bytecode, witness, summary); err != nil {
			return err
		}

		start = time.Now()
		_, vk, _ := w.proofArtifacts()
		verifier := l.SolidityVerifier()
		if err := e.Runner.Run(ctx, w.tool(e.Tools().BB, "write_solidity_verifier",
			"-k", w.rel(vk),
			"-o", w.rel(verifier),
		)); err != nil {
			return err
		}
		if e.DryRun {
			return nil
		}

		e.Printer.Result("Solidity verifier generated", w.rel(verifier), time.Since(start))
		summary.Add(fmt.Sprintf("Solidity verifier (%s)", ux.FileSize(verifier)))
		e.Printer.Summary(summary)
		e.Printer.NextSteps(
			"Generate calldata: bargo evm calldata",
			"Deploy contract: bargo evm deploy --network <network>",
		)
		return nil
	})
}

// Verify checks the EVM proof locally with bb.
func (w *Workflow) Verify(ctx context.Context) error {
	return w.env.Stage(ctx, "evm verify", func(ctx context.Context) error {
		e := w.env
		proof, vk, pub := w.proofArtifacts()
		if err := e.Validate(proof, vk, pub); err != nil {
			return err
		}
		start := time.Now()
		if err := e.Runner.Run(ctx, w.tool(e.Tools().BB, "verify",
			"-p", w.rel(proof),
			"-k", w.rel(vk),
			"-i", w.rel(pub),
			"--oracle_hash", flavour.OracleHash(),
		)); err != nil {
			return err
		}
		if !e.DryRun {
			e.Printer.Success(fmt.Sprintf("EVM proof verified successfully (%s)", ux.FormatDuration(time.Since(start))))
		}
		return nil
	})
}

// Calldata captures garaga's calldata into target/evm/calldata.json.
func (w *Workflow) Calldata(ctx context.Context) error {
	return w.env.Stage(ctx, "evm calldata", func(ctx context.Context) error {
		e := w.env
		proof, vk, pub := w.proofArtifacts()
		if err := e.Validate(proof, vk, pub); err != nil {
			return err
		}

		start := time.Now()
		out, err := e.Runner.RunCapture(ctx, w.tool(e.Tools().Garaga, "calldata",
			"--system", System,
			"--proof", w.rel(proof),
			"--vk", w.rel(vk),
			"--public-inputs", w.rel(pub),
		))
		if err != nil {
			return err
		}
		if _, err := CalldataWords([]byte(out)); err != nil {
			return &workflow.ParseFailure{Tool: "garaga", Expected: "calldata", Output: out}
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
		e.Printer.NextSteps("Verify on-chain: bargo evm verify-onchain")
		return nil
	})
}

// Deploy broadcasts the Solidity verifier with forge create and records the
// contract address.
func (w *Workflow) Deploy(ctx context.Context, network string) (string, error) {
	network = w.network(network)
	var address string
	err := w.env.Stage(ctx, "evm deploy", func(ctx context.Context) error {
		e := w.env
		verifier := e.Layout.SolidityVerifier()
		if err := e.Validate(verifier); err != nil {
			return err
		}
		rpc, err := e.Secret("RPC_URL")
		if err != nil {
			return err
		}
		key, err := e.Secret("PRIVATE_KEY")
		if err != nil {
			return err
		}

		if e.DryRun {
			e.Printer.Println("Would deploy Verifier contract to network: " + network)
		}
		start := time.Now()
		out, err := e.Runner.RunCapture(ctx, w.tool(e.Tools().Forge, "create",
			w.rel(verifier)+":"+VerifierContract,
			"--rpc-url", rpc,
			"--private-key", key,
			"--broadcast",
		))
		if err != nil {
			return err
		}

		address, err = ParseDeployedAddress(out)
		if e.DryRun {
			if err != nil {
				address = workflow.Placeholder("contract_address")
			}
			return nil
		}
		if err != nil {
			return err
		}
		if err := w.Store().Put(store.ContractAddress, address); err != nil {
			return err
		}
		e.RecordBreadcrumb(flavour, store.ContractAddress, address)

		summary := ux.NewSummary()
		e.Printer.Result("Verifier deployed on "+network, address, time.Since(start))
		summary.Add("Verifier contract at " + address)
		e.Printer.Summary(summary)
		e.Printer.NextSteps(
			"Generate calldata: bargo evm calldata",
			"Verify on-chain: bargo evm verify-onchain",
		)
		return nil
	})
	return address, err
}

// resolveAddress picks the target contract: explicit, then recorded, then
// CONTRACT_ADDRESS.
func (w *Workflow) resolveAddress(address string) (string, error) {
	if address != "" {
		return address, nil
	}
	cached, ok, err := w.Store().Lookup(store.ContractAddress)
	if err != nil {
		return "", err
	}
	if ok {
		return cached, nil
	}
	if v, ok := w.env.Lookup("CONTRACT_ADDRESS"); ok {
		return v, nil
	}
	if w.env.DryRun {
		return workflow.Placeholder("contract_address"), nil
	}
	return "", workflow.Suggest(
		fmt.Errorf("no contract address provided and no saved address found"),
		"Provide contract address with --address option",
		"Run 'bargo evm deploy' first to save contract address",
		"Or set CONTRACT_ADDRESS environment variable",
	)
}

// VerifyOnchain calls verify(bytes,bytes32[]) on the deployed verifier.
// The call is read-only.
func (w *Workflow) VerifyOnchain(ctx context.Context, address string) error {
	return w.env.Stage(ctx, "evm verify-onchain", func(ctx context.Context) error {
		e := w.env
		target, err := w.resolveAddress(address)
		if err != nil {
			return err
		}
		rpc, err := e.Secret("RPC_URL")
		if err != nil {
			return err
		}
		call, err := w.verifyCall()
		if err != nil {
			return err
		}

		args := append([]string{"call", target}, call...)
		args = append(args, "--rpc-url", rpc)
		start := time.Now()
		out, err := e.Runner.RunCapture(ctx, w.tool(e.Tools().Cast, args...))
		if err != nil {
			return err
		}
		if e.DryRun {
			return nil
		}

		valid, ok := Verdict(out)
		switch {
		case ok && !valid:
			return fmt.Errorf("verifier at %s rejected the proof", target)
		case !ok:
			logging.BackendDebug("evm: unrecognized verifier result %q", strings.TrimSpace(out))
			e.Printer.Info("Verifier returned: " + strings.TrimSpace(out))
		}
		e.Printer.Success(fmt.Sprintf("Proof verified on-chain at %s (%s)", target, ux.FormatDuration(time.Since(start))))
		return nil
	})
}

// verifyCall builds the cast arguments after the address. Calldata that is
// already a full verify call is sent as is; otherwise cast encodes the
// proof and public inputs against VerifySignature.
func (w *Workflow) verifyCall() ([]string, error) {
	e := w.env
	if data, err := os.ReadFile(e.Layout.Calldata(flavour)); err == nil {
		words, err := CalldataWords(data)
		if err != nil {
			return nil, err
		}
		if call, ok := EncodedCall(words); ok {
			logging.BackendDebug("evm: sending pre-encoded calldata")
			return []string{call}, nil
		}
	}

	proof, _, pub := w.proofArtifacts()
	if err := e.Validate(proof, pub); err != nil {
		return nil, err
	}
	proofData, perr := os.ReadFile(proof)
	pubData, ierr := os.ReadFile(pub)
	if e.DryRun && (perr != nil || ierr != nil) {
		return []string{VerifySignature, workflow.Placeholder("proof"), workflow.Placeholder("public_inputs")}, nil
	}
	if perr != nil {
		return nil, fmt.Errorf("failed to read proof: %w", perr)
	}
	if ierr != nil {
		return nil, fmt.Errorf("failed to read public inputs: %w", ierr)
	}
	proofArg, inputsArg, err := VerifyArgs(proofData, pubData)
	if err != nil {
		return nil, err
	}
	return []string{VerifySignature, proofArg, inputsArg}, nil
}
