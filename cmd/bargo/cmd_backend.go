package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"bargo/internal/backend"
	"bargo/internal/cairo"
	"bargo/internal/config"
	"bargo/internal/workflow"
)

var (
	// Deploy and on-chain verification flags
	network     string
	address     string
	classHash   string
	autoDeclare bool
	noDeclare   bool
)

// cairoCmd groups the Starknet pipeline
var cairoCmd = &cobra.Command{
	Use:     "cairo",
	Aliases: []string{"starknet"},
	Short:   "Prove and verify on Starknet with a Garaga Cairo verifier",
}

// evmCmd groups the EVM pipeline
var evmCmd = &cobra.Command{
	Use:   "evm",
	Short: "Prove and verify on EVM chains with a Solidity verifier",
}

func init() {
	cairoCmd.AddCommand(stageCommands(backend.Cairo)...)
	evmCmd.AddCommand(stageCommands(backend.EVM)...)

	cairoDeclareCmd := &cobra.Command{
		Use:   "declare",
		Short: "Declare the verifier class and save its class hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := backendFor(backend.Cairo)
			if err != nil {
				return err
			}
			d, ok := b.(backend.Declarer)
			if !ok {
				return fmt.Errorf("%s backend has no declare phase", b.Kind())
			}
			_, err = d.Declare(cmd.Context(), network)
			return err
		},
	}
	cairoDeclareCmd.Flags().StringVar(&network, "network", "", "Starknet network (default from .bargo.yaml)")
	cairoCmd.AddCommand(cairoDeclareCmd)
}

// stageCommands builds the subcommands shared by every backend. Only the
// deploy and verify-onchain flags differ between kinds.
func stageCommands(kind backend.Kind) []*cobra.Command {
	stage := func(use, short string, run func(context.Context, backend.Backend) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				b, err := backendFor(kind)
				if err != nil {
					return err
				}
				return run(cmd.Context(), b)
			},
		}
	}

	gen := stage("gen", fmt.Sprintf("Generate proof, verification key and the %s verifier contract", kind),
		func(ctx context.Context, b backend.Backend) error { return b.Generate(ctx) })
	prove := stage("prove", "Generate the proof and verification key",
		func(ctx context.Context, b backend.Backend) error { return b.Prove(ctx) })
	verify := stage("verify", "Verify the proof locally",
		func(ctx context.Context, b backend.Backend) error { return b.Verify(ctx) })
	calldata := stage("calldata", "Generate calldata for on-chain verification",
		func(ctx context.Context, b backend.Backend) error { return b.Calldata(ctx) })

	deploy := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the verifier contract and save its address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, kind)
		},
	}
	deploy.Flags().StringVar(&network, "network", "", "Target network (default from .bargo.yaml)")

	verifyOnchain := &cobra.Command{
		Use:   "verify-onchain",
		Short: "Verify the proof against the deployed verifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := backendFor(kind)
			if err != nil {
				return err
			}
			return b.VerifyOnchain(cmd.Context(), network, address)
		},
	}
	verifyOnchain.Flags().StringVar(&address, "address", "", "Verifier address (default: saved by deploy)")

	switch kind {
	case backend.Cairo:
		deploy.Flags().StringVar(&classHash, "class-hash", "", "Class hash to deploy (default: saved by declare)")
		deploy.Flags().BoolVar(&autoDeclare, "auto-declare", true, "Declare first when no class hash is known")
		deploy.Flags().BoolVar(&noDeclare, "no-declare", false, "Never declare; fail without a class hash")
		verifyOnchain.Flags().StringVar(&network, "network", "", "Starknet network (default from .bargo.yaml)")
	case backend.EVM:
		deploy.Long = "Deploys contracts/evm/src/Verifier.sol with forge create. RPC_URL and\nPRIVATE_KEY are read from .env or the environment."
		verifyOnchain.Long = "Calls the verifier with cast using the saved calldata. RPC_URL is read\nfrom .env or the environment."
	}

	return []*cobra.Command{gen, prove, verify, calldata, deploy, verifyOnchain}
}

// runDeploy resolves the deploy policy from the flags and project defaults,
// rejecting contradictions before the backend is touched.
func runDeploy(cmd *cobra.Command, kind backend.Kind) error {
	var bc backend.Config
	if kind == backend.Cairo {
		explicit := cairo.DeployConfig{
			AutoDeclare: autoDeclare && cmd.Flags().Changed("auto-declare"),
			NoDeclare:   noDeclare,
		}
		if err := explicit.Validate(); err != nil {
			return workflow.Enhance(err)
		}
	}

	e, err := loadEnv()
	if err != nil {
		return err
	}
	if kind == backend.Cairo {
		dc := deployPolicy(cmd, e.Config)
		bc.CairoDeploy = &dc
	}

	b, err := backend.For(kind, e)
	if err != nil {
		return err
	}
	if err := b.Configure(bc); err != nil {
		return workflow.Enhance(err)
	}
	_, err = b.Deploy(cmd.Context(), network)
	return err
}

// deployPolicy combines the deploy flags with the auto_declare setting. An
// explicit --auto-declare wins; otherwise --no-declare turns it off.
func deployPolicy(cmd *cobra.Command, cfg *config.Config) cairo.DeployConfig {
	dc := cairo.DeployConfig{ClassHash: classHash, NoDeclare: noDeclare}
	if cmd.Flags().Changed("auto-declare") {
		dc.AutoDeclare = autoDeclare
	} else {
		dc.AutoDeclare = cfg.Cairo.AutoDeclare && !noDeclare
	}
	return dc
}

func backendFor(kind backend.Kind) (backend.Backend, error) {
	e, err := loadEnv()
	if err != nil {
		return nil, err
	}
	return backend.For(kind, e)
}
