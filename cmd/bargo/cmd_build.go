package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bargo/internal/paths"
	"bargo/internal/workflow"
)

// checkCmd type-checks the circuit
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the circuit for errors without executing it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		return workflow.Check(cmd.Context(), e)
	},
}

// buildCmd compiles and executes the circuit
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compile the circuit and generate the witness",
	Long: `Runs 'nargo execute' and moves the bytecode and witness into target/bb/.

The build is skipped when target/bb/ is newer than Nargo.toml, Prover.toml
and every file under src/.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		return workflow.Build(cmd.Context(), e)
	},
}

// cleanCmd removes build artifacts
var cleanCmd = &cobra.Command{
	Use:       "clean [all|bb|evm|starknet]",
	Short:     "Remove build artifacts",
	Long:      `Removes target/ entirely, or only the directory of one flavour.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: cleanTargets(),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		target := workflow.CleanAll
		if len(args) == 1 {
			target = args[0]
		}
		return workflow.Clean(cmd.Context(), e, target)
	},
}

// rebuildCmd cleans then builds
var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Remove target/ and build from scratch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		return workflow.Rebuild(cmd.Context(), e)
	},
}

func cleanTargets() []string {
	targets := []string{workflow.CleanAll}
	for _, f := range paths.Flavours {
		targets = append(targets, string(f))
	}
	return targets
}

func init() {
	cleanCmd.Long += fmt.Sprintf("\n\nTargets: %s (default %s).", strings.Join(cleanTargets(), ", "), workflow.CleanAll)
}
