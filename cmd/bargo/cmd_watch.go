package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bargo/internal/watch"
	"bargo/internal/workflow"
)

// watchCmd rebuilds on source changes
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild whenever the circuit sources change",
	Long: `Watches Nargo.toml, Prover.toml and src/ (plus watch.paths from .bargo.yaml)
and runs 'bargo build' after each settled burst of changes. A failed build is
reported and watching continues. Press Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	rebuild := func(ctx context.Context, changed []string) error {
		e.Printer.Info(fmt.Sprintf("Changed: %s", strings.Join(changed, ", ")))
		if err := workflow.Build(ctx, e); err != nil {
			e.Printer.Error(err)
			return err
		}
		return nil
	}

	w, err := watch.New(e.Root, rebuild, watch.Options{
		Debounce: e.Config.WatchDebounce(),
		Extra:    e.Config.Watch.Paths,
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Start from a fresh build so the first change is not the first compile.
	if err := rebuild(ctx, []string{e.Rel(e.Layout.Manifest())}); err != nil {
		logger.Warn("initial build failed; waiting for changes")
	}

	e.Printer.Info(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", e.Root))
	if err := w.Run(ctx); err != nil {
		return err
	}

	s := w.Stats()
	e.Printer.Info(fmt.Sprintf("Stopped after %d rebuild(s), %d failure(s)", s.Triggers, s.Errors))
	return nil
}
