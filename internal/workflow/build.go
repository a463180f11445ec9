package workflow

import (
	"context"
	"fmt"
	"os"
	"strings"

	"bargo/internal/logging"
	"bargo/internal/paths"
	"bargo/internal/rebuild"
	"bargo/internal/runner"
)

// CleanAll selects the whole target directory for Clean.
const CleanAll = "all"

// nargo builds a nargo invocation, adding --package when one was requested.
func (e *Env) nargo(sub string) runner.CmdSpec {
	spec := e.Cmd(e.Tools().Nargo, sub)
	if pkg := strings.TrimSpace(e.PkgOverride); pkg != "" {
		spec = spec.WithArgs("--package", pkg)
	}
	return spec
}

// Check runs `nargo check`.
func Check(ctx context.Context, e *Env) error {
	return e.Stage(ctx, "check", func(ctx context.Context) error {
		if err := e.Runner.Run(ctx, e.nargo("check")); err != nil {
			return err
		}
		if !e.DryRun {
			e.Printer.Success("Check completed")
		}
		return nil
	})
}

// Build compiles and executes the circuit when its outputs are stale, then
// moves them under target/bb. Simulate mode always prints the compiler
// invocation and the moves it would make.
func Build(ctx context.Context, e *Env) error {
	return e.Stage(ctx, "build", func(ctx context.Context) error {
		if e.DryRun {
			return simulateBuild(ctx, e)
		}

		pkg, err := e.Package()
		if err != nil {
			return err
		}

		reason, err := rebuild.Check(e.Layout, pkg)
		if err != nil {
			return err
		}
		if !reason.Stale {
			logging.BuildDebug("%s is up to date", pkg)
			e.Printer.Success("Build is up to date")
			return nil
		}
		logging.Build("Rebuilding %s: %s (%s)", pkg, reason.Why, e.Rel(reason.Trigger))

		timer := logging.StartTimer(logging.CategoryBuild, "nargo execute")
		if err := e.Runner.Run(ctx, e.nargo("execute")); err != nil {
			return err
		}

		res, err := e.Layout.OrganizeBuildArtifacts(pkg, paths.FlavourBB)
		if err != nil {
			return err
		}
		if len(res.Moved) == 0 {
			e.Printer.Warn(fmt.Sprintf("nargo produced no artifacts for %s", pkg))
		}

		e.Printer.Result("Build completed", e.Rel(e.Layout.TargetDir(paths.FlavourBB))+"/", timer.Stop())
		return nil
	})
}

func simulateBuild(ctx context.Context, e *Env) error {
	if err := e.Runner.Run(ctx, e.nargo("execute")); err != nil {
		return err
	}
	pkg, err := e.Package()
	if err != nil {
		logging.BuildDebug("dry run: package unresolved: %v", err)
		pkg = "<package>"
	}
	l := e.Layout
	for _, ext := range []string{".json", ".gz"} {
		src := l.CompilerOutput(pkg, ext)
		dst := l.Bytecode(pkg, paths.FlavourBB)
		if ext == ".gz" {
			dst = l.Witness(pkg, paths.FlavourBB)
		}
		e.Printer.Println(fmt.Sprintf("Would move %s to %s", e.Rel(src), e.Rel(dst)))
	}
	return nil
}

// CleanDir resolves a clean target ("all" or a flavour) to the directory it
// removes.
func (e *Env) CleanDir(target string) (string, error) {
	if target == "" || target == CleanAll {
		return e.Layout.TargetRoot(), nil
	}
	f, err := paths.ParseFlavour(target)
	if err != nil {
		candidates := []string{CleanAll}
		for _, f := range paths.Flavours {
			candidates = append(candidates, string(f))
		}
		if m, ok := DidYouMean(target, candidates); ok {
			return "", Suggest(err, "Did you mean 'bargo clean "+m+"'?")
		}
		return "", err
	}
	return e.Layout.TargetDir(f), nil
}

// Clean removes target/ or target/<flavour>/. Simulate mode only prints
// the removal.
func Clean(ctx context.Context, e *Env, target string) error {
	return e.Stage(ctx, "clean", func(ctx context.Context) error {
		dir, err := e.CleanDir(target)
		if err != nil {
			return err
		}
		rel := e.Rel(dir) + "/"

		if e.DryRun {
			e.Printer.Println("Would run: rm -rf " + rel)
			return nil
		}

		if _, err := os.Stat(dir); os.IsNotExist(err) {
			e.Printer.Info(rel + " already clean")
			return nil
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", rel, err)
		}
		logging.Build("Removed %s", dir)
		e.Printer.Success("Removed " + rel)
		return nil
	})
}

// Rebuild cleans everything and builds from scratch.
func Rebuild(ctx context.Context, e *Env) error {
	if err := Clean(ctx, e, CleanAll); err != nil {
		return err
	}
	return Build(ctx, e)
}
