package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bargo/internal/config"
	"bargo/internal/logging"
	"bargo/internal/paths"
	"bargo/internal/runner"
	"bargo/internal/ux"
	"bargo/internal/workflow"
)

// LogFileName is written next to the audit log in live mode.
const LogFileName = "bargo.log"

var (
	// Global flags
	verbose     bool
	quiet       bool
	dryRun      bool
	noColor     bool
	pkgOverride string
	workspace   string
	configPath  string

	// Logger
	logger *zap.Logger

	// env is built on first use by a command that needs a project.
	env *workflow.Env
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "bargo",
	Short: "bargo - build, prove and deploy Noir circuits",
	Long: `bargo drives the Noir toolchain (nargo, bb, garaga, starkli, forge, cast)
through the whole zero-knowledge pipeline:

  build -> prove -> verify -> gen -> calldata -> deploy -> verify-onchain

Proofs target either Starknet (bargo cairo ...) or EVM chains (bargo evm ...).
Every command accepts --dry-run to print the tool invocations without running
them or touching the filesystem.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = newLogger("")
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.Initialize(logger, logging.Options{})
		logging.BootDebug("command %s (dry-run=%v)", cmd.CommandPath(), dryRun)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdown()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show tool invocations and debug logs")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print errors")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Print commands without executing them")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&pkgOverride, "pkg", "", "Package name (overrides Nargo.toml)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Project directory (default: search upward from cwd)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to .bargo.yaml (default: <project>/.bargo.yaml)")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(
		checkCmd,
		buildCmd,
		cleanCmd,
		rebuildCmd,
		cairoCmd,
		evmCmd,
		watchCmd,
		configCmd,
		auditCmd,
		versionCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorPrinter().FormatError(workflow.Enhance(err)))
		os.Exit(1)
	}
}

// newLogger builds the process logger. Without files it writes to stderr at
// warn level so the terminal output stays readable; with files it honours
// level and mirrors to stderr only under --verbose.
func newLogger(level string, files ...string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if len(files) > 0 {
		if lvl, err := zapcore.ParseLevel(level); err == nil && level != "" {
			cfg.Level.SetLevel(lvl)
		}
		cfg.OutputPaths = files
		if verbose {
			cfg.OutputPaths = append(cfg.OutputPaths, "stderr")
		}
	}
	if verbose {
		cfg.Level.SetLevel(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// loadEnv resolves the project, its configuration and secrets, and builds
// the runner chosen by --dry-run. It is called once per invocation.
func loadEnv() (*workflow.Env, error) {
	if env != nil {
		return env, nil
	}

	start := workspace
	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		start = cwd
	}
	root, err := paths.FindProjectRoot(start)
	if err != nil {
		if !dryRun {
			return nil, workflow.Enhance(err)
		}
		// A dry run only prints commands; let it work outside a project.
		root, _ = filepath.Abs(start)
		logging.BootDebug("no Nargo.toml above %s; simulating from there", start)
	}

	cfgFile := configPath
	if cfgFile == "" {
		cfgFile = config.Path(root)
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	layout := paths.New(root)
	if !dryRun {
		if err := os.MkdirAll(layout.AuditDir(), 0755); err == nil {
			if l, err := newLogger(cfg.Logging.Level, filepath.Join(layout.AuditDir(), LogFileName)); err == nil {
				_ = logger.Sync()
				logger = l
			}
		}
	}
	logging.Initialize(logger, logging.Options{Categories: cfg.Logging.Categories})
	logging.Config("project root %s, config %s", root, cfgFile)

	secrets, err := config.LoadSecrets(
		filepath.Join(root, cfg.Cairo.SecretsFile),
		filepath.Join(root, cfg.EVM.EnvFile),
	)
	if err != nil {
		return nil, err
	}

	uctx := ux.Detect(cfg.UX.Color, noColor, quiet)
	printer := ux.NewPrinter(uctx)
	logging.Boot("bargo %s (dry-run %t, color %t)", Version, dryRun, uctx.Colored())

	toolOut := uctx.Out
	if quiet {
		toolOut = nil
	}
	r := runner.New(dryRun, toolOut)
	if live, ok := r.(*runner.Live); ok && !quiet {
		live.SetErrOutput(printer.ErrOut())
	}

	e := workflow.NewEnv(root, r, printer, cfg)
	e.PkgOverride = pkgOverride
	e.DryRun = dryRun
	e.Verbose = verbose
	e.Secrets = secrets

	if cfg.Logging.Audit && !dryRun {
		audit, err := logging.OpenAudit(layout.AuditDir())
		if err != nil {
			logging.Get(logging.CategoryBoot).Warn("audit disabled: %v", err)
		} else {
			e.Audit = audit
			if live, ok := r.(*runner.Live); ok {
				live.SetAuditCallback(audit.Record)
			}
			logging.BootDebug("audit run %s -> %s", audit.RunID(), audit.Path())
		}
	}

	env = e
	return env, nil
}

// shutdown flushes the logger and closes the audit log. It is safe to call
// more than once.
func shutdown() {
	if env != nil && env.Audit != nil {
		if err := env.Audit.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close audit log: %v\n", err)
		}
		env.Audit = nil
	}
	if logger != nil {
		_ = logger.Sync()
	}
}

// errorPrinter renders a failure with the run's printer when one exists.
func errorPrinter() *ux.Printer {
	if env != nil {
		return env.Printer
	}
	return ux.NewPrinter(ux.Detect("auto", noColor, quiet))
}
