package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"bargo/internal/cairo"
	"bargo/internal/config"
	"bargo/internal/logging"
	"bargo/internal/paths"
	"bargo/internal/store"
	"bargo/internal/ux"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

var (
	forceInit  bool
	auditLimit int
)

// configCmd groups configuration commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage .bargo.yaml",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a .bargo.yaml with the default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		path := configPath
		if path == "" {
			path = config.Path(e.Root)
		}
		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", e.Rel(path))
		}
		if e.DryRun {
			e.Printer.Println(fmt.Sprintf("Would write %s", e.Rel(path)))
			return nil
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		e.Printer.Success(fmt.Sprintf("Wrote %s", e.Rel(path)))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(e.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprint(e.Printer.Out(), string(data))
		if files := e.Secrets.Files(); len(files) > 0 {
			rel := make([]string, len(files))
			for i, f := range files {
				rel[i] = e.Rel(f)
			}
			fmt.Fprintf(e.Printer.Out(), "# secrets loaded from: %s\n", strings.Join(rel, ", "))
		}
		return nil
	},
}

// statusCmd reports saved deployment state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the saved class hash and contract addresses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		out := e.Printer.Out()
		for _, f := range []paths.Flavour{paths.FlavourStarknet, paths.FlavourEVM} {
			s := e.Store(f)
			snap, err := s.Snapshot()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s:\n", f)
			if f == paths.FlavourStarknet {
				state, err := cairo.CurrentState(s)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  state: %s\n", state)
			}
			for _, k := range store.Keys() {
				if v, ok := snap[k]; ok {
					fmt.Fprintf(out, "  %s: %s\n", k, v)
				}
			}
		}
		return nil
	},
}

// auditCmd prints recent audit events
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent pipeline events from target/.bargo/audit.jsonl",
	Long: `Prints the most recent stage and tool events. Auditing is enabled with
logging.audit: true in .bargo.yaml or BARGO_AUDIT=1.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		events, err := logging.ReadAudit(filepath.Join(e.Layout.AuditDir(), logging.AuditFileName))
		if err != nil {
			return err
		}
		if len(events) == 0 {
			e.Printer.Info("No audit events recorded")
			return nil
		}
		if auditLimit > 0 && len(events) > auditLimit {
			events = events[len(events)-auditLimit:]
		}
		out := e.Printer.Out()
		for _, ev := range events {
			fmt.Fprintln(out, formatAuditEvent(ev))
		}
		return nil
	},
}

func formatAuditEvent(ev logging.AuditEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %-16s", ev.Timestamp.Local().Format(time.DateTime), shortID(ev.RunID), ev.Type)
	if ev.Stage != "" {
		fmt.Fprintf(&b, " [%s]", ev.Stage)
	}
	if ev.Command != "" {
		fmt.Fprintf(&b, " %s", ev.Command)
	}
	if ev.DurationMs > 0 {
		fmt.Fprintf(&b, " (%s)", ux.FormatDuration(time.Duration(ev.DurationMs)*time.Millisecond))
	}
	if ev.Message != "" {
		fmt.Fprintf(&b, ": %s", ev.Message)
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// versionCmd prints the version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the bargo version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bargo %s\n", Version)
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file")
	auditCmd.Flags().IntVarP(&auditLimit, "last", "n", 20, "Number of events to show (0 for all)")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(statusCmd)
}
