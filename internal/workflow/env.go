// Package workflow holds what every pipeline command shares: the per-run
// environment, stage bookkeeping, precondition checks, the error taxonomy
// with its remediation table, and the backend-independent commands
// (check, build, clean, rebuild).
package workflow

import (
	"context"
	"strings"
	"sync"
	"time"

	"bargo/internal/config"
	"bargo/internal/logging"
	"bargo/internal/paths"
	"bargo/internal/runner"
	"bargo/internal/store"
	"bargo/internal/ux"
)

// Env carries the state of one bargo invocation. It is built once by the
// CLI and handed to every workflow.
type Env struct {
	Root        string
	Layout      paths.Layout
	PkgOverride string
	DryRun      bool
	Verbose     bool

	Runner  runner.Runner
	Printer *ux.Printer
	Config  *config.Config
	Secrets *config.Secrets
	Audit   *logging.AuditLog

	pkgOnce sync.Once
	pkg     string
	pkgErr  error
}

// NewEnv fills the derived fields and defaults for an environment rooted at
// root.
func NewEnv(root string, r runner.Runner, p *ux.Printer, cfg *config.Config) *Env {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if p == nil {
		p = ux.NewPrinter(ux.Plain(nil))
	}
	return &Env{
		Root:    root,
		Layout:  paths.New(root),
		Runner:  r,
		Printer: p,
		Config:  cfg,
	}
}

// Package resolves the package name once per invocation.
func (e *Env) Package() (string, error) {
	e.pkgOnce.Do(func() {
		e.pkg, e.pkgErr = paths.ResolvePackageName(e.Root, e.PkgOverride)
	})
	return e.pkg, e.pkgErr
}

// Tools returns the configured executable per external tool.
func (e *Env) Tools() config.ToolsConfig { return e.Config.Tools }

// Cmd builds a command that runs from the project root.
func (e *Env) Cmd(program string, args ...string) runner.CmdSpec {
	return runner.Cmd(program, args...).WithDir(e.Root)
}

// Rel renders p relative to the project root.
func (e *Env) Rel(p string) string { return e.Layout.Rel(p) }

// Store opens the breadcrumb store for a flavour.
func (e *Env) Store(f paths.Flavour) *store.Store { return store.New(e.Layout, f) }

// Lookup resolves a secret or environment value.
func (e *Env) Lookup(key string) (string, bool) { return e.Secrets.Lookup(key) }

// Require resolves a secret or environment value, failing with a
// ConfigurationError that names it.
func (e *Env) Require(key string) (string, error) { return e.Secrets.Require(key) }

// Secret is Require, except that simulate mode substitutes a "<KEY>"
// placeholder for a missing value.
func (e *Env) Secret(key string) (string, error) {
	v, err := e.Require(key)
	if err != nil && e.DryRun {
		logging.WorkflowDebug("%s is not set; simulating with a placeholder", key)
		return "<" + key + ">", nil
	}
	return v, err
}

// Placeholder is returned in simulate mode where a value would come from a
// stage that did not run.
func Placeholder(name string) string { return "<" + name + ">" }

// Validate checks that every path exists. Simulate mode skips the check.
func (e *Env) Validate(paths ...string) error {
	if e.DryRun {
		return nil
	}
	err := ValidateFilesExist(paths...)
	if missing, ok := err.(*MissingArtifactError); ok {
		for i, p := range missing.Paths {
			missing.Paths[i] = e.Rel(p)
		}
		logging.WorkflowDebug("missing artifacts: %s", strings.Join(missing.Paths, ", "))
	}
	return err
}

// Stage runs fn as a named pipeline stage: it is logged, audited outside
// simulate mode, and its error is passed through Enhance. Verbose runs
// print a heading per stage.
func (e *Env) Stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if e.Verbose {
		e.Printer.Banner(name)
	}
	log := logging.Get(logging.CategoryWorkflow).With("stage", name)
	log.Debug("stage start")
	start := time.Now()
	e.audit(logging.AuditEvent{Type: logging.AuditStageStart, Stage: name})

	err := fn(ctx)
	elapsed := time.Since(start)
	if err != nil {
		log.Warn("stage failed after %s: %v", elapsed, err)
		e.audit(logging.AuditEvent{
			Type:       logging.AuditStageError,
			Stage:      name,
			DurationMs: elapsed.Milliseconds(),
			Message:    err.Error(),
		})
		return Enhance(err)
	}

	log.Debug("stage complete in %s", elapsed)
	e.audit(logging.AuditEvent{
		Type:       logging.AuditStageComplete,
		Stage:      name,
		DurationMs: elapsed.Milliseconds(),
	})
	return nil
}

// RecordBreadcrumb audits a breadcrumb write.
func (e *Env) RecordBreadcrumb(f paths.Flavour, key store.Key, value string) {
	e.audit(logging.AuditEvent{
		Type:   logging.AuditBreadcrumbWrite,
		Fields: map[string]string{"flavour": string(f), "key": string(key), "value": value},
	})
}

func (e *Env) audit(ev logging.AuditEvent) {
	if e.DryRun {
		return
	}
	e.Audit.Record(ev)
}
