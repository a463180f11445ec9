// Package backend exposes the proof targets behind one interface. The set of
// targets is closed: Kind enumerates them and For switches over it.
package backend

import (
	"context"
	"fmt"
	"strings"

	"bargo/internal/cairo"
	"bargo/internal/evm"
	"bargo/internal/logging"
	"bargo/internal/workflow"
)

// Backend is the capability set shared by every target.
type Backend interface {
	Kind() Kind
	Generate(ctx context.Context) error
	Prove(ctx context.Context) error
	Verify(ctx context.Context) error
	Calldata(ctx context.Context) error
	// Deploy returns the deployed contract address.
	Deploy(ctx context.Context, network string) (string, error)
	VerifyOnchain(ctx context.Context, network, address string) error
	Configure(cfg Config) error
}

// Kind names a target.
type Kind int

const (
	Cairo Kind = iota
	EVM
)

// Kinds lists every target.
var Kinds = []Kind{Cairo, EVM}

func (k Kind) String() string {
	switch k {
	case Cairo:
		return "cairo"
	case EVM:
		return "evm"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a command name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cairo", "starknet":
		return Cairo, nil
	case "evm":
		return EVM, nil
	}
	return 0, fmt.Errorf("unknown backend %q (expected cairo or evm)", s)
}

// Config carries backend-specific settings. Exactly one field applies to a
// given Kind; the zero Config leaves defaults in place.
type Config struct {
	CairoDeploy *cairo.DeployConfig
}

// Validate rejects settings that no backend could accept.
func (c Config) Validate() error {
	if c.CairoDeploy != nil {
		return c.CairoDeploy.Validate()
	}
	return nil
}

// For builds the backend of kind k over env.
func For(k Kind, env *workflow.Env) (Backend, error) {
	logging.BackendDebug("selecting %s backend", k)
	switch k {
	case Cairo:
		return &cairoBackend{w: cairo.New(env)}, nil
	case EVM:
		return &evmBackend{w: evm.New(env)}, nil
	}
	return nil, fmt.Errorf("unsupported backend %s", k)
}

type cairoBackend struct {
	w *cairo.Workflow
}

func (b *cairoBackend) Kind() Kind { return Cairo }
func (b *cairoBackend) Generate(ctx context.Context) error { return b.w.Generate(ctx) }
func (b *cairoBackend) Prove(ctx context.Context) error { return b.w.Prove(ctx) }
func (b *cairoBackend) Verify(ctx context.Context) error { return b.w.Verify(ctx) }
func (b *cairoBackend) Calldata(ctx context.Context) error { return b.w.Calldata(ctx) }

func (b *cairoBackend) Deploy(ctx context.Context, network string) (string, error) {
	return b.w.Deploy(ctx, network)
}

func (b *cairoBackend) VerifyOnchain(ctx context.Context, network, address string) error {
	return b.w.VerifyOnchain(ctx, network, address)
}

func (b *cairoBackend) Configure(cfg Config) error {
	if cfg.CairoDeploy == nil {
		return nil
	}
	return b.w.Configure(*cfg.CairoDeploy)
}

// Declare exposes the first deploy phase, which only Cairo has.
func (b *cairoBackend) Declare(ctx context.Context, network string) (string, error) {
	return b.w.Declare(ctx, network)
}

type evmBackend struct {
	w *evm.Workflow
}

func (b *evmBackend) Kind() Kind { return EVM }
func (b *evmBackend) Generate(ctx context.Context) error { return b.w.Generate(ctx) }
func (b *evmBackend) Prove(ctx context.Context) error { return b.w.Prove(ctx) }
func (b *evmBackend) Verify(ctx context.Context) error { return b.w.Verify(ctx) }
func (b *evmBackend) Calldata(ctx context.Context) error { return b.w.Calldata(ctx) }

func (b *evmBackend) Deploy(ctx context.Context, network string) (string, error) {
	return b.w.Deploy(ctx, network)
}

// VerifyOnchain ignores network: cast reads the RPC url from RPC_URL.
func (b *evmBackend) VerifyOnchain(ctx context.Context, _ string, address string) error {
	return b.w.VerifyOnchain(ctx, address)
}

func (b *evmBackend) Configure(cfg Config) error {
	if cfg.CairoDeploy != nil {
		return fmt.Errorf("deploy policy flags apply to the cairo backend only")
	}
	return nil
}

// Declarer is implemented by backends with a separate declare phase.
type Declarer interface {
	Declare(ctx context.Context, network string) (string, error)
}
