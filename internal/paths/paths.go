// Package paths maps packages, backend flavours and artifact kinds onto the
// canonical on-disk layout of a Noir project:
//
//	<root>/target/<pkg>.json, <pkg>.gz     compiler output (flavour-agnostic)
//	<root>/target/bb/<pkg>.json, <pkg>.gz  organized build artifacts
//	<root>/target/<flavour>/proof, vk, public_inputs, calldata.json
//
// All getters are pure; only EnsureDir and OrganizeBuildArtifacts touch disk.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Flavour is the proof-system family an artifact is specialized for.
type Flavour string

const (
	FlavourBB       Flavour = "bb"
	FlavourEVM      Flavour = "evm"
	FlavourStarknet Flavour = "starknet"
)

// Flavours lists every flavour in clean order.
var Flavours = []Flavour{FlavourBB, FlavourEVM, FlavourStarknet}

// ParseFlavour resolves a flavour name.
func ParseFlavour(s string) (Flavour, error) {
	switch Flavour(s) {
	case FlavourBB, FlavourEVM, FlavourStarknet:
		return Flavour(s), nil
	}
	return "", fmt.Errorf("unknown flavour %q (want bb, evm or starknet)", s)
}

// OracleHash is the bb --oracle_hash value used for proofs of this flavour.
func (f Flavour) OracleHash() string {
	switch f {
	case FlavourEVM:
		return "keccak"
	case FlavourStarknet:
		return "starknet"
	default:
		return ""
	}
}

// Kind identifies an artifact produced by the pipeline.
type Kind int

const (
	KindBytecode Kind = iota
	KindWitness
	KindProof
	KindVerificationKey
	KindPublicInputs
	KindCalldata
)

// Kinds lists every artifact kind.
var Kinds = []Kind{KindBytecode, KindWitness, KindProof, KindVerificationKey, KindPublicInputs, KindCalldata}

func (k Kind) String() string {
	switch k {
	case KindBytecode:
		return "bytecode"
	case KindWitness:
		return "witness"
	case KindProof:
		return "proof"
	case KindVerificationKey:
		return "verification key"
	case KindPublicInputs:
		return "public inputs"
	case KindCalldata:
		return "calldata"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Fixed names inside a project.
const (
	TargetDirName   = "target"
	ManifestName    = "Nargo.toml"
	ProverInputName = "Prover.toml"
	SourceDirName   = "src"

	cairoContractBase = "cairo_UltraStarknetZKHonkVerifier"
)

// Layout resolves every path relative to a project root. The zero value
// yields paths relative to the working directory.
type Layout struct {
	Root string
}

// New returns a Layout for the given project root.
func New(root string) Layout { return Layout{Root: root} }

func (l Layout) join(elem ...string) string {
	return filepath.Join(append([]string{l.Root}, elem...)...)
}

// TargetRoot is <root>/target.
func (l Layout) TargetRoot() string { return l.join(TargetDirName) }

// TargetDir is <root>/target/<flavour>.
func (l Layout) TargetDir(f Flavour) string { return l.join(TargetDirName, string(f)) }

// Manifest is <root>/Nargo.toml.
func (l Layout) Manifest() string { return l.join(ManifestName) }

// ProverInput is <root>/Prover.toml.
func (l Layout) ProverInput() string { return l.join(ProverInputName) }

// SourceDir is <root>/src.
func (l Layout) SourceDir() string { return l.join(SourceDirName) }

// Bytecode is target/<flavour>/<pkg>.json.
func (l Layout) Bytecode(pkg string, f Flavour) string {
	return filepath.Join(l.TargetDir(f), pkg+".json")
}

// Witness is target/<flavour>/<pkg>.gz.
func (l Layout) Witness(pkg string, f Flavour) string {
	return filepath.Join(l.TargetDir(f), pkg+".gz")
}

// Proof is target/<flavour>/proof.
func (l Layout) Proof(f Flavour) string { return filepath.Join(l.TargetDir(f), "proof") }

// VerificationKey is target/<flavour>/vk.
func (l Layout) VerificationKey(f Flavour) string { return filepath.Join(l.TargetDir(f), "vk") }

// PublicInputs is target/<flavour>/public_inputs.
func (l Layout) PublicInputs(f Flavour) string {
	return filepath.Join(l.TargetDir(f), "public_inputs")
}

// Calldata is target/<flavour>/calldata.json.
func (l Layout) Calldata(f Flavour) string {
	return filepath.Join(l.TargetDir(f), "calldata.json")
}

// Artifact dispatches on kind. The package name is ignored for kinds that
// are not package-scoped.
func (l Layout) Artifact(pkg string, f Flavour, k Kind) string {
	switch k {
	case KindBytecode:
		return l.Bytecode(pkg, f)
	case KindWitness:
		return l.Witness(pkg, f)
	case KindProof:
		return l.Proof(f)
	case KindVerificationKey:
		return l.VerificationKey(f)
	case KindPublicInputs:
		return l.PublicInputs(f)
	case KindCalldata:
		return l.Calldata(f)
	}
	panic(fmt.Sprintf("paths: unknown artifact kind %d", int(k)))
}

// CompilerOutput is where nargo writes a file before it is organized:
// target/<pkg><ext>.
func (l Layout) CompilerOutput(pkg, ext string) string {
	return l.join(TargetDirName, pkg+ext)
}

// AuditDir holds bargo's own bookkeeping (target/.bargo).
func (l Layout) AuditDir() string { return l.join(TargetDirName, ".bargo") }

// Contract locations

// CairoProjectName is the scaffold name passed to garaga gen.
const CairoProjectName = "cairo_verifier"

// CairoScaffold is where garaga gen writes its project (<root>/cairo_verifier).
func (l Layout) CairoScaffold() string { return l.join(CairoProjectName) }

// CairoContractsDir is contracts/cairo.
func (l Layout) CairoContractsDir() string { return l.join("contracts", "cairo") }

// CairoContractClass is the Sierra class file declared on Starknet.
func (l Layout) CairoContractClass() string {
	return filepath.Join(l.CairoContractsDir(), "target", "dev", cairoContractBase+".contract_class.json")
}

// CairoCompiledClass is the CASM file sent alongside the Sierra class.
func (l Layout) CairoCompiledClass() string {
	return filepath.Join(l.CairoContractsDir(), "target", "dev", cairoContractBase+".compiled_contract_class.json")
}

// EVMContractsDir is contracts/evm.
func (l Layout) EVMContractsDir() string { return l.join("contracts", "evm") }

// SolidityVerifier is contracts/evm/src/Verifier.sol.
func (l Layout) SolidityVerifier() string {
	return filepath.Join(l.EVMContractsDir(), "src", "Verifier.sol")
}

// EnsureDir creates target/<flavour> if missing.
func (l Layout) EnsureDir(f Flavour) error {
	if err := os.MkdirAll(l.TargetDir(f), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", l.TargetDir(f), err)
	}
	return nil
}

// Rel renders p relative to the layout root for display. Paths outside the
// root are returned unchanged.
func (l Layout) Rel(p string) string {
	if l.Root == "" {
		return p
	}
	rel, err := filepath.Rel(l.Root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return rel
}
