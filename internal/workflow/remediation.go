package workflow

import (
	"errors"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/agnivade/levenshtein"

	"bargo/internal/config"
	"bargo/internal/paths"
	"bargo/internal/runner"
)

// installHints maps tool names to install instructions.
var installHints = map[string]string{
	"nargo":   "Install nargo: curl -L https://raw.githubusercontent.com/noir-lang/noirup/main/install | bash && noirup",
	"bb":      "Install bb: curl -L https://raw.githubusercontent.com/AztecProtocol/aztec-packages/master/barretenberg/bbup/install | bash && bbup",
	"garaga":  "Install garaga: pip install garaga",
	"starkli": "Install starkli: curl https://get.starkli.sh | sh && starkliup",
	"forge":   "Install Foundry: curl -L https://foundry.paradigm.xyz | bash && foundryup",
	"cast":    "Install Foundry: curl -L https://foundry.paradigm.xyz | bash && foundryup",
}

// Enhance attaches remediation hints to err by matching it against a static
// table. Errors that already carry hints, or match nothing, are returned
// unchanged.
func Enhance(err error) error {
	if err == nil {
		return nil
	}
	var se *SuggestedError
	if errors.As(err, &se) {
		return err
	}
	hints := suggestionsFor(err)
	if len(hints) == 0 {
		return err
	}
	return &SuggestedError{Err: err, Hints: hints}
}

func suggestionsFor(err error) []string {
	var hints []string
	add := func(h ...string) {
		for _, s := range h {
			if !containsString(hints, s) {
				hints = append(hints, s)
			}
		}
	}

	var missing *MissingArtifactError
	if errors.As(err, &missing) {
		for _, p := range missing.Paths {
			add(missingFileHints(p)...)
		}
	}

	if errors.Is(err, paths.ErrManifestNotFound) {
		add("Make sure you're in a Noir project directory",
			"Run 'nargo init' to create a new project")
	}
	if strings.Contains(err.Error(), "failed to parse Nargo.toml") {
		add("Check Nargo.toml syntax",
			"Ensure the [package] section has a name field")
	}

	var tool *runner.ToolExecutionFailure
	if errors.As(err, &tool) {
		name := tool.Spec.Name()
		if errors.Is(err, exec.ErrNotFound) {
			if h, ok := installHints[name]; ok {
				add(h)
			}
			add("Make sure " + name + " is on your PATH or set its location under tools: in .bargo.yaml")
		} else {
			add("Re-run with --verbose to see the full " + name + " invocation")
		}
	}

	var cfgErr *config.ConfigurationError
	if errors.As(err, &cfgErr) {
		switch {
		case isEnvName(cfgErr.Field):
			add("Add to your .env or .secrets file: "+cfgErr.Field+"=<value>",
				"Or export "+cfgErr.Field+" in your shell")
		case strings.Contains(cfgErr.Reason, "--no-declare"):
			add("Pass only one of --auto-declare or --no-declare")
		}
	}

	var parse *ParseFailure
	if errors.As(err, &parse) {
		add("The " + parse.Tool + " output format may have changed; run the command manually to inspect it")
	}

	return hints
}

func missingFileHints(p string) []string {
	base := filepath.Base(p)
	backend := backendForPath(p)
	switch {
	case strings.HasSuffix(base, ".json") && strings.Contains(p, filepath.Join(paths.TargetDirName, string(paths.FlavourBB))),
		strings.HasSuffix(base, ".gz"):
		return []string{"Run 'bargo build' to generate bytecode and witness files"}
	case base == "proof" || base == "vk" || base == "public_inputs":
		return []string{"Run 'bargo " + backend + " prove' to generate proof and verification key"}
	case base == "calldata.json":
		return []string{"Run 'bargo " + backend + " calldata' to generate calldata"}
	case base == "Verifier.sol":
		return []string{"Run 'bargo evm gen' to generate the Solidity verifier"}
	case strings.HasSuffix(base, ".contract_class.json") || strings.HasSuffix(base, ".compiled_contract_class.json"):
		return []string{"Run 'bargo cairo gen' to generate the Cairo verifier",
			"Then build it with 'scarb build' in contracts/cairo"}
	}
	return nil
}

func backendForPath(p string) string {
	switch {
	case strings.Contains(p, string(filepath.Separator)+string(paths.FlavourEVM)+string(filepath.Separator)):
		return "evm"
	case strings.Contains(p, string(filepath.Separator)+string(paths.FlavourStarknet)+string(filepath.Separator)):
		return "cairo"
	}
	return "<cairo|evm>"
}

// isEnvName reports whether s looks like an environment variable name.
func isEnvName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return false
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// maxTypoDistance bounds how far a mistyped name may be from a suggestion.
const maxTypoDistance = 2

// DidYouMean returns the candidate closest to s, if it is a plausible typo.
func DidYouMean(s string, candidates []string) (string, bool) {
	best, bestDist := "", maxTypoDistance+1
	for _, c := range candidates {
		if d := levenshtein.ComputeDistance(strings.ToLower(s), c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, best != ""
}
