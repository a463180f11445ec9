package cairo

import (
	"fmt"
	"regexp"
	"strings"

	"bargo/internal/config"
	"bargo/internal/store"
	"bargo/internal/workflow"
)

// DeployConfig is the caller's declare policy for Deploy.
type DeployConfig struct {
	// ClassHash, when set, is deployed directly and declare is skipped.
	ClassHash string
	// AutoDeclare declares first unless a class hash is cached.
	AutoDeclare bool
	// NoDeclare never declares; a class hash must be given or cached.
	NoDeclare bool
}

// Validate rejects contradictory policies.
func (c DeployConfig) Validate() error {
	if c.AutoDeclare && c.NoDeclare {
		return &config.ConfigurationError{
			Field:  "deploy policy",
			Reason: "--auto-declare and --no-declare cannot be used together",
		}
	}
	return nil
}

// State is the position of the Starknet verifier in its declare/deploy
// lifecycle, as recorded by breadcrumbs.
type State int

const (
	NoClassHash State = iota
	Declared
	Deployed
)

func (s State) String() string {
	switch s {
	case NoClassHash:
		return "no class hash"
	case Declared:
		return "declared"
	case Deployed:
		return "deployed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// CurrentState derives the lifecycle state from the breadcrumb store.
func CurrentState(s *store.Store) (State, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return NoClassHash, err
	}
	switch {
	case snap[store.ContractAddress] != "":
		return Deployed, nil
	case snap[store.ClassIdentifier] != "":
		return Declared, nil
	}
	return NoClassHash, nil
}

var hexToken = regexp.MustCompile(`0x[0-9a-fA-F]+`)

// minFeltDigits tolerates felts printed without leading zeros.
const minFeltDigits = 60

// ParseClassHash finds the class hash in `starkli declare` output: the first
// 0x token with 64 hex digits, else the first with at least 60.
func ParseClassHash(out string) (string, error) {
	tokens := hexToken.FindAllString(out, -1)
	for _, t := range tokens {
		if len(t)-2 == 64 {
			return t, nil
		}
	}
	for _, t := range tokens {
		if len(t)-2 >= minFeltDigits {
			return t, nil
		}
	}
	return "", &workflow.ParseFailure{Tool: "starkli", Expected: "class hash", Output: out}
}

// ParseContractAddress finds the deployed address in `starkli deploy`
// output: the last 0x token with at least 60 hex digits.
func ParseContractAddress(out string) (string, error) {
	tokens := hexToken.FindAllString(out, -1)
	for i := len(tokens) - 1; i >= 0; i-- {
		if len(tokens[i])-2 >= minFeltDigits {
			return tokens[i], nil
		}
	}
	return "", &workflow.ParseFailure{Tool: "starkli", Expected: "contract address", Output: out}
}

// RPCEnvVar names the variable holding the RPC url for network.
func RPCEnvVar(network string) string {
	switch strings.ToLower(network) {
	case "sepolia":
		return "SEPOLIA_RPC_URL"
	case "mainnet":
		return "MAINNET_RPC_URL"
	}
	return "RPC_URL"
}
