package evm

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"bargo/internal/workflow"
)

var deployedTo = regexp.MustCompile(`Deployed to:\s*(0x[0-9a-fA-F]{40})`)

// ParseDeployedAddress extracts the address from `forge create` output.
func ParseDeployedAddress(out string) (string, error) {
	m := deployedTo.FindStringSubmatch(out)
	if m == nil {
		return "", &workflow.ParseFailure{Tool: "forge", Expected: "\"Deployed to:\" address", Output: out}
	}
	return m[1], nil
}

// CalldataWords reads garaga calldata in any of the shapes it prints:
// {"calldata": [...]}, a bare JSON array, or whitespace/comma separated
// values.
func CalldataWords(data []byte) ([]string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("calldata is empty")
	}

	var raw []interface{}
	switch data[0] {
	case '{':
		var obj struct {
			Calldata []interface{} `json:"calldata"`
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&obj); err != nil {
			return nil, fmt.Errorf("failed to parse calldata: %w", err)
		}
		raw = obj.Calldata
	case '[':
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to parse calldata: %w", err)
		}
	default:
		for _, f := range strings.FieldsFunc(string(data), func(r rune) bool {
			return r == ',' || r == ' ' || r == '\n' || r == '\t' || r == '\r'
		}) {
			raw = append(raw, f)
		}
	}

	words := make([]string, 0, len(raw))
	for _, v := range raw {
		words = append(words, strings.TrimSpace(fmt.Sprint(v)))
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("calldata array is empty")
	}
	return words, nil
}

// VerifySignature is the entry point of bb-generated Solidity verifiers.
const VerifySignature = "verify(bytes,bytes32[])"

// verifySelector is the first four bytes of keccak256(VerifySignature).
const verifySelector = "0xea50d0e4"

// fieldSize is the width of one public input in bb's bytes output.
const fieldSize = 32

// VerifyArgs renders the proof and public inputs written by
// `bb prove --output_format bytes_and_fields` as the two cast arguments of
// VerifySignature: a hex bytes value and a bytes32 array.
func VerifyArgs(proof, publicInputs []byte) (proofArg, inputsArg string, err error) {
	if len(proof) == 0 {
		return "", "", fmt.Errorf("proof is empty")
	}
	if len(publicInputs)%fieldSize != 0 {
		return "", "", fmt.Errorf("public inputs are %d bytes, not a multiple of %d", len(publicInputs), fieldSize)
	}
	fields := make([]string, 0, len(publicInputs)/fieldSize)
	for i := 0; i < len(publicInputs); i += fieldSize {
		fields = append(fields, "0x"+hex.EncodeToString(publicInputs[i:i+fieldSize]))
	}
	return "0x" + hex.EncodeToString(proof), "[" + strings.Join(fields, ",") + "]", nil
}

// EncodedCall returns the calldata as one hex blob when it is already a
// complete call to VerifySignature, selector included.
func EncodedCall(words []string) (string, bool) {
	if len(words) != 1 {
		return "", false
	}
	w := strings.ToLower(words[0])
	if !strings.HasPrefix(w, verifySelector) || len(w) == len(verifySelector) {
		return "", false
	}
	if _, err := hex.DecodeString(strings.TrimPrefix(w, "0x")); err != nil {
		return "", false
	}
	return words[0], true
}

// Verdict interprets a verifier's boolean return word. ok is false when out
// is not a single word.
func Verdict(out string) (valid, ok bool) {
	out = strings.TrimSpace(out)
	if !strings.HasPrefix(out, "0x") {
		return false, false
	}
	n, parsed := new(big.Int).SetString(out[2:], 16)
	if !parsed || n.BitLen() > 256 {
		return false, false
	}
	switch n.Int64() {
	case 0:
		return false, n.IsInt64()
	case 1:
		return true, n.IsInt64()
	}
	return false, false
}
