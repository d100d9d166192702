package analyzer

import (
	"github.com/Jayson-Furr/UTXOTools/pkg/types"
)

// Warning flags a notable condition found while scanning.
type Warning struct {
	Code string `json:"code"`
}

// Warnings derives the warning set for a completed scan.
func Warnings(s *Stats, h *types.Header) []Warning {
	warnings := make([]Warning, 0)

	// DUST_OUTPUTS: the set carries sub-dust entries that cost more to spend
	// than they are worth.
	if s.DustOutputs > 0 {
		warnings = append(warnings, Warning{Code: "DUST_OUTPUTS"})
	}

	// UNKNOWN_SCRIPT_TYPES: nonstandard locking scripts are present.
	if s.ScriptTypes["nonstandard"] > 0 {
		warnings = append(warnings, Warning{Code: "UNKNOWN_SCRIPT_TYPES"})
	}

	// UNKNOWN_NETWORK: the snapshot's magic matches no known chain.
	if h != nil && h.Network == types.NetworkUnknown {
		warnings = append(warnings, Warning{Code: "UNKNOWN_NETWORK"})
	}

	return warnings
}
