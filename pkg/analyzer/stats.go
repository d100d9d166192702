// Package analyzer aggregates statistics over a snapshot's outputs.
package analyzer

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"

	"github.com/Jayson-Furr/UTXOTools/pkg/types"
)

// DustThreshold is the conventional dust limit in satoshis.
const DustThreshold = 546

// Stats accumulates aggregate measures while scanning a snapshot.
type Stats struct {
	Outputs         uint64
	Transactions    uint64
	CoinbaseOutputs uint64
	DustOutputs     uint64
	TotalAmount     uint64
	MaxAmount       uint64
	MinHeight       uint32
	MaxHeight       uint32
	ScriptTypes     map[string]uint64
	ScriptAmounts   map[string]uint64
}

// NewStats returns an empty accumulator.
func NewStats() *Stats {
	return &Stats{
		ScriptTypes:   make(map[string]uint64),
		ScriptAmounts: make(map[string]uint64),
	}
}

// AddTransaction records a transaction record and all of its outputs.
func (s *Stats) AddTransaction(tx *types.Transaction) {
	s.Transactions++
	for i := range tx.Outputs {
		s.addOutput(&tx.Outputs[i])
	}
}

// Add records a single output.
func (s *Stats) Add(u *types.UTXO) {
	s.addOutput(&u.Output)
}

func (s *Stats) addOutput(out *types.Output) {
	class := txscript.GetScriptClass(out.Script).String()

	s.ScriptTypes[class]++
	s.ScriptAmounts[class] += out.Amount
	s.TotalAmount += out.Amount
	if out.Amount > s.MaxAmount {
		s.MaxAmount = out.Amount
	}
	if out.Coinbase {
		s.CoinbaseOutputs++
	}
	if out.Amount < DustThreshold && txscript.GetScriptClass(out.Script) != txscript.NullDataTy {
		s.DustOutputs++
	}
	if s.Outputs == 0 || out.Height < s.MinHeight {
		s.MinHeight = out.Height
	}
	if out.Height > s.MaxHeight {
		s.MaxHeight = out.Height
	}
	s.Outputs++
}

// Report is the JSON rendering of a completed scan.
type Report struct {
	Outputs         uint64            `json:"outputs"`
	Transactions    uint64            `json:"transactions"`
	CoinbaseOutputs uint64            `json:"coinbase_outputs"`
	DustOutputs     uint64            `json:"dust_outputs"`
	TotalSats       uint64            `json:"total_amount_sats"`
	TotalBTC        string            `json:"total_amount_btc"`
	MaxSats         uint64            `json:"max_amount_sats"`
	MinHeight       uint32            `json:"min_height"`
	MaxHeight       uint32            `json:"max_height"`
	ScriptTypes     map[string]uint64 `json:"script_type_summary"`
	ScriptSats      map[string]uint64 `json:"script_type_amounts"`
	Warnings        []Warning         `json:"warnings"`
}

// Report finalizes the accumulator into its JSON form, attaching warnings
// for the given header.
func (s *Stats) Report(h *types.Header) Report {
	return Report{
		Outputs:         s.Outputs,
		Transactions:    s.Transactions,
		CoinbaseOutputs: s.CoinbaseOutputs,
		DustOutputs:     s.DustOutputs,
		TotalSats:       s.TotalAmount,
		TotalBTC:        btcutil.Amount(s.TotalAmount).String(),
		MaxSats:         s.MaxAmount,
		MinHeight:       s.MinHeight,
		MaxHeight:       s.MaxHeight,
		ScriptTypes:     s.ScriptTypes,
		ScriptSats:      s.ScriptAmounts,
		Warnings:        Warnings(s, h),
	}
}
