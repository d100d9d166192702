package types

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Network identifies the chain a snapshot was taken from, resolved from the
// 4-byte network magic in the snapshot header.
type Network string

const (
	NetworkMainnet  Network = "mainnet"
	NetworkTestnet3 Network = "testnet3"
	NetworkTestnet4 Network = "testnet4"
	NetworkSignet   Network = "signet"
	NetworkRegtest  Network = "regtest"
	NetworkUnknown  Network = "unknown"
)

var networkMagics = map[Network][4]byte{
	NetworkMainnet:  {0xf9, 0xbe, 0xb4, 0xd9},
	NetworkSignet:   {0x0a, 0x03, 0xcf, 0x40},
	NetworkTestnet3: {0x0b, 0x11, 0x09, 0x07},
	NetworkTestnet4: {0x1c, 0x16, 0x3f, 0x28},
	NetworkRegtest:  {0xfa, 0xbf, 0xb5, 0xda},
}

// Magic returns the wire magic for the network. ok is false for
// NetworkUnknown (and any other unrecognized value).
func (n Network) Magic() (magic [4]byte, ok bool) {
	magic, ok = networkMagics[n]
	return magic, ok
}

// NetworkFromMagic resolves a 4-byte wire magic to its network, or
// NetworkUnknown when the magic is not recognized.
func NetworkFromMagic(magic [4]byte) Network {
	for n, m := range networkMagics {
		if m == magic {
			return n
		}
	}
	return NetworkUnknown
}

// Header holds the fixed fields from the first 51 bytes of a snapshot.
type Header struct {
	Version uint16
	Network Network

	// NetworkMagic preserves the raw magic bytes so that a snapshot with an
	// unrecognized magic round-trips verbatim. The zero value means "derive
	// from Network" when writing.
	NetworkMagic [4]byte

	// BlockHash of the block the snapshot was taken at. chainhash stores the
	// on-disk byte order; String() renders the display order.
	BlockHash chainhash.Hash

	// UTXOCount is the total number of outputs the record stream declares.
	UTXOCount uint64
}

// Output is a single unspent transaction output in its decoded form; Script
// holds the full uncompressed scriptPubKey.
type Output struct {
	Vout     uint64
	Height   uint32
	Coinbase bool
	Amount   uint64
	Script   []byte
}

// Transaction groups the outputs of one snapshot record, all sharing a txid.
type Transaction struct {
	Txid    chainhash.Hash
	Outputs []Output
}

// UTXO is a single output together with its transaction's txid, as yielded by
// entry-wise iteration.
type UTXO struct {
	Txid chainhash.Hash
	Output
}

// HeaderInfo is the JSON rendering of a Header.
type HeaderInfo struct {
	Version      uint16 `json:"version"`
	Network      string `json:"network"`
	NetworkMagic string `json:"network_magic"`
	BlockHash    string `json:"block_hash"`
	UTXOCount    uint64 `json:"utxo_count"`
}

// Info converts the header into its JSON report form.
func (h *Header) Info() HeaderInfo {
	return HeaderInfo{
		Version:      h.Version,
		Network:      string(h.Network),
		NetworkMagic: hex.EncodeToString(h.NetworkMagic[:]),
		BlockHash:    h.BlockHash.String(),
		UTXOCount:    h.UTXOCount,
	}
}

// UTXOInfo is the JSON rendering of a single output.
type UTXOInfo struct {
	Txid       string `json:"txid"`
	Vout       uint64 `json:"vout"`
	Height     uint32 `json:"height"`
	Coinbase   bool   `json:"coinbase"`
	AmountSats uint64 `json:"amount_sats"`
	ScriptHex  string `json:"script_pubkey_hex"`
	ScriptAsm  string `json:"script_asm,omitempty"`
	ScriptType string `json:"script_type,omitempty"`
}

// Info converts the output into its JSON report form. Script disassembly and
// classification are left to the caller.
func (u *UTXO) Info() UTXOInfo {
	return UTXOInfo{
		Txid:       u.Txid.String(),
		Vout:       u.Vout,
		Height:     u.Height,
		Coinbase:   u.Coinbase,
		AmountSats: u.Amount,
		ScriptHex:  hex.EncodeToString(u.Script),
	}
}

// ErrorInfo is the JSON error envelope used by the CLI and web front ends.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
