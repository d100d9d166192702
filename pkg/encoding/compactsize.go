// Package encoding implements the three variable-length integer encodings
// used by UTXO set snapshots: the CompactSize framing integer, the MSB-first
// biased VarInt, and the compressed satoshi amount built on top of it.
package encoding

import (
	"errors"
	"io"

	"github.com/btcsuite/btcd/wire"
)

// MaxCompactSize is the largest value the range-checked CompactSize reader
// accepts. It matches the 32 MiB cap the reference node applies to every
// length-like field.
const MaxCompactSize = 0x02000000

// ErrCompactSizeRange is returned when a decoded CompactSize exceeds
// MaxCompactSize.
var ErrCompactSizeRange = errors.New("compactsize exceeds 32 MiB range limit")

// CompactSize framing is shared with the p2p wire protocol, so the canonical
// minimal-encoding rules are delegated to wire. The protocol version argument
// does not affect varint serialization.
const compactSizePver = 0

// ReadCompactSize reads a canonically encoded CompactSize and enforces the
// 32 MiB range limit. Non-minimal encodings (e.g. 0xfd followed by a value
// below 253) are rejected.
func ReadCompactSize(r io.Reader) (uint64, error) {
	v, err := wire.ReadVarInt(r, compactSizePver)
	if err != nil {
		return 0, err
	}
	if v > MaxCompactSize {
		return 0, ErrCompactSizeRange
	}
	return v, nil
}

// ReadCompactSizeUnchecked reads a canonically encoded CompactSize without
// the range limit. Callers reading fields that are not lengths or counts may
// use this form.
func ReadCompactSizeUnchecked(r io.Reader) (uint64, error) {
	return wire.ReadVarInt(r, compactSizePver)
}

// WriteCompactSize writes v using the smallest canonical CompactSize
// encoding.
func WriteCompactSize(w io.Writer, v uint64) error {
	return wire.WriteVarInt(w, compactSizePver, v)
}

// CompactSizeLen returns the number of bytes WriteCompactSize produces for v.
func CompactSizeLen(v uint64) int {
	return wire.VarIntSerializeSize(v)
}
