// Package keys converts secp256k1 public keys between their 33-byte
// compressed and 65-byte uncompressed serializations. Snapshots store P2PK
// outputs with only the x-coordinate and a parity bit, so reconstructing the
// original script requires recovering y from the curve equation.
package keys

import (
	"fmt"

	btcec "github.com/btcsuite/btcd/btcec/v2"
)

const (
	// ParityEven and ParityOdd are the compressed-key prefix bytes selecting
	// the even and odd y-coordinate solution.
	ParityEven = 0x02
	ParityOdd  = 0x03

	// CompressedSize and UncompressedSize are the serialized key lengths.
	CompressedSize   = 33
	UncompressedSize = 65
)

// Decompress recovers the full 65-byte 0x04-prefixed public key from a
// 32-byte x-coordinate and a parity prefix. It fails when x is not the
// abscissa of a curve point (x >= p, or x^3+7 has no square root mod p).
func Decompress(parity byte, x []byte) ([]byte, error) {
	if parity != ParityEven && parity != ParityOdd {
		return nil, fmt.Errorf("invalid parity prefix %#02x", parity)
	}
	if len(x) != CompressedSize-1 {
		return nil, fmt.Errorf("x-coordinate must be %d bytes, got %d", CompressedSize-1, len(x))
	}

	compressed := make([]byte, 0, CompressedSize)
	compressed = append(compressed, parity)
	compressed = append(compressed, x...)

	pub, err := btcec.ParsePubKey(compressed)
	if err != nil {
		return nil, fmt.Errorf("x-coordinate is not on the curve: %w", err)
	}
	return pub.SerializeUncompressed(), nil
}

// Compress reduces a 65-byte uncompressed public key to its 33-byte
// compressed form. The point is validated against the curve equation before
// being accepted.
func Compress(pub []byte) ([]byte, error) {
	if len(pub) != UncompressedSize {
		return nil, fmt.Errorf("uncompressed key must be %d bytes, got %d", UncompressedSize, len(pub))
	}
	if pub[0] != 0x04 {
		return nil, fmt.Errorf("invalid uncompressed key prefix %#02x", pub[0])
	}

	key, err := btcec.ParsePubKey(pub)
	if err != nil {
		return nil, fmt.Errorf("point is not on the curve: %w", err)
	}
	return key.SerializeCompressed(), nil
}
