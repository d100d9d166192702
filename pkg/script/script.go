// Package script implements the compressed scriptPubKey encoding used by
// UTXO set snapshots: a VarInt tag followed by a payload whose length is
// implied by the tag. Four well-known script shapes compress to 21 or 33
// bytes; everything else is carried verbatim behind a length-derived tag.
package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Jayson-Furr/UTXOTools/pkg/encoding"
	"github.com/Jayson-Furr/UTXOTools/pkg/keys"
)

// Compressed-script tags. Tags below RawTagOffset select a special shape;
// RawTagOffset+n means n raw script bytes follow.
const (
	TagPubKeyHash       = 0 // P2PKH, 20-byte hash payload
	TagScriptHash       = 1 // P2SH, 20-byte hash payload
	TagPubKeyEven       = 2 // compressed P2PK, even y, 32-byte x payload
	TagPubKeyOdd        = 3 // compressed P2PK, odd y, 32-byte x payload
	TagPubKeyUncompEven = 4 // uncompressed P2PK recovered from even y
	TagPubKeyUncompOdd  = 5 // uncompressed P2PK recovered from odd y

	RawTagOffset = 6
)

// MaxRawScriptSize bounds the raw fallback so the encoded tag stays inside
// the VarInt range limit shared with CompactSize lengths.
const MaxRawScriptSize = encoding.MaxCompactSize - RawTagOffset

// ErrScriptTooLarge is returned when a script cannot be encoded because its
// raw tag would exceed the range limit.
var ErrScriptTooLarge = errors.New("script exceeds maximum raw encoding size")

// SpecialSize returns the payload size for one of the special tags, or -1
// when the tag selects the raw encoding.
func SpecialSize(tag uint64) int {
	switch tag {
	case TagPubKeyHash, TagScriptHash:
		return 20
	case TagPubKeyEven, TagPubKeyOdd, TagPubKeyUncompEven, TagPubKeyUncompOdd:
		return 32
	default:
		return -1
	}
}

// IsPayToPubKeyHash reports whether the script has the canonical 25-byte
// P2PKH shape: OP_DUP OP_HASH160 <20> OP_EQUALVERIFY OP_CHECKSIG.
func IsPayToPubKeyHash(script []byte) bool {
	return len(script) == 25 &&
		script[0] == 0x76 && // OP_DUP
		script[1] == 0xa9 && // OP_HASH160
		script[2] == 0x14 && // push 20 bytes
		script[23] == 0x88 && // OP_EQUALVERIFY
		script[24] == 0xac // OP_CHECKSIG
}

// IsPayToScriptHash reports whether the script has the canonical 23-byte
// P2SH shape: OP_HASH160 <20> OP_EQUAL.
func IsPayToScriptHash(script []byte) bool {
	return len(script) == 23 &&
		script[0] == 0xa9 && // OP_HASH160
		script[1] == 0x14 && // push 20 bytes
		script[22] == 0x87 // OP_EQUAL
}

// IsPayToPubKey reports whether the script has either P2PK shape,
// <33-or-65-byte key push> OP_CHECKSIG. Only the serialization is checked;
// the key itself may still be off the curve.
func IsPayToPubKey(script []byte) bool {
	return isCompressedPubKeyScript(script) || isUncompressedPubKeyScript(script)
}

func isCompressedPubKeyScript(script []byte) bool {
	return len(script) == 35 &&
		script[0] == 0x21 && // push 33 bytes
		(script[1] == keys.ParityEven || script[1] == keys.ParityOdd) &&
		script[34] == 0xac // OP_CHECKSIG
}

func isUncompressedPubKeyScript(script []byte) bool {
	return len(script) == 67 &&
		script[0] == 0x41 && // push 65 bytes
		script[1] == 0x04 &&
		script[66] == 0xac // OP_CHECKSIG
}

// Compress encodes a scriptPubKey into its full compressed form, VarInt tag
// included. Scripts matching a recognized shape shrink to tag+payload; an
// uncompressed P2PK key additionally has to validate on the curve, otherwise
// the script falls through to the raw encoding like any other byte string.
func Compress(script []byte) ([]byte, error) {
	switch {
	case IsPayToPubKeyHash(script):
		return append([]byte{TagPubKeyHash}, script[3:23]...), nil

	case IsPayToScriptHash(script):
		return append([]byte{TagScriptHash}, script[2:22]...), nil

	case isCompressedPubKeyScript(script):
		// The key's parity prefix doubles as the tag.
		out := make([]byte, 33)
		copy(out, script[1:34])
		return out, nil

	case isUncompressedPubKeyScript(script):
		compressed, err := keys.Compress(script[1:66])
		if err == nil {
			out := make([]byte, 33)
			out[0] = compressed[0] + 2 // 0x02/0x03 -> tag 4/5
			copy(out[1:], compressed[1:])
			return out, nil
		}
		// Off-curve key: no recovery possible on read, store raw.
	}

	if len(script) > MaxRawScriptSize {
		return nil, ErrScriptTooLarge
	}

	var buf bytes.Buffer
	buf.Grow(encoding.VarIntLen(uint64(len(script))+RawTagOffset) + len(script))
	if err := encoding.WriteVarInt(&buf, uint64(len(script))+RawTagOffset); err != nil {
		return nil, err
	}
	buf.Write(script)
	return buf.Bytes(), nil
}

// Decompress reconstructs the original scriptPubKey from a tag and its
// payload. The payload must be exactly SpecialSize(tag) bytes for special
// tags, or tag-RawTagOffset bytes for raw scripts.
func Decompress(tag uint64, payload []byte) ([]byte, error) {
	if size := SpecialSize(tag); size >= 0 && len(payload) != size {
		return nil, fmt.Errorf("tag %d requires a %d-byte payload, got %d", tag, size, len(payload))
	}

	switch tag {
	case TagPubKeyHash:
		script := make([]byte, 0, 25)
		script = append(script, 0x76, 0xa9, 0x14)
		script = append(script, payload...)
		return append(script, 0x88, 0xac), nil

	case TagScriptHash:
		script := make([]byte, 0, 23)
		script = append(script, 0xa9, 0x14)
		script = append(script, payload...)
		return append(script, 0x87), nil

	case TagPubKeyEven, TagPubKeyOdd:
		script := make([]byte, 0, 35)
		script = append(script, 0x21, byte(tag))
		script = append(script, payload...)
		return append(script, 0xac), nil

	case TagPubKeyUncompEven, TagPubKeyUncompOdd:
		pub, err := keys.Decompress(byte(tag-2), payload)
		if err != nil {
			return nil, err
		}
		script := make([]byte, 0, 67)
		script = append(script, 0x41)
		script = append(script, pub...)
		return append(script, 0xac), nil

	default:
		if uint64(len(payload)) != tag-RawTagOffset {
			return nil, fmt.Errorf("raw tag %d requires a %d-byte payload, got %d", tag, tag-RawTagOffset, len(payload))
		}
		script := make([]byte, len(payload))
		copy(script, payload)
		return script, nil
	}
}

// Decode reads one compressed script from r and returns the reconstructed
// scriptPubKey. The tag's VarInt range limit bounds raw script sizes.
func Decode(r io.Reader) ([]byte, error) {
	tag, err := encoding.ReadVarInt(r)
	if err != nil {
		return nil, err
	}

	size := SpecialSize(tag)
	if size < 0 {
		if tag-RawTagOffset > MaxRawScriptSize {
			return nil, ErrScriptTooLarge
		}
		size = int(tag - RawTagOffset)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return Decompress(tag, payload)
}
