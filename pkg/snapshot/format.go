// Package snapshot reads, writes, and validates UTXO set snapshot files in
// the format emitted by a reference node's dumptxoutset RPC (version 2): a
// 51-byte header followed by per-transaction records of compressed outputs.
package snapshot

// FileMagic opens every snapshot: "utxo" followed by 0xff.
var FileMagic = [5]byte{0x75, 0x74, 0x78, 0x6f, 0xff}

const (
	// FormatVersion is the only snapshot version this package handles.
	FormatVersion uint16 = 2

	// HeaderSize is the fixed byte length of the snapshot header.
	HeaderSize = 51

	// utxoCountOffset locates the 8-byte output count inside the header, so
	// the writer can patch it after streaming.
	utxoCountOffset = 43

	// MaxHeight is the exclusive upper bound on block heights; the bit above
	// it carries the coinbase flag in the combined height code.
	MaxHeight = 1 << 31
)

// SupportedVersions lists the versions ReadHeader accepts.
var SupportedVersions = []uint16{FormatVersion}
