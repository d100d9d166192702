// Package extractor splits a snapshot's outputs into per-script-type binary
// dump files for downstream analysis tools. Each dump is a 9-byte header
// (ASCII type magic, little-endian entry count, flags) followed by
// fixed-shape records: the bare hash, witness program, or key material of
// the script type.
package extractor

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/txscript"

	"github.com/Jayson-Furr/UTXOTools/pkg/types"
)

// Dump type magics. SHWP and SHWS identify script-hash-wrapped SegWit dumps
// for consumers; this extractor never produces them, since a wrapped program
// is indistinguishable from plain P2SH at the output-script level.
const (
	MagicP2PK = "P2PK"
	MagicP2KH = "P2KH"
	MagicP2MS = "P2MS"
	MagicP2SH = "P2SH"
	MagicSHWP = "SHWP"
	MagicSHWS = "SHWS"
	MagicWPKH = "WPKH"
	MagicPWSH = "PWSH"
	MagicP2TR = "P2TR"
)

// FlagAmounts marks a dump whose records are each prefixed with an 8-byte
// little-endian satoshi amount.
const FlagAmounts = 0x01

const dumpHeaderSize = 9

// Magics lists every dump type this package defines, in header order.
var Magics = []string{
	MagicP2PK, MagicP2KH, MagicP2MS, MagicP2SH, MagicSHWP,
	MagicSHWS, MagicWPKH, MagicPWSH, MagicP2TR,
}

// Extractor routes snapshot outputs into per-type dump files. Files are
// created lazily on the first output of each type and their entry counts are
// patched on Close. Not safe for concurrent use.
type Extractor struct {
	dir         string
	withAmounts bool
	only        map[string]bool // nil means all types
	dumps       map[string]*dump
	skipped     uint64
}

type dump struct {
	f     *os.File
	bw    *bufio.Writer
	count uint32
}

// New returns an Extractor writing into dir. When only is non-empty, output
// types outside it are skipped; when withAmounts is set, every record is
// prefixed with its satoshi amount.
func New(dir string, withAmounts bool, only []string) (*Extractor, error) {
	e := &Extractor{
		dir:         dir,
		withAmounts: withAmounts,
		dumps:       make(map[string]*dump),
	}
	if len(only) > 0 {
		e.only = make(map[string]bool, len(only))
		for _, m := range only {
			m = strings.ToUpper(m)
			if !isKnownMagic(m) {
				return nil, fmt.Errorf("extractor: unknown dump type %q", m)
			}
			e.only[m] = true
		}
	}
	return e, nil
}

func isKnownMagic(m string) bool {
	for _, known := range Magics {
		if m == known {
			return true
		}
	}
	return false
}

// Consume routes one output to its dump file. Outputs with no recognized
// standard shape are counted as skipped.
func (e *Extractor) Consume(u *types.UTXO) error {
	magic, record := classify(u.Script)
	if magic == "" || record == nil || (e.only != nil && !e.only[magic]) {
		e.skipped++
		return nil
	}

	d, err := e.dumpFor(magic)
	if err != nil {
		return err
	}

	if e.withAmounts {
		var amt [8]byte
		binary.LittleEndian.PutUint64(amt[:], u.Amount)
		if _, err := d.bw.Write(amt[:]); err != nil {
			return err
		}
	}
	if _, err := d.bw.Write(record); err != nil {
		return err
	}
	d.count++
	return nil
}

// classify maps a scriptPubKey to its dump magic and record bytes, or "" for
// shapes that have no dump.
func classify(script []byte) (string, []byte) {
	switch txscript.GetScriptClass(script) {
	case txscript.PubKeyHashTy:
		return MagicP2KH, script[3:23]
	case txscript.ScriptHashTy:
		return MagicP2SH, script[2:22]
	case txscript.WitnessV0PubKeyHashTy:
		return MagicWPKH, script[2:22]
	case txscript.WitnessV0ScriptHashTy:
		return MagicPWSH, script[2:34]
	case txscript.WitnessV1TaprootTy:
		return MagicP2TR, script[2:34]
	case txscript.PubKeyTy:
		key := script[1 : 1+script[0]]
		return MagicP2PK, append([]byte{byte(len(key))}, key...)
	case txscript.MultiSigTy:
		return MagicP2MS, multisigRecord(script)
	default:
		return "", nil
	}
}

// multisigRecord encodes an (m, n) pair followed by each key with a 1-byte
// length prefix.
func multisigRecord(script []byte) []byte {
	numKeys, numSigs, err := txscript.CalcMultiSigStats(script)
	if err != nil {
		return nil
	}
	keys, err := txscript.PushedData(script)
	if err != nil {
		return nil
	}

	record := []byte{byte(numSigs), byte(numKeys)}
	for _, key := range keys {
		record = append(record, byte(len(key)))
		record = append(record, key...)
	}
	return record
}

func (e *Extractor) dumpFor(magic string) (*dump, error) {
	if d, ok := e.dumps[magic]; ok {
		return d, nil
	}

	path := filepath.Join(e.dir, strings.ToLower(magic)+".dat")
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	d := &dump{f: f, bw: bufio.NewWriter(f)}

	var header [dumpHeaderSize]byte
	copy(header[0:4], magic)
	// Count is patched on Close.
	if e.withAmounts {
		header[8] = FlagAmounts
	}
	if _, err := d.bw.Write(header[:]); err != nil {
		f.Close()
		return nil, err
	}

	e.dumps[magic] = d
	return d, nil
}

// Skipped returns the number of outputs that matched no dump type (or were
// filtered out).
func (e *Extractor) Skipped() uint64 { return e.skipped }

// Counts returns the per-magic record counts written so far.
func (e *Extractor) Counts() map[string]uint32 {
	counts := make(map[string]uint32, len(e.dumps))
	for magic, d := range e.dumps {
		counts[magic] = d.count
	}
	return counts
}

// Close flushes every dump, patches its entry count into the header, and
// releases the files. All files are closed even when an earlier one fails;
// the first error wins.
func (e *Extractor) Close() error {
	var firstErr error
	for _, d := range e.dumps {
		if err := closeDump(d); firstErr == nil {
			firstErr = err
		}
	}
	e.dumps = make(map[string]*dump)
	return firstErr
}

func closeDump(d *dump) error {
	err := d.bw.Flush()
	if err == nil {
		var count [4]byte
		binary.LittleEndian.PutUint32(count[:], d.count)
		if _, serr := d.f.Seek(4, io.SeekStart); serr != nil {
			err = serr
		} else if _, werr := d.f.Write(count[:]); werr != nil {
			err = werr
		}
	}
	if cerr := d.f.Close(); err == nil {
		err = cerr
	}
	return err
}
