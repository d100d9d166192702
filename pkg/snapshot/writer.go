package snapshot

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Jayson-Furr/UTXOTools/pkg/encoding"
	"github.com/Jayson-Furr/UTXOTools/pkg/script"
	"github.com/Jayson-Furr/UTXOTools/pkg/types"
)

// Writer emits a snapshot. Output records can be streamed without knowing
// the final count up front: Finalize patches the header's count field in
// place when the sink is seekable. A non-seekable sink requires the header's
// UTXOCount to be correct before WriteHeader. Not safe for concurrent use.
type Writer struct {
	w  io.Writer
	bw *bufio.Writer
	f  *os.File // set when the writer owns the file (Create)

	headerWritten bool
	finalized     bool
	declared      uint64
	written       uint64
}

// NewWriter returns a Writer over w. The caller retains ownership of w;
// Close will not release it.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, bw: bufio.NewWriterSize(w, 1<<16)}
}

// Create creates the snapshot file at path. Unless overwrite is set, an
// existing file is an error. The writer owns the file and Close releases it.
func Create(path string, overwrite bool) (*Writer, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, err
	}
	w := NewWriter(f)
	w.f = f
	return w, nil
}

// WriteHeader emits the 51-byte snapshot header. It must be called exactly
// once, before any transaction. The network magic is taken from
// h.NetworkMagic when set, otherwise derived from h.Network; a zero Version
// defaults to FormatVersion.
func (w *Writer) WriteHeader(h *types.Header) error {
	if w.headerWritten {
		return errors.New("snapshot: header already written")
	}

	version := h.Version
	if version == 0 {
		version = FormatVersion
	}
	if version != FormatVersion {
		return &VersionError{Found: version, Supported: SupportedVersions}
	}

	magic := h.NetworkMagic
	if magic == ([4]byte{}) {
		m, ok := h.Network.Magic()
		if !ok {
			return &ValidationError{Reason: ReasonUnknownNetwork, Msg: fmt.Sprintf("network %q has no magic and none was supplied", h.Network)}
		}
		magic = m
	}

	var buf [HeaderSize]byte
	copy(buf[0:5], FileMagic[:])
	binary.LittleEndian.PutUint16(buf[5:7], version)
	copy(buf[7:11], magic[:])
	copy(buf[11:utxoCountOffset], h.BlockHash[:])
	binary.LittleEndian.PutUint64(buf[utxoCountOffset:HeaderSize], h.UTXOCount)

	if _, err := w.bw.Write(buf[:]); err != nil {
		return err
	}
	w.headerWritten = true
	w.declared = h.UTXOCount
	return nil
}

// WriteTransaction emits one transaction record. Transactions with no
// outputs are silently dropped.
func (w *Writer) WriteTransaction(tx *types.Transaction) error {
	if !w.headerWritten {
		return errors.New("snapshot: transaction written before header")
	}
	if w.finalized {
		return errors.New("snapshot: write after finalize")
	}
	if len(tx.Outputs) == 0 {
		return nil
	}

	if _, err := w.bw.Write(tx.Txid[:]); err != nil {
		return err
	}
	if err := encoding.WriteCompactSize(w.bw, uint64(len(tx.Outputs))); err != nil {
		return err
	}
	for i := range tx.Outputs {
		if err := w.writeOutput(&tx.Outputs[i]); err != nil {
			return err
		}
	}
	w.written += uint64(len(tx.Outputs))
	return nil
}

func (w *Writer) writeOutput(out *types.Output) error {
	if err := encoding.WriteCompactSize(w.bw, out.Vout); err != nil {
		return err
	}

	if out.Height >= MaxHeight {
		return &FormatError{Offset: -1, Msg: fmt.Sprintf("height %d collides with the coinbase flag bit", out.Height)}
	}
	code := uint64(out.Height) << 1
	if out.Coinbase {
		code |= 1
	}
	if err := encoding.WriteVarInt(w.bw, code); err != nil {
		return err
	}

	if err := encoding.WriteVarInt(w.bw, encoding.CompressAmount(out.Amount)); err != nil {
		return err
	}

	compressed, err := script.Compress(out.Script)
	if err != nil {
		return &ValidationError{Reason: ReasonInvalidScript, Msg: err.Error()}
	}
	_, err = w.bw.Write(compressed)
	return err
}

// WriteEntry emits a single output as its own transaction record.
func (w *Writer) WriteEntry(u *types.UTXO) error {
	return w.WriteTransaction(&types.Transaction{Txid: u.Txid, Outputs: []types.Output{u.Output}})
}

// Written returns the number of outputs emitted so far.
func (w *Writer) Written() uint64 { return w.written }

// UpdateUTXOCount rewrites the header's 8-byte output count in place. It
// requires a seekable sink and a previously written header.
func (w *Writer) UpdateUTXOCount(n uint64) error {
	ws, ok := w.w.(io.WriteSeeker)
	if !ok {
		return errors.New("snapshot: updating the UTXO count requires a seekable stream")
	}
	if !w.headerWritten {
		return errors.New("snapshot: no header to update")
	}
	if err := w.bw.Flush(); err != nil {
		return err
	}

	cur, err := ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := ws.Seek(utxoCountOffset, io.SeekStart); err != nil {
		return err
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], n)
	if _, err := ws.Write(buf[:]); err != nil {
		return err
	}
	_, err = ws.Seek(cur, io.SeekStart)
	w.declared = n
	return err
}

// Finalize flushes the stream and settles the header count: on a seekable
// sink the running output count is patched into the header; on a plain
// stream the count declared in WriteHeader must already match.
func (w *Writer) Finalize() error {
	if w.finalized {
		return nil
	}
	if !w.headerWritten {
		return errors.New("snapshot: finalize before header")
	}
	if err := w.bw.Flush(); err != nil {
		return err
	}

	if _, ok := w.w.(io.WriteSeeker); ok {
		if err := w.UpdateUTXOCount(w.written); err != nil {
			return err
		}
	} else if w.written != w.declared {
		return &ValidationError{
			Reason: ReasonCountMismatch,
			Msg:    fmt.Sprintf("header declares %d outputs but %d were written to a non-seekable stream", w.declared, w.written),
		}
	}
	w.finalized = true
	return nil
}

// Close finalizes the snapshot if a header was written, then releases the
// file when the writer owns one. The file is closed even when finalization
// fails; the first error wins.
func (w *Writer) Close() error {
	var err error
	if w.headerWritten {
		err = w.Finalize()
	} else {
		err = w.bw.Flush()
	}
	if w.f != nil {
		if cerr := w.f.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
