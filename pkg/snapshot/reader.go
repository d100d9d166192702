package snapshot

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Jayson-Furr/UTXOTools/pkg/encoding"
	"github.com/Jayson-Furr/UTXOTools/pkg/script"
	"github.com/Jayson-Furr/UTXOTools/pkg/types"
)

// outputsPreallocLimit caps the per-transaction slice preallocation so a
// hostile output count cannot force a huge allocation before any bytes are
// read.
const outputsPreallocLimit = 4096

// Reader streams transactions out of a snapshot. It is not safe for
// concurrent use; parallel consumers should open independent readers and
// position each with Reset.
type Reader struct {
	src io.Reader
	br  *bufio.Reader
	f   *os.File // set when the reader owns the file (Open)

	offset  int64
	header  *types.Header
	emitted uint64
	pending []types.UTXO
	err     error // sticky mid-stream failure; cleared only by Reset
}

// NewReader returns a Reader over r. The caller retains ownership of r;
// Close will not release it.
func NewReader(r io.Reader) *Reader {
	return &Reader{src: r, br: bufio.NewReaderSize(r, 1<<16)}
}

// Open opens the snapshot file at path. The reader owns the file and Close
// releases it.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := NewReader(f)
	r.f = f
	return r, nil
}

// Close releases the underlying file when the reader was constructed with
// Open; otherwise it is a no-op.
func (r *Reader) Close() error {
	if r.f != nil {
		return r.f.Close()
	}
	return nil
}

func (r *Reader) read(buf []byte) error {
	n, err := io.ReadFull(r.br, buf)
	r.offset += int64(n)
	return err
}

// readByteCounter tracks how many bytes the codec helpers consume so format
// errors can carry the right offset.
type readByteCounter struct {
	r *Reader
}

func (c readByteCounter) Read(p []byte) (int, error) {
	n, err := c.r.br.Read(p)
	c.r.offset += int64(n)
	return n, err
}

func (c readByteCounter) ReadByte() (byte, error) {
	b, err := c.r.br.ReadByte()
	if err == nil {
		c.r.offset++
	}
	return b, err
}

// ReadHeader parses and caches the 51-byte snapshot header. The first call
// consumes the header bytes; later calls return the cached copy. A failed
// parse leaves the header uncached, so a Reset followed by a retry is legal.
func (r *Reader) ReadHeader() (*types.Header, error) {
	if r.header != nil {
		return r.header, nil
	}

	start := r.offset
	var buf [HeaderSize]byte
	if err := r.read(buf[:]); err != nil {
		return nil, classifyCodecError(err, start, "snapshot header")
	}

	if !bytes.Equal(buf[0:5], FileMagic[:]) {
		return nil, &FormatError{Offset: start, Msg: fmt.Sprintf("bad file magic %x", buf[0:5])}
	}

	version := binary.LittleEndian.Uint16(buf[5:7])
	if version != FormatVersion {
		return nil, &VersionError{Found: version, Supported: SupportedVersions}
	}

	h := &types.Header{Version: version, UTXOCount: binary.LittleEndian.Uint64(buf[utxoCountOffset:HeaderSize])}
	copy(h.NetworkMagic[:], buf[7:11])
	copy(h.BlockHash[:], buf[11:utxoCountOffset])
	h.Network = types.NetworkFromMagic(h.NetworkMagic)

	r.header = h
	return h, nil
}

// Next returns the next transaction record, or io.EOF once the header's
// declared output count has been emitted. Trailing bytes beyond the declared
// count are not read or validated. After a non-EOF error the reader is in an
// indeterminate state and only Reset recovers it.
func (r *Reader) Next() (*types.Transaction, error) {
	h, err := r.ReadHeader()
	if err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.emitted == h.UTXOCount {
		return nil, io.EOF
	}

	tx, err := r.readTransaction()
	if err != nil {
		r.err = err
		return nil, err
	}

	r.emitted += uint64(len(tx.Outputs))
	if r.emitted > h.UTXOCount {
		err := &FormatError{
			Offset: r.offset,
			Msg:    fmt.Sprintf("UTXO count mismatch: header declares %d outputs, stream contains at least %d", h.UTXOCount, r.emitted),
		}
		r.err = err
		return nil, err
	}
	return tx, nil
}

func (r *Reader) readTransaction() (*types.Transaction, error) {
	var tx types.Transaction

	start := r.offset
	if err := r.read(tx.Txid[:]); err != nil {
		// A clean EOF here still means the stream ran out before the
		// declared output count was reached.
		return nil, classifyCodecError(noEOF(err), start, "transaction record")
	}

	countAt := r.offset
	n, err := encoding.ReadCompactSize(readByteCounter{r})
	if err != nil {
		return nil, classifyCodecError(err, countAt, "output count")
	}

	tx.Outputs = make([]types.Output, 0, min(n, outputsPreallocLimit))
	for i := uint64(0); i < n; i++ {
		out, err := r.readOutput()
		if err != nil {
			return nil, err
		}
		tx.Outputs = append(tx.Outputs, out)
	}
	return &tx, nil
}

func (r *Reader) readOutput() (types.Output, error) {
	var out types.Output
	cr := readByteCounter{r}

	at := r.offset
	vout, err := encoding.ReadCompactSize(cr)
	if err != nil {
		return out, classifyCodecError(err, at, "output index")
	}
	out.Vout = vout

	at = r.offset
	code, err := encoding.ReadVarInt(cr)
	if err != nil {
		return out, classifyCodecError(err, at, "height code")
	}
	if code>>1 >= MaxHeight {
		return out, &FormatError{Offset: at, Msg: fmt.Sprintf("height %d out of range", code>>1)}
	}
	out.Height = uint32(code >> 1)
	out.Coinbase = code&1 == 1

	at = r.offset
	amount, err := encoding.ReadVarInt(cr)
	if err != nil {
		return out, classifyCodecError(err, at, "compressed amount")
	}
	out.Amount = encoding.DecompressAmount(amount)

	at = r.offset
	out.Script, err = script.Decode(cr)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return out, classifyCodecError(err, at, "compressed script")
		}
		return out, &FormatError{Offset: at, Msg: fmt.Sprintf("compressed script: %v", err), Err: err}
	}
	return out, nil
}

// noEOF upgrades a bare io.EOF to io.ErrUnexpectedEOF: inside the record
// stream, running out of bytes is truncation regardless of record alignment.
func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// NextEntry returns the next individual output, carrying its transaction's
// txid, in stream order. io.EOF signals the end exactly as for Next.
func (r *Reader) NextEntry() (*types.UTXO, error) {
	for len(r.pending) == 0 {
		tx, err := r.Next()
		if err != nil {
			return nil, err
		}
		for _, out := range tx.Outputs {
			r.pending = append(r.pending, types.UTXO{Txid: tx.Txid, Output: out})
		}
	}
	u := r.pending[0]
	r.pending = r.pending[1:]
	return &u, nil
}

// Validate drives the reader to completion and reports the first problem
// found, or nil when the stream holds exactly the declared number of
// outputs.
func (r *Reader) Validate() error {
	for {
		if _, err := r.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// Reset seeks back to the start of the stream and clears all reader state,
// including the cached header and any sticky error. It requires the
// underlying stream to be seekable.
func (r *Reader) Reset() error {
	s, ok := r.src.(io.Seeker)
	if !ok {
		return errors.New("snapshot: reset requires a seekable stream")
	}
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r.br.Reset(r.src)
	r.offset = 0
	r.header = nil
	r.emitted = 0
	r.pending = nil
	r.err = nil
	return nil
}
