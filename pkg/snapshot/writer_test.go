package snapshot

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jayson-Furr/UTXOTools/pkg/types"
)

func TestWriterPatchesCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utxo.dat")
	w, err := Create(path, false)
	require.NoError(t, err)

	// The count is unknown at header time; the writer back-patches it.
	require.NoError(t, w.WriteHeader(&types.Header{Network: types.NetworkMainnet}))
	for _, tx := range testTransactions(t) {
		require.NoError(t, w.WriteTransaction(tx))
	}
	assert.Equal(t, uint64(4), w.Written())
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), binary.LittleEndian.Uint64(raw[utxoCountOffset:HeaderSize]))

	require.NoError(t, NewReader(bytes.NewReader(raw)).Validate())
}

func TestEmptyTransactionDropped(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader(&types.Header{Network: types.NetworkRegtest}))
	require.NoError(t, w.WriteTransaction(&types.Transaction{Txid: chainhash.HashH([]byte("empty"))}))
	require.NoError(t, w.Close())

	assert.Equal(t, uint64(0), w.Written())
	assert.Equal(t, HeaderSize, buf.Len())
}

func TestWriteEntrySingleton(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utxo.dat")
	w, err := Create(path, false)
	require.NoError(t, err)

	u := &types.UTXO{
		Txid:   chainhash.HashH([]byte("single")),
		Output: types.Output{Vout: 7, Height: 42, Amount: 1234, Script: p2pkhScript(0x99)},
	}
	require.NoError(t, w.WriteHeader(&types.Header{Network: types.NetworkRegtest}))
	require.NoError(t, w.WriteEntry(u))
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	got, err := r.NextEntry()
	require.NoError(t, err)
	assert.Equal(t, u, got)

	_, err = r.NextEntry()
	assert.ErrorIs(t, err, io.EOF)
}

func TestNonSeekableDeclaredCount(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader(&types.Header{Network: types.NetworkRegtest, UTXOCount: 4}))
	for _, tx := range testTransactions(t) {
		require.NoError(t, w.WriteTransaction(tx))
	}
	require.NoError(t, w.Finalize())

	require.NoError(t, NewReader(bytes.NewReader(buf.Bytes())).Validate())
}

func TestNonSeekableCountMismatch(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader(&types.Header{Network: types.NetworkRegtest, UTXOCount: 2}))
	require.NoError(t, w.WriteEntry(&types.UTXO{
		Txid:   chainhash.HashH([]byte("one")),
		Output: types.Output{Amount: 1, Script: p2pkhScript(0x01)},
	}))

	err := w.Finalize()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonCountMismatch, verr.Reason)
}

func TestUpdateUTXOCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utxo.dat")
	w, err := Create(path, false)
	require.NoError(t, err)

	require.NoError(t, w.WriteHeader(&types.Header{Network: types.NetworkRegtest}))
	require.NoError(t, w.UpdateUTXOCount(99))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), binary.LittleEndian.Uint64(raw[utxoCountOffset:HeaderSize]))
	require.NoError(t, w.Close())
}

func TestUpdateUTXOCountRequiresSeeker(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader(&types.Header{Network: types.NetworkRegtest}))
	assert.Error(t, w.UpdateUTXOCount(1))
}

func TestCreateRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utxo.dat")
	require.NoError(t, os.WriteFile(path, []byte("existing"), 0644))

	_, err := Create(path, false)
	assert.Error(t, err)

	w, err := Create(path, true)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(&types.Header{Network: types.NetworkRegtest}))
	require.NoError(t, w.Close())
}

func TestWriteOrderErrors(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	assert.Error(t, w.WriteTransaction(&types.Transaction{}))
	assert.Error(t, w.Finalize())

	require.NoError(t, w.WriteHeader(&types.Header{Network: types.NetworkRegtest}))
	assert.Error(t, w.WriteHeader(&types.Header{Network: types.NetworkRegtest}))
}

func TestWriteHeaderUnknownNetworkNeedsMagic(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	err := w.WriteHeader(&types.Header{Network: types.NetworkUnknown})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonUnknownNetwork, verr.Reason)
}

func TestWriteHeaderRejectsForeignVersion(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	err := w.WriteHeader(&types.Header{Version: 1, Network: types.NetworkRegtest})
	var verr *VersionError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, uint16(1), verr.Found)
}

func TestWriterRejectsReservedHeightBit(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader(&types.Header{Network: types.NetworkRegtest, UTXOCount: 1}))

	err := w.WriteEntry(&types.UTXO{
		Txid:   chainhash.HashH([]byte("high")),
		Output: types.Output{Height: MaxHeight, Amount: 1, Script: p2pkhScript(0x01)},
	})
	var ferr *FormatError
	assert.ErrorAs(t, err, &ferr)
}

func TestWriterRejectsOversizedScript(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader(&types.Header{Network: types.NetworkRegtest, UTXOCount: 1}))

	err := w.WriteEntry(&types.UTXO{
		Txid:   chainhash.HashH([]byte("big")),
		Output: types.Output{Amount: 1, Script: make([]byte, 0x02000000)},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonInvalidScript, verr.Reason)
}
