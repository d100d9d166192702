package script

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jayson-Furr/UTXOTools/pkg/encoding"
	"github.com/Jayson-Furr/UTXOTools/pkg/keys"
)

const genX = "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

func hexBytes(t *testing.T, s string) []byte {
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func p2pkhScript(hash []byte) []byte {
	script := append([]byte{0x76, 0xa9, 0x14}, hash...)
	return append(script, 0x88, 0xac)
}

func p2shScript(hash []byte) []byte {
	script := append([]byte{0xa9, 0x14}, hash...)
	return append(script, 0x87)
}

func pubKeyScript(key []byte) []byte {
	script := append([]byte{byte(len(key))}, key...)
	return append(script, 0xac)
}

func roundTrip(t *testing.T, script []byte) []byte {
	compressed, err := Compress(script)
	require.NoError(t, err)

	decoded, err := Decode(bytes.NewReader(compressed))
	require.NoError(t, err)
	assert.Equal(t, script, decoded)
	return compressed
}

func TestCompressPayToPubKeyHash(t *testing.T) {
	hash := bytes.Repeat([]byte{0xab}, 20)
	script := p2pkhScript(hash)
	require.True(t, IsPayToPubKeyHash(script))

	compressed := roundTrip(t, script)
	require.Len(t, compressed, 21)
	assert.Equal(t, byte(TagPubKeyHash), compressed[0])
	assert.Equal(t, hash, compressed[1:])
}

func TestCompressPayToScriptHash(t *testing.T) {
	hash := bytes.Repeat([]byte{0xcd}, 20)
	script := p2shScript(hash)
	require.True(t, IsPayToScriptHash(script))

	compressed := roundTrip(t, script)
	require.Len(t, compressed, 21)
	assert.Equal(t, byte(TagScriptHash), compressed[0])
	assert.Equal(t, hash, compressed[1:])
}

func TestCompressPayToPubKeyCompressed(t *testing.T) {
	x := hexBytes(t, genX)

	for _, parity := range []byte{keys.ParityEven, keys.ParityOdd} {
		key := append([]byte{parity}, x...)
		script := pubKeyScript(key)
		require.True(t, IsPayToPubKey(script))

		compressed := roundTrip(t, script)
		require.Len(t, compressed, 33)
		assert.Equal(t, parity, compressed[0]) // key prefix doubles as tag
		assert.Equal(t, x, compressed[1:])
	}
}

func TestCompressPayToPubKeyUncompressed(t *testing.T) {
	x := hexBytes(t, genX)
	pub, err := keys.Decompress(keys.ParityEven, x)
	require.NoError(t, err)

	script := pubKeyScript(pub)
	require.Len(t, script, 67)
	require.True(t, IsPayToPubKey(script))

	compressed := roundTrip(t, script)
	require.Len(t, compressed, 33)
	assert.Equal(t, byte(TagPubKeyUncompEven), compressed[0])
	assert.Equal(t, x, compressed[1:])

	// The reconstructed script carries the full recovered key.
	decoded, err := Decode(bytes.NewReader(compressed))
	require.NoError(t, err)
	assert.Equal(t, byte(0x41), decoded[0])
	assert.Equal(t, byte(0x04), decoded[1])
}

func TestCompressOffCurveKeyFallsBackToRaw(t *testing.T) {
	// Structurally a P2PK script, but the key is not on the curve, so no
	// 32-byte form could be decompressed back. It must be stored raw.
	key := append([]byte{0x04}, bytes.Repeat([]byte{0x11}, 64)...)
	script := pubKeyScript(key)

	compressed, err := Compress(script)
	require.NoError(t, err)
	assert.Equal(t, byte(len(script)+RawTagOffset), compressed[0])

	decoded, err := Decode(bytes.NewReader(compressed))
	require.NoError(t, err)
	assert.Equal(t, script, decoded)
}

func TestCompressRawScript(t *testing.T) {
	// An OP_RETURN output has no compressed form.
	script := append([]byte{0x6a, 0x04}, []byte("data")...)

	compressed := roundTrip(t, script)
	assert.Equal(t, byte(len(script)+RawTagOffset), compressed[0])
	assert.Equal(t, script, compressed[1:])
}

func TestCompressEmptyScript(t *testing.T) {
	compressed := roundTrip(t, []byte{})
	assert.Equal(t, []byte{RawTagOffset}, compressed)
}

func TestCompressRejectsOversizedScript(t *testing.T) {
	script := make([]byte, MaxRawScriptSize+1)
	_, err := Compress(script)
	assert.ErrorIs(t, err, ErrScriptTooLarge)
}

func TestDecodeRejectsOversizedTag(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, encoding.WriteVarInt(&buf, uint64(MaxRawScriptSize)+RawTagOffset+1))
	_, err := Decode(&buf)
	assert.ErrorIs(t, err, ErrScriptTooLarge)
}

func TestDecodeRejectsOffCurveX(t *testing.T) {
	// Tag 4 with x >= p: the payload cannot decompress to a curve point.
	payload := append([]byte{TagPubKeyUncompEven}, bytes.Repeat([]byte{0xff}, 32)...)
	_, err := Decode(bytes.NewReader(payload))
	assert.Error(t, err)
}

func TestDecodeTruncatedPayload(t *testing.T) {
	// Tag promises 20 bytes, stream holds 5.
	payload := append([]byte{TagPubKeyHash}, bytes.Repeat([]byte{0x00}, 5)...)
	_, err := Decode(bytes.NewReader(payload))
	assert.Error(t, err)
}

func TestDecompressPayloadSizeMismatch(t *testing.T) {
	_, err := Decompress(TagPubKeyHash, make([]byte, 19))
	assert.Error(t, err)

	_, err = Decompress(RawTagOffset+10, make([]byte, 9))
	assert.Error(t, err)
}
