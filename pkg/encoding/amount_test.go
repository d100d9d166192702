package encoding

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountVectors(t *testing.T) {
	tests := []struct {
		sats       uint64
		compressed uint64
	}{
		{0, 0},
		{1, 1},
		{10, 2},
		{100_000, 6},
		{1_000_000, 7},          // 0.01 BTC
		{100_000_000, 9},        // 1 BTC
		{5_000_000_000, 50},     // 50 BTC block subsidy
		{2_100_000_000_000_000, 21_000_000}, // 21M BTC cap
	}

	for _, test := range tests {
		assert.Equal(t, test.compressed, CompressAmount(test.sats), "compress %d", test.sats)
		assert.Equal(t, test.sats, DecompressAmount(test.compressed), "decompress %d", test.compressed)
	}
}

func TestAmountRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 2, 9, 11, 546, 999, 1000, 1001,
		123_456_789, 999_999_999, 1_000_000_001,
		2_100_000_000_000_000, 2_100_000_000_000_001,
		1_000_000_000_000_000_000,
	}

	for _, v := range values {
		assert.Equal(t, v, DecompressAmount(CompressAmount(v)), "amount %d", v)
	}
}

func TestAmountAsVarInt(t *testing.T) {
	// One whole bitcoin compresses to 9 and serializes as a single byte.
	var buf bytes.Buffer
	require.NoError(t, WriteVarInt(&buf, CompressAmount(100_000_000)))
	assert.Equal(t, []byte{0x09}, buf.Bytes())

	x, err := ReadVarInt(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000_000), DecompressAmount(x))
}
