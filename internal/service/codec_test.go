package service

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Valid 32-byte master key in hex (64 chars)
const testMasterKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestCodec(t *testing.T) *AESBalanceCodec {
	t.Helper()
	codec, err := NewAESBalanceCodec(testMasterKey)
	require.NoError(t, err)
	return codec
}

func TestAESBalanceCodec_NewInvalidKey(t *testing.T) {
	_, err := NewAESBalanceCodec("not-hex")
	assert.Error(t, err)

	_, err = NewAESBalanceCodec("abcd")
	assert.Error(t, err)
}

func TestAESBalanceCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	for _, balance := range []int64{0, 1, 100, 70, 999999999999, -30} {
		encoded, err := codec.Encode(balance)
		require.NoError(t, err)
		assert.NotEmpty(t, encoded)

		decoded, err := codec.Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, balance, decoded)
	}
}

func TestAESBalanceCodec_NonceFreshness(t *testing.T) {
	codec := newTestCodec(t)

	e1, err := codec.Encode(100)
	require.NoError(t, err)
	e2, err := codec.Encode(100)
	require.NoError(t, err)

	assert.NotEqual(t, e1, e2, "same balance should encode differently due to random nonce")

	d1, err := codec.Decode(e1)
	require.NoError(t, err)
	d2, err := codec.Decode(e2)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestAESBalanceCodec_AbsentDecodesToZero(t *testing.T) {
	codec := newTestCodec(t)

	balance, err := codec.Decode("")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestAESBalanceCodec_TamperDetection(t *testing.T) {
	codec := newTestCodec(t)

	encoded, err := codec.Encode(100)
	require.NoError(t, err)

	// Flip one byte anywhere in the representation; decode must fail with an
	// integrity error, never return a wrong-but-plausible number.
	raw, err := hex.DecodeString(encoded)
	require.NoError(t, err)

	for i := 0; i < len(raw); i++ {
		tampered := make([]byte, len(raw))
		copy(tampered, raw)
		tampered[i] ^= 0x01

		_, err := codec.Decode(hex.EncodeToString(tampered))
		require.Error(t, err, "flipped byte %d must not decode", i)
		assert.True(t, errors.Is(err, ErrIntegrity))
	}
}

func TestAESBalanceCodec_MalformedInput(t *testing.T) {
	codec := newTestCodec(t)

	for _, input := range []string{"not-hex-at-all!!!", "abcdef", "00"} {
		_, err := codec.Decode(input)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrIntegrity), "input %q", input)
	}
}

func TestAESBalanceCodec_ForeignKeyRejected(t *testing.T) {
	codec := newTestCodec(t)
	otherKey := "abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"
	other, err := NewAESBalanceCodec(otherKey)
	require.NoError(t, err)

	encoded, err := other.Encode(500)
	require.NoError(t, err)

	_, err = codec.Decode(encoded)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIntegrity))
}
