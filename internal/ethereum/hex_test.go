package ethereum

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAddress(t *testing.T) {
	t.Run("valid address with 0x", func(t *testing.T) {
		addr, err := DecodeAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
		require.NoError(t, err)
		assert.Equal(t, byte(0x74), addr[0])
		assert.Equal(t, byte(0x4e), addr[19])
	})

	t.Run("valid address without 0x", func(t *testing.T) {
		addr, err := DecodeAddress("742d35Cc6634C0532925a3b844Bc454e4438f44e")
		require.NoError(t, err)
		assert.Equal(t, byte(0x74), addr[0])
	})

	t.Run("case insensitive", func(t *testing.T) {
		lower, err := DecodeAddress("0xabcdef0123456789abcdef0123456789abcdef01")
		require.NoError(t, err)
		upper, err := DecodeAddress("0xABCDEF0123456789ABCDEF0123456789ABCDEF01")
		require.NoError(t, err)
		assert.Equal(t, lower, upper)
	})

	t.Run("zero address", func(t *testing.T) {
		addr, err := DecodeAddress("0x0000000000000000000000000000000000000000")
		require.NoError(t, err)
		assert.True(t, addr.IsZero())
	})

	t.Run("invalid length", func(t *testing.T) {
		_, err := DecodeAddress("0x742d35Cc")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid address length")
	})

	t.Run("invalid hex", func(t *testing.T) {
		_, err := DecodeAddress("0xGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGG")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid hex")
	})
}

func TestDecodeHash(t *testing.T) {
	t.Run("valid hash", func(t *testing.T) {
		h, err := DecodeHash("0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef")
		require.NoError(t, err)
		assert.Equal(t, byte(0x12), h[0])
		assert.Equal(t, byte(0xef), h[31])
	})

	t.Run("invalid length", func(t *testing.T) {
		_, err := DecodeHash("0x1234")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid hash length")
	})
}

func TestDecodeBig(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		v, err := DecodeBig("0xde0b6b3a7640000")
		require.NoError(t, err)
		assert.Equal(t, "1000000000000000000", v.String())
	})

	t.Run("empty is zero", func(t *testing.T) {
		v, err := DecodeBig("0x")
		require.NoError(t, err)
		assert.Zero(t, v.Sign())
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := DecodeBig("0xzz")
		assert.Error(t, err)
	})
}

func TestEncodeBig(t *testing.T) {
	assert.Equal(t, "0x0", EncodeBig(nil))
	assert.Equal(t, "0xde0b6b3a7640000", EncodeBig(big.NewInt(1000000000000000000)))
}

func TestIsEmptyCode(t *testing.T) {
	t.Run("empty variants", func(t *testing.T) {
		assert.True(t, IsEmptyCode(""))
		assert.True(t, IsEmptyCode("0x"))
		assert.True(t, IsEmptyCode("0x\n"))
		assert.True(t, IsEmptyCode("0x0000"))
	})

	t.Run("real code", func(t *testing.T) {
		assert.False(t, IsEmptyCode("0x60806040"))
	})
}

func TestHas0xPrefix(t *testing.T) {
	assert.True(t, Has0xPrefix("0xabc"))
	assert.True(t, Has0xPrefix("0Xabc"))
	assert.False(t, Has0xPrefix("abc"))
	assert.False(t, Has0xPrefix("0"))
}
