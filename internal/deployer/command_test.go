package deployer

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylusforge/launchpad/internal/ethereum"
)

func testBuilderConfig() Config {
	return Config{
		PrivateKey:  "0xkey",
		RPCEndpoint: "http://localhost:8547",
		ContractDir: "/srv/contracts/token",
		CargoBin:    "cargo",
		CastBin:     "cast",
		MaxFeeGwei:  100,
		CacheBidWei: "0",
	}
}

func mustAddr(t *testing.T, s string) ethereum.Address {
	t.Helper()
	a, err := ethereum.DecodeAddress(s)
	require.NoError(t, err)
	return a
}

func TestBuilder_Deploy(t *testing.T) {
	b := NewBuilder(testBuilderConfig())
	spec := b.Deploy()

	assert.Equal(t, "cargo", spec.Name)
	assert.Equal(t, "/srv/contracts/token", spec.Dir)
	assert.Equal(t, []string{"stylus", "deploy"}, spec.Args[:2])
	assert.Contains(t, spec.Args, "--no-verify")
	assert.Contains(t, spec.Args, "--max-fee-per-gas-gwei")
	assert.Contains(t, spec.Args, "100")
	assert.Contains(t, spec.Args, "--private-key")
	assert.Contains(t, spec.Args, "0xkey")
}

func TestBuilder_Activate(t *testing.T) {
	b := NewBuilder(testBuilderConfig())
	addr := mustAddr(t, "0x742d35cc6634c0532925a3b844bc454e4438f44e")
	spec := b.Activate(addr)

	assert.Equal(t, []string{"stylus", "activate"}, spec.Args[:2])
	assert.Contains(t, spec.Args, addr.Hex())
}

func TestBuilder_CacheBid(t *testing.T) {
	b := NewBuilder(testBuilderConfig())
	addr := mustAddr(t, "0x742d35cc6634c0532925a3b844bc454e4438f44e")
	spec := b.CacheBid(addr)

	assert.Equal(t, []string{"stylus", "cache", "bid"}, spec.Args[:3])
	// address then bid amount, positionally last
	assert.Equal(t, addr.Hex(), spec.Args[len(spec.Args)-2])
	assert.Equal(t, "0", spec.Args[len(spec.Args)-1])
}

func TestBuilder_Initialize(t *testing.T) {
	b := NewBuilder(testBuilderConfig())
	addr := mustAddr(t, "0x742d35cc6634c0532925a3b844bc454e4438f44e")
	spec := b.Initialize(addr, "Test", "TST", big.NewInt(1000))

	assert.Equal(t, "cast", spec.Name)
	require.True(t, len(spec.Args) > 5)
	assert.Equal(t, "send", spec.Args[0])
	assert.Equal(t, addr.Hex(), spec.Args[1])
	assert.Equal(t, "initialize(string,string,uint256)", spec.Args[2])
	// name, symbol, whole units, in that order
	assert.Equal(t, "Test", spec.Args[3])
	assert.Equal(t, "TST", spec.Args[4])
	assert.Equal(t, "1000", spec.Args[5])
}

func TestBuilder_Register(t *testing.T) {
	b := NewBuilder(testBuilderConfig())
	factory := mustAddr(t, "0x1111111111111111111111111111111111111111")
	token := mustAddr(t, "0x2222222222222222222222222222222222222222")
	qty, _ := new(big.Int).SetString("1000000000000000000000", 10)
	spec := b.Register(factory, token, "Test", "TST", qty)

	assert.Equal(t, "send", spec.Args[0])
	assert.Equal(t, factory.Hex(), spec.Args[1])
	assert.Equal(t, "registerToken(address,string,string,uint256)", spec.Args[2])
	assert.Equal(t, token.Hex(), spec.Args[3])
	assert.Equal(t, qty.String(), spec.Args[6])
}

func TestBuilder_ReadProbes(t *testing.T) {
	b := NewBuilder(testBuilderConfig())
	addr := mustAddr(t, "0x742d35cc6634c0532925a3b844bc454e4438f44e")

	t.Run("read code has no signing key", func(t *testing.T) {
		spec := b.ReadCode(addr)
		assert.Equal(t, "code", spec.Args[0])
		assert.NotContains(t, spec.Args, "--private-key")
		assert.NotContains(t, spec.Args, "0xkey")
	})

	t.Run("read view has no signing key", func(t *testing.T) {
		spec := b.ReadView(addr, "isRegistered(address)", "0x2222222222222222222222222222222222222222")
		assert.Equal(t, "call", spec.Args[0])
		assert.Equal(t, "isRegistered(address)", spec.Args[2])
		assert.NotContains(t, spec.Args, "0xkey")
	})
}

func TestSanitizeArg(t *testing.T) {
	t.Run("clean passthrough", func(t *testing.T) {
		assert.Equal(t, "My Token", SanitizeArg("My Token"))
	})

	t.Run("strips quotes and backslashes", func(t *testing.T) {
		assert.Equal(t, "Token; rm -rf /", SanitizeArg(`Token"; rm -rf /`))
		assert.Equal(t, "ab", SanitizeArg("a`'\\b"))
	})

	t.Run("strips control characters", func(t *testing.T) {
		assert.Equal(t, "ab", SanitizeArg("a\n\r\x00\x1bb"))
	})

	t.Run("unicode preserved", func(t *testing.T) {
		assert.Equal(t, "Tokén✓", SanitizeArg("Tokén✓"))
	})
}
