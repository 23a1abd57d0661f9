package deployer

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/stylusforge/launchpad/internal/ethereum"
)

// CommandSpec describes one external command invocation: the binary,
// its argument vector, the working directory, and any extra
// environment entries merged over the ambient process environment.
// Specs are built here and executed by the Runner; nothing in this
// file spawns a process.
type CommandSpec struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

// Builder constructs the per-step command specs. All methods are pure
// functions of the config and their arguments.
type Builder struct {
	cfg Config
}

// NewBuilder creates a command builder for the given pipeline config.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// SanitizeArg makes an untrusted request string safe to embed in a
// command argument. Arguments are passed as an argv vector, never
// through a shell, so metacharacters cannot expand; what remains
// dangerous is control characters confusing the tool's own parsing and
// quotes breaking the ABI string encoding, so both are stripped.
func SanitizeArg(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r < 0x20 || r == 0x7f:
			// drop control characters
		case r == '"' || r == '\'' || r == '`' || r == '\\':
			// drop quoting characters
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Deploy invokes the contract-deployment tool against the contract
// directory with a fixed conservative fee cap and verification
// disabled.
func (b *Builder) Deploy() CommandSpec {
	return CommandSpec{
		Name: b.cfg.CargoBin,
		Args: []string{
			"stylus", "deploy",
			"--endpoint", b.cfg.RPCEndpoint,
			"--private-key", b.cfg.PrivateKey,
			"--no-verify",
			"--max-fee-per-gas-gwei", fmt.Sprintf("%d", b.cfg.MaxFeeGwei),
		},
		Dir: b.cfg.ContractDir,
	}
}

// Activate invokes the activation tool for a previously deployed
// address.
func (b *Builder) Activate(addr ethereum.Address) CommandSpec {
	return CommandSpec{
		Name: b.cfg.CargoBin,
		Args: []string{
			"stylus", "activate",
			"--address", addr.Hex(),
			"--endpoint", b.cfg.RPCEndpoint,
			"--private-key", b.cfg.PrivateKey,
		},
		Dir: b.cfg.ContractDir,
	}
}

// CacheBid invokes the cache-bid tool for a deployed address.
func (b *Builder) CacheBid(addr ethereum.Address) CommandSpec {
	return CommandSpec{
		Name: b.cfg.CargoBin,
		Args: []string{
			"stylus", "cache", "bid",
			"--endpoint", b.cfg.RPCEndpoint,
			"--private-key", b.cfg.PrivateKey,
			addr.Hex(), b.cfg.CacheBidWei,
		},
		Dir: b.cfg.ContractDir,
	}
}

// Initialize invokes the token's initializer. The contract scales the
// whole-unit supply to base units internally, so wholeUnits is passed
// through unconverted.
func (b *Builder) Initialize(addr ethereum.Address, name, symbol string, wholeUnits *big.Int) CommandSpec {
	return CommandSpec{
		Name: b.cfg.CastBin,
		Args: []string{
			"send", addr.Hex(),
			"initialize(string,string,uint256)",
			SanitizeArg(name), SanitizeArg(symbol), wholeUnits.String(),
			"--rpc-url", b.cfg.RPCEndpoint,
			"--private-key", b.cfg.PrivateKey,
		},
	}
}

// Register invokes the factory's registration function. The quantity
// must already be in the factory's expected unit; the orchestrator,
// not this builder, decides which unit each destination expects.
func (b *Builder) Register(factory, token ethereum.Address, name, symbol string, quantity *big.Int) CommandSpec {
	return CommandSpec{
		Name: b.cfg.CastBin,
		Args: []string{
			"send", factory.Hex(),
			"registerToken(address,string,string,uint256)",
			token.Hex(), SanitizeArg(name), SanitizeArg(symbol), quantity.String(),
			"--rpc-url", b.cfg.RPCEndpoint,
			"--private-key", b.cfg.PrivateKey,
		},
	}
}

// ReadCode reads the code blob at an address. No signing key required.
func (b *Builder) ReadCode(addr ethereum.Address) CommandSpec {
	return CommandSpec{
		Name: b.cfg.CastBin,
		Args: []string{
			"code", addr.Hex(),
			"--rpc-url", b.cfg.RPCEndpoint,
		},
	}
}

// ReadView calls a read-only view function. No signing key required.
func (b *Builder) ReadView(addr ethereum.Address, signature string, args ...string) CommandSpec {
	cmdArgs := append([]string{"call", addr.Hex(), signature}, args...)
	cmdArgs = append(cmdArgs, "--rpc-url", b.cfg.RPCEndpoint)
	return CommandSpec{
		Name: b.cfg.CastBin,
		Args: cmdArgs,
	}
}
