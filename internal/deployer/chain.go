package deployer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrTransactionReverted is returned when a mined transaction carries
// a failed receipt status.
var ErrTransactionReverted = errors.New("transaction reverted")

// ChainProber answers read-only questions about on-chain state through
// the node's RPC interface. Probes never spend gas.
type ChainProber interface {
	// IsRegistered reports whether the factory already knows the token.
	IsRegistered(ctx context.Context, factory, token string) (bool, error)
	// WaitForReceipt polls until the transaction is mined or ctx expires.
	WaitForReceipt(ctx context.Context, txHash string) error
	Close()
}

// ProberDialer opens a ChainProber against an RPC endpoint. It exists
// so tests can substitute an in-memory prober.
type ProberDialer func(ctx context.Context, rpcURL string) (ChainProber, error)

// ethProber is the ethclient-backed ChainProber.
type ethProber struct {
	client *ethclient.Client
}

// DialProber connects to an Ethereum RPC endpoint.
func DialProber(ctx context.Context, rpcURL string) (ChainProber, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc endpoint: %w", err)
	}
	return &ethProber{client: client}, nil
}

// registrationSelector is the 4-byte selector of isRegistered(address).
var registrationSelector = crypto.Keccak256([]byte("isRegistered(address)"))[:4]

// IsRegistered performs an eth_call against the factory asking whether
// the token address is already in its registry. A structured call is
// used instead of attempting the registration and parsing revert text,
// which keeps the answer independent of the contract's error strings.
func (p *ethProber) IsRegistered(ctx context.Context, factory, token string) (bool, error) {
	if !common.IsHexAddress(factory) {
		return false, fmt.Errorf("invalid factory address %q", factory)
	}
	if !common.IsHexAddress(token) {
		return false, fmt.Errorf("invalid token address %q", token)
	}

	to := common.HexToAddress(factory)
	data := make([]byte, 0, 36)
	data = append(data, registrationSelector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(token).Bytes(), 32)...)

	out, err := p.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("isRegistered call: %w", err)
	}
	if len(out) == 0 {
		// Factory without the view; treat as unknown rather than duplicate.
		return false, nil
	}
	return out[len(out)-1] == 1, nil
}

// WaitForReceipt polls for the transaction receipt with exponential
// backoff starting at 500ms and capped at 8s, until ctx expires.
func (p *ethProber) WaitForReceipt(ctx context.Context, txHash string) error {
	hash := common.HexToHash(txHash)
	delay := 500 * time.Millisecond
	const maxDelay = 8 * time.Second

	for {
		receipt, err := p.client.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status == 0 {
				return fmt.Errorf("%w: %s", ErrTransactionReverted, txHash)
			}
			return nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			// Transient RPC errors are retried until the deadline.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("waiting for receipt %s: %w", txHash, ctxErr)
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for receipt %s: %w", txHash, ctx.Err())
		case <-time.After(delay):
		}
		if delay < maxDelay {
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		}
	}
}

// CodeAt returns the deployed bytecode at an address. Exposed for
// callers that prefer a structured probe over shelling out.
func (p *ethProber) CodeAt(ctx context.Context, addr string) ([]byte, error) {
	if !common.IsHexAddress(addr) {
		return nil, fmt.Errorf("invalid address %q", addr)
	}
	return p.client.CodeAt(ctx, common.HexToAddress(addr), nil)
}

func (p *ethProber) Close() {
	p.client.Close()
}
