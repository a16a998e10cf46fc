// Package chain wraps go-ethereum RPC access for the faucet and bridge:
// instrumented clients, endpoint failover, ERC-20 calls and a
// nonce-serializing signer.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/socchain/faucet/pkg/metrics"
)

// Client is the RPC surface used by this module. *ethclient.Client satisfies it.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

var _ Client = (*ethclient.Client)(nil)

const DefaultCallTimeout = 10 * time.Second

// Option configures an instrumented client
type Option func(*EthClient)

// WithMetrics records every call under the given chain label.
func WithMetrics(m *metrics.Metrics, chain string) Option {
	return func(c *EthClient) {
		c.metrics = m
		c.chain = chain
	}
}

// WithCallTimeout bounds each RPC call. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(c *EthClient) {
		c.timeout = d
	}
}

// EthClient decorates a Client with per-call timeouts and RPC metrics.
type EthClient struct {
	inner   Client
	url     string
	chain   string
	timeout time.Duration
	metrics *metrics.Metrics
}

var _ Client = (*EthClient)(nil)

// Dial connects to url and wraps the client.
func Dial(ctx context.Context, url string, opts ...Option) (*EthClient, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return Wrap(c, url, opts...), nil
}

// Wrap instruments an existing client.
func Wrap(inner Client, url string, opts ...Option) *EthClient {
	c := &EthClient{inner: inner, url: url, timeout: DefaultCallTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the endpoint this client was dialed with.
func (c *EthClient) URL() string { return c.url }

func observe[T any](ctx context.Context, c *EthClient, method string, fn func(context.Context) (T, error)) (T, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.metrics.IncRPCInFlight()
	start := time.Now()
	v, err := fn(ctx)
	c.metrics.RecordRPCCall(c.chain, method, err, time.Since(start).Seconds())
	c.metrics.DecRPCInFlight()
	return v, err
}

func (c *EthClient) ChainID(ctx context.Context) (*big.Int, error) {
	return observe(ctx, c, "eth_chainId", c.inner.ChainID)
}

func (c *EthClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return observe(ctx, c, "eth_getCode", func(ctx context.Context) ([]byte, error) {
		return c.inner.CodeAt(ctx, account, blockNumber)
	})
}

func (c *EthClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return observe(ctx, c, "eth_getBalance", func(ctx context.Context) (*big.Int, error) {
		return c.inner.BalanceAt(ctx, account, blockNumber)
	})
}

func (c *EthClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return observe(ctx, c, "eth_call", func(ctx context.Context) ([]byte, error) {
		return c.inner.CallContract(ctx, msg, blockNumber)
	})
}

func (c *EthClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return observe(ctx, c, "eth_estimateGas", func(ctx context.Context) (uint64, error) {
		return c.inner.EstimateGas(ctx, msg)
	})
}

func (c *EthClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return observe(ctx, c, "eth_gasPrice", c.inner.SuggestGasPrice)
}

func (c *EthClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return observe(ctx, c, "eth_getTransactionCount", func(ctx context.Context) (uint64, error) {
		return c.inner.PendingNonceAt(ctx, account)
	})
}

func (c *EthClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	_, err := observe(ctx, c, "eth_sendRawTransaction", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.inner.SendTransaction(ctx, tx)
	})
	return err
}

func (c *EthClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return observe(ctx, c, "eth_getTransactionReceipt", func(ctx context.Context) (*types.Receipt, error) {
		return c.inner.TransactionReceipt(ctx, txHash)
	})
}

func (c *EthClient) Close() {
	c.inner.Close()
}
