// Package bridge reads balances across the BSC source chain and the SocChain
// destination and executes approve/deposit sequences against the bridge
// contract.
package bridge

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/socchain/faucet/pkg/chain"
	"github.com/socchain/faucet/pkg/metrics"
	"github.com/socchain/faucet/pkg/units"
)

const opBalances = "balances"

// SourceBalances are the signer's balances on the source chain. Error is set
// when every source endpoint failed; the amounts are then zero.
type SourceBalances struct {
	TokenBalance  string `json:"usdtBalance"`
	NativeBalance string `json:"bnbBalance"`
	Allowance     string `json:"allowance"`
	Error         string `json:"error,omitempty"`
}

type DestinationBalances struct {
	TokenBalance  string `json:"busdtBalance"`
	NativeBalance string `json:"socBalance"`
}

// Balances is the snapshot returned to callers, formatted with six
// fractional digits.
type Balances struct {
	Address     string              `json:"address"`
	Source      SourceBalances      `json:"bsc"`
	Destination DestinationBalances `json:"socchain"`

	// SourceErr is the chain-level source failure, wrapping chain.ErrRPCExhausted.
	SourceErr error `json:"-"`
}

type sourceRaw struct {
	token, native, allowance *big.Int
}

// Aggregator reads balances for a signer on both chains.
type Aggregator struct {
	cfg     Config
	source  *chain.Failover
	dest    chain.Client
	metrics *metrics.Metrics
	log     *zap.SugaredLogger
}

func NewAggregator(cfg Config, source *chain.Failover, dest chain.Client, m *metrics.Metrics, log *zap.SugaredLogger) *Aggregator {
	return &Aggregator{cfg: cfg, source: source, dest: dest, metrics: m, log: log}
}

// Balances derives the signer account from privateKey and reads both sides
// concurrently. A source failure does not stop the destination reads.
func (a *Aggregator) Balances(ctx context.Context, privateKey string) (*Balances, error) {
	if err := ValidatePrivateKey(privateKey); err != nil {
		return nil, err
	}
	account, err := chain.AddressFromKey(privateKey)
	if err != nil {
		return nil, &ValidationError{Field: "privateKey", Message: "not a valid secp256k1 key"}
	}

	start := time.Now()
	var (
		src       sourceRaw
		srcErr    error
		destToken = new(big.Int)
		destNat   = new(big.Int)
	)

	var g errgroup.Group
	g.Go(func() error {
		src, srcErr = a.readSource(ctx, account)
		return nil
	})
	g.Go(func() error {
		destToken, destNat = a.readDestination(ctx, account)
		return nil
	})
	_ = g.Wait()

	out := &Balances{Address: account.Hex()}
	if srcErr != nil {
		a.log.Warnw("source chain balance read failed", "address", account.Hex(), "error", srcErr)
		out.SourceErr = srcErr
		out.Source.Error = srcErr.Error()
		src = sourceRaw{token: new(big.Int), native: new(big.Int), allowance: new(big.Int)}
	}
	a.metrics.RecordBridgeOperation(opBalances, srcErr, time.Since(start).Seconds())

	out.Source.TokenBalance = format(src.token)
	out.Source.NativeBalance = format(src.native)
	out.Source.Allowance = format(src.allowance)
	out.Destination.TokenBalance = format(destToken)
	out.Destination.NativeBalance = format(destNat)
	return out, nil
}

// readSource runs the three source reads against one endpoint at a time,
// failing over as a unit.
func (a *Aggregator) readSource(ctx context.Context, account common.Address) (sourceRaw, error) {
	return chain.Read(ctx, a.source, func(ctx context.Context, c chain.Client) (sourceRaw, error) {
		var r sourceRaw
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			r.token, err = chain.BalanceOf(gctx, c, a.cfg.sourceToken(), account)
			return err
		})
		g.Go(func() (err error) {
			r.native, err = c.BalanceAt(gctx, account, nil)
			return err
		})
		g.Go(func() (err error) {
			r.allowance, err = chain.Allowance(gctx, c, a.cfg.sourceToken(), account, a.cfg.bridgeContract())
			return err
		})
		if err := g.Wait(); err != nil {
			return sourceRaw{}, err
		}
		return r, nil
	})
}

// readDestination never fails: each read falls back to zero on its own.
func (a *Aggregator) readDestination(ctx context.Context, account common.Address) (*big.Int, *big.Int) {
	var token, native *big.Int
	var g errgroup.Group
	g.Go(func() error {
		v, err := chain.BalanceOf(ctx, a.dest, a.cfg.destToken(), account)
		if err != nil {
			a.log.Warnw("destination token balance read failed", "address", account.Hex(), "error", err)
			v = new(big.Int)
		}
		token = v
		return nil
	})
	g.Go(func() error {
		v, err := a.dest.BalanceAt(ctx, account, nil)
		if err != nil {
			a.log.Warnw("destination native balance read failed", "address", account.Hex(), "error", err)
			v = new(big.Int)
		}
		native = v
		return nil
	})
	_ = g.Wait()
	return token, native
}

func format(raw *big.Int) string {
	return units.Format(raw, TokenDecimals, DisplayPlaces)
}
