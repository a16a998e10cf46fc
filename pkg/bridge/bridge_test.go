package bridge

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/socchain/faucet/pkg/chain"
	"github.com/socchain/faucet/pkg/chain/mocks"
	"github.com/socchain/faucet/pkg/events"
)

const (
	testKey       = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testTargetHex = "0x00000000000000000000000000000000000000AA"

	balanceOfSig = "balanceOf(address)"
	allowanceSig = "allowance(address,address)"
	approveSig   = "approve(address,uint256)"
	depositSig   = "deposit(uint256,string)"
)

var (
	sourceToken = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	bridgeAddr  = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	destToken   = common.HexToAddress("0x0000000000000000000000000000000000000c01")
	e18         = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), e18)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SourceRPCURLs = []string{"https://bsc-1", "https://bsc-2"}
	cfg.SourceToken = sourceToken.Hex()
	cfg.SourceContract = bridgeAddr.Hex()
	cfg.DestRPCURLs = []string{"https://soc-1"}
	cfg.DestChainID = 1234
	cfg.DestToken = destToken.Hex()
	cfg.ReceiptPoll = 10 * time.Millisecond
	cfg.ApprovalTimeout = time.Second
	cfg.DepositTimeout = time.Second
	return cfg
}

func testAccount(t *testing.T) common.Address {
	t.Helper()
	addr, err := chain.AddressFromKey(testKey)
	require.NoError(t, err)
	return addr
}

// newFailover serves each configured url from the matching mock, in order.
func newFailover(t *testing.T, clients ...*mocks.Client) *chain.Failover {
	t.Helper()
	urls := make([]string, len(clients))
	byURL := make(map[string]chain.Client, len(clients))
	for i, c := range clients {
		urls[i] = testConfig().SourceRPCURLs[i]
		byURL[urls[i]] = c
	}
	f, err := chain.NewFailover(urls, func(_ context.Context, url string) (chain.Client, error) {
		c, ok := byURL[url]
		if !ok {
			return nil, errors.New("unknown url " + url)
		}
		return c, nil
	}, chain.WithSleep(func(context.Context, time.Duration) error { return nil }))
	require.NoError(t, err)
	return f
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Envelope
}

func (p *recordingPublisher) Publish(_ context.Context, e *events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}
