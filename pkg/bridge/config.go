package bridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"

	"github.com/socchain/faucet/pkg/chain"
	"github.com/socchain/faucet/pkg/utils"
)

// Gas ceilings and receipt waits for the two bridge transactions.
const (
	DefaultApprovalGas     = 100_000
	DefaultDepositGas      = 200_000
	DefaultApprovalTimeout = 60 * time.Second
	DefaultDepositTimeout  = 120 * time.Second
)

// TokenDecimals is fixed for both bridge tokens.
const TokenDecimals = 18

// DisplayPlaces is the number of fractional digits shown for balances.
const DisplayPlaces = 6

var ErrInvalidConfig = errors.New("invalid bridge config")

// Config describes the BSC source chain and the SocChain destination.
type Config struct {
	SourceRPCURLs   []string      `env:"BRIDGE_SOURCE_RPC_URLS" envSeparator:","`
	SourceChainID   uint64        `env:"BRIDGE_SOURCE_CHAIN_ID" envDefault:"56"`
	SourceToken     string        `env:"BRIDGE_SOURCE_TOKEN"`
	SourceContract  string        `env:"BRIDGE_SOURCE_CONTRACT"`
	DestRPCURLs     []string      `env:"BRIDGE_DEST_RPC_URLS" envSeparator:","`
	DestChainID     uint64        `env:"BRIDGE_DEST_CHAIN_ID"`
	DestToken       string        `env:"BRIDGE_DEST_TOKEN"`
	ApprovalGas     uint64        `env:"BRIDGE_APPROVAL_GAS" envDefault:"100000"`
	DepositGas      uint64        `env:"BRIDGE_DEPOSIT_GAS" envDefault:"200000"`
	ApprovalTimeout time.Duration `env:"BRIDGE_APPROVAL_TIMEOUT" envDefault:"60s"`
	DepositTimeout  time.Duration `env:"BRIDGE_DEPOSIT_TIMEOUT" envDefault:"120s"`
	ReceiptPoll     time.Duration `env:"BRIDGE_RECEIPT_POLL" envDefault:"2s"`
}

// LoadConfig reads BRIDGE_* environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse bridge config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns the built-in gas and receipt settings without any
// endpoints or contracts.
func DefaultConfig() Config {
	return Config{
		SourceChainID:   56,
		ApprovalGas:     DefaultApprovalGas,
		DepositGas:      DefaultDepositGas,
		ApprovalTimeout: DefaultApprovalTimeout,
		DepositTimeout:  DefaultDepositTimeout,
		ReceiptPoll:     chain.DefaultReceiptPoll,
	}
}

// Enabled reports whether a bridge contract is configured.
func (c Config) Enabled() bool {
	return c.SourceContract != ""
}

func (c Config) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	if len(c.SourceRPCURLs) == 0 {
		return fail("source rpc urls are required")
	}
	if len(c.DestRPCURLs) == 0 {
		return fail("destination rpc urls are required")
	}
	for name, addr := range map[string]string{
		"source token":    c.SourceToken,
		"source contract": c.SourceContract,
		"dest token":      c.DestToken,
	} {
		if !utils.IsAddress(addr) {
			return fail("%s %q is not an address", name, addr)
		}
	}
	if c.SourceChainID == 0 {
		return fail("source chain id is required")
	}
	if c.ApprovalTimeout <= 0 || c.DepositTimeout <= 0 || c.ReceiptPoll <= 0 {
		return fail("receipt timeouts must be positive")
	}
	return nil
}

func (c Config) sourceToken() common.Address { return common.HexToAddress(c.SourceToken) }

func (c Config) bridgeContract() common.Address { return common.HexToAddress(c.SourceContract) }

func (c Config) destToken() common.Address { return common.HexToAddress(c.DestToken) }
