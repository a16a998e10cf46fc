package faucet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/socchain/faucet/pkg/chain"
	"github.com/socchain/faucet/pkg/units"
)

// ErrTokenContractNotFound is returned when the configured token address has
// no deployed code.
var ErrTokenContractNotFound = errors.New("token_contract_not_found")

// Transfer describes a broadcast claim transaction. Amount is what was
// actually sent, which differs from the requested raw amount when the
// on-chain decimals disagree with the configured ones.
type Transfer struct {
	TxHash   string
	Amount   *big.Int
	Decimals int32
}

// TokenMetadata is the cached view of the ERC-20 token.
type TokenMetadata struct {
	Decimals int32
	Symbol   string
	// OnChain is false when the decimals are the configured fallback.
	OnChain bool
}

// Sender submits claim transfers on one chain.
type Sender struct {
	profile chain.Profile
	client  chain.Client
	signer  *chain.Signer
	log     *zap.SugaredLogger

	chainCheck sync.Once

	metaMu sync.Mutex
	meta   *TokenMetadata
}

func NewSender(profile chain.Profile, client chain.Client, log *zap.SugaredLogger) (*Sender, error) {
	signer, err := chain.NewSigner(profile.PrivateKey, profile.ChainID)
	if err != nil {
		return nil, fmt.Errorf("%s faucet key: %w", profile.Name, err)
	}
	return &Sender{
		profile: profile,
		client:  client,
		signer:  signer,
		log:     log.With("chain", profile.Name),
	}, nil
}

// Address is the faucet account on this chain.
func (s *Sender) Address() common.Address { return s.signer.Address() }

func (s *Sender) Profile() chain.Profile { return s.profile }

func (s *Sender) Client() chain.Client { return s.client }

// Send transfers raw units of the native asset, or of the configured token,
// to the recipient and returns once the node accepted the transaction.
func (s *Sender) Send(ctx context.Context, to common.Address, raw *big.Int) (*Transfer, error) {
	s.chainCheck.Do(func() { s.checkChainID(ctx) })

	if !s.profile.HasToken() {
		tx, err := s.signer.SignAndSend(ctx, s.client, chain.TxRequest{
			To:       to,
			Value:    raw,
			GasLimit: chain.NativeTransferGas,
		})
		if err != nil {
			return nil, fmt.Errorf("native transfer: %w", err)
		}
		return &Transfer{TxHash: tx.Hash().Hex(), Amount: raw, Decimals: s.profile.TokenDecimals}, nil
	}

	meta, err := s.TokenMetadata(ctx)
	if err != nil {
		return nil, err
	}

	amount := raw
	if meta.Decimals != s.profile.TokenDecimals {
		amount, err = s.profile.RawAmount(meta.Decimals)
		if err != nil {
			return nil, fmt.Errorf("failed to rescale claim amount: %w", err)
		}
		if amount.Sign() <= 0 {
			return nil, fmt.Errorf("claim amount %s rounds to zero at %d on-chain decimals",
				s.profile.ClaimAmount, meta.Decimals)
		}
		s.log.Warnw("token decimals differ from configuration, rescaled claim amount",
			"configured", s.profile.TokenDecimals,
			"onchain", meta.Decimals,
			"amount", amount.String(),
		)
	}

	data, err := chain.PackTransfer(to, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transfer: %w", err)
	}
	tx, err := s.signer.SignAndSend(ctx, s.client, chain.TxRequest{
		To:   s.profile.Token(),
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("token transfer: %w", err)
	}
	return &Transfer{TxHash: tx.Hash().Hex(), Amount: amount, Decimals: meta.Decimals}, nil
}

// TokenMetadata verifies the token contract and returns its decimals and
// symbol. The first successful on-chain read is cached for the lifetime of
// the sender. A failed read falls back to the configured decimals and is
// retried on the next call.
func (s *Sender) TokenMetadata(ctx context.Context) (TokenMetadata, error) {
	if !s.profile.HasToken() {
		return TokenMetadata{}, errors.New("no token configured")
	}

	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	if s.meta != nil {
		return *s.meta, nil
	}

	token := s.profile.Token()
	ok, err := chain.HasCode(ctx, s.client, token)
	if err != nil {
		return TokenMetadata{}, fmt.Errorf("failed to check token contract: %w", err)
	}
	if !ok {
		return TokenMetadata{}, fmt.Errorf("%w at %s", ErrTokenContractNotFound, token.Hex())
	}

	decimals, err := chain.Decimals(ctx, s.client, token)
	if err != nil {
		s.log.Warnw("failed to read token decimals, using configured value",
			"token", token.Hex(),
			"decimals", s.profile.TokenDecimals,
			"error", err,
		)
		return TokenMetadata{Decimals: s.profile.TokenDecimals}, nil
	}

	symbol, err := chain.Symbol(ctx, s.client, token)
	if err != nil {
		s.log.Debugw("failed to read token symbol", "token", token.Hex(), "error", err)
	}

	if decimals > units.MaxDecimals {
		// Cached as well: the contract will not report anything else later.
		s.log.Warnw("token reports unsupported decimals, using configured value",
			"token", token.Hex(),
			"onchain", decimals,
			"decimals", s.profile.TokenDecimals,
		)
		s.meta = &TokenMetadata{Decimals: s.profile.TokenDecimals, Symbol: symbol}
		return *s.meta, nil
	}

	s.meta = &TokenMetadata{Decimals: decimals, Symbol: symbol, OnChain: true}
	s.log.Infow("token metadata cached", "token", token.Hex(), "decimals", decimals, "symbol", symbol)
	return *s.meta, nil
}

func (s *Sender) checkChainID(ctx context.Context) {
	id, err := s.client.ChainID(ctx)
	if err != nil {
		s.log.Warnw("failed to read node chain id", "error", err)
		return
	}
	if id.Uint64() != s.profile.ChainID {
		s.log.Warnw("node chain id differs from configuration",
			"node", id.String(),
			"configured", s.profile.ChainID,
		)
	}
}
