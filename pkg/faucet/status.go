package faucet

import (
	"context"
	"fmt"

	"github.com/socchain/faucet/pkg/chain"
)

// TokenStatus is the token section of a chain status. Balance is nil when
// the balance read failed.
type TokenStatus struct {
	Address  string  `json:"address"`
	Symbol   string  `json:"symbol,omitempty"`
	Balance  *string `json:"balance"`
	Decimals int32   `json:"decimals"`
}

// Status is the diagnostic snapshot of one chain profile.
type Status struct {
	Chain         string       `json:"chain"`
	ChainID       uint64       `json:"chainId"`
	FaucetAddress string       `json:"faucetAddress"`
	NativeBalance string       `json:"nativeBalance"`
	ClaimAmount   string       `json:"claimAmount"`
	CooldownHours int64        `json:"cooldownHours"`
	Token         *TokenStatus `json:"token,omitempty"`
}

// StatusReader reports health and balances for a sender's chain.
type StatusReader struct {
	sender *Sender
}

func NewStatusReader(s *Sender) *StatusReader {
	return &StatusReader{sender: s}
}

func (r *StatusReader) Chain() string { return r.sender.profile.Name }

// Health returns the chain id reported by the node.
func (r *StatusReader) Health(ctx context.Context) (uint64, error) {
	id, err := r.sender.client.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to read chain id: %w", r.sender.profile.Name, err)
	}
	return id.Uint64(), nil
}

func (r *StatusReader) Status(ctx context.Context) (*Status, error) {
	p := r.sender.profile
	id, err := r.Health(ctx)
	if err != nil {
		return nil, err
	}

	addr := r.sender.Address()
	native, err := r.sender.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read faucet balance: %w", p.Name, err)
	}

	st := &Status{
		Chain:         p.Name,
		ChainID:       id,
		FaucetAddress: addr.Hex(),
		NativeBalance: native.String(),
		ClaimAmount:   p.ClaimAmount,
		CooldownHours: p.CooldownHours,
	}
	if !p.HasToken() {
		return st, nil
	}

	token := &TokenStatus{Address: p.Token().Hex(), Decimals: p.TokenDecimals}
	if meta, err := r.sender.TokenMetadata(ctx); err == nil {
		token.Decimals = meta.Decimals
		token.Symbol = meta.Symbol
	}
	if bal, err := chain.BalanceOf(ctx, r.sender.client, p.Token(), addr); err == nil {
		s := bal.String()
		token.Balance = &s
	}
	st.Token = token
	return st, nil
}
