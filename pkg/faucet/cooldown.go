// Package faucet implements the claim pipeline: cooldown gate, in-flight
// deduplication, per-chain transaction sending and the orchestrator that
// records every attempt in the ledger.
package faucet

import (
	"context"
	"fmt"

	"github.com/socchain/faucet/pkg/ledger"
)

// Eligibility is the outcome of a cooldown check.
type Eligibility struct {
	Eligible      bool
	RemainingMs   int64
	NextAllowedAt int64
}

// CooldownGate decides eligibility from the latest SUCCESS row. It only
// reads, so it is safe for concurrent use without locking.
type CooldownGate struct {
	ledger ledger.Ledger
}

func NewCooldownGate(l ledger.Ledger) *CooldownGate {
	return &CooldownGate{ledger: l}
}

// Check reports whether address may claim on chain at nowMs. FAILED rows are
// ignored by construction since only SUCCESS rows are consulted.
func (g *CooldownGate) Check(ctx context.Context, address, chain string, nowMs int64) (Eligibility, error) {
	last, err := g.ledger.LastSuccess(ctx, address, chain)
	if err != nil {
		return Eligibility{}, fmt.Errorf("failed to read last claim: %w", err)
	}
	if last == nil || last.NextAllowedAt <= nowMs {
		return Eligibility{Eligible: true}, nil
	}
	return Eligibility{
		RemainingMs:   last.NextAllowedAt - nowMs,
		NextAllowedAt: last.NextAllowedAt,
	}, nil
}
