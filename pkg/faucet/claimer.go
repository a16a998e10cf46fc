package faucet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/socchain/faucet/pkg/chain"
	"github.com/socchain/faucet/pkg/events"
	"github.com/socchain/faucet/pkg/ledger"
	"github.com/socchain/faucet/pkg/metrics"
	"github.com/socchain/faucet/pkg/utils"
)

const (
	publishTimeout = 5 * time.Second
	// DefaultLockTimeout bounds the wait for the cross-process claim lock.
	DefaultLockTimeout = 30 * time.Second
	ledgerTimeout      = 10 * time.Second
)

// ClaimStatus is the non-error outcome of a claim.
type ClaimStatus string

const (
	ClaimSuccess  ClaimStatus = "success"
	ClaimCooldown ClaimStatus = "cooldown"
)

// claim outcome label values
const (
	outcomeSuccess  = "success"
	outcomeCooldown = "cooldown"
	outcomeFailed   = "failed"
)

// ClaimResult is returned for both successful and cooldown claims.
type ClaimResult struct {
	Status       ClaimStatus
	Record       *ledger.ClaimRecord
	RemainingMs  int64
	AmountTokens string
	Decimals     int32
}

// TransferSender is the part of Sender the claimer depends on.
type TransferSender interface {
	Send(ctx context.Context, to common.Address, raw *big.Int) (*Transfer, error)
}

type ClaimerOption func(*Claimer)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ClaimerOption {
	return func(c *Claimer) { c.now = now }
}

// WithLocker serializes claims for the same key across processes.
func WithLocker(l ledger.Locker) ClaimerOption {
	return func(c *Claimer) { c.locker = l }
}

// WithLockTimeout bounds how long a claim waits for the locker.
func WithLockTimeout(d time.Duration) ClaimerOption {
	return func(c *Claimer) { c.lockTimeout = d }
}

func WithPublisher(p events.Publisher) ClaimerOption {
	return func(c *Claimer) { c.publisher = p }
}

func WithMetrics(m *metrics.Metrics) ClaimerOption {
	return func(c *Claimer) { c.metrics = m }
}

// Claimer runs the claim state machine for one chain.
type Claimer struct {
	profile chain.Profile
	raw     *big.Int

	ledger      ledger.Ledger
	gate        *CooldownGate
	dedup       *Deduplicator
	sender      TransferSender
	locker      ledger.Locker
	lockTimeout time.Duration
	publisher   events.Publisher
	metrics     *metrics.Metrics
	now         func() time.Time
	log         *zap.SugaredLogger
}

func NewClaimer(
	profile chain.Profile,
	l ledger.Ledger,
	sender TransferSender,
	log *zap.SugaredLogger,
	opts ...ClaimerOption,
) (*Claimer, error) {
	raw, err := profile.RawClaimAmount()
	if err != nil {
		return nil, fmt.Errorf("%s claim amount: %w", profile.Name, err)
	}
	c := &Claimer{
		profile:     profile,
		raw:         raw,
		ledger:      l,
		gate:        NewCooldownGate(l),
		dedup:       NewDeduplicator(),
		sender:      sender,
		lockTimeout: DefaultLockTimeout,
		publisher:   events.NopPublisher{},
		now:         time.Now,
		log:         log.With("chain", profile.Name),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Claimer) Chain() string { return c.profile.Name }

// Claim validates the address and runs at most one claim per address at a
// time. Concurrent callers for the same address share the result.
func (c *Claimer) Claim(ctx context.Context, rawAddress, ip string) (*ClaimResult, error) {
	address, err := utils.NormalizeAddress(rawAddress)
	if err != nil {
		return nil, err
	}

	res, err, shared := c.dedup.Do(address, func() (*ClaimResult, error) {
		return c.claim(ctx, address, ip)
	})
	if shared {
		c.log.Debugw("joined in-flight claim", "address", address)
	}
	return res, err
}

func (c *Claimer) claim(ctx context.Context, address, ip string) (*ClaimResult, error) {
	start := time.Now()

	if c.locker != nil {
		lockCtx, cancel := context.WithTimeout(ctx, c.lockTimeout)
		unlock, err := c.locker.Lock(lockCtx, c.profile.Name+":"+address)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire claim lock: %w", err)
		}
		defer unlock()
	}

	nowMs := c.now().UnixMilli()
	checkCtx, cancel := context.WithTimeout(ctx, ledgerTimeout)
	elig, err := c.gate.Check(checkCtx, address, c.profile.Name, nowMs)
	cancel()
	if err != nil {
		return nil, err
	}
	if !elig.Eligible {
		c.metrics.RecordClaim(c.profile.Name, outcomeCooldown, time.Since(start).Seconds())
		return &ClaimResult{Status: ClaimCooldown, RemainingMs: elig.RemainingMs}, nil
	}

	nextAllowed := nowMs + c.profile.Cooldown().Milliseconds()
	transfer, sendErr := c.sender.Send(ctx, common.HexToAddress(address), c.raw)
	if sendErr != nil {
		c.metrics.RecordClaim(c.profile.Name, outcomeFailed, time.Since(start).Seconds())
		rec := ledger.NewFailure(address, c.profile.Name, c.raw.String(), nowMs, nextAllowed, sendErr.Error(), ip)
		if err := c.append(ctx, rec); err != nil {
			c.metrics.IncError(metrics.ErrTypeLedgerWrite)
			c.log.Errorw("failed to record failed claim", "address", address, "error", err)
			return nil, errors.Join(
				fmt.Errorf("claim failed: %w", sendErr),
				fmt.Errorf("failed to record failed claim: %w", err),
			)
		}
		c.log.Warnw("claim failed", "address", address, "error", sendErr)
		c.publish(ctx, events.ClaimFailed, rec)
		return nil, fmt.Errorf("claim failed: %w", sendErr)
	}

	rec := ledger.NewSuccess(address, c.profile.Name, transfer.TxHash, transfer.Amount.String(), nowMs, nextAllowed, ip)
	if err := c.append(ctx, rec); err != nil {
		c.metrics.IncError(metrics.ErrTypeLedgerWrite)
		c.log.Errorw("failed to record claim", "address", address, "txHash", transfer.TxHash, "error", err)
		return nil, fmt.Errorf("failed to record claim %s: %w", transfer.TxHash, err)
	}
	c.metrics.RecordClaim(c.profile.Name, outcomeSuccess, time.Since(start).Seconds())
	c.log.Infow("claim sent", "address", address, "txHash", transfer.TxHash, "amount", rec.Amount)
	c.publish(ctx, events.ClaimSucceeded, rec)

	return &ClaimResult{
		Status:       ClaimSuccess,
		Record:       rec,
		AmountTokens: c.profile.ClaimAmount,
		Decimals:     transfer.Decimals,
	}, nil
}

func (c *Claimer) append(ctx context.Context, rec *ledger.ClaimRecord) error {
	ctx, cancel := context.WithTimeout(ctx, ledgerTimeout)
	defer cancel()
	return c.ledger.Append(ctx, rec)
}

func (c *Claimer) publish(ctx context.Context, t events.Type, rec *ledger.ClaimRecord) {
	env, err := events.New(t, rec.Chain+":"+rec.Address, time.UnixMilli(rec.ClaimedAt), events.Claim{
		Chain:         rec.Chain,
		Address:       rec.Address,
		Amount:        rec.Amount,
		TxHash:        rec.TxHash,
		NextAllowedAt: rec.NextAllowedAt,
		Reason:        rec.FailureReason,
	})
	if err != nil {
		c.log.Warnw("failed to build claim event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := c.publisher.Publish(ctx, env); err != nil {
		c.log.Warnw("failed to publish claim event", "type", t, "address", rec.Address, "error", err)
	}
}
