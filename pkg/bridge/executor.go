package bridge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/socchain/faucet/pkg/chain"
	"github.com/socchain/faucet/pkg/events"
	"github.com/socchain/faucet/pkg/ledger"
	"github.com/socchain/faucet/pkg/metrics"
	"github.com/socchain/faucet/pkg/units"
	"github.com/socchain/faucet/pkg/utils"
)

const (
	opExecute      = "execute"
	journalTimeout = 5 * time.Second
)

// Receipt summarizes a confirmed deposit.
type Receipt struct {
	TxHash         string `json:"txHash"`
	BlockNumber    string `json:"blockNumber"`
	GasUsed        string `json:"gasUsed"`
	Amount         string `json:"amount"`
	TargetAddress  string `json:"targetAddress"`
	ApprovalTxHash string `json:"approvalTxHash,omitempty"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type ExecutorOption func(*Executor)

// WithJournal records every attempt. Journal failures are logged only.
func WithJournal(j ledger.Journal) ExecutorOption {
	return func(e *Executor) { e.journal = j }
}

func WithEventPublisher(p events.Publisher) ExecutorOption {
	return func(e *Executor) { e.publisher = p }
}

func WithExecutorMetrics(m *metrics.Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithExecutorClock overrides time.Now for journal timestamps.
func WithExecutorClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) { e.now = now }
}

// Executor runs the approve and deposit sequence for a caller-supplied key.
// Reads fail over across source endpoints; writes and receipt waits use the
// primary endpoint only.
type Executor struct {
	cfg       Config
	source    *chain.Failover
	journal   ledger.Journal
	publisher events.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
	log       *zap.SugaredLogger
}

func NewExecutor(cfg Config, source *chain.Failover, log *zap.SugaredLogger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		cfg:       cfg,
		source:    source,
		journal:   ledger.NopJournal{},
		publisher: events.NopPublisher{},
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IdempotencyKey identifies a deposit by signer, target, raw amount and the
// nonce the deposit transaction uses.
func IdempotencyKey(signer common.Address, target string, raw *big.Int, nonce uint64) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		strings.ToLower(signer.Hex()),
		strings.ToLower(target),
		raw.String(),
		strconv.FormatUint(nonce, 10),
	}, "|")))
	return hex.EncodeToString(sum[:])
}

// Execute validates req and deposits its amount into the bridge contract,
// approving the exact amount first when the allowance is short. Failures are
// *ValidationError or *StageError.
func (e *Executor) Execute(ctx context.Context, req Request) (*Receipt, error) {
	amount, err := req.Validate()
	if err != nil {
		return nil, err
	}
	signer, err := chain.NewSigner(req.PrivateKey, e.cfg.SourceChainID)
	if err != nil {
		return nil, &ValidationError{Field: "privateKey", Message: "not a valid secp256k1 key"}
	}
	raw, err := units.ToRaw(amount, TokenDecimals)
	if err != nil {
		return nil, &ValidationError{Field: "amount", Message: err.Error()}
	}
	target := strings.ToLower(req.TargetAddress)

	start := time.Now()
	attempt := &ledger.BridgeAttempt{
		Signer: strings.ToLower(signer.Address().Hex()),
		Target: target,
		Amount: raw.String(),
	}

	receipt, err := e.execute(ctx, signer, raw, target, attempt)
	e.metrics.RecordBridgeOperation(opExecute, err, time.Since(start).Seconds())
	e.finish(ctx, attempt, err)
	if err != nil {
		e.log.Warnw("bridge deposit failed",
			"signer", attempt.Signer,
			"target", target,
			"amount", amount.String(),
			"error", err,
		)
		return nil, err
	}

	receipt.Amount = amount.String()
	e.log.Infow("bridge deposit confirmed",
		"signer", attempt.Signer,
		"target", target,
		"txHash", receipt.TxHash,
		"block", receipt.BlockNumber,
	)
	return receipt, nil
}

func (e *Executor) execute(
	ctx context.Context,
	signer *chain.Signer,
	raw *big.Int,
	target string,
	attempt *ledger.BridgeAttempt,
) (*Receipt, error) {
	owner := signer.Address()
	token := e.cfg.sourceToken()
	bridge := e.cfg.bridgeContract()

	attempt.Stage = string(StageContractCheck)
	primary, err := e.source.Primary(ctx)
	if err != nil {
		return nil, stageErr(StageContractCheck, err)
	}
	ok, err := chain.HasCode(ctx, primary, bridge)
	if err != nil {
		return nil, stageErr(StageContractCheck, err)
	}
	if !ok {
		return nil, stageErr(StageContractCheck, fmt.Errorf("%w at %s", ErrBridgeContractNotFound, bridge.Hex()))
	}

	attempt.Stage = string(StageBalanceCheck)
	balance, err := chain.Read(ctx, e.source, func(ctx context.Context, c chain.Client) (*big.Int, error) {
		return chain.BalanceOf(ctx, c, token, owner)
	})
	if err != nil {
		return nil, stageErr(StageBalanceCheck, err)
	}
	if balance.Cmp(raw) < 0 {
		return nil, stageErr(StageBalanceCheck, fmt.Errorf("%w: need %s, have %s",
			ErrInsufficientBalance,
			units.FromRaw(raw, TokenDecimals).String(),
			units.FromRaw(balance, TokenDecimals).String(),
		))
	}

	attempt.Stage = string(StageApproval)
	allowance, err := chain.Read(ctx, e.source, func(ctx context.Context, c chain.Client) (*big.Int, error) {
		return chain.Allowance(ctx, c, token, owner, bridge)
	})
	if err != nil {
		return nil, stageErr(StageApproval, err)
	}

	nonce, err := signer.PendingNonce(ctx, primary)
	if err != nil {
		return nil, stageErr(StageApproval, err)
	}
	needApproval := allowance.Cmp(raw) < 0
	depositNonce := nonce
	if needApproval {
		depositNonce++
	}
	attempt.Nonce = depositNonce
	attempt.IdempotencyKey = IdempotencyKey(owner, target, raw, depositNonce)

	out := &Receipt{TargetAddress: target, IdempotencyKey: attempt.IdempotencyKey}

	if needApproval {
		hash, err := e.approve(ctx, signer, primary, raw, nonce)
		out.ApprovalTxHash = hash
		if err != nil {
			return nil, stageErr(StageApproval, err)
		}
	}

	attempt.Stage = string(StageDeposit)
	data, err := chain.PackDeposit(raw, target)
	if err != nil {
		return nil, stageErr(StageDeposit, err)
	}
	tx, err := signer.SignAndSend(ctx, primary, chain.TxRequest{
		To:       bridge,
		Data:     data,
		GasLimit: e.cfg.DepositGas,
		Nonce:    &depositNonce,
	})
	if err != nil {
		return nil, stageErr(StageDeposit, err)
	}
	attempt.TxHash = tx.Hash().Hex()
	e.log.Infow("bridge deposit submitted", "signer", attempt.Signer, "txHash", attempt.TxHash)

	rcpt, err := chain.WaitForReceipt(ctx, primary, tx.Hash(), e.cfg.DepositTimeout, e.cfg.ReceiptPoll)
	if err != nil {
		if errors.Is(err, chain.ErrReceiptReverted) {
			return nil, stageErr(StageDeposit, fmt.Errorf("%w: tx %s in block %s", err, attempt.TxHash, rcpt.BlockNumber))
		}
		return nil, stageErr(StageDeposit, err)
	}

	out.TxHash = attempt.TxHash
	out.BlockNumber = rcpt.BlockNumber.String()
	out.GasUsed = strconv.FormatUint(rcpt.GasUsed, 10)
	return out, nil
}

func (e *Executor) approve(ctx context.Context, signer *chain.Signer, c chain.Client, raw *big.Int, nonce uint64) (string, error) {
	data, err := chain.PackApprove(e.cfg.bridgeContract(), raw)
	if err != nil {
		return "", err
	}
	tx, err := signer.SignAndSend(ctx, c, chain.TxRequest{
		To:       e.cfg.sourceToken(),
		Data:     data,
		GasLimit: e.cfg.ApprovalGas,
		Nonce:    &nonce,
	})
	if err != nil {
		return "", err
	}
	hash := tx.Hash().Hex()
	e.log.Infow("bridge approval submitted", "signer", signer.Address().Hex(), "txHash", hash)

	if _, err := chain.WaitForReceipt(ctx, c, tx.Hash(), e.cfg.ApprovalTimeout, e.cfg.ReceiptPoll); err != nil {
		return hash, fmt.Errorf("%w: %w", ErrApprovalFailed, err)
	}
	return hash, nil
}

// finish journals the attempt and publishes its outcome. Attempts that
// failed before a nonce was read have no idempotency key and are only logged.
func (e *Executor) finish(ctx context.Context, a *ledger.BridgeAttempt, err error) {
	a.CreatedAt = e.now().UnixMilli()
	a.Status = ledger.StatusSuccess
	evType := events.BridgeSucceeded
	if err != nil {
		a.Status = ledger.StatusFailed
		a.FailureReason = utils.Truncate(err.Error(), ledger.MaxFailureReasonLen)
		evType = events.BridgeFailed
	}
	if a.IdempotencyKey == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, journalTimeout)
	defer cancel()

	if jerr := e.journal.Record(ctx, a); jerr != nil {
		e.metrics.IncError(metrics.ErrTypeJournal)
		e.log.Warnw("failed to journal bridge attempt", "key", a.IdempotencyKey, "error", jerr)
	}

	env, eerr := events.New(evType, a.Signer, time.UnixMilli(a.CreatedAt), events.Bridge{
		IdempotencyKey: a.IdempotencyKey,
		Signer:         a.Signer,
		Target:         a.Target,
		Amount:         a.Amount,
		Stage:          a.Stage,
		TxHash:         a.TxHash,
		Reason:         a.FailureReason,
	})
	if eerr == nil {
		eerr = e.publisher.Publish(ctx, env)
	}
	if eerr != nil {
		e.log.Warnw("failed to publish bridge event", "key", a.IdempotencyKey, "error", eerr)
	}
}
