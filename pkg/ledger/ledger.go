// Package ledger defines the append-only records kept for every faucet claim
// and bridge deposit attempt, and the store interfaces the service writes them
// through.
package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/socchain/faucet/pkg/utils"
)

// Status is the terminal state of a recorded attempt.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// NoTxHash marks attempts that failed before a transaction was broadcast.
const NoTxHash = "0x0"

// MaxFailureReasonLen is the rune limit applied to stored failure reasons.
const MaxFailureReasonLen = 200

// ClaimRecord is one row per claim attempt. Rows are never updated.
type ClaimRecord struct {
	ID            uuid.UUID `json:"id"`
	Address       string    `json:"address"`
	Chain         string    `json:"chain"`
	TxHash        string    `json:"txHash"`
	Amount        string    `json:"amount"`
	ClaimedAt     int64     `json:"claimedAt"`
	NextAllowedAt int64     `json:"nextAllowedAt"`
	Status        Status    `json:"status"`
	FailureReason string    `json:"failureReason,omitempty"`
	IP            string    `json:"ip,omitempty"`
}

// NewSuccess builds a SUCCESS row.
func NewSuccess(address, chain, txHash, amount string, claimedAt, nextAllowedAt int64, ip string) *ClaimRecord {
	return &ClaimRecord{
		ID:            uuid.New(),
		Address:       address,
		Chain:         chain,
		TxHash:        txHash,
		Amount:        amount,
		ClaimedAt:     claimedAt,
		NextAllowedAt: nextAllowedAt,
		Status:        StatusSuccess,
		IP:            ip,
	}
}

// NewFailure builds a FAILED row with the sentinel hash and a truncated reason.
func NewFailure(address, chain, amount string, claimedAt, nextAllowedAt int64, reason, ip string) *ClaimRecord {
	return &ClaimRecord{
		ID:            uuid.New(),
		Address:       address,
		Chain:         chain,
		TxHash:        NoTxHash,
		Amount:        amount,
		ClaimedAt:     claimedAt,
		NextAllowedAt: nextAllowedAt,
		Status:        StatusFailed,
		FailureReason: utils.Truncate(reason, MaxFailureReasonLen),
		IP:            ip,
	}
}

// Ledger is the durable claim history. Implementations must be safe for
// concurrent use.
type Ledger interface {
	// Append stores a new row.
	Append(ctx context.Context, rec *ClaimRecord) error
	// LastSuccess returns the SUCCESS row with the greatest claimed_at for
	// (address, chain), or nil when there is none.
	LastSuccess(ctx context.Context, address, chain string) (*ClaimRecord, error)
	// History returns up to limit rows for (address, chain), newest first.
	History(ctx context.Context, address, chain string, limit int) ([]ClaimRecord, error)
}

// Locker provides mutual exclusion across processes sharing one ledger.
type Locker interface {
	// Lock blocks until the key is held or ctx is done. The returned func
	// releases the lock and is safe to call once.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// BridgeAttempt is one row per bridge deposit attempt.
type BridgeAttempt struct {
	ID             uuid.UUID `json:"id"`
	IdempotencyKey string    `json:"idempotencyKey"`
	Signer         string    `json:"signer"`
	Target         string    `json:"target"`
	Amount         string    `json:"amount"`
	Nonce          uint64    `json:"nonce"`
	Stage          string    `json:"stage"`
	TxHash         string    `json:"txHash"`
	Status         Status    `json:"status"`
	FailureReason  string    `json:"failureReason,omitempty"`
	CreatedAt      int64     `json:"createdAt"`
}

// Journal stores bridge attempts. Recording the same (idempotency key, status)
// pair twice keeps the first row.
type Journal interface {
	Record(ctx context.Context, a *BridgeAttempt) error
}

// NopJournal discards every attempt.
type NopJournal struct{}

func (NopJournal) Record(context.Context, *BridgeAttempt) error { return nil }
