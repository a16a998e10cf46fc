package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrReceiptTimeout  = errors.New("timed out waiting for receipt")
	ErrReceiptReverted = errors.New("transaction reverted")
)

const DefaultReceiptPoll = 2 * time.Second

// WaitForReceipt polls until the receipt is available or timeout elapses.
// Lookup errors other than the parent context's are retried. A reverted
// receipt is returned together with ErrReceiptReverted.
func WaitForReceipt(ctx context.Context, c Client, hash common.Hash, timeout, poll time.Duration) (*types.Receipt, error) {
	if poll <= 0 {
		poll = DefaultReceiptPoll
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var lastErr error
	for {
		receipt, err := c.TransactionReceipt(waitCtx, hash)
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			lastErr = err
		}
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, ErrReceiptReverted
			}
			return receipt, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if lastErr != nil {
				return nil, fmt.Errorf("%w (last error: %w)", ErrReceiptTimeout, lastErr)
			}
			return nil, ErrReceiptTimeout
		case <-ticker.C:
		}
	}
}
