// Package scheduler periodically refreshes the faucet wallet balance gauges.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/socchain/faucet/pkg/faucet"
	"github.com/socchain/faucet/pkg/metrics"
	"github.com/socchain/faucet/pkg/units"
)

const (
	readTimeout    = 10 * time.Second
	maxRetries     = 3
	backoff        = 300 * time.Millisecond
	nativeDecimals = 18
)

// StatusSource is implemented by faucet.StatusReader.
type StatusSource interface {
	Chain() string
	Status(ctx context.Context) (*faucet.Status, error)
}

// Start refreshes every source once immediately and then every interval
// until ctx is done. A source that keeps failing is logged and counted; it
// never stops the loop.
func Start(
	ctx context.Context,
	sources []StatusSource,
	m *metrics.Metrics,
	interval time.Duration,
	log *zap.SugaredLogger,
) error {
	if ctx.Err() != nil {
		return nil
	}
	refreshAll(ctx, sources, m, log)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			refreshAll(ctx, sources, m, log)
		}
	}
}

func refreshAll(ctx context.Context, sources []StatusSource, m *metrics.Metrics, log *zap.SugaredLogger) {
	for _, s := range sources {
		st, err := readWithRetry(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.IncError(metrics.ErrTypeBalanceRefresh)
			log.Warnw("failed to refresh faucet balance", "chain", s.Chain(), "error", err)
			continue
		}
		Apply(m, st)
	}
}

func readWithRetry(ctx context.Context, s StatusSource) (*faucet.Status, error) {
	var (
		st  *faucet.Status
		err error
	)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		ctxR, cancel := context.WithTimeout(ctx, readTimeout)
		st, err = s.Status(ctxR)
		cancel()
		if err == nil {
			return st, nil
		}
		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return nil, err
}

// Apply sets the balance gauges from a status snapshot. A token whose
// balance could not be read leaves its gauge untouched.
func Apply(m *metrics.Metrics, st *faucet.Status) {
	m.SetBalance(st.Chain, metrics.AssetNative, units.Float(st.NativeBalance, nativeDecimals))
	if st.Token != nil && st.Token.Balance != nil {
		m.SetBalance(st.Chain, metrics.AssetToken, units.Float(*st.Token.Balance, st.Token.Decimals))
	}
}
