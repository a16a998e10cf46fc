package claims

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/socchain/faucet/pkg/ledger"
)

var _ ledger.Locker = (*AdvisoryLocker)(nil)

// AdvisoryLocker serializes claims for one key across replicas with a
// session-level pg_advisory_lock held on a dedicated pool connection.
//
// Each held lock occupies one connection until unlock, so the pool must not
// be the one the ledger uses: once every connection holds a lock, ledger
// calls made under those locks would wait forever.
type AdvisoryLocker struct {
	pool *pgxpool.Pool
}

func NewAdvisoryLocker(pool *pgxpool.Pool) *AdvisoryLocker {
	return &AdvisoryLocker{pool: pool}
}

func (l *AdvisoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock connection: %w", err)
	}

	id := lockID(key)
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", id); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to take advisory lock: %w", err)
	}

	return func() {
		// The lock must be released even if the claim context is gone.
		_, err := conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", id)
		if err != nil {
			// Closing the session drops every lock it holds.
			_ = conn.Conn().Close(context.Background())
		}
		conn.Release()
	}, nil
}

func lockID(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64()) //nolint:gosec // wraparound is fine for a lock id
}
