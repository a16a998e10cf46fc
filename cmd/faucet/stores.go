package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/socchain/faucet/pkg/clickhouse"
	chclaims "github.com/socchain/faucet/pkg/data/clickhouse/claims"
	pgclaims "github.com/socchain/faucet/pkg/data/postgres/claims"
	"github.com/socchain/faucet/pkg/ledger"
	"github.com/socchain/faucet/pkg/postgres"
)

// stores bundles the ledger backends opened for one process.
type stores struct {
	Ledger  ledger.Ledger
	Journal ledger.Journal
	// Locker is nil unless a cross-process lock was requested.
	Locker ledger.Locker
	close  func()
}

func (s *stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// openStores opens the configured backend and ensures its tables exist.
func openStores(ctx context.Context, cfg StoreConfig, sugar *zap.SugaredLogger) (*stores, error) {
	switch cfg.Backend {
	case ledgerClickHouse:
		chClient, err := clickhouse.New(cfg.ClickHouse, sugar)
		if err != nil {
			return nil, fmt.Errorf("failed to create ClickHouse client: %w", err)
		}
		sugar.Info("ClickHouse client created successfully")

		onCluster := cfg.ClickHouse.OnCluster()
		repo, err := chclaims.NewRepository(ctx, chClient, onCluster, cfg.ClickHouse.Database, cfg.ClaimsTable)
		if err != nil {
			_ = chClient.Close()
			return nil, fmt.Errorf("failed to create claims repository: %w", err)
		}
		sugar.Infow("claims table ready", "tableName", cfg.ClaimsTable)

		journal, err := chclaims.NewJournal(ctx, chClient, onCluster, cfg.ClickHouse.Database, cfg.BridgeAttemptsTable)
		if err != nil {
			_ = chClient.Close()
			return nil, fmt.Errorf("failed to create bridge attempts journal: %w", err)
		}
		sugar.Infow("bridge attempts table ready", "tableName", cfg.BridgeAttemptsTable)

		return &stores{
			Ledger:  repo,
			Journal: journal,
			close:   func() { _ = chClient.Close() },
		}, nil

	case ledgerPostgres:
		pool, err := postgres.New(ctx, cfg.Postgres, sugar)
		if err != nil {
			return nil, err
		}

		repo, err := pgclaims.NewRepository(ctx, pool, cfg.ClaimsTable)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create claims repository: %w", err)
		}
		sugar.Infow("claims table ready", "tableName", cfg.ClaimsTable)

		journal, err := pgclaims.NewJournal(ctx, pool, cfg.BridgeAttemptsTable)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create bridge attempts journal: %w", err)
		}
		sugar.Infow("bridge attempts table ready", "tableName", cfg.BridgeAttemptsTable)

		s := &stores{Ledger: repo, Journal: journal, close: pool.Close}
		if cfg.AdvisoryLock {
			// Held locks pin a connection each; a separate pool keeps them
			// from starving the ledger queries made under the lock.
			lockPool, err := postgres.New(ctx, cfg.Postgres, sugar)
			if err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to create advisory lock pool: %w", err)
			}
			s.Locker = pgclaims.NewAdvisoryLocker(lockPool)
			s.close = func() {
				lockPool.Close()
				pool.Close()
			}
			sugar.Infow("postgres advisory locks enabled for claims", "lockPoolMaxConns", lockPool.Config().MaxConns)
		}
		return s, nil

	case ledgerMemory:
		sugar.Warn("using in-memory ledger; claim history is lost on restart")
		return &stores{Ledger: ledger.NewMemory(), Journal: ledger.NewMemoryJournal()}, nil
	}
	return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
}
