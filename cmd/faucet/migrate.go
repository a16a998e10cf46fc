package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/socchain/faucet/pkg/utils"
)

// migrate creates the claims and bridge attempts tables and exits.
func migrate(c *cli.Context) error {
	store, err := buildStoreConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewSugaredLogger(c.Bool("verbose"))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	if store.Backend == ledgerMemory {
		sugar.Info("memory ledger has no schema; nothing to migrate")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStores(ctx, store, sugar)
	if err != nil {
		return err
	}
	defer s.Close()

	sugar.Infow("migration complete",
		"backend", store.Backend,
		"claimsTable", store.ClaimsTable,
		"bridgeAttemptsTable", store.BridgeAttemptsTable,
	)
	return nil
}
