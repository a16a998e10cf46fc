package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/socchain/faucet/pkg/ledger"
	"github.com/socchain/faucet/pkg/utils"
)

// history prints the most recent ledger rows for one address on one chain.
func history(c *cli.Context) error {
	store, err := buildStoreConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}
	address, err := utils.NormalizeAddress(c.String("address"))
	if err != nil {
		return err
	}

	sugar, err := utils.NewSugaredLogger(c.Bool("verbose"))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStores(ctx, store, sugar)
	if err != nil {
		return err
	}
	defer s.Close()

	rows, err := s.Ledger.History(ctx, address, c.String("chain"), c.Int("limit"))
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return printJSON(c.App.Writer, rows)
	}
	return printTable(c.App.Writer, rows)
}

func printJSON(w io.Writer, rows []ledger.ClaimRecord) error {
	enc := json.NewEncoder(w)
	for i := range rows {
		if err := enc.Encode(&rows[i]); err != nil {
			return err
		}
	}
	return nil
}

func printTable(w io.Writer, rows []ledger.ClaimRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLAIMED AT\tSTATUS\tAMOUNT\tTX HASH\tNEXT ALLOWED\tREASON")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			formatMillis(r.ClaimedAt),
			r.Status,
			r.Amount,
			r.TxHash,
			formatMillis(r.NextAllowedAt),
			r.FailureReason,
		)
	}
	return tw.Flush()
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
