//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcKafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/socchain/faucet/pkg/faucet"
)

const (
	kafkaImage    = "confluentinc/confluent-local:7.5.0"
	postgresImage = "postgres:16-alpine"
	testTimeout   = 60 * time.Second
)

// startPostgres starts a Postgres container and returns its DSN.
func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()
	ctr, err := tcpostgres.Run(ctx,
		postgresImage,
		tcpostgres.WithDatabase("faucet"),
		tcpostgres.WithUsername("faucet"),
		tcpostgres.WithPassword("faucet"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(testTimeout),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("failed to terminate postgres container: %s", err)
		}
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func startKafka(t *testing.T, ctx context.Context) string {
	t.Helper()
	ctr, err := tcKafka.Run(ctx, kafkaImage, tcKafka.WithClusterID("faucet-e2e"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("failed to terminate kafka container: %s", err)
		}
	})

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	return strings.Join(brokers, ",")
}

// stubSender stands in for the chain: every send succeeds with a fresh hash.
type stubSender struct {
	sent atomic.Int32
}

func (s *stubSender) Send(_ context.Context, _ common.Address, raw *big.Int) (*faucet.Transfer, error) {
	n := s.sent.Add(1)
	return &faucet.Transfer{TxHash: fmt.Sprintf("0x%064x", n), Amount: raw, Decimals: 18}, nil
}
