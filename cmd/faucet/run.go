package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/socchain/faucet/internal/api"
	"github.com/socchain/faucet/pkg/bridge"
	"github.com/socchain/faucet/pkg/chain"
	"github.com/socchain/faucet/pkg/events"
	"github.com/socchain/faucet/pkg/faucet"
	"github.com/socchain/faucet/pkg/kafka"
	"github.com/socchain/faucet/pkg/metrics"
	"github.com/socchain/faucet/pkg/scheduler"
	"github.com/socchain/faucet/pkg/utils"
)

const shutdownTimeout = 5 * time.Second

func run(c *cli.Context) error {
	// Build configuration from CLI flags
	cfg, err := buildConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewSugaredLogger(cfg.Verbose, "instance", cfg.Instance)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	chains := make([]string, 0, len(cfg.Profiles))
	for _, p := range cfg.Profiles {
		chains = append(chains, p.Name)
	}
	sugar.Infow("config",
		"verbose", cfg.Verbose,
		"chains", chains,
		"ledger", cfg.Store.Backend,
		"advisoryLock", cfg.Store.AdvisoryLock,
		"advisoryLockTimeout", cfg.Store.LockTimeout,
		"claimsTableName", cfg.Store.ClaimsTable,
		"bridgeAttemptsTableName", cfg.Store.BridgeAttemptsTable,
		"clickhouseHosts", cfg.Store.ClickHouse.Hosts,
		"clickhouseDatabase", cfg.Store.ClickHouse.Database,
		"bridgeEnabled", cfg.Bridge.Enabled(),
		"bridgeSourceRPCs", len(cfg.Bridge.SourceRPCURLs),
		"bridgeSourceChainID", cfg.Bridge.SourceChainID,
		"bridgeDestChainID", cfg.Bridge.DestChainID,
		"httpAddr", cfg.API.Addr,
		"rateLimitPerIP", cfg.API.RateLimitPerIP,
		"rateLimitWindow", cfg.API.RateLimitWindow,
		"trustProxy", cfg.API.TrustProxy,
		"balanceRefreshInterval", cfg.BalanceRefreshInterval,
		"rpcTimeout", cfg.RPCTimeout,
		"kafkaEnabled", cfg.Kafka.Enabled(),
		"kafkaTopic", cfg.Kafka.Topic,
		"metricsHost", cfg.MetricsHost,
		"metricsPort", cfg.MetricsPort,
		"environment", cfg.Environment,
		"region", cfg.Region,
		"cloudProvider", cfg.CloudProvider,
	)

	// Initialize Prometheus metrics with labels for multi-instance filtering
	registry := prometheus.NewRegistry()
	m, err := metrics.NewWithLabels(registry, metrics.Labels{
		Environment:   cfg.Environment,
		Region:        cfg.Region,
		CloudProvider: cfg.CloudProvider,
		Instance:      cfg.Instance,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStores(ctx, cfg.Store, sugar)
	if err != nil {
		return err
	}
	defer s.Close()

	publisher, producer, err := newPublisher(ctx, cfg.Kafka, m, sugar)
	if err != nil {
		return err
	}
	if producer != nil {
		defer producer.Close(cfg.Kafka.FlushTimeout)
	}

	deps := api.Deps{}
	var sources []scheduler.StatusSource
	for _, p := range cfg.Profiles {
		client, err := chain.Dial(ctx, p.RPCURLs[0], chain.WithMetrics(m, p.Name), chain.WithCallTimeout(cfg.RPCTimeout))
		if err != nil {
			return fmt.Errorf("failed to dial %s rpc: %w", p.Name, err)
		}
		defer client.Close()

		sender, err := faucet.NewSender(p, client, sugar)
		if err != nil {
			return err
		}
		opts := []faucet.ClaimerOption{faucet.WithPublisher(publisher), faucet.WithMetrics(m)}
		if s.Locker != nil {
			opts = append(opts, faucet.WithLocker(s.Locker), faucet.WithLockTimeout(cfg.Store.LockTimeout))
		}
		claimer, err := faucet.NewClaimer(p, s.Ledger, sender, sugar, opts...)
		if err != nil {
			return err
		}
		status := faucet.NewStatusReader(sender)

		deps.Claims = append(deps.Claims, api.ClaimRoute{Path: p.ClaimPath, Claimer: claimer})
		deps.Statuses = append(deps.Statuses, status)
		sources = append(sources, status)
		sugar.Infow("faucet ready", "chain", p.Name, "address", sender.Address().Hex(), "claimPath", p.ClaimPath)
	}

	if cfg.Bridge.Enabled() {
		source, dest, err := dialBridge(ctx, cfg, m, sugar)
		if err != nil {
			return err
		}
		defer source.Close()
		defer dest.Close()

		deps.Balances = bridge.NewAggregator(cfg.Bridge, source, dest, m, sugar)
		deps.Bridge = bridge.NewExecutor(cfg.Bridge, source, sugar,
			bridge.WithJournal(s.Journal),
			bridge.WithEventPublisher(publisher),
			bridge.WithExecutorMetrics(m),
		)
		sugar.Infow("bridge ready", "contract", cfg.Bridge.SourceContract, "sourceToken", cfg.Bridge.SourceToken)
	}

	apiServer, err := api.New(cfg.API, deps, m, sugar)
	if err != nil {
		return fmt.Errorf("failed to create api server: %w", err)
	}
	apiErrCh := apiServer.Start()

	// Start metrics server
	metricsServer := metrics.NewServer(cfg.MetricsAddr(), registry, healthCheck(deps.Statuses))
	metricsErrCh := metricsServer.Start()
	if cfg.MetricsHost == "" {
		sugar.Infof("metrics server listening on http://0.0.0.0:%d/metrics", cfg.MetricsPort)
	} else {
		sugar.Infof("metrics server listening on http://%s/metrics", cfg.MetricsAddr())
	}

	g, gctx := errgroup.WithContext(ctx)

	// Balance gauges; refresh failures are logged and never end the group
	g.Go(func() error {
		return scheduler.Start(gctx, sources, m, cfg.BalanceRefreshInterval, sugar)
	})

	g.Go(func() error {
		return watch(gctx, apiErrCh, "api server")
	})

	g.Go(func() error {
		return watch(gctx, metricsErrCh, "metrics server")
	})

	if producer != nil {
		g.Go(func() error {
			return watch(gctx, producer.Errors(), "kafka producer")
		})
	}

	// Wait for first error or completion from any goroutine
	err = g.Wait()

	sugar.Info("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := apiServer.Shutdown(shutdownCtx); shutdownErr != nil {
		sugar.Warnw("api server shutdown error", "error", shutdownErr)
	}
	if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
		sugar.Warnw("metrics server shutdown error", "error", shutdownErr)
	}

	sugar.Info("shutdown complete")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watch blocks until ctx is done or errCh yields. A closed channel or a
// server that stopped cleanly is not an error.
func watch(ctx context.Context, errCh <-chan error, name string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok || err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s error: %w", name, err)
	}
}

// newPublisher returns a Kafka-backed publisher when brokers are configured
// and a no-op one otherwise. The producer is nil in the latter case.
func newPublisher(
	ctx context.Context,
	cfg kafka.ProducerConfig,
	m *metrics.Metrics,
	sugar *zap.SugaredLogger,
) (events.Publisher, *kafka.Producer, error) {
	if !cfg.Enabled() {
		sugar.Info("kafka bootstrap servers not set; events are not published")
		return events.NopPublisher{}, nil, nil
	}

	adminConfig, err := cfg.AdminConfigMap()
	if err != nil {
		return nil, nil, err
	}
	adminClient, err := confluentKafka.NewAdminClient(adminConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka admin client: %w", err)
	}
	defer adminClient.Close()

	if err := kafka.EnsureTopic(ctx, adminClient, cfg.TopicConfig(), sugar); err != nil {
		return nil, nil, fmt.Errorf("failed to ensure kafka topic exists: %w", err)
	}

	producerConfig, err := cfg.ConfigMap()
	if err != nil {
		return nil, nil, err
	}
	producer, err := kafka.NewProducer(ctx, producerConfig, sugar)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	sugar.Infow("publishing events", "topic", cfg.Topic)
	return events.NewKafkaPublisher(producer, cfg.Topic, m), producer, nil
}

// dialBridge opens the BSC failover set and the SocChain client.
func dialBridge(
	ctx context.Context,
	cfg *Config,
	m *metrics.Metrics,
	sugar *zap.SugaredLogger,
) (*chain.Failover, chain.Client, error) {
	dial := func(ctx context.Context, url string) (chain.Client, error) {
		c, err := chain.Dial(ctx, url, chain.WithMetrics(m, "bsc"), chain.WithCallTimeout(cfg.RPCTimeout))
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	source, err := chain.NewFailover(cfg.Bridge.SourceRPCURLs, dial, chain.WithLogger(sugar))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create bridge source: %w", err)
	}

	dest, err := chain.Dial(ctx, cfg.Bridge.DestRPCURLs[0],
		chain.WithMetrics(m, "socchain"), chain.WithCallTimeout(cfg.RPCTimeout))
	if err != nil {
		source.Close()
		return nil, nil, fmt.Errorf("failed to dial bridge destination rpc: %w", err)
	}
	return source, dest, nil
}

// healthCheck fails when any chain does not answer eth_chainId.
func healthCheck(sources []api.StatusSource) metrics.HealthFunc {
	return func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		for _, s := range sources {
			g.Go(func() error {
				_, err := s.Health(gctx)
				return err
			})
		}
		return g.Wait()
	}
}
