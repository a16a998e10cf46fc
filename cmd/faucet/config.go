package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/socchain/faucet/internal/api"
	"github.com/socchain/faucet/pkg/bridge"
	"github.com/socchain/faucet/pkg/chain"
	"github.com/socchain/faucet/pkg/clickhouse"
	"github.com/socchain/faucet/pkg/kafka"
	"github.com/socchain/faucet/pkg/postgres"
)

const (
	// minBlockBufferSize is the minimum valid value for BlockBufferSize (uint8: 0)
	minBlockBufferSize = 0
	// maxBlockBufferSize is the maximum valid value for BlockBufferSize (uint8: 255)
	maxBlockBufferSize = 255
)

// validateBlockBufferSize validates that the block buffer size is within uint8 range (0-255)
// and returns the validated uint8 value or an error
func validateBlockBufferSize(size int) (uint8, error) {
	if size < minBlockBufferSize || size > maxBlockBufferSize {
		return 0, fmt.Errorf(
			"clickhouse-block-buffer-size must be between %d and %d, got %d",
			minBlockBufferSize, maxBlockBufferSize, size,
		)
	}
	return uint8(size), nil
}

// StoreConfig selects the ledger backend and its connection settings.
type StoreConfig struct {
	Backend             string
	AdvisoryLock        bool
	LockTimeout         time.Duration
	ClickHouse          clickhouse.Config
	Postgres            postgres.Config
	ClaimsTable         string
	BridgeAttemptsTable string
}

// Config holds all configuration for the run command
type Config struct {
	Verbose bool

	Profiles []chain.Profile
	Bridge   bridge.Config
	Store    StoreConfig
	Kafka    kafka.ProducerConfig
	API      api.Config

	BalanceRefreshInterval time.Duration
	RPCTimeout             time.Duration

	// Metrics settings
	MetricsHost   string
	MetricsPort   int
	Environment   string
	Region        string
	CloudProvider string
	Instance      string
}

// MetricsAddr returns the formatted metrics address
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.MetricsHost, c.MetricsPort)
}

// buildConfig builds a Config from CLI context flags
func buildConfig(c *cli.Context) (*Config, error) {
	store, err := buildStoreConfig(c)
	if err != nil {
		return nil, err
	}

	profiles, err := chain.LoadProfiles(splitList(c.StringSlice("chains")), c.String("profiles-file"))
	if err != nil {
		return nil, fmt.Errorf("failed to load chain profiles: %w", err)
	}

	bridgeCfg, err := bridge.LoadConfig()
	if err != nil {
		return nil, err
	}
	if bridgeCfg.Enabled() {
		if err := bridgeCfg.Validate(); err != nil {
			return nil, err
		}
	}

	kafkaCfg, err := buildKafkaConfig(c)
	if err != nil {
		return nil, err
	}

	interval := c.Duration("balance-refresh-interval")
	if interval <= 0 {
		return nil, fmt.Errorf("balance-refresh-interval must be positive, got %s", interval)
	}

	return &Config{
		Verbose:  c.Bool("verbose"),
		Profiles: profiles,
		Bridge:   bridgeCfg,
		Store:    store,
		Kafka:    kafkaCfg,
		API: api.Config{
			Addr:            c.String("http-addr"),
			RateLimitPerIP:  c.Int("rate-limit-per-ip"),
			RateLimitWindow: c.Duration("rate-limit-window"),
			TrustProxy:      c.Bool("trust-proxy"),
		},
		BalanceRefreshInterval: interval,
		RPCTimeout:             c.Duration("rpc-timeout"),
		MetricsHost:            c.String("metrics-host"),
		MetricsPort:            c.Int("metrics-port"),
		Environment:            c.String("environment"),
		Region:                 c.String("region"),
		CloudProvider:          c.String("cloud-provider"),
		Instance:               c.String("instance"),
	}, nil
}

func buildStoreConfig(c *cli.Context) (StoreConfig, error) {
	backend := strings.ToLower(strings.TrimSpace(c.String("ledger")))
	switch backend {
	case ledgerClickHouse, ledgerPostgres, ledgerMemory:
	default:
		return StoreConfig{}, fmt.Errorf("unknown ledger backend %q (want clickhouse, postgres or memory)", backend)
	}
	if c.Bool("advisory-lock") && backend != ledgerPostgres {
		return StoreConfig{}, fmt.Errorf("advisory-lock requires the postgres ledger, got %s", backend)
	}
	if c.Duration("advisory-lock-timeout") <= 0 {
		return StoreConfig{}, fmt.Errorf("advisory-lock-timeout must be positive, got %s", c.Duration("advisory-lock-timeout"))
	}

	cfg := StoreConfig{
		Backend:             backend,
		AdvisoryLock:        c.Bool("advisory-lock"),
		LockTimeout:         c.Duration("advisory-lock-timeout"),
		ClaimsTable:         c.String("claims-table-name"),
		BridgeAttemptsTable: c.String("bridge-attempts-table-name"),
	}
	switch backend {
	case ledgerClickHouse:
		chCfg, err := buildClickHouseConfig(c)
		if err != nil {
			return StoreConfig{}, fmt.Errorf("failed to build ClickHouse config: %w", err)
		}
		cfg.ClickHouse = chCfg
	case ledgerPostgres:
		pgCfg, err := postgres.Load()
		if err != nil {
			return StoreConfig{}, err
		}
		pgCfg.DSN = c.String("postgres-dsn")
		pgCfg.MaxConns = int32(c.Int("postgres-max-conns")) //nolint:gosec // small pool sizes
		if pgCfg.DSN == "" {
			return StoreConfig{}, postgres.ErrMissingDSN
		}
		cfg.Postgres = pgCfg
	}
	return cfg, nil
}

// buildClickHouseConfig builds a ClickhouseConfig from CLI context flags
func buildClickHouseConfig(c *cli.Context) (clickhouse.Config, error) {
	blockBufferSize := c.Int("clickhouse-block-buffer-size")
	validatedSize, err := validateBlockBufferSize(blockBufferSize)
	if err != nil {
		return clickhouse.Config{}, err
	}

	return clickhouse.Config{
		Hosts:                splitList(c.StringSlice("clickhouse-hosts")),
		Cluster:              c.String("clickhouse-cluster"),
		Database:             c.String("clickhouse-database"),
		Username:             c.String("clickhouse-username"),
		Password:             c.String("clickhouse-password"),
		Debug:                c.Bool("clickhouse-debug"),
		InsecureSkipVerify:   c.Bool("clickhouse-insecure-skip-verify"),
		MaxExecutionTime:     c.Int("clickhouse-max-execution-time"),
		DialTimeout:          c.Int("clickhouse-dial-timeout"),
		MaxOpenConns:         c.Int("clickhouse-max-open-conns"),
		MaxIdleConns:         c.Int("clickhouse-max-idle-conns"),
		ConnMaxLifetime:      c.Int("clickhouse-conn-max-lifetime"),
		BlockBufferSize:      validatedSize,
		MaxBlockSize:         c.Int("clickhouse-max-block-size"),
		MaxCompressionBuffer: c.Int("clickhouse-max-compression-buffer"),
		ClientName:           c.String("clickhouse-client-name"),
		ClientVersion:        c.String("clickhouse-client-version"),
		ClaimsTable:          c.String("claims-table-name"),
		BridgeAttemptsTable:  c.String("bridge-attempts-table-name"),
	}, nil
}

// buildKafkaConfig starts from KAFKA_* env (for SASL) and applies the flags.
func buildKafkaConfig(c *cli.Context) (kafka.ProducerConfig, error) {
	cfg, err := kafka.LoadProducerConfig()
	if err != nil {
		return kafka.ProducerConfig{}, err
	}
	cfg.BootstrapServers = c.String("kafka-bootstrap-servers")
	cfg.Topic = c.String("kafka-topic")
	cfg.Partitions = c.Int("kafka-topic-num-partitions")
	cfg.ReplicationFactor = c.Int("kafka-topic-replication-factor")
	cfg.EnableLogs = c.Bool("enable-kafka-logs")
	cfg.FlushTimeout = c.Duration("flush-timeout")
	if cfg.Enabled() {
		if err := cfg.TopicConfig().Validate(); err != nil {
			return kafka.ProducerConfig{}, err
		}
	}
	return cfg, nil
}

// splitList flattens values that arrive as one comma-separated string.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
