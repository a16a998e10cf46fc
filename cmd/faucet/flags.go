package main

import (
	"time"

	"github.com/urfave/cli/v2"
)

const (
	ledgerClickHouse = "clickhouse"
	ledgerPostgres   = "postgres"
	ledgerMemory     = "memory"
)

func verboseFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Enable verbose logging",
	}
}

// storeFlags select and configure the ledger backend
func storeFlags() []cli.Flag {
	return []cli.Flag{
		verboseFlag(),
		&cli.StringFlag{
			Name:    "ledger",
			Usage:   "Ledger backend (clickhouse, postgres, memory)",
			EnvVars: []string{"LEDGER_BACKEND"},
			Value:   ledgerClickHouse,
		},
		&cli.BoolFlag{
			Name:    "advisory-lock",
			Usage:   "Serialize claims across replicas with Postgres advisory locks (postgres ledger only)",
			EnvVars: []string{"LEDGER_ADVISORY_LOCK"},
		},
		&cli.DurationFlag{
			Name:    "advisory-lock-timeout",
			Usage:   "Maximum wait for a claim's advisory lock",
			EnvVars: []string{"LEDGER_ADVISORY_LOCK_TIMEOUT"},
			Value:   30 * time.Second,
		},
		// ClickHouse configuration flags
		&cli.StringSliceFlag{
			Name:    "clickhouse-hosts",
			Usage:   "ClickHouse server hosts (comma-separated)",
			EnvVars: []string{"CLICKHOUSE_HOSTS"},
			Value:   cli.NewStringSlice("localhost:9000"),
		},
		&cli.StringFlag{
			Name:    "clickhouse-cluster",
			Usage:   "ClickHouse cluster name for ON CLUSTER DDL (empty for single node)",
			EnvVars: []string{"CLICKHOUSE_CLUSTER"},
		},
		&cli.StringFlag{
			Name:    "clickhouse-database",
			Usage:   "ClickHouse database name",
			EnvVars: []string{"CLICKHOUSE_DATABASE"},
			Value:   "default",
		},
		&cli.StringFlag{
			Name:    "clickhouse-username",
			Usage:   "ClickHouse username",
			EnvVars: []string{"CLICKHOUSE_USERNAME"},
			Value:   "default",
		},
		&cli.StringFlag{
			Name:    "clickhouse-password",
			Usage:   "ClickHouse password",
			EnvVars: []string{"CLICKHOUSE_PASSWORD"},
		},
		&cli.BoolFlag{
			Name:    "clickhouse-debug",
			Usage:   "Enable ClickHouse debug logging",
			EnvVars: []string{"CLICKHOUSE_DEBUG"},
		},
		&cli.BoolFlag{
			Name:    "clickhouse-insecure-skip-verify",
			Usage:   "Skip TLS certificate verification for ClickHouse",
			EnvVars: []string{"CLICKHOUSE_INSECURE_SKIP_VERIFY"},
			Value:   true,
		},
		&cli.IntFlag{
			Name:    "clickhouse-max-execution-time",
			Usage:   "ClickHouse max execution time in seconds",
			EnvVars: []string{"CLICKHOUSE_MAX_EXECUTION_TIME"},
			Value:   30,
		},
		&cli.IntFlag{
			Name:    "clickhouse-dial-timeout",
			Usage:   "ClickHouse dial timeout in seconds",
			EnvVars: []string{"CLICKHOUSE_DIAL_TIMEOUT"},
			Value:   10,
		},
		&cli.IntFlag{
			Name:    "clickhouse-max-open-conns",
			Usage:   "ClickHouse maximum open connections",
			EnvVars: []string{"CLICKHOUSE_MAX_OPEN_CONNS"},
			Value:   10,
		},
		&cli.IntFlag{
			Name:    "clickhouse-max-idle-conns",
			Usage:   "ClickHouse maximum idle connections",
			EnvVars: []string{"CLICKHOUSE_MAX_IDLE_CONNS"},
			Value:   5,
		},
		&cli.IntFlag{
			Name:    "clickhouse-conn-max-lifetime",
			Usage:   "ClickHouse connection max lifetime in minutes",
			EnvVars: []string{"CLICKHOUSE_CONN_MAX_LIFETIME"},
			Value:   10,
		},
		&cli.IntFlag{
			Name:    "clickhouse-block-buffer-size",
			Usage:   "ClickHouse block buffer size",
			EnvVars: []string{"CLICKHOUSE_BLOCK_BUFFER_SIZE"},
			Value:   10,
		},
		&cli.IntFlag{
			Name:    "clickhouse-max-block-size",
			Usage:   "ClickHouse max block size (recommended maximum number of rows in a single block)",
			EnvVars: []string{"CLICKHOUSE_MAX_BLOCK_SIZE"},
			Value:   1000,
		},
		&cli.IntFlag{
			Name:    "clickhouse-max-compression-buffer",
			Usage:   "ClickHouse max compression buffer in bytes",
			EnvVars: []string{"CLICKHOUSE_MAX_COMPRESSION_BUFFER"},
			Value:   10240,
		},
		&cli.StringFlag{
			Name:    "clickhouse-client-name",
			Usage:   "ClickHouse client name for ClientInfo",
			EnvVars: []string{"CLICKHOUSE_CLIENT_NAME"},
			Value:   "socchain-faucet",
		},
		&cli.StringFlag{
			Name:    "clickhouse-client-version",
			Usage:   "ClickHouse client version for ClientInfo",
			EnvVars: []string{"CLICKHOUSE_CLIENT_VERSION"},
			Value:   "1.0",
		},
		&cli.StringFlag{
			Name:    "claims-table-name",
			Usage:   "Table name for claim rows",
			EnvVars: []string{"CLAIMS_TABLE_NAME"},
			Value:   "claims",
		},
		&cli.StringFlag{
			Name:    "bridge-attempts-table-name",
			Usage:   "Table name for bridge deposit attempts",
			EnvVars: []string{"BRIDGE_ATTEMPTS_TABLE_NAME"},
			Value:   "bridge_attempts",
		},
		// Postgres configuration flags
		&cli.StringFlag{
			Name:    "postgres-dsn",
			Usage:   "Postgres connection string",
			EnvVars: []string{"POSTGRES_DSN"},
		},
		&cli.IntFlag{
			Name:    "postgres-max-conns",
			Usage:   "Postgres pool size",
			EnvVars: []string{"POSTGRES_MAX_CONNS"},
			Value:   10,
		},
	}
}

// runFlags returns all CLI flags for the run command
func runFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "chains",
			Aliases: []string{"c"},
			Usage:   "Chain profiles to serve; each reads <NAME>_* environment variables",
			EnvVars: []string{"CHAINS"},
			Value:   cli.NewStringSlice("bsc", "socchain"),
		},
		&cli.StringFlag{
			Name:    "profiles-file",
			Usage:   "Optional YAML file with chain profiles",
			EnvVars: []string{"PROFILES_FILE"},
		},
		&cli.StringFlag{
			Name:    "http-addr",
			Usage:   "Listen address of the HTTP API",
			EnvVars: []string{"HTTP_ADDR"},
			Value:   ":3000",
		},
		&cli.IntFlag{
			Name:    "rate-limit-per-ip",
			Usage:   "POST requests allowed per client IP per window (0 disables)",
			EnvVars: []string{"RATE_LIMIT_IP"},
			Value:   30,
		},
		&cli.DurationFlag{
			Name:    "rate-limit-window",
			Usage:   "Window of the per-IP limit",
			EnvVars: []string{"RATE_LIMIT_WINDOW"},
			Value:   10 * time.Minute,
		},
		&cli.BoolFlag{
			Name:    "trust-proxy",
			Usage:   "Take the client IP from X-Forwarded-For",
			EnvVars: []string{"TRUST_PROXY"},
		},
		&cli.DurationFlag{
			Name:    "balance-refresh-interval",
			Usage:   "How often the faucet wallet balance gauges are refreshed",
			EnvVars: []string{"BALANCE_REFRESH_INTERVAL"},
			Value:   time.Minute,
		},
		&cli.DurationFlag{
			Name:    "rpc-timeout",
			Usage:   "Timeout of a single RPC call",
			EnvVars: []string{"RPC_TIMEOUT"},
			Value:   10 * time.Second,
		},
		// Kafka configuration flags; SASL settings come from KAFKA_SASL_* only
		&cli.StringFlag{
			Name:    "kafka-bootstrap-servers",
			Usage:   "Kafka bootstrap servers for claim and bridge events (empty disables publishing)",
			EnvVars: []string{"KAFKA_BOOTSTRAP_SERVERS"},
		},
		&cli.StringFlag{
			Name:    "kafka-topic",
			Usage:   "Kafka topic for claim and bridge events",
			EnvVars: []string{"KAFKA_TOPIC"},
			Value:   "faucet-events",
		},
		&cli.IntFlag{
			Name:    "kafka-topic-num-partitions",
			Usage:   "Number of partitions for the events topic",
			EnvVars: []string{"KAFKA_TOPIC_PARTITIONS"},
			Value:   3,
		},
		&cli.IntFlag{
			Name:    "kafka-topic-replication-factor",
			Usage:   "Replication factor for the events topic",
			EnvVars: []string{"KAFKA_REPLICATION_FACTOR"},
			Value:   1,
		},
		&cli.BoolFlag{
			Name:    "enable-kafka-logs",
			Usage:   "Enable librdkafka client logs",
			EnvVars: []string{"KAFKA_ENABLE_LOGS"},
		},
		&cli.DurationFlag{
			Name:    "flush-timeout",
			Usage:   "Timeout for flushing Kafka messages on shutdown",
			EnvVars: []string{"KAFKA_FLUSH_TIMEOUT"},
			Value:   15 * time.Second,
		},
		// Metrics configuration flags
		&cli.StringFlag{
			Name:    "metrics-host",
			Usage:   "Host for Prometheus metrics server (empty for all interfaces)",
			EnvVars: []string{"METRICS_HOST"},
			Value:   "",
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Aliases: []string{"m"},
			Usage:   "Port for Prometheus metrics server",
			EnvVars: []string{"METRICS_PORT"},
			Value:   9090,
		},
		&cli.StringFlag{
			Name:    "environment",
			Usage:   "Deployment environment label for metrics (e.g., 'production', 'staging')",
			EnvVars: []string{"ENVIRONMENT"},
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "Cloud region label for metrics (e.g., 'us-east-1')",
			EnvVars: []string{"REGION"},
		},
		&cli.StringFlag{
			Name:    "cloud-provider",
			Usage:   "Cloud provider label for metrics (e.g., 'aws', 'gcp')",
			EnvVars: []string{"CLOUD_PROVIDER"},
		},
		&cli.StringFlag{
			Name:    "instance",
			Usage:   "Instance label for metrics, usually the pod name",
			EnvVars: []string{"INSTANCE", "HOSTNAME"},
		},
	}
	return append(storeFlags(), flags...)
}

func historyFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "address",
			Aliases:  []string{"a"},
			Usage:    "Claimant address",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "chain",
			Usage:    "Chain profile name",
			Required: true,
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum rows to print, newest first",
			Value: 20,
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print rows as JSON lines",
		},
	}
	return append(storeFlags(), flags...)
}
