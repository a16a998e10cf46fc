package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const DefaultFlushTimeout = 15 * time.Second

// SASLConfig holds optional SASL credentials. An empty Mechanism disables SASL.
type SASLConfig struct {
	Mechanism        string `env:"KAFKA_SASL_MECHANISM"`                               // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username         string `env:"KAFKA_SASL_USERNAME"`
	Password         string `env:"KAFKA_SASL_PASSWORD"`
	SecurityProtocol string `env:"KAFKA_SECURITY_PROTOCOL" envDefault:"SASL_SSL"` // used only with a mechanism
}

func (s SASLConfig) Enabled() bool {
	return s.Mechanism != ""
}

// ApplyToConfigMap sets the librdkafka security keys when SASL is enabled.
func (s SASLConfig) ApplyToConfigMap(cm *kafka.ConfigMap) error {
	if !s.Enabled() {
		return nil
	}
	if s.Username == "" || s.Password == "" {
		return fmt.Errorf("sasl mechanism %s requires username and password", s.Mechanism)
	}
	for k, v := range map[string]string{
		"security.protocol": s.SecurityProtocol,
		"sasl.mechanisms":   strings.ToUpper(s.Mechanism),
		"sasl.username":     s.Username,
		"sasl.password":     s.Password,
	} {
		if err := cm.SetKey(k, v); err != nil {
			return fmt.Errorf("failed to set %s: %w", k, err)
		}
	}
	return nil
}

// ProducerConfig configures the events producer. Empty BootstrapServers
// disables event publishing.
type ProducerConfig struct {
	BootstrapServers  string        `env:"KAFKA_BOOTSTRAP_SERVERS"`
	Topic             string        `env:"KAFKA_TOPIC"              envDefault:"faucet-events"`
	ClientID          string        `env:"KAFKA_CLIENT_ID"          envDefault:"socchain-faucet"`
	Acks              string        `env:"KAFKA_ACKS"               envDefault:"all"`
	Partitions        int           `env:"KAFKA_TOPIC_PARTITIONS"   envDefault:"3"`
	ReplicationFactor int           `env:"KAFKA_REPLICATION_FACTOR" envDefault:"1"`
	FlushTimeout      time.Duration `env:"KAFKA_FLUSH_TIMEOUT"      envDefault:"15s"`
	EnableLogs        bool          `env:"KAFKA_ENABLE_LOGS"        envDefault:"false"` // librdkafka client logs
	SASL              SASLConfig
}

// LoadProducerConfig reads KAFKA_* environment variables.
func LoadProducerConfig() (ProducerConfig, error) {
	var cfg ProducerConfig
	if err := env.Parse(&cfg); err != nil {
		return ProducerConfig{}, fmt.Errorf("failed to parse kafka config: %w", err)
	}
	return cfg, nil
}

func (c ProducerConfig) Enabled() bool {
	return strings.TrimSpace(c.BootstrapServers) != ""
}

// ConfigMap builds the librdkafka producer configuration.
func (c ProducerConfig) ConfigMap() (*kafka.ConfigMap, error) {
	cm := &kafka.ConfigMap{
		"bootstrap.servers":      c.BootstrapServers,
		"client.id":              c.ClientID,
		"acks":                   c.Acks,
		"enable.idempotence":     c.Acks == "all",
		"go.logs.channel.enable": c.EnableLogs,
	}
	if err := c.SASL.ApplyToConfigMap(cm); err != nil {
		return nil, err
	}
	return cm, nil
}

// AdminConfigMap builds the configuration for topic administration.
func (c ProducerConfig) AdminConfigMap() (*kafka.ConfigMap, error) {
	cm := &kafka.ConfigMap{"bootstrap.servers": c.BootstrapServers}
	if err := c.SASL.ApplyToConfigMap(cm); err != nil {
		return nil, err
	}
	return cm, nil
}

// TopicConfig returns the desired events topic layout.
func (c ProducerConfig) TopicConfig() TopicConfig {
	return TopicConfig{
		Name:              c.Topic,
		NumPartitions:     c.Partitions,
		ReplicationFactor: c.ReplicationFactor,
	}
}
