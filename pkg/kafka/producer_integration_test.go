//go:build integration
// +build integration

package kafka

import (
	"context"
	"strings"
	"testing"
	"time"

	cKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcKafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/socchain/faucet/pkg/kafka/testutils"
)

const (
	kafkaImage   = "confluentinc/confluent-local:7.5.0"
	testTimeout  = 30 * time.Second
	flushTimeout = 10 * time.Second
)

func setupKafka(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcKafka.Run(ctx, kafkaImage, tcKafka.WithClusterID("faucet-test"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	return strings.Join(brokers, ",")
}

func TestProducerIntegration_EnsureTopicAndProduce(t *testing.T) {
	brokers := setupKafka(t)
	log := testutils.NewTestLogger(t)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	cfg := ProducerConfig{
		BootstrapServers:  brokers,
		Topic:             "faucet-events",
		ClientID:          "faucet-it",
		Acks:              "all",
		Partitions:        2,
		ReplicationFactor: 1,
		FlushTimeout:      flushTimeout,
	}

	adminConf, err := cfg.AdminConfigMap()
	require.NoError(t, err)
	admin, err := cKafka.NewAdminClient(adminConf)
	require.NoError(t, err)
	defer admin.Close()

	require.NoError(t, EnsureTopic(ctx, admin, cfg.TopicConfig(), log))
	tm, err := lookupTopic(admin, cfg.Topic)
	require.NoError(t, err)
	require.NotNil(t, tm)
	assert.Len(t, tm.Partitions, 2)

	// second call grows the topic
	grown := cfg.TopicConfig()
	grown.NumPartitions = 4
	require.NoError(t, EnsureTopic(ctx, admin, grown, log))
	tm, err = lookupTopic(admin, cfg.Topic)
	require.NoError(t, err)
	assert.Len(t, tm.Partitions, 4)

	prodConf, err := cfg.ConfigMap()
	require.NoError(t, err)
	p, err := NewProducer(ctx, prodConf, log)
	require.NoError(t, err)
	defer p.Close(flushTimeout)

	err = p.Produce(ctx, Msg{
		Topic:   cfg.Topic,
		Key:     []byte("bsc:0x00000000000000000000000000000000000000aa"),
		Value:   []byte(`{"type":"claim.succeeded"}`),
		Headers: map[string]string{"type": "claim.succeeded"},
	})
	require.NoError(t, err)

	consumer, err := cKafka.NewConsumer(&cKafka.ConfigMap{
		"bootstrap.servers": brokers,
		"group.id":          "faucet-it",
		"auto.offset.reset": "earliest",
	})
	require.NoError(t, err)
	defer consumer.Close()
	require.NoError(t, consumer.Subscribe(cfg.Topic, nil))

	msg, err := consumer.ReadMessage(testTimeout)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"claim.succeeded"}`, string(msg.Value))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "type", msg.Headers[0].Key)
}
