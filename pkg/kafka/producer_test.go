package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	cKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socchain/faucet/pkg/kafka/testutils"
)

func newTestProducer(t *testing.T, cfg *cKafka.ConfigMap) *Producer {
	t.Helper()
	p, err := NewProducer(t.Context(), cfg, testutils.NewTestLogger(t))
	require.NoError(t, err)
	return p
}

func TestNewProducer_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := NewProducer(t.Context(), &cKafka.ConfigMap{"acks": "bogus"}, testutils.NewTestLogger(t))
	require.Error(t, err)
}

func TestNewProducer_LogsChannelFlagMustBeBool(t *testing.T) {
	t.Parallel()

	cfg := testutils.NewTestConfigMap()
	require.NoError(t, cfg.SetKey("go.logs.channel.enable", "yes"))

	_, err := NewProducer(t.Context(), cfg, testutils.NewTestLogger(t))
	require.Error(t, err)
}

func TestProducer_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	p := newTestProducer(t, testutils.NewTestConfigMap())
	errCh := p.Errors()
	assert.Equal(t, 1, cap(errCh))

	start := time.Now()
	p.Close(2 * time.Second)
	p.Close(2 * time.Second)
	assert.Less(t, time.Since(start), 2*time.Second)

	_, ok := <-errCh
	assert.False(t, ok, "errors channel should be closed")
}

func TestProducer_CloseWithLogsEnabled(t *testing.T) {
	t.Parallel()

	cfg := testutils.NewTestConfigMap()
	require.NoError(t, cfg.SetKey("go.logs.channel.enable", true))

	p := newTestProducer(t, cfg)
	p.Close(time.Second)

	select {
	case <-p.logsDone:
	default:
		t.Fatal("logs goroutine still running after Close")
	}
}

func TestProducer_ProduceCanceledContext(t *testing.T) {
	t.Parallel()

	p := newTestProducer(t, testutils.NewTestConfigMap())
	defer p.Close(time.Second)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := p.Produce(ctx, Msg{Topic: "faucet-events", Value: []byte(`{}`)})
	require.ErrorIs(t, err, context.Canceled)
}

func TestProducer_ProduceOversizedMessageFailsFast(t *testing.T) {
	t.Parallel()

	cfg := testutils.NewTestConfigMap()
	require.NoError(t, cfg.SetKey("message.max.bytes", 1000))
	p := newTestProducer(t, cfg)
	defer p.Close(time.Second)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	err := p.Produce(ctx, Msg{Topic: "faucet-events", Value: make([]byte, 4096)})
	require.ErrorContains(t, err, "failed to produce to faucet-events")
	var kafkaErr cKafka.Error
	require.ErrorAs(t, err, &kafkaErr)
	assert.Equal(t, cKafka.ErrMsgSizeTooLarge, kafkaErr.Code())
}

func TestToHeaders(t *testing.T) {
	t.Parallel()

	assert.Nil(t, toHeaders(nil))

	got := toHeaders(map[string]string{"type": "claim.succeeded"})
	require.Len(t, got, 1)
	assert.Equal(t, "type", got[0].Key)
	assert.Equal(t, []byte("claim.succeeded"), got[0].Value)
}

func TestHandleDeliveryEvent(t *testing.T) {
	t.Parallel()

	log := testutils.NewTestLogger(t)
	topic := "faucet-events"
	msg := &cKafka.Message{TopicPartition: cKafka.TopicPartition{Topic: &topic}}

	t.Run("delivered", func(t *testing.T) {
		ev := &cKafka.Message{TopicPartition: cKafka.TopicPartition{Topic: &topic, Partition: 1, Offset: 42}}
		require.NoError(t, handleDeliveryEvent(log, msg, ev))
	})

	t.Run("delivery error", func(t *testing.T) {
		deliveryErr := errors.New("message timed out")
		ev := &cKafka.Message{TopicPartition: cKafka.TopicPartition{Topic: &topic, Error: deliveryErr}}
		require.ErrorIs(t, handleDeliveryEvent(log, msg, ev), deliveryErr)
	})

	t.Run("unexpected event", func(t *testing.T) {
		err := handleDeliveryEvent(log, msg, cKafka.NewError(cKafka.ErrTransport, "down", false))
		require.ErrorContains(t, err, "unexpected delivery event")
	})
}
