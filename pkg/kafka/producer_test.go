package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func init() {
	SetProducerMetricsRegisterer(prometheus.NewRegistry())
}

func TestPublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "snappy")

	require.NoError(t, p.Publish(context.Background(), "alerts", []byte("SPY"), map[string]int{"age": 120}))
	require.NoError(t, p.PublishMessage(context.Background(), "logs", "plain"))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "alerts", w.msgs[0].Topic)
	assert.Equal(t, []byte("SPY"), w.msgs[0].Key)
	var got map[string]int
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, 120, got["age"])
	assert.Equal(t, "plain", string(w.msgs[1].Value))
}

func TestPublishWrapsWriterError(t *testing.T) {
	p := newProducer(&fakeWriter{err: errors.New("leader not available")}, "snappy")
	err := p.Publish(context.Background(), "alerts", nil, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alerts")
}

func TestPublishBatchEmpty(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newProducer(w, "none").PublishBatch(context.Background(), "t", nil))
	assert.Empty(t, w.msgs)
}

func TestNewProducerNeedsBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.ErrorContains(t, err, "brokers are required")
}

func TestProducerConfigValidate(t *testing.T) {
	brokers := WithBrokers([]string{"localhost:9092"})
	tests := []struct {
		name string
		opts []ProducerOption
		err  string
	}{
		{"defaults", []ProducerOption{brokers}, ""},
		{"leader acks", []ProducerOption{brokers, WithDelivery(1, 5)}, ""},
		{"bad acks", []ProducerOption{brokers, WithDelivery(2, 3)}, "required acks 2"},
		{"no attempts", []ProducerOption{brokers, WithDelivery(-1, 0)}, "max attempts 0"},
		{"bad codec", []ProducerOption{brokers, WithCompression("brotli")}, `unknown compression "brotli"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultProducerConfig()
			for _, opt := range tt.opts {
				opt(cfg)
			}
			err := cfg.validate()
			if tt.err == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.err)
		})
	}
}

func TestProducerConfigWriter(t *testing.T) {
	cfg := defaultProducerConfig()
	for _, opt := range []ProducerOption{
		WithBrokers([]string{"a:9092", "b:9092"}),
		WithCompression("none"),
		WithBatching(10, 4096, time.Second),
		WithAsync(true),
	} {
		opt(cfg)
	}
	w := cfg.writer()
	assert.Equal(t, kafka.Compression(0), w.Compression)
	assert.Equal(t, 10, w.BatchSize)
	assert.Equal(t, int64(4096), w.BatchBytes)
	assert.Equal(t, time.Second, w.BatchTimeout)
	assert.True(t, w.Async)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)

	cfg.Compression = ""
	assert.Equal(t, kafka.Snappy, cfg.writer().Compression)
}
