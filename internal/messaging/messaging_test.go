package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/delivery/internal/config"
)

func TestNoopClientWhenDisabled(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := config.Config{Messaging: config.Messaging{
		Enabled: false,
		Driver:  "kafka",
		Kafka:   config.Kafka{Topic: "delivery.orders"},
	}}

	client, err := NewClient(lc, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "delivery.orders", client.Topic())
	assert.NoError(t, client.Publish(context.Background(), []byte("k"), []byte("v")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, client.Consume(ctx, func(context.Context, Message) error { return nil }), context.DeadlineExceeded)
}

func TestKafkaClientConstruction(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := config.Config{Messaging: config.Messaging{
		Enabled:       true,
		Driver:        "kafka",
		ConsumerGroup: "delivery-worker",
		Kafka: config.Kafka{
			Brokers:        []string{"127.0.0.1:9092"},
			Topic:          "delivery.orders",
			ClientID:       "delivery-service",
			MinBytes:       1,
			MaxBytes:       1e6,
			ConnectTimeout: time.Second,
		},
	}}

	client, err := NewClient(lc, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "delivery.orders", client.Topic())
	lc.RequireStart().RequireStop()
}

func TestKafkaConsumeUsesOwnReader(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := config.Config{Messaging: config.Messaging{
		Enabled:       true,
		Driver:        "kafka",
		ConsumerGroup: "delivery-worker",
		Kafka: config.Kafka{
			Brokers:        []string{"127.0.0.1:1"},
			Topic:          "delivery.orders",
			MinBytes:       1,
			MaxBytes:       1e6,
			ConnectTimeout: 50 * time.Millisecond,
		},
	}}
	client := newKafkaClient(lc, cfg, zaptest.NewLogger(t))

	var (
		mu      sync.Mutex
		readers []*kafka.Reader
	)
	build := client.newReader
	client.newReader = func() *kafka.Reader {
		r := build()
		mu.Lock()
		readers = append(readers, r)
		mu.Unlock()
		return r
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := client.Consume(ctx, func(context.Context, Message) error { return nil })
			assert.ErrorIs(t, err, context.Canceled)
		}()
	}
	wg.Wait()

	require.Len(t, readers, 3)
	assert.NotSame(t, readers[0], readers[1])
	assert.NotSame(t, readers[1], readers[2])
	for _, r := range readers {
		assert.Equal(t, "delivery-worker", r.Config().GroupID)
	}
	lc.RequireStart().RequireStop()
}

func TestUnsupportedMessagingDriver(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	_, err := NewClient(lc, config.Config{Messaging: config.Messaging{Enabled: true, Driver: "nats"}}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestOutboundHeadersCarryTraceContext(t *testing.T) {
	previous := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(previous) })

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := outboundHeaders(ctx, []Header{{Key: "event-type", Value: "order.created"}})
	msg := fromKafka(kafka.Message{Topic: "delivery.orders", Key: []byte("k"), Value: []byte("v"), Headers: headers})

	assert.Equal(t, "order.created", msg.Header("event-type"))
	assert.Equal(t, "00-0102030405060708090a0b0c0d0e0f10-0102030405060708-01", msg.Header("traceparent"))

	extracted := trace.SpanContextFromContext(otel.GetTextMapPropagator().Extract(context.Background(), propagation.MapCarrier(msg.Headers)))
	assert.Equal(t, sc.TraceID(), extracted.TraceID())
}

func TestFromKafkaCopiesPayload(t *testing.T) {
	raw := kafka.Message{Topic: "delivery.orders", Partition: 2, Offset: 7, Key: []byte("key"), Value: []byte("value")}
	msg := fromKafka(raw)
	raw.Value[0] = 'X'

	assert.Equal(t, "value", string(msg.Value))
	assert.Equal(t, 2, msg.Partition)
	assert.EqualValues(t, 7, msg.Offset)
	assert.Nil(t, msg.Headers)
	assert.Empty(t, msg.Header("event-type"))
}
