package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/delivery/internal/config"
)

// Message is an order event read from the bus.
type Message struct {
	Topic     string
	Partition int
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Offset    int64
	Time      time.Time
}

// Header returns the value of the named header, or "" when absent.
func (m Message) Header(key string) string {
	return m.Headers[key]
}

// Header is a key/value pair attached to an outbound message.
type Header struct {
	Key   string
	Value string
}

// Handler processes an inbound message. A returned error leaves the offset uncommitted.
type Handler func(context.Context, Message) error

// Client publishes and consumes order events on a single topic.
type Client interface {
	Publish(ctx context.Context, key []byte, value []byte, headers ...Header) error
	Consume(ctx context.Context, handler Handler) error
	Topic() string
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// NewClient builds a messaging client based on configuration.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	if !cfg.Messaging.Enabled || cfg.Messaging.Driver == "noop" {
		logger.Info("order events disabled", zap.String("topic", cfg.Messaging.Kafka.Topic))
		return noopClient{topic: cfg.Messaging.Kafka.Topic}, nil
	}

	switch cfg.Messaging.Driver {
	case "kafka":
		return newKafkaClient(lc, cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

type noopClient struct {
	topic string
}

func (noopClient) Publish(context.Context, []byte, []byte, ...Header) error { return nil }

func (noopClient) Consume(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (n noopClient) Topic() string { return n.topic }

type kafkaClient struct {
	writer    *kafka.Writer
	newReader func() *kafka.Reader
	topic     string
	logger    *zap.Logger
}

func newKafkaClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) *kafkaClient {
	kcfg := cfg.Messaging.Kafka

	// Hash keeps every event of one order on one partition, so consumers see them in order.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(kcfg.Brokers...),
		Topic:        kcfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		Logger:       kafkaLogger{logger: logger},
		ErrorLogger:  kafkaLogger{logger: logger, errors: true},
	}

	readerConfig := kafka.ReaderConfig{
		Brokers:        kcfg.Brokers,
		GroupID:        cfg.Messaging.ConsumerGroup,
		Topic:          kcfg.Topic,
		MinBytes:       kcfg.MinBytes,
		MaxBytes:       kcfg.MaxBytes,
		CommitInterval: kcfg.CommitInterval,
		Dialer: &kafka.Dialer{
			Timeout:  kcfg.ConnectTimeout,
			ClientID: kcfg.ClientID,
		},
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			logger.Info("closing kafka writer", zap.String("topic", kcfg.Topic))
			return writer.Close()
		},
	})

	return &kafkaClient{
		writer:    writer,
		newReader: func() *kafka.Reader { return kafka.NewReader(readerConfig) },
		topic:     kcfg.Topic,
		logger:    logger,
	}
}

func (k *kafkaClient) Topic() string { return k.topic }

func (k *kafkaClient) Publish(ctx context.Context, key []byte, value []byte, headers ...Header) error {
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:     key,
		Value:   value,
		Headers: outboundHeaders(ctx, headers),
	})
}

// Consume joins the consumer group with a reader of its own and handles its
// messages one at a time. Concurrent calls are separate group members, so a
// partition, and with it every event of one order, is only ever handled by a
// single goroutine, in offset order. The reader is closed when Consume returns.
func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	reader := k.newReader()
	defer func() {
		if err := reader.Close(); err != nil {
			k.logger.Warn("close kafka reader", zap.Error(err))
		}
	}()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			k.logger.Error("kafka fetch failed", zap.String("topic", k.topic), zap.Error(err))

			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		inbound := fromKafka(msg)
		handlerCtx := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(inbound.Headers))

		if err := handler(handlerCtx, inbound); err != nil {
			k.logger.Error("order event handler failed",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			k.logger.Warn("kafka commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// outboundHeaders appends the active trace context to the caller's headers.
func outboundHeaders(ctx context.Context, headers []Header) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	out := make([]kafka.Header, 0, len(headers)+len(carrier))
	for _, h := range headers {
		out = append(out, kafka.Header{Key: h.Key, Value: []byte(h.Value)})
	}
	for _, key := range carrier.Keys() {
		out = append(out, kafka.Header{Key: key, Value: []byte(carrier.Get(key))})
	}
	return out
}

func fromKafka(msg kafka.Message) Message {
	out := Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Key:       append([]byte(nil), msg.Key...),
		Value:     append([]byte(nil), msg.Value...),
		Offset:    msg.Offset,
		Time:      msg.Time,
	}
	if len(msg.Headers) > 0 {
		out.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			out.Headers[h.Key] = string(h.Value)
		}
	}
	return out
}

type kafkaLogger struct {
	logger *zap.Logger
	errors bool
}

func (k kafkaLogger) Printf(msg string, args ...interface{}) {
	if k.errors {
		k.logger.Sugar().Warnf(msg, args...)
		return
	}
	k.logger.Sugar().Debugf(msg, args...)
}
