package order

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/delivery/internal/config"
	"github.com/Additional-Code/delivery/internal/messaging"
	ordersvc "github.com/Additional-Code/delivery/internal/service/order"
	"github.com/Additional-Code/delivery/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/delivery/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewOrderEventsHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewOrderEventsHandler sets up a worker handler that logs order lifecycle events.
func NewOrderEventsHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handleOrderEvent(logger),
	}
}

func handleOrderEvent(logger *zap.Logger) messaging.Handler {
	return func(ctx context.Context, msg messaging.Message) error {
		_, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event ordersvc.OrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		if headerType := msg.Headers[ordersvc.EventTypeHeader]; headerType != "" && headerType != event.Type {
			logger.Warn("order event type header mismatch", zap.String("header", headerType), zap.String("payload", event.Type))
		}
		span.SetAttributes(attribute.String("order.event", event.Type), attribute.String("order.id", event.ID.String()))

		switch event.Type {
		case ordersvc.EventOrderCreated, ordersvc.EventOrderStatusChanged:
			logger.Info("order event processed",
				zap.String("type", event.Type),
				zap.String("id", event.ID.String()),
				zap.String("customer_id", event.CustomerID.String()),
				zap.String("status", event.Status),
			)
			return nil
		default:
			// Unknown types are committed so they do not block the partition.
			logger.Warn("skipping unknown order event", zap.String("type", event.Type), zap.Int64("offset", msg.Offset))
			span.SetStatus(codes.Error, fmt.Sprintf("unknown event %q", event.Type))
			return nil
		}
	}
}
