package order

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/delivery/internal/config"
	"github.com/Additional-Code/delivery/internal/messaging"
	ordersvc "github.com/Additional-Code/delivery/internal/service/order"
)

func encode(t *testing.T, event ordersvc.OrderEvent) []byte {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return raw
}

func TestOrderEventsHandlerRegistersConfiguredTopic(t *testing.T) {
	cfg := config.Config{Messaging: config.Messaging{Kafka: config.Kafka{Topic: "delivery.orders"}}}
	reg := NewOrderEventsHandler(zap.NewNop(), cfg)

	assert.Equal(t, "delivery.orders", reg.Topic)
	assert.NotNil(t, reg.Handler)
}

func TestHandleOrderEvent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := handleOrderEvent(zap.New(core))
	id := uuid.New()

	err := handler(context.Background(), messaging.Message{
		Topic: "delivery.orders",
		Value: encode(t, ordersvc.OrderEvent{
			Type:       ordersvc.EventOrderStatusChanged,
			ID:         id,
			CustomerID: uuid.New(),
			Status:     "ENTREGADO",
			CreatedAt:  time.Now(),
		}),
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("order event processed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, id.String(), entries[0].ContextMap()["id"])
	assert.Equal(t, "ENTREGADO", entries[0].ContextMap()["status"])
}

func TestHandleOrderEventUnknownTypeIsSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := handleOrderEvent(zap.New(core))

	err := handler(context.Background(), messaging.Message{Value: encode(t, ordersvc.OrderEvent{Type: "order.deleted"})})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("skipping unknown order event").Len())
}

func TestHandleOrderEventRejectsGarbage(t *testing.T) {
	handler := handleOrderEvent(zap.NewNop())
	err := handler(context.Background(), messaging.Message{Value: []byte("not json")})
	assert.Error(t, err)
}

func TestHandleOrderEventHeaderMismatchIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := handleOrderEvent(zap.New(core))

	err := handler(context.Background(), messaging.Message{
		Headers: map[string]string{ordersvc.EventTypeHeader: ordersvc.EventOrderCreated},
		Value:   encode(t, ordersvc.OrderEvent{Type: ordersvc.EventOrderStatusChanged, ID: uuid.New()}),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("order event type header mismatch").Len())
	assert.Equal(t, 1, logs.FilterMessage("order event processed").Len())
}
