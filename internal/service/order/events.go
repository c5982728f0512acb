package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Additional-Code/delivery/internal/entity"
	"github.com/Additional-Code/delivery/internal/messaging"
)

// Event types published on the orders topic.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// EventTypeHeader carries the event type so consumers can route without decoding.
const EventTypeHeader = "event-type"

// OrderEvent is emitted after an order row is committed.
type OrderEvent struct {
	Type       string    `json:"type"`
	ID         uuid.UUID `json:"id"`
	CustomerID uuid.UUID `json:"customerId"`
	Dish       string    `json:"dish"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	OccurredAt time.Time `json:"occurredAt"`
}

// publish is best effort: the row is already committed, so failures are only logged.
func (s *Service) publish(ctx context.Context, eventType string, order *entity.Order) {
	if !s.events || s.publisher == nil {
		return
	}
	event := OrderEvent{
		Type:       eventType,
		ID:         order.ID,
		CustomerID: order.CustomerID,
		Dish:       order.Dish,
		Status:     order.Status,
		CreatedAt:  order.CreatedAt,
		OccurredAt: s.now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.String("type", eventType), zap.Error(err))
		return
	}
	header := messaging.Header{Key: EventTypeHeader, Value: eventType}
	if err := s.publisher.Publish(ctx, []byte(order.ID.String()), payload, header); err != nil {
		s.logger.Error("publish order event", zap.String("type", eventType), zap.String("id", order.ID.String()), zap.Error(err))
	}
}
