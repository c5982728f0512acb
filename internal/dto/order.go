package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/Additional-Code/delivery/internal/entity"
)

// OrderRequest is the payload accepted when creating an order.
type OrderRequest struct {
	CustomerID uuid.UUID `json:"customerId"`
	Dish       string    `json:"dish"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID         uuid.UUID `json:"id"`
	CustomerID uuid.UUID `json:"customerId"`
	Dish       string    `json:"dish"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// FromOrder maps a persisted order onto its response shape.
func FromOrder(order *entity.Order) OrderResponse {
	return OrderResponse{
		ID:         order.ID,
		CustomerID: order.CustomerID,
		Dish:       order.Dish,
		Status:     order.Status,
		CreatedAt:  order.CreatedAt,
	}
}

// FromOrders maps a slice of orders, never returning nil so empty lists encode as [].
func FromOrders(orders []entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, FromOrder(&orders[i]))
	}
	return out
}
