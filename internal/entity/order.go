package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// StatusPending is the status every order starts with.
const StatusPending = "PENDIENTE"

// Order represents a customer's dish order stored in the relational database.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID         uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	CustomerID uuid.UUID `bun:"customer_id,type:uuid,notnull" json:"customer_id"`
	Dish       string    `bun:"dish,notnull" json:"dish"`
	Status     string    `bun:"status,notnull" json:"status"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}

// NewOrder builds a pending order for the customer, stamped with a fresh id and createdAt.
// createdAt is truncated to the microsecond precision every supported store keeps,
// so the value returned on create is the value later reads return.
func NewOrder(customerID uuid.UUID, dish string, now time.Time) *Order {
	return &Order{
		ID:         uuid.New(),
		CustomerID: customerID,
		Dish:       dish,
		Status:     StatusPending,
		CreatedAt:  now.UTC().Truncate(time.Microsecond),
	}
}
