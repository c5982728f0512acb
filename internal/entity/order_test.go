package entity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewOrder(t *testing.T) {
	customerID := uuid.New()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("ART", -3*3600))

	order := NewOrder(customerID, "Empanada de queso", now)

	assert.NotEqual(t, uuid.Nil, order.ID)
	assert.Equal(t, customerID, order.CustomerID)
	assert.Equal(t, "Empanada de queso", order.Dish)
	assert.Equal(t, StatusPending, order.Status)
	assert.True(t, order.CreatedAt.Equal(now))
	assert.Equal(t, time.UTC, order.CreatedAt.Location())
}

func TestNewOrderGeneratesDistinctIDs(t *testing.T) {
	a := NewOrder(uuid.New(), "Locro", time.Now())
	b := NewOrder(uuid.New(), "Locro", time.Now())
	assert.NotEqual(t, a.ID, b.ID)
}

func TestNewOrderTruncatesToMicroseconds(t *testing.T) {
	now := time.Date(2025, 6, 1, 20, 30, 0, 123456789, time.UTC)

	order := NewOrder(uuid.New(), "Asado", now)

	assert.Equal(t, 123456000, order.CreatedAt.Nanosecond())
}
