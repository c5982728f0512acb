package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/delivery/internal/entity"
)

func TestOrderResponseJSONFieldNames(t *testing.T) {
	order := entity.NewOrder(uuid.New(), "Milanesa", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))

	raw, err := json.Marshal(FromOrder(order))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, order.ID.String(), fields["id"])
	assert.Equal(t, order.CustomerID.String(), fields["customerId"])
	assert.Equal(t, "Milanesa", fields["dish"])
	assert.Equal(t, entity.StatusPending, fields["status"])
	assert.Equal(t, "2025-01-02T03:04:05Z", fields["createdAt"])
}

func TestFromOrdersEmpty(t *testing.T) {
	out := FromOrders(nil)
	require.NotNil(t, out)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(raw))
}

func TestOrderRequestRejectsMalformedCustomerID(t *testing.T) {
	var req OrderRequest
	err := json.Unmarshal([]byte(`{"customerId":"not-a-uuid","dish":"Locro"}`), &req)
	assert.Error(t, err)
}
