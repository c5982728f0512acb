package seeder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/delivery/internal/database"
	"github.com/Additional-Code/delivery/internal/entity"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Fixed ids keep reseeding idempotent.
var sampleOrders = []struct {
	id       string
	customer string
	dish     string
	status   string
}{
	{"7c0f8a52-3f55-4a0e-9a53-4b2f5b1a0001", "2d7a1b8e-6c7e-4f0d-8d11-0c9b6f5a1001", "Empanada de queso", entity.StatusPending},
	{"7c0f8a52-3f55-4a0e-9a53-4b2f5b1a0002", "2d7a1b8e-6c7e-4f0d-8d11-0c9b6f5a1001", "Locro", "EN_PREPARACION"},
	{"7c0f8a52-3f55-4a0e-9a53-4b2f5b1a0003", "2d7a1b8e-6c7e-4f0d-8d11-0c9b6f5a1002", "Milanesa napolitana", "ENTREGADO"},
}

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// Orders seeds example orders if they are missing. Customers are not validated.
func (s *Seeder) Orders(ctx context.Context) error {
	now := time.Now().UTC()
	for i, sample := range sampleOrders {
		order := entity.Order{
			ID:         uuid.MustParse(sample.id),
			CustomerID: uuid.MustParse(sample.customer),
			Dish:       sample.dish,
			Status:     sample.status,
			CreatedAt:  now.Add(time.Duration(i) * time.Second),
		}
		_, err := s.db.NewInsert().Model(&order).Ignore().Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded orders", zap.Int("count", len(sampleOrders)))
	}
	return nil
}
