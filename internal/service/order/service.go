package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/delivery/internal/cache"
	"github.com/Additional-Code/delivery/internal/config"
	"github.com/Additional-Code/delivery/internal/customer"
	"github.com/Additional-Code/delivery/internal/dto"
	"github.com/Additional-Code/delivery/internal/entity"
	"github.com/Additional-Code/delivery/internal/messaging"
	repo "github.com/Additional-Code/delivery/internal/repository/order"
	"github.com/Additional-Code/delivery/pkg/errorbank"
)

var (
	serviceTracer = otel.Tracer("github.com/Additional-Code/delivery/service/order")
	serviceMeter  = otel.Meter("github.com/Additional-Code/delivery/service/order")
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Order, error)
	List(ctx context.Context) ([]entity.Order, error)
	ListByStatus(ctx context.Context, status string) ([]entity.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*entity.Order, error)
}

// CustomerValidator confirms that a customer exists.
type CustomerValidator interface {
	Validate(ctx context.Context, id uuid.UUID) error
}

// Service encapsulates business logic around orders.
type Service struct {
	store     Store
	customers CustomerValidator
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	events    bool
	now       func() time.Time
	metrics   serviceMetrics
}

type serviceMetrics struct {
	created       metric.Int64Counter
	statusUpdates metric.Int64Counter
	validations   metric.Int64Counter
}

// Dependencies groups the collaborators of Service. Cache, Publisher and Logger are optional.
type Dependencies struct {
	Store     Store
	Customers CustomerValidator
	Cache     cache.Store
	CacheTTL  time.Duration
	Publisher messaging.Client
	Events    bool
	Logger    *zap.Logger
	Now       func() time.Time
}

// Params defines dependencies for constructing Service through Fx.
type Params struct {
	fx.In

	Repository *repo.Repository
	Customers  *customer.Client
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance from the Fx graph.
func NewService(p Params) *Service {
	return New(Dependencies{
		Store:     p.Repository,
		Customers: p.Customers,
		Cache:     p.Cache,
		CacheTTL:  p.Config.Cache.DefaultTTL,
		Publisher: p.Publisher,
		Events:    p.Config.Messaging.Enabled,
		Logger:    p.Logger,
	})
}

// New builds a Service from explicit dependencies.
func New(d Dependencies) *Service {
	s := &Service{
		store:     d.Store,
		customers: d.Customers,
		cache:     d.Cache,
		cacheTTL:  d.CacheTTL,
		logger:    d.Logger,
		publisher: d.Publisher,
		events:    d.Events,
		now:       d.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.metrics = newServiceMetrics(s.logger)
	return s
}

func newServiceMetrics(logger *zap.Logger) serviceMetrics {
	var m serviceMetrics
	var err error
	if m.created, err = serviceMeter.Int64Counter("orders.created",
		metric.WithDescription("Orders persisted")); err != nil {
		logger.Warn("register orders.created counter", zap.Error(err))
	}
	if m.statusUpdates, err = serviceMeter.Int64Counter("orders.status_updates",
		metric.WithDescription("Order status changes persisted")); err != nil {
		logger.Warn("register orders.status_updates counter", zap.Error(err))
	}
	if m.validations, err = serviceMeter.Int64Counter("orders.customer_validations",
		metric.WithDescription("Customer lookups by outcome")); err != nil {
		logger.Warn("register orders.customer_validations counter", zap.Error(err))
	}
	return m
}

func addCount(ctx context.Context, counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// Create validates the customer and persists a new pending order.
// Nothing is written unless the customer service confirms the customer.
func (s *Service) Create(ctx context.Context, req dto.OrderRequest) (*dto.OrderResponse, error) {
	if req.CustomerID == uuid.Nil {
		return nil, errorbank.BadRequest("customerId is required")
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.String("customer.id", req.CustomerID.String())))
	defer span.End()

	if err := s.validateCustomer(ctx, req.CustomerID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "customer validation failed")
		return nil, err
	}

	order := entity.NewOrder(req.CustomerID, req.Dish, s.now())
	span.SetAttributes(attribute.String("order.id", order.ID.String()))

	if err := s.store.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	s.logger.Info("order inserted",
		zap.String("id", order.ID.String()),
		zap.String("customer_id", order.CustomerID.String()),
		zap.String("dish", order.Dish),
		zap.String("status", order.Status),
		zap.Time("created_at", order.CreatedAt),
	)
	addCount(ctx, s.metrics.created)

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.String("id", order.ID.String()), zap.Error(err))
	}
	s.publish(ctx, EventOrderCreated, order)

	resp := dto.FromOrder(order)
	return &resp, nil
}

func (s *Service) validateCustomer(ctx context.Context, id uuid.UUID) error {
	err := s.customers.Validate(ctx, id)
	var statusErr *customer.StatusError
	switch {
	case err == nil:
		addCount(ctx, s.metrics.validations, attribute.String("outcome", "found"))
		return nil
	case errors.Is(err, customer.ErrNotFound):
		addCount(ctx, s.metrics.validations, attribute.String("outcome", "not_found"))
		return errorbank.Unprocessable(
			fmt.Sprintf("customer %s does not exist", id),
			errorbank.WithCause(err),
			errorbank.WithDetail("customer_id", id.String()),
		)
	case errors.As(err, &statusErr):
		addCount(ctx, s.metrics.validations, attribute.String("outcome", "unexpected_status"))
		return errorbank.Upstream(
			fmt.Sprintf("unexpected error validating customer: status %d", statusErr.StatusCode),
			errorbank.WithCause(err),
			errorbank.WithDetail("status", statusErr.StatusCode),
		)
	default:
		addCount(ctx, s.metrics.validations, attribute.String("outcome", "error"))
		return errorbank.Internal("customer service unavailable", errorbank.WithCause(err))
	}
}

// List returns every stored order.
func (s *Service) List(ctx context.Context) ([]dto.OrderResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	orders, err := s.store.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return dto.FromOrders(orders), nil
}

// ListByStatus returns orders whose status matches exactly, case included.
func (s *Service) ListByStatus(ctx context.Context, status string) ([]dto.OrderResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListByStatus", trace.WithAttributes(attribute.String("order.status", status)))
	defer span.End()

	orders, err := s.store.ListByStatus(ctx, status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return dto.FromOrders(orders), nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*dto.OrderResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		resp := dto.FromOrder(order)
		return &resp, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.String("id", id.String()), zap.Error(err))
	}

	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, notFound(id, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.String("id", id.String()), zap.Error(err))
	}

	resp := dto.FromOrder(order)
	return &resp, nil
}

// UpdateStatus replaces the status of an existing order. Any string is accepted.
// A missing order yields a not_found error and nothing is written.
// Concurrent updates of the same order are not serialised; the last write wins.
// The cached snapshot is dropped rather than rewritten. A Get that missed and read
// the row before this update can still refill the old snapshot afterwards; it then
// lives until CACHE_DEFAULT_TTL expires.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*dto.OrderResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", id.String()),
		attribute.String("order.status", status),
	))
	defer span.End()

	order, err := s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, notFound(id, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to update order status", errorbank.WithCause(err))
	}

	s.logger.Info("order status updated", zap.String("id", id.String()), zap.String("status", status))
	addCount(ctx, s.metrics.statusUpdates, attribute.String("status", status))

	s.evictFromCache(ctx, id)
	s.publish(ctx, EventOrderStatusChanged, order)

	resp := dto.FromOrder(order)
	return &resp, nil
}

func notFound(id uuid.UUID, cause error) error {
	return errorbank.NotFound("order not found",
		errorbank.WithCause(cause),
		errorbank.WithDetail("id", id.String()),
	)
}

func (s *Service) cacheKey(id uuid.UUID) string {
	return "orders:" + id.String()
}

func (s *Service) getFromCache(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	var order entity.Order
	if err := cache.GetJSON(ctx, s.cache, s.cacheKey(id), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) evictFromCache(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil {
		s.logger.Warn("orders cache delete failed", zap.String("id", id.String()), zap.Error(err))
	}
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return nil
	}
	return cache.SetJSON(ctx, s.cache, s.cacheKey(order.ID), order, s.cacheTTL)
}
