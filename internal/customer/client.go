package customer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/delivery/internal/config"
)

var clientTracer = otel.Tracer("github.com/Additional-Code/delivery/customer")

// ErrNotFound is returned when the customer service does not know the customer.
var ErrNotFound = errors.New("customer not found")

// StatusError reports a response that was neither 2xx nor 404.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected customer service status: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Module provides the customer client to Fx.
var Module = fx.Provide(NewClient)

// Client checks customer existence against the customer service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a Client from configuration.
func NewClient(cfg config.Config, logger *zap.Logger) *Client {
	return New(cfg.Customer.BaseURL, &http.Client{Timeout: cfg.Customer.Timeout}, logger)
}

// New builds a Client for baseURL. A nil httpClient falls back to http.DefaultClient.
func New(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: logger}
}

// Validate issues GET /customers/{id}. It returns nil for any 2xx, ErrNotFound for 404,
// *StatusError for other statuses, and the transport error otherwise. Only the status is inspected.
func (c *Client) Validate(ctx context.Context, id uuid.UUID) error {
	ctx, span := clientTracer.Start(ctx, "CustomerClient.Validate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("customer.id", id.String())),
	)
	defer span.End()

	endpoint := c.baseURL + "/customers/" + url.PathEscape(id.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build request")
		return fmt.Errorf("build customer request: %w", err)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		return fmt.Errorf("call customer service: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.Debug("customer lookup finished", zap.String("customer_id", id.String()), zap.Int("status", resp.StatusCode))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	default:
		err := &StatusError{StatusCode: resp.StatusCode}
		span.SetStatus(codes.Error, err.Error())
		return err
	}
}
