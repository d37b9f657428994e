package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alturino/storefront/cart/domain"
	"github.com/Alturino/storefront/internal/auth"
	"github.com/Alturino/storefront/internal/config"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/order/pkg/request"
	"github.com/Alturino/storefront/order/pkg/response"
)

const gatewayName = "order"

// StatusError is a non 2xx answer of the order service. Apart from the statuses proxies send on
// behalf of an unreachable upstream the request was processed, so the outcome is known.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("order service returned statusCode=%d message=%s", e.StatusCode, e.Message)
}

// Client talks to the order service. Calls go through a circuit breaker that trips on server
// errors and transport failures only.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[any]
	metrics    *metrics.Metrics
}

func NewClient(cfg config.Gateway, m *metrics.Metrics) *Client {
	if m == nil {
		m = metrics.New(nil)
	}
	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.OrderURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:    "order-gateway",
			Timeout: cfg.Breaker.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: func(err error) bool {
				var statusErr StatusError
				if errors.As(err, &statusErr) {
					return statusErr.StatusCode < http.StatusInternalServerError
				}
				return err == nil
			},
		}),
		metrics: m,
	}
}

// CreateOrder posts the submission to /orders. Errors tagged inErrors.ErrOutcomeUnknown mean the
// request may have been processed.
func (cl *Client) CreateOrder(
	c context.Context,
	submission request.Submission,
	idempotencyKey string,
) (domain.OrderID, error) {
	c, span := otel.Tracer.Start(
		c,
		"OrderGateway CreateOrder",
		trace.WithAttributes(attribute.String(log.KeyCheckoutKey, idempotencyKey)),
	)
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderGateway CreateOrder").
		Str(log.KeyCheckoutKey, idempotencyKey).
		Logger()

	orderID, err := execute(cl.breaker, func() (domain.OrderID, error) {
		return cl.post(c, logger, submission, idempotencyKey)
	})
	if err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return 0, err
	}
	span.SetAttributes(attribute.Int64(log.KeyOrderID, int64(orderID)))

	return orderID, nil
}

func (cl *Client) post(
	c context.Context,
	logger zerolog.Logger,
	submission request.Submission,
	idempotencyKey string,
) (domain.OrderID, error) {
	logger = logger.With().Str(log.KeyProcess, "encoding submission").Logger()
	body, err := json.Marshal(submission)
	if err != nil {
		return 0, fmt.Errorf("failed encoding submission with error=%w", err)
	}

	logger = logger.With().Str(log.KeyProcess, "creating request").Logger()
	req, err := http.NewRequestWithContext(
		c,
		http.MethodPost,
		cl.baseURL+"/orders",
		bytes.NewReader(body),
	)
	if err != nil {
		return 0, fmt.Errorf("failed creating request with error=%w", err)
	}
	req.Header.Set(inHttp.HeaderContentType, inHttp.HeaderValueJson)
	req.Header.Set(inHttp.HeaderIdempotencyKey, idempotencyKey)
	if requestID := log.RequestIDFromContext(c); requestID != "" {
		req.Header.Set(inHttp.HeaderRequestID, requestID)
	}
	if principal := auth.PrincipalFromContext(c); principal.Token != "" {
		req.Header.Set(inHttp.HeaderAuthorization, inHttp.BearerPrefix+principal.Token)
	}

	logger = logger.With().Str(log.KeyProcess, "sending request").Logger()
	logger.Trace().Msg("sending request")
	start := time.Now()
	resp, err := cl.httpClient.Do(req)
	if err != nil {
		cl.observe("error", start)
		if isDialError(err) {
			return 0, fmt.Errorf("failed sending request with error=%w", err)
		}
		return 0, fmt.Errorf(
			"%w: failed sending request with error=%w",
			inErrors.ErrOutcomeUnknown,
			err,
		)
	}
	defer resp.Body.Close()
	cl.observe(strconv.Itoa(resp.StatusCode), start)
	logger = logger.With().Int(log.KeyStatusCode, resp.StatusCode).Logger()
	logger.Trace().Msg("received response")

	result := response.CreateOrder{}
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := StatusError{StatusCode: resp.StatusCode, Message: result.Message}
		if ambiguous(resp.StatusCode) {
			return 0, fmt.Errorf(
				"%w: failed creating order with error=%w",
				inErrors.ErrOutcomeUnknown,
				statusErr,
			)
		}
		return 0, statusErr
	}
	if decodeErr != nil {
		return 0, fmt.Errorf(
			"%w: failed decoding response with error=%w",
			inErrors.ErrOutcomeUnknown,
			decodeErr,
		)
	}
	if result.Data.OrderID == 0 {
		return 0, fmt.Errorf(
			"%w: failed reading order id with error=empty order_id",
			inErrors.ErrOutcomeUnknown,
		)
	}
	logger.Trace().Uint64(log.KeyOrderID, uint64(result.Data.OrderID)).Msg("created order")

	return result.Data.OrderID, nil
}

// GetOrder reads a placed order from /orders/{id}. An unknown id is inErrors.ErrOrderNotFound.
func (cl *Client) GetOrder(c context.Context, id domain.OrderID) (response.Order, error) {
	c, span := otel.Tracer.Start(
		c,
		"OrderGateway GetOrder",
		trace.WithAttributes(attribute.Int64(log.KeyOrderID, int64(id))),
	)
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderGateway GetOrder").
		Uint64(log.KeyOrderID, uint64(id)).
		Logger()

	order, err := execute(cl.breaker, func() (response.Order, error) {
		return cl.get(c, logger, id)
	})
	if err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}

	return order, nil
}

func (cl *Client) get(
	c context.Context,
	logger zerolog.Logger,
	id domain.OrderID,
) (response.Order, error) {
	logger = logger.With().Str(log.KeyProcess, "creating request").Logger()
	req, err := http.NewRequestWithContext(
		c,
		http.MethodGet,
		fmt.Sprintf("%s/orders/%d", cl.baseURL, id),
		nil,
	)
	if err != nil {
		return response.Order{}, fmt.Errorf("failed creating request with error=%w", err)
	}
	req.Header.Set(inHttp.HeaderContentType, inHttp.HeaderValueJson)
	if requestID := log.RequestIDFromContext(c); requestID != "" {
		req.Header.Set(inHttp.HeaderRequestID, requestID)
	}
	if principal := auth.PrincipalFromContext(c); principal.Token != "" {
		req.Header.Set(inHttp.HeaderAuthorization, inHttp.BearerPrefix+principal.Token)
	}

	logger = logger.With().Str(log.KeyProcess, "sending request").Logger()
	logger.Trace().Msg("sending request")
	start := time.Now()
	resp, err := cl.httpClient.Do(req)
	if err != nil {
		cl.observe("error", start)
		return response.Order{}, fmt.Errorf("failed sending request with error=%w", err)
	}
	defer resp.Body.Close()
	cl.observe(strconv.Itoa(resp.StatusCode), start)
	logger = logger.With().Int(log.KeyStatusCode, resp.StatusCode).Logger()
	logger.Trace().Msg("received response")

	result := response.GetOrder{}
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == http.StatusNotFound {
		return response.Order{}, fmt.Errorf(
			"failed getting orderId=%d with error=%w: %w",
			id,
			inErrors.ErrOrderNotFound,
			StatusError{StatusCode: resp.StatusCode, Message: result.Message},
		)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return response.Order{}, StatusError{StatusCode: resp.StatusCode, Message: result.Message}
	}
	if decodeErr != nil {
		return response.Order{}, fmt.Errorf("failed decoding response with error=%w", decodeErr)
	}
	logger.Trace().Msg("got order")

	return result.Data.Order, nil
}

// execute runs fn through the shared breaker.
func execute[T any](breaker *gobreaker.CircuitBreaker[any], fn func() (T, error)) (T, error) {
	var zero T
	v, err := breaker.Execute(func() (any, error) {
		result, err := fn()
		return result, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("failed calling order service with error=%w", err)
	}
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// ambiguous reports statuses a proxy returns without knowing whether the upstream acted.
func ambiguous(statusCode int) bool {
	switch statusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (cl *Client) observe(status string, start time.Time) {
	cl.metrics.GatewayLatencyMS.
		WithLabelValues(gatewayName, status).
		Observe(float64(time.Since(start).Milliseconds()))
}

// isDialError reports failures that happened before anything was sent.
func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
