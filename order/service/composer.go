package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/Alturino/storefront/cart/domain"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/validate"
	"github.com/Alturino/storefront/order/pkg/request"
)

const (
	defaultTimeout = 15 * time.Second

	submittedSize = 10_000
	submittedTTL  = time.Hour
)

// OrderGateway creates orders remotely. Errors tagged inErrors.ErrOutcomeUnknown mean the order
// may exist even though no id came back.
type OrderGateway interface {
	CreateOrder(
		c context.Context,
		submission request.Submission,
		idempotencyKey string,
	) (domain.OrderID, error)
}

// Cart is the part of the cart store the composer changes.
type Cart interface {
	Clear(c context.Context)
}

type Composer struct {
	gateway  OrderGateway
	validate *validator.Validate
	timeout  time.Duration
	metrics  *metrics.Metrics

	sfg       singleflight.Group
	mu        sync.Mutex
	inflight  map[uuid.UUID]string
	submitted *expirable.LRU[uuid.UUID, submitted]
}

// submitted remembers the last order created per session so a stale resubmission of the same
// cart state does not place it twice. Entries are bounded in count and age.
type submitted struct {
	key     string
	orderID domain.OrderID
}

func NewComposer(gateway OrderGateway, timeout time.Duration, m *metrics.Metrics) *Composer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Composer{
		gateway:   gateway,
		validate:  validate.New(),
		timeout:   timeout,
		metrics:   m,
		inflight:  map[uuid.UUID]string{},
		submitted: expirable.NewLRU[uuid.UUID, submitted](submittedSize, nil, submittedTTL),
	}
}

// CheckoutKey identifies one checkout attempt of a cart state. The store epoch keeps keys of a
// reopened cart apart from the ones issued before, as revisions restart on every open.
func CheckoutKey(snapshot domain.Snapshot) string {
	return fmt.Sprintf(
		"%s:%s:%d",
		snapshot.SessionID().String(),
		snapshot.Epoch().String(),
		snapshot.Revision(),
	)
}

// SubmitOrder turns the snapshot into an order. The cart is cleared only when the gateway
// returns an order id; every failure leaves it as it was.
func (svc *Composer) SubmitOrder(
	c context.Context,
	cart Cart,
	param request.SubmitOrder,
) (domain.OrderID, error) {
	snapshot := param.Snapshot
	key := CheckoutKey(snapshot)
	c, span := otel.Tracer.Start(
		c,
		"Composer SubmitOrder",
		trace.WithAttributes(
			attribute.String(log.KeyCheckoutKey, key),
			attribute.Int64(log.KeyCartTotal, int64(snapshot.Total())),
		),
	)
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Composer SubmitOrder").
		Str(log.KeyCheckoutKey, key).
		Object(log.KeyShipping, param.Shipping).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "checking cart").Logger()
	logger.Trace().Msg("checking cart")
	if snapshot.IsEmpty() {
		err := fmt.Errorf("failed submitting order with error=%w", inErrors.ErrEmptyCart)
		return 0, svc.fail(span, logger, "empty", err)
	}
	logger.Trace().Msg("checked cart")

	logger = logger.With().Str(log.KeyProcess, "checking authentication").Logger()
	logger.Trace().Msg("checking authentication")
	if !param.Authenticated {
		err := fmt.Errorf("failed submitting order with error=%w", inErrors.ErrNotAuthenticated)
		return 0, svc.fail(span, logger, "unauthenticated", err)
	}
	logger.Trace().Msg("checked authentication")

	logger = logger.With().Str(log.KeyProcess, "validating shipping").Logger()
	logger.Trace().Msg("validating shipping")
	if err := validate.Struct(svc.validate, param.Shipping); err != nil {
		err = fmt.Errorf("failed validating shipping with error=%w", err)
		return 0, svc.fail(span, logger, "invalid", err)
	}
	logger.Trace().Msg("validated shipping")

	logger = logger.With().Str(log.KeyProcess, "creating order").Logger()
	logger.Info().Msg("creating order")
	ch, orderID, err := svc.start(c, cart, param)
	if err != nil {
		return 0, svc.fail(span, logger, "in_progress", err)
	}
	if ch == nil {
		logger.Info().Uint64(log.KeyOrderID, uint64(orderID)).Msg("order already created")
		return orderID, nil
	}

	select {
	case result := <-ch:
		if result.Err != nil {
			otel.RecordError(result.Err, span)
			logger.Error().Bool("shared", result.Shared).Err(result.Err).Msg(result.Err.Error())
			return 0, result.Err
		}
		orderID := result.Val.(domain.OrderID)
		span.SetAttributes(attribute.Int64(log.KeyOrderID, int64(orderID)))
		logger.Info().
			Uint64(log.KeyOrderID, uint64(orderID)).
			Bool("shared", result.Shared).
			Msg("created order")
		return orderID, nil
	case <-c.Done():
		// the flight keeps running and still clears the cart when it succeeds
		err := fmt.Errorf(
			"%w: stopped waiting for order creation with error=%w",
			inErrors.ErrOutcomeUnknown,
			c.Err(),
		)
		otel.RecordError(err, span)
		logger.Warn().Err(err).Msg(err.Error())
		return 0, err
	}
}

// createOrder runs once per checkout key, detached from the caller's cancellation.
func (svc *Composer) createOrder(
	c context.Context,
	cart Cart,
	snapshot domain.Snapshot,
	key string,
) (domain.OrderID, error) {
	c, cancel := context.WithTimeout(context.WithoutCancel(c), svc.timeout)
	defer cancel()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Composer createOrder").
		Str(log.KeyCheckoutKey, key).
		Logger()

	submission := request.NewSubmission(snapshot)
	logger.Trace().Object("submission", submission).Msg("calling order gateway")
	orderID, err := svc.gateway.CreateOrder(c, submission, key)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, inErrors.ErrOutcomeUnknown) {
			svc.metrics.Checkouts.WithLabelValues("unknown").Inc()
			return 0, fmt.Errorf(
				"%w: %w: failed creating order with error=%w",
				inErrors.ErrOrderCreationFailed,
				inErrors.ErrOutcomeUnknown,
				err,
			)
		}
		svc.metrics.Checkouts.WithLabelValues("failed").Inc()
		return 0, fmt.Errorf(
			"%w: failed creating order with error=%w",
			inErrors.ErrOrderCreationFailed,
			err,
		)
	}

	logger.Trace().Uint64(log.KeyOrderID, uint64(orderID)).Msg("clearing cart")
	cart.Clear(c)
	svc.metrics.Checkouts.WithLabelValues("success").Inc()

	return orderID, nil
}

// start joins or launches the flight of the checkout key. A nil channel means the same cart state
// was already ordered and orderID holds that order.
func (svc *Composer) start(
	c context.Context,
	cart Cart,
	param request.SubmitOrder,
) (<-chan singleflight.Result, domain.OrderID, error) {
	sessionID := param.Snapshot.SessionID()
	key := CheckoutKey(param.Snapshot)

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if last, ok := svc.submitted.Get(sessionID); ok && last.key == key {
		return nil, last.orderID, nil
	}
	current, ok := svc.inflight[sessionID]
	if ok && current != key {
		return nil, 0, fmt.Errorf(
			"failed submitting order key=%s while key=%s is in flight with error=%w",
			key,
			current,
			inErrors.ErrCheckoutInProgress,
		)
	}
	svc.inflight[sessionID] = key

	ch := svc.sfg.DoChan(key, func() (interface{}, error) {
		orderID, err := svc.createOrder(c, cart, param.Snapshot, key)
		svc.finish(sessionID, key, orderID, err)
		return orderID, err
	})
	return ch, 0, nil
}

// finish ends the flight under mu so no caller can join it once it is no longer in flight.
func (svc *Composer) finish(sessionID uuid.UUID, key string, orderID domain.OrderID, err error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.inflight[sessionID] == key {
		delete(svc.inflight, sessionID)
	}
	svc.sfg.Forget(key)
	if err == nil {
		svc.submitted.Add(sessionID, submitted{key: key, orderID: orderID})
	}
}

func (svc *Composer) fail(
	span trace.Span,
	logger zerolog.Logger,
	outcome string,
	err error,
) error {
	svc.metrics.Checkouts.WithLabelValues(outcome).Inc()
	otel.RecordError(err, span)
	logger.Error().Err(err).Msg(err.Error())
	return err
}
