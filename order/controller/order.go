package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alturino/storefront/cart/domain"
	"github.com/Alturino/storefront/internal/auth"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/order/pkg/response"
)

type OrderReader interface {
	GetOrder(c context.Context, id domain.OrderID) (response.Order, error)
}

type OrderController struct {
	orders OrderReader
}

func AttachOrderController(router *mux.Router, orders OrderReader) {
	controller := OrderController{orders: orders}

	router.HandleFunc("/orders/{id}", controller.GetOrder).Methods(http.MethodGet)
}

// GetOrder relays the order confirmation of an authenticated caller. The order service decides
// whether the caller owns the order.
func (ctrl OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "OrderController GetOrder")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "OrderController GetOrder").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "checking authentication").Logger()
	if !auth.PrincipalFromContext(c).Authenticated {
		err := fmt.Errorf("failed getting order with error=%w", inErrors.ErrNotAuthenticated)
		writeError(c, w, span, logger, err)
		return
	}

	logger = logger.With().Str(log.KeyProcess, "parsing order id").Logger()
	rawID := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || id == 0 {
		err = fmt.Errorf(
			"failed parsing orderId=%s with error=%w",
			rawID,
			inErrors.ValidationError{Fields: []string{"id"}},
		)
		writeError(c, w, span, logger, err)
		return
	}
	orderID := domain.OrderID(id)
	span.SetAttributes(attribute.Int64(log.KeyOrderID, int64(orderID)))
	logger = logger.With().Uint64(log.KeyOrderID, id).Logger()

	logger = logger.With().Str(log.KeyProcess, "getting order").Logger()
	logger.Info().Msg("getting order")
	order, err := ctrl.orders.GetOrder(logger.WithContext(c), orderID)
	if err != nil {
		writeError(c, w, span, logger, err)
		return
	}
	logger.Info().Msg("got order")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     inHttp.StatusSuccess,
		"statusCode": http.StatusOK,
		"message":    "found order",
		"data":       map[string]interface{}{"order": order},
	})
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, inErrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, inErrors.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, inErrors.ErrOrderNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeError(
	c context.Context,
	w http.ResponseWriter,
	span trace.Span,
	logger zerolog.Logger,
	err error,
) {
	otel.RecordError(err, span)
	logger.Error().Err(err).Msg(err.Error())

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     inHttp.StatusFailed,
		"statusCode": statusCode(err),
		"message":    err.Error(),
	})
}
