package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alturino/storefront/cart/domain"
	"github.com/Alturino/storefront/cart/pkg/request"
	"github.com/Alturino/storefront/cart/pkg/response"
	"github.com/Alturino/storefront/cart/service"
	"github.com/Alturino/storefront/internal/auth"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/validate"
	orderRequest "github.com/Alturino/storefront/order/pkg/request"
	orderService "github.com/Alturino/storefront/order/service"
	productResponse "github.com/Alturino/storefront/product/pkg/response"
)

type Catalog interface {
	GetProduct(c context.Context, id domain.ProductID) (productResponse.Product, error)
}

type Checkout interface {
	SubmitOrder(
		c context.Context,
		cart orderService.Cart,
		param orderRequest.SubmitOrder,
	) (domain.OrderID, error)
}

type CartController struct {
	registry *service.Registry
	catalog  Catalog
	checkout Checkout
	validate *validator.Validate
}

func AttachCartController(
	router *mux.Router,
	registry *service.Registry,
	catalog Catalog,
	checkout Checkout,
) {
	controller := CartController{
		registry: registry,
		catalog:  catalog,
		checkout: checkout,
		validate: validate.New(),
	}

	carts := router.PathPrefix("/carts").Subrouter()
	carts.HandleFunc("", controller.GetCart).Methods(http.MethodGet)
	carts.HandleFunc("/items", controller.AddItem).Methods(http.MethodPost)
	carts.HandleFunc("/items", controller.UpdateItem).Methods(http.MethodPut)
	carts.HandleFunc("/items", controller.RemoveItem).Methods(http.MethodDelete)
	carts.HandleFunc("/checkout", controller.Checkout).Methods(http.MethodPost)
}

func (ctrl CartController) GetCart(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController GetCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController GetCart").
		Logger()

	store, c, logger, err := ctrl.store(c, r, logger)
	if err != nil {
		writeError(c, w, span, logger, err)
		return
	}

	snapshot := store.Snapshot()
	logger.Info().Object("cart", snapshot).Msg("found cart")
	writeCart(c, w, http.StatusOK, "found cart", snapshot)
}

func (ctrl CartController) AddItem(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController AddItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController AddItem").
		Logger()

	store, c, logger, err := ctrl.store(c, r, logger)
	if err != nil {
		writeError(c, w, span, logger, err)
		return
	}

	param := request.CartItem{}
	if err := ctrl.decode(r, &param); err != nil {
		writeError(c, w, span, logger, err)
		return
	}
	size, color := domain.OptionFromPtr(param.Size), domain.OptionFromPtr(param.Color)
	span.SetAttributes(attribute.Int64(log.KeyProductID, int64(param.ProductID)))
	logger = logger.With().
		Uint64(log.KeyProductID, uint64(param.ProductID)).
		Int(log.KeyQuantity, param.Quantity).
		Stringer(log.KeySize, size).
		Stringer(log.KeyColor, color).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding product").Logger()
	logger.Info().Msg("finding product")
	product, err := ctrl.catalog.GetProduct(logger.WithContext(c), param.ProductID)
	if err != nil {
		writeError(c, w, span, logger, err)
		return
	}
	validSize, validColor := product.Offers(size, color)
	if !validSize || !validColor {
		fields := []string{}
		if !validSize {
			fields = append(fields, "size")
		}
		if !validColor {
			fields = append(fields, "color")
		}
		err = fmt.Errorf(
			"failed choosing variant of productId=%d with error=%w",
			param.ProductID,
			inErrors.ValidationError{Fields: fields},
		)
		writeError(c, w, span, logger, err)
		return
	}
	logger.Info().Msg("found product")

	logger = logger.With().Str(log.KeyProcess, "adding line").Logger()
	err = store.AddLine(logger.WithContext(c), product.Snapshot(), param.Quantity, size, color)
	if err != nil {
		writeError(c, w, span, logger, err)
		return
	}
	logger.Info().Msg("added line")

	writeCart(c, w, http.StatusOK, "added item to cart", store.Snapshot())
}

func (ctrl CartController) UpdateItem(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController UpdateItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController UpdateItem").
		Logger()

	store, c, logger, err := ctrl.store(c, r, logger)
	if err != nil {
		writeError(c, w, span, logger, err)
		return
	}

	param := request.UpdateCartItem{}
	if err := ctrl.decode(r, &param); err != nil {
		writeError(c, w, span, logger, err)
		return
	}
	logger = logger.With().
		Uint64(log.KeyProductID, uint64(param.ProductID)).
		Int(log.KeyQuantity, param.Quantity).
		Logger()

	logger.Info().Msg("setting quantity")
	store.SetQuantity(
		logger.WithContext(c),
		param.ProductID,
		param.Quantity,
		domain.OptionFromPtr(param.Size),
		domain.OptionFromPtr(param.Color),
	)
	logger.Info().Msg("set quantity")

	writeCart(c, w, http.StatusOK, "updated cart item", store.Snapshot())
}

func (ctrl CartController) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController RemoveItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController RemoveItem").
		Logger()

	store, c, logger, err := ctrl.store(c, r, logger)
	if err != nil {
		writeError(c, w, span, logger, err)
		return
	}

	param := request.RemoveCartItem{}
	if err := ctrl.decode(r, &param); err != nil {
		writeError(c, w, span, logger, err)
		return
	}
	logger = logger.With().Uint64(log.KeyProductID, uint64(param.ProductID)).Logger()

	logger.Info().Msg("removing line")
	store.RemoveLine(
		logger.WithContext(c),
		param.ProductID,
		domain.OptionFromPtr(param.Size),
		domain.OptionFromPtr(param.Color),
	)
	logger.Info().Msg("removed line")

	writeCart(c, w, http.StatusOK, "removed cart item", store.Snapshot())
}

func (ctrl CartController) Checkout(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController Checkout")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController Checkout").
		Logger()

	store, c, logger, err := ctrl.store(c, r, logger)
	if err != nil {
		writeError(c, w, span, logger, err)
		return
	}

	logger = logger.With().Str(log.KeyProcess, "decoding request body").Logger()
	param := request.Checkout{}
	if err := json.NewDecoder(r.Body).Decode(&param); err != nil {
		err = fmt.Errorf(
			"failed decoding request body with error=%w: %w",
			inErrors.ValidationError{Fields: []string{"shipping"}},
			err,
		)
		writeError(c, w, span, logger, err)
		return
	}

	logger = logger.With().Str(log.KeyProcess, "submitting order").Logger()
	logger.Info().Msg("submitting order")
	principal := auth.PrincipalFromContext(c)
	orderID, err := ctrl.checkout.SubmitOrder(
		logger.WithContext(c),
		store,
		orderRequest.SubmitOrder{
			Snapshot:      store.Snapshot(),
			Shipping:      param.Shipping,
			Authenticated: principal.Authenticated,
		},
	)
	if err != nil {
		writeError(c, w, span, logger, err)
		return
	}
	logger.Info().Uint64(log.KeyOrderID, uint64(orderID)).Msg("submitted order")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     inHttp.StatusSuccess,
		"statusCode": http.StatusCreated,
		"message":    "created order",
		"data":       response.Checkout{OrderID: orderID},
	})
}

// store resolves the caller's session and returns its cart store.
func (ctrl CartController) store(
	c context.Context,
	r *http.Request,
	logger zerolog.Logger,
) (*service.Store, context.Context, zerolog.Logger, error) {
	logger = logger.With().Str(log.KeyProcess, "resolving session").Logger()
	sessionID, err := SessionID(c, r)
	if err != nil {
		return nil, c, logger, err
	}
	logger = logger.With().Str(log.KeySessionID, sessionID.String()).Logger()
	c = logger.WithContext(c)
	trace.SpanFromContext(c).SetAttributes(attribute.String(log.KeySessionID, sessionID.String()))

	logger = logger.With().Str(log.KeyProcess, "opening cart").Logger()
	store, err := ctrl.registry.Get(c, sessionID)
	if err != nil {
		return nil, c, logger, err
	}
	return store, c, logger, nil
}

func (ctrl CartController) decode(r *http.Request, param interface{}) error {
	err := json.NewDecoder(r.Body).Decode(param)
	if err != nil {
		return fmt.Errorf(
			"failed decoding request body with error=%w: %w",
			inErrors.ValidationError{Fields: []string{"body"}},
			err,
		)
	}
	err = validate.Struct(ctrl.validate, param)
	if err != nil {
		return fmt.Errorf("failed validating request body with error=%w", err)
	}
	return nil
}

// SessionID is the subject of an authenticated caller, otherwise the X-Session-Id header.
func SessionID(c context.Context, r *http.Request) (uuid.UUID, error) {
	if principal := auth.PrincipalFromContext(c); principal.Authenticated {
		return principal.Subject, nil
	}
	header := r.Header.Get(inHttp.HeaderSessionID)
	if header == "" {
		return uuid.Nil, fmt.Errorf("failed resolving session with error=%w", inErrors.ErrEmptySession)
	}
	sessionID, err := uuid.Parse(header)
	if err != nil {
		return uuid.Nil, fmt.Errorf(
			"failed parsing sessionId=%s with error=%w: %w",
			header,
			inErrors.ErrEmptySession,
			err,
		)
	}
	return sessionID, nil
}

func StatusCode(err error) int {
	switch {
	case errors.Is(err, inErrors.ErrOrderCreationFailed):
		return http.StatusBadGateway
	case errors.Is(err, inErrors.ErrCartUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, inErrors.ErrValidation),
		errors.Is(err, inErrors.ErrEmptyCart),
		errors.Is(err, inErrors.ErrEmptySession):
		return http.StatusBadRequest
	case errors.Is(err, inErrors.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, inErrors.ErrProductNotFound), errors.Is(err, inErrors.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, inErrors.ErrCheckoutInProgress):
		return http.StatusConflict
	case errors.Is(err, inErrors.ErrOutcomeUnknown):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
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

	body := map[string]interface{}{
		"status":     inHttp.StatusFailed,
		"statusCode": StatusCode(err),
		"message":    err.Error(),
	}
	var validationErr inErrors.ValidationError
	if errors.As(err, &validationErr) {
		body["data"] = map[string]interface{}{"fields": validationErr.Fields}
	}
	if errors.Is(err, inErrors.ErrOutcomeUnknown) {
		body["data"] = map[string]interface{}{"outcome_unknown": true}
	}
	inHttp.WriteJsonResponse(c, w, map[string]string{}, body)
}

func writeCart(
	c context.Context,
	w http.ResponseWriter,
	statusCode int,
	message string,
	snapshot domain.Snapshot,
) {
	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     inHttp.StatusSuccess,
		"statusCode": statusCode,
		"message":    message,
		"data":       map[string]interface{}{"cart": response.FromSnapshot(snapshot)},
	})
}
