package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/storefront/cart/domain"
	"github.com/Alturino/storefront/cart/service"
	"github.com/Alturino/storefront/internal/constants"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/middleware"
	"github.com/Alturino/storefront/order/pkg/request"
	orderService "github.com/Alturino/storefront/order/service"
	productResponse "github.com/Alturino/storefront/product/pkg/response"
)

const secret = "test-secret"

type memoryStorage struct {
	mu      sync.Mutex
	carts   map[uuid.UUID][]domain.Line
	loadErr error
}

func (m *memoryStorage) Name() string { return "memory" }

func (m *memoryStorage) Load(_ context.Context, sessionID uuid.UUID) ([]domain.Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	lines, ok := m.carts[sessionID]
	if !ok {
		return nil, inErrors.ErrCartNotFound
	}
	return lines, nil
}

func (m *memoryStorage) Save(_ context.Context, sessionID uuid.UUID, lines []domain.Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[sessionID] = lines
	return nil
}

type fakeCatalog map[domain.ProductID]productResponse.Product

func (f fakeCatalog) GetProduct(_ context.Context, id domain.ProductID) (productResponse.Product, error) {
	product, ok := f[id]
	if !ok {
		return productResponse.Product{}, inErrors.ErrProductNotFound
	}
	return product, nil
}

type gatewayFunc func(context.Context, request.Submission, string) (domain.OrderID, error)

func (f gatewayFunc) CreateOrder(
	c context.Context,
	submission request.Submission,
	idempotencyKey string,
) (domain.OrderID, error) {
	return f(c, submission, idempotencyKey)
}

var catalog = fakeCatalog{
	7: {ID: 7, Name: "T-Shirt", Price: 2999, Sizes: []string{"S", "M"}},
	9: {ID: 9, Name: "Mug", Price: 1250},
}

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

type cartData struct {
	Cart struct {
		Lines []struct {
			Product  domain.Product `json:"product"`
			Quantity int            `json:"quantity"`
			Size     *string        `json:"size"`
			Color    *string        `json:"color"`
		} `json:"lines"`
		Total          int64  `json:"total"`
		TotalFormatted string `json:"total_formatted"`
		ItemCount      int    `json:"item_count"`
	} `json:"cart"`
}

func newRouter(t *testing.T, gateway orderService.OrderGateway) *mux.Router {
	t.Helper()
	return newRouterWithStorage(t, &memoryStorage{carts: map[uuid.UUID][]domain.Line{}}, gateway)
}

func newRouterWithStorage(
	t *testing.T,
	storage service.Storage,
	gateway orderService.OrderGateway,
) *mux.Router {
	t.Helper()
	registry := service.NewRegistry(storage, nil)
	t.Cleanup(func() {
		_ = registry.Close(context.Background())
	})
	router := mux.NewRouter()
	router.Use(middleware.Logging, middleware.RecoverPanic, middleware.Identity(secret))
	AttachCartController(router, registry, catalog, orderService.NewComposer(gateway, time.Second, nil))
	return router
}

func signToken(t *testing.T, subject uuid.UUID) string {
	t.Helper()
	now := time.Now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    constants.IssuerUser,
		Subject:   subject.String(),
		Audience:  jwt.ClaimStrings{constants.AudienceUser},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func do(
	t *testing.T,
	router http.Handler,
	method, path string,
	header map[string]string,
	body interface{},
) envelope {
	t.Helper()
	var buffer bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buffer).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buffer)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	result := envelope{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	require.Equal(t, rec.Code, result.StatusCode)
	return result
}

func decodeCart(t *testing.T, result envelope) cartData {
	t.Helper()
	data := cartData{}
	require.NoError(t, json.Unmarshal(result.Data, &data))
	return data
}

func TestCartLifecycleAsGuest(t *testing.T) {
	router := newRouter(t, gatewayFunc(func(context.Context, request.Submission, string) (domain.OrderID, error) {
		return 1, nil
	}))
	guest := map[string]string{inHttp.HeaderSessionID: uuid.NewString()}

	result := do(t, router, http.MethodPost, "/carts/items", guest, map[string]interface{}{
		"product_id": 7, "quantity": 2, "size": "M",
	})
	assert.Equal(t, http.StatusOK, result.StatusCode)
	data := decodeCart(t, result)
	require.Len(t, data.Cart.Lines, 1)
	assert.Equal(t, int64(5998), data.Cart.Total)
	assert.Equal(t, "$59.98", data.Cart.TotalFormatted)
	require.NotNil(t, data.Cart.Lines[0].Size)
	assert.Equal(t, "M", *data.Cart.Lines[0].Size)
	assert.Nil(t, data.Cart.Lines[0].Color)

	do(t, router, http.MethodPost, "/carts/items", guest, map[string]interface{}{
		"product_id": 9, "quantity": 1,
	})
	result = do(t, router, http.MethodPut, "/carts/items", guest, map[string]interface{}{
		"product_id": 7, "quantity": 0, "size": "M",
	})
	data = decodeCart(t, result)
	require.Len(t, data.Cart.Lines, 1)
	assert.Equal(t, domain.ProductID(9), data.Cart.Lines[0].Product.ID)

	result = do(t, router, http.MethodDelete, "/carts/items", guest, map[string]interface{}{
		"product_id": 9,
	})
	assert.Empty(t, decodeCart(t, result).Cart.Lines)

	result = do(t, router, http.MethodGet, "/carts", guest, nil)
	assert.Equal(t, 0, decodeCart(t, result).Cart.ItemCount)
}

func TestAddItemRejections(t *testing.T) {
	router := newRouter(t, nil)
	guest := map[string]string{inHttp.HeaderSessionID: uuid.NewString()}

	tests := []struct {
		name       string
		header     map[string]string
		body       map[string]interface{}
		statusCode int
	}{
		{
			name:       "given no session should return bad request",
			header:     map[string]string{},
			body:       map[string]interface{}{"product_id": 9, "quantity": 1},
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "given quantity above ui bound should return bad request",
			header:     guest,
			body:       map[string]interface{}{"product_id": 9, "quantity": 100},
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "given zero quantity should return bad request",
			header:     guest,
			body:       map[string]interface{}{"product_id": 9, "quantity": 0},
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "given unknown product should return not found",
			header:     guest,
			body:       map[string]interface{}{"product_id": 404, "quantity": 1},
			statusCode: http.StatusNotFound,
		},
		{
			name:       "given size not offered should return bad request",
			header:     guest,
			body:       map[string]interface{}{"product_id": 7, "quantity": 1, "size": "XL"},
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "given invalid token should return unauthorized",
			header:     map[string]string{inHttp.HeaderAuthorization: "Bearer nope"},
			body:       map[string]interface{}{"product_id": 9, "quantity": 1},
			statusCode: http.StatusUnauthorized,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := do(t, router, http.MethodPost, "/carts/items", test.header, test.body)
			assert.Equal(t, test.statusCode, result.StatusCode)
			assert.Equal(t, inHttp.StatusFailed, result.Status)
		})
	}
}

func TestCheckout(t *testing.T) {
	shipping := map[string]interface{}{
		"name":    "Ada Lovelace",
		"email":   "ada@example.com",
		"address": "12 Analytical St",
	}

	t.Run("given authenticated user should create order and empty cart", func(t *testing.T) {
		var got request.Submission
		router := newRouter(t, gatewayFunc(func(_ context.Context, s request.Submission, _ string) (domain.OrderID, error) {
			got = s
			return 4242, nil
		}))
		user := map[string]string{inHttp.HeaderAuthorization: "Bearer " + signToken(t, uuid.New())}
		do(t, router, http.MethodPost, "/carts/items", user, map[string]interface{}{
			"product_id": 7, "quantity": 2, "size": "S",
		})

		result := do(t, router, http.MethodPost, "/carts/checkout", user, map[string]interface{}{
			"shipping": shipping,
		})
		assert.Equal(t, http.StatusCreated, result.StatusCode)
		assert.JSONEq(t, `{"order_id":4242}`, string(result.Data))
		assert.Equal(t, domain.Money(5998), got.Total)

		result = do(t, router, http.MethodGet, "/carts", user, nil)
		assert.Empty(t, decodeCart(t, result).Cart.Lines)
	})

	t.Run("given guest should return unauthorized and keep cart", func(t *testing.T) {
		router := newRouter(t, nil)
		guest := map[string]string{inHttp.HeaderSessionID: uuid.NewString()}
		do(t, router, http.MethodPost, "/carts/items", guest, map[string]interface{}{
			"product_id": 9, "quantity": 1,
		})

		result := do(t, router, http.MethodPost, "/carts/checkout", guest, map[string]interface{}{
			"shipping": shipping,
		})
		assert.Equal(t, http.StatusUnauthorized, result.StatusCode)

		result = do(t, router, http.MethodGet, "/carts", guest, nil)
		assert.Equal(t, 1, decodeCart(t, result).Cart.ItemCount)
	})

	t.Run("given empty cart should return bad request", func(t *testing.T) {
		router := newRouter(t, nil)
		user := map[string]string{inHttp.HeaderAuthorization: "Bearer " + signToken(t, uuid.New())}

		result := do(t, router, http.MethodPost, "/carts/checkout", user, map[string]interface{}{
			"shipping": shipping,
		})
		assert.Equal(t, http.StatusBadRequest, result.StatusCode)
	})

	t.Run("given missing shipping fields should list them", func(t *testing.T) {
		router := newRouter(t, nil)
		user := map[string]string{inHttp.HeaderAuthorization: "Bearer " + signToken(t, uuid.New())}
		do(t, router, http.MethodPost, "/carts/items", user, map[string]interface{}{
			"product_id": 9, "quantity": 1,
		})

		result := do(t, router, http.MethodPost, "/carts/checkout", user, map[string]interface{}{
			"shipping": map[string]interface{}{"name": "Ada"},
		})
		assert.Equal(t, http.StatusBadRequest, result.StatusCode)
		assert.JSONEq(t, `{"fields":["email","address"]}`, string(result.Data))
	})

	t.Run("given failing order service should return bad gateway and keep cart", func(t *testing.T) {
		router := newRouter(t, gatewayFunc(func(context.Context, request.Submission, string) (domain.OrderID, error) {
			return 0, assert.AnError
		}))
		user := map[string]string{inHttp.HeaderAuthorization: "Bearer " + signToken(t, uuid.New())}
		do(t, router, http.MethodPost, "/carts/items", user, map[string]interface{}{
			"product_id": 7, "quantity": 2, "size": "M",
		})

		result := do(t, router, http.MethodPost, "/carts/checkout", user, map[string]interface{}{
			"shipping": shipping,
		})
		assert.Equal(t, http.StatusBadGateway, result.StatusCode)

		result = do(t, router, http.MethodGet, "/carts", user, nil)
		assert.Equal(t, int64(5998), decodeCart(t, result).Cart.Total)
	})
}

func TestCartStorageUnavailable(t *testing.T) {
	sessionID := uuid.New()
	storage := &memoryStorage{
		carts:   map[uuid.UUID][]domain.Line{sessionID: {{Product: domain.Product{ID: 9, Price: 1250}, Quantity: 3}}},
		loadErr: errors.New("connection refused"),
	}
	router := newRouterWithStorage(t, storage, nil)
	guest := map[string]string{inHttp.HeaderSessionID: sessionID.String()}

	result := do(t, router, http.MethodPost, "/carts/items", guest, map[string]interface{}{
		"product_id": 9, "quantity": 1,
	})
	assert.Equal(t, http.StatusServiceUnavailable, result.StatusCode)

	storage.mu.Lock()
	storage.loadErr = nil
	storage.mu.Unlock()

	result = do(t, router, http.MethodGet, "/carts", guest, nil)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, 3, decodeCart(t, result).Cart.ItemCount)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err        error
		statusCode int
	}{
		{inErrors.ValidationError{Fields: []string{"email"}}, http.StatusBadRequest},
		{inErrors.ErrEmptyCart, http.StatusBadRequest},
		{inErrors.ErrNotAuthenticated, http.StatusUnauthorized},
		{inErrors.ErrCheckoutInProgress, http.StatusConflict},
		{inErrors.ErrOrderCreationFailed, http.StatusBadGateway},
		{inErrors.ErrOutcomeUnknown, http.StatusGatewayTimeout},
		{inErrors.ErrCartUnavailable, http.StatusServiceUnavailable},
		{inErrors.ErrOrderNotFound, http.StatusNotFound},
		{context.Canceled, http.StatusInternalServerError},
	}

	for _, test := range tests {
		t.Run(test.err.Error(), func(t *testing.T) {
			assert.Equal(t, test.statusCode, StatusCode(test.err))
		})
	}
}
