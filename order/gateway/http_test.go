package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/storefront/cart/domain"
	"github.com/Alturino/storefront/internal/auth"
	"github.com/Alturino/storefront/internal/config"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/order/pkg/request"
)

var submission = request.Submission{
	Items: []request.SubmissionItem{
		{ProductID: 7, Quantity: 2, Size: domain.Some("M").Ptr()},
	},
	Total: 5998,
}

func newClient(url string, maxFailures uint32) *Client {
	return NewClient(config.Gateway{
		OrderURL: url,
		Breaker:  config.Breaker{MaxFailures: maxFailures, OpenTimeout: time.Minute},
	}, nil)
}

func writeOrder(w http.ResponseWriter, statusCode int, orderID domain.OrderID, message string) {
	w.Header().Set(inHttp.HeaderContentType, inHttp.HeaderValueJson)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     "success",
		"statusCode": statusCode,
		"message":    message,
		"data":       map[string]interface{}{"order_id": orderID},
	})
}

func TestCreateOrderSendsSubmission(t *testing.T) {
	var received request.Submission
	var header http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		header = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		writeOrder(w, http.StatusCreated, 4242, "created order")
	}))
	defer server.Close()

	c := log.AttachRequestIDToContext(context.Background(), "req-1")
	c = auth.AttachPrincipal(c, auth.Principal{
		Subject:       uuid.New(),
		Token:         "signed.jwt.token",
		Authenticated: true,
	})

	orderID, err := newClient(server.URL+"/", 5).CreateOrder(c, submission, "session:3")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderID(4242), orderID)

	assert.Equal(t, submission, received)
	assert.Equal(t, "session:3", header.Get(inHttp.HeaderIdempotencyKey))
	assert.Equal(t, "req-1", header.Get(inHttp.HeaderRequestID))
	assert.Equal(t, "Bearer signed.jwt.token", header.Get(inHttp.HeaderAuthorization))
	assert.Equal(t, inHttp.HeaderValueJson, header.Get(inHttp.HeaderContentType))
}

func TestCreateOrderOmitsUnsetVariants(t *testing.T) {
	var raw map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		writeOrder(w, http.StatusOK, 1, "created order")
	}))
	defer server.Close()

	_, err := newClient(server.URL, 5).CreateOrder(context.Background(), submission, "k")
	require.NoError(t, err)

	items := raw["items"].([]interface{})
	item := items[0].(map[string]interface{})
	assert.Equal(t, "M", item["size"])
	assert.NotContains(t, item, "color")
	assert.NotContains(t, item, "price")
	assert.Equal(t, float64(5998), raw["total"])
	assert.NotContains(t, raw, "shipping")
}

func TestCreateOrderErrors(t *testing.T) {
	tests := []struct {
		name           string
		handler        http.HandlerFunc
		unknownOutcome bool
		statusCode     int
	}{
		{
			name: "given server error should return status error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeOrder(w, http.StatusInternalServerError, 0, "database down")
			},
			statusCode: http.StatusInternalServerError,
		},
		{
			name: "given rejected order should return status error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeOrder(w, http.StatusUnprocessableEntity, 0, "out of stock")
			},
			statusCode: http.StatusUnprocessableEntity,
		},
		{
			name: "given bad gateway from proxy should be outcome unknown",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeOrder(w, http.StatusBadGateway, 0, "upstream reset")
			},
			unknownOutcome: true,
			statusCode:     http.StatusBadGateway,
		},
		{
			name: "given service unavailable should be outcome unknown",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeOrder(w, http.StatusServiceUnavailable, 0, "overloaded")
			},
			unknownOutcome: true,
			statusCode:     http.StatusServiceUnavailable,
		},
		{
			name: "given gateway timeout from proxy should be outcome unknown",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeOrder(w, http.StatusGatewayTimeout, 0, "upstream timeout")
			},
			unknownOutcome: true,
			statusCode:     http.StatusGatewayTimeout,
		},
		{
			name: "given success without order id should be outcome unknown",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeOrder(w, http.StatusOK, 0, "created order")
			},
			unknownOutcome: true,
		},
		{
			name: "given garbage body should be outcome unknown",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
			unknownOutcome: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := httptest.NewServer(test.handler)
			defer server.Close()

			_, err := newClient(server.URL, 5).CreateOrder(context.Background(), submission, "k")
			require.Error(t, err)
			assert.Equal(t, test.unknownOutcome, errors.Is(err, inErrors.ErrOutcomeUnknown))
			if test.statusCode != 0 {
				var statusErr StatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, test.statusCode, statusErr.StatusCode)
			}
		})
	}
}

func TestCreateOrderTimeoutIsOutcomeUnknown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	c, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := newClient(server.URL, 5).CreateOrder(c, submission, "k")
	require.ErrorIs(t, err, inErrors.ErrOutcomeUnknown)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCreateOrderConnectionRefusedIsKnownFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newClient(url, 5).CreateOrder(context.Background(), submission, "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, inErrors.ErrOutcomeUnknown)
}

func TestCreateOrderBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeOrder(w, http.StatusBadGateway, 0, "upstream down")
	}))
	defer server.Close()

	client := newClient(server.URL, 2)
	for i := 0; i < 2; i++ {
		_, err := client.CreateOrder(context.Background(), submission, "k")
		require.Error(t, err)
	}

	_, err := client.CreateOrder(context.Background(), submission, "k")
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCreateOrderBreakerIgnoresClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeOrder(w, http.StatusBadRequest, 0, "invalid submission")
	}))
	defer server.Close()

	client := newClient(server.URL, 2)
	for i := 0; i < 4; i++ {
		_, err := client.CreateOrder(context.Background(), submission, "k")
		var statusErr StatusError
		require.ErrorAs(t, err, &statusErr)
	}
	assert.Equal(t, int32(4), calls.Load())
}

func TestGetOrder(t *testing.T) {
	placedAt := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	var header http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		header = r.Header.Clone()
		if r.URL.Path != "/orders/4242" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"message": "order not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":     "success",
			"statusCode": http.StatusOK,
			"data": map[string]interface{}{
				"order": map[string]interface{}{
					"id":        4242,
					"owner":     "user-1",
					"timestamp": placedAt,
					"total":     5998,
					"items": []map[string]interface{}{
						{"product_id": 7, "quantity": 2, "size": "M"},
					},
				},
			},
		})
	}))
	defer server.Close()
	client := newClient(server.URL, 2)

	t.Run("given placed order should return it", func(t *testing.T) {
		c := auth.AttachPrincipal(context.Background(), auth.Principal{
			Subject:       uuid.New(),
			Token:         "signed.jwt.token",
			Authenticated: true,
		})

		order, err := client.GetOrder(c, 4242)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderID(4242), order.ID)
		assert.Equal(t, domain.Money(5998), order.Total)
		assert.True(t, placedAt.Equal(order.Timestamp))
		require.Len(t, order.Items, 1)
		assert.Equal(t, "M", *order.Items[0].Size)
		assert.Nil(t, order.Items[0].Color)
		assert.Equal(t, "Bearer signed.jwt.token", header.Get(inHttp.HeaderAuthorization))
	})

	t.Run("given unknown order should return order not found without tripping breaker", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := client.GetOrder(context.Background(), 1)
			require.ErrorIs(t, err, inErrors.ErrOrderNotFound)
		}
		_, err := client.GetOrder(context.Background(), 4242)
		require.NoError(t, err)
	})
}

func TestGetOrderSharesBreakerWithCreateOrder(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeOrder(w, http.StatusInternalServerError, 0, "database down")
	}))
	defer server.Close()

	client := newClient(server.URL, 2)
	for i := 0; i < 2; i++ {
		_, err := client.CreateOrder(context.Background(), submission, "k")
		require.Error(t, err)
	}

	_, err := client.GetOrder(context.Background(), 1)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), calls.Load())
}
