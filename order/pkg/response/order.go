package response

import (
	"time"

	"github.com/Alturino/storefront/cart/domain"
)

// CreateOrder is the envelope returned by the order service.
type CreateOrder struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       CreateOrderData `json:"data"`
}

type CreateOrderData struct {
	OrderID domain.OrderID `json:"order_id"`
}

type OrderItem struct {
	ProductID domain.ProductID `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Size      *string          `json:"size,omitempty"`
	Color     *string          `json:"color,omitempty"`
}

// Order is a placed order as the order service reports it, shown on the confirmation page.
type Order struct {
	ID        domain.OrderID `json:"id"`
	Owner     string         `json:"owner"`
	Timestamp time.Time      `json:"timestamp"`
	Items     []OrderItem    `json:"items"`
	Total     domain.Money   `json:"total"`
}

type GetOrder struct {
	Status     string       `json:"status"`
	StatusCode int          `json:"statusCode"`
	Message    string       `json:"message"`
	Data       GetOrderData `json:"data"`
}

type GetOrderData struct {
	Order Order `json:"order"`
}
