package request

import (
	"github.com/Alturino/storefront/cart/domain"
	orderRequest "github.com/Alturino/storefront/order/pkg/request"
)

// CartItem addresses one line. A missing or null size/color means the line has none.
type CartItem struct {
	ProductID domain.ProductID `validate:"required"     json:"product_id"`
	Quantity  int              `validate:"gte=1,lte=99" json:"quantity"`
	Size      *string          `                        json:"size"`
	Color     *string          `                        json:"color"`
}

type UpdateCartItem struct {
	ProductID domain.ProductID `validate:"required"     json:"product_id"`
	Quantity  int              `validate:"gte=0,lte=99" json:"quantity"`
	Size      *string          `                        json:"size"`
	Color     *string          `                        json:"color"`
}

type RemoveCartItem struct {
	ProductID domain.ProductID `validate:"required" json:"product_id"`
	Size      *string          `                    json:"size"`
	Color     *string          `                    json:"color"`
}

type Checkout struct {
	Shipping orderRequest.Shipping `json:"shipping"`
}
