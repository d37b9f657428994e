package response

import (
	"github.com/google/uuid"

	"github.com/Alturino/storefront/cart/domain"
)

type Cart struct {
	SessionID      uuid.UUID    `json:"session_id"`
	Revision       uint64       `json:"revision"`
	Lines          []CartLine   `json:"lines"`
	Total          domain.Money `json:"total"`
	TotalFormatted string       `json:"total_formatted"`
	ItemCount      int          `json:"item_count"`
}

type CartLine struct {
	Product           domain.Product `json:"product"`
	Quantity          int            `json:"quantity"`
	Size              domain.Option  `json:"size"`
	Color             domain.Option  `json:"color"`
	Subtotal          domain.Money   `json:"subtotal"`
	SubtotalFormatted string         `json:"subtotal_formatted"`
}

func FromSnapshot(snapshot domain.Snapshot) Cart {
	lines := snapshot.Lines()
	cart := Cart{
		SessionID:      snapshot.SessionID(),
		Revision:       snapshot.Revision(),
		Lines:          make([]CartLine, 0, len(lines)),
		Total:          snapshot.Total(),
		TotalFormatted: snapshot.Total().Format(),
		ItemCount:      snapshot.ItemCount(),
	}
	for _, line := range lines {
		cart.Lines = append(cart.Lines, CartLine{
			Product:           line.Product,
			Quantity:          line.Quantity,
			Size:              line.Size,
			Color:             line.Color,
			Subtotal:          line.Subtotal(),
			SubtotalFormatted: line.Subtotal().Format(),
		})
	}
	return cart
}

type Checkout struct {
	OrderID domain.OrderID `json:"order_id"`
}
