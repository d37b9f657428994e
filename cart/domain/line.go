package domain

import (
	"github.com/rs/zerolog"
)

type (
	ProductID uint64
	OrderID   uint64
)

// Product is the catalog data captured when the line was added. It is never refreshed, so the
// cart keeps showing the price at add time.
type Product struct {
	ID       ProductID `json:"id"`
	Name     string    `json:"name"`
	Price    Money     `json:"price"`
	ImageURL string    `json:"image_url"`
}

// Key identifies a purchasable line. It is comparable and used directly as a map key.
type Key struct {
	ProductID ProductID
	Size      Option
	Color     Option
}

func NewKey(productID ProductID, size, color Option) Key {
	return Key{ProductID: productID, Size: size, Color: color}
}

func (k Key) MarshalZerologObject(e *zerolog.Event) {
	e.Uint64("productId", uint64(k.ProductID)).
		Stringer("size", k.Size).
		Stringer("color", k.Color)
}

type Line struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
	Size     Option  `json:"size"`
	Color    Option  `json:"color"`
}

func (l Line) Key() Key {
	return NewKey(l.Product.ID, l.Size, l.Color)
}

func (l Line) Subtotal() Money {
	return l.Product.Price.Times(l.Quantity)
}

// Normalize drops lines whose quantity is below one and merges lines sharing a key, keeping the
// position of the first occurrence.
func Normalize(lines []Line) []Line {
	index := make(map[Key]int, len(lines))
	normalized := make([]Line, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			continue
		}
		if i, ok := index[line.Key()]; ok {
			normalized[i].Quantity = AddQuantity(normalized[i].Quantity, line.Quantity)
			continue
		}
		index[line.Key()] = len(normalized)
		normalized = append(normalized, line)
	}
	return normalized
}
