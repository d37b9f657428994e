package response

import (
	"github.com/Alturino/storefront/cart/domain"
)

// Product is a catalog entry as served by the product service. Price is in minor units.
type Product struct {
	ID          domain.ProductID `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Price       domain.Money     `json:"price"`
	ImageURL    string           `json:"image_url"`
	Sizes       []string         `json:"sizes"`
	Colors      []string         `json:"colors"`
}

// Snapshot is the part of the product a cart line keeps.
func (p Product) Snapshot() domain.Product {
	return domain.Product{ID: p.ID, Name: p.Name, Price: p.Price, ImageURL: p.ImageURL}
}

// Offers reports whether size and color are valid picks. An unset option is only valid when the
// product has no choices for it.
func (p Product) Offers(size, color domain.Option) (validSize, validColor bool) {
	return offers(p.Sizes, size), offers(p.Colors, color)
}

func offers(choices []string, option domain.Option) bool {
	value, ok := option.Get()
	if len(choices) == 0 {
		return !ok
	}
	if !ok {
		return false
	}
	for _, choice := range choices {
		if choice == value {
			return true
		}
	}
	return false
}

type GetProduct struct {
	Status     string         `json:"status"`
	StatusCode int            `json:"statusCode"`
	Message    string         `json:"message"`
	Data       GetProductData `json:"data"`
}

type GetProductData struct {
	Product Product `json:"product"`
}
