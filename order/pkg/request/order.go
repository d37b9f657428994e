package request

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/cart/domain"
)

// Shipping is the delivery information collected at checkout.
type Shipping struct {
	Name       string `validate:"required"       json:"name"`
	Email      string `validate:"required,email" json:"email"`
	Address    string `validate:"required"       json:"address"`
	City       string `                          json:"city,omitempty"`
	PostalCode string `                          json:"postal_code,omitempty"`
	Country    string `                          json:"country,omitempty"`
}

// MarshalZerologObject keeps personal data out of the logs.
func (s Shipping) MarshalZerologObject(e *zerolog.Event) {
	e.Str("name", mask(s.Name)).
		Str("email", mask(s.Email)).
		Bool("hasAddress", s.Address != "").
		Str("country", s.Country)
}

func mask(value string) string {
	if value == "" {
		return ""
	}
	runes := []rune(value)
	return string(runes[0]) + strings.Repeat("*", len(runes)-1)
}

// SubmissionItem is one order line. Size and color are omitted when the line has none.
type SubmissionItem struct {
	ProductID domain.ProductID `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Size      *string          `json:"size,omitempty"`
	Color     *string          `json:"color,omitempty"`
}

// Submission is the payload sent to the order service. Shipping details are checked at checkout
// but stay out of it.
type Submission struct {
	Items []SubmissionItem `json:"items"`
	Total domain.Money     `json:"total"`
}

func NewSubmission(snapshot domain.Snapshot) Submission {
	lines := snapshot.Lines()
	items := make([]SubmissionItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, SubmissionItem{
			ProductID: line.Product.ID,
			Quantity:  line.Quantity,
			Size:      line.Size.Ptr(),
			Color:     line.Color.Ptr(),
		})
	}
	return Submission{Items: items, Total: snapshot.Total()}
}

func (s Submission) MarshalZerologObject(e *zerolog.Event) {
	e.Int("items", len(s.Items)).
		Int64("total", int64(s.Total))
}

// SubmitOrder is a checkout attempt of one cart snapshot.
type SubmitOrder struct {
	Snapshot      domain.Snapshot
	Shipping      Shipping
	Authenticated bool
}
