package repository

import (
	"encoding/json"
	"fmt"

	"github.com/Alturino/storefront/cart/domain"
	inErrors "github.com/Alturino/storefront/internal/errors"
)

const recordVersion = 1

// cartRecord is the persisted form of a cart. Prices stay in minor units.
type cartRecord struct {
	Storage string       `json:"storage"`
	Version int          `json:"version"`
	Lines   []lineRecord `json:"lines"`
}

type lineRecord struct {
	ProductID uint64  `json:"product_id"`
	Name      string  `json:"name"`
	Price     int64   `json:"price"`
	ImageURL  string  `json:"image_url"`
	Quantity  int     `json:"quantity"`
	Size      *string `json:"size"`
	Color     *string `json:"color"`
}

func encode(storage string, lines []domain.Line) ([]byte, error) {
	record := cartRecord{
		Storage: storage,
		Version: recordVersion,
		Lines:   make([]lineRecord, 0, len(lines)),
	}
	for _, line := range lines {
		record.Lines = append(record.Lines, lineRecord{
			ProductID: uint64(line.Product.ID),
			Name:      line.Product.Name,
			Price:     int64(line.Product.Price),
			ImageURL:  line.Product.ImageURL,
			Quantity:  line.Quantity,
			Size:      line.Size.Ptr(),
			Color:     line.Color.Ptr(),
		})
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed marshaling cart record with error=%w", err)
	}
	return data, nil
}

func decode(data []byte) ([]domain.Line, error) {
	record := cartRecord{}
	err := json.Unmarshal(data, &record)
	if err != nil {
		return nil, fmt.Errorf(
			"%w: failed unmarshaling cart record with error=%w",
			inErrors.ErrCartUnreadable,
			err,
		)
	}
	if record.Version != recordVersion {
		return nil, fmt.Errorf(
			"failed decoding cart record version=%d with error=%w",
			record.Version,
			inErrors.ErrCartUnreadable,
		)
	}

	lines := make([]domain.Line, 0, len(record.Lines))
	for _, line := range record.Lines {
		lines = append(lines, domain.Line{
			Product: domain.Product{
				ID:       domain.ProductID(line.ProductID),
				Name:     line.Name,
				Price:    domain.Money(line.Price),
				ImageURL: line.ImageURL,
			},
			Quantity: line.Quantity,
			Size:     domain.OptionFromPtr(line.Size),
			Color:    domain.OptionFromPtr(line.Color),
		})
	}
	return lines, nil
}
