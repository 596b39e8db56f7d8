package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/shopspring/decimal"
)

var errInvalidProduct = errors.New("invalid product")

// productDTO is the backend's product shape.
type productDTO struct {
	ID          string          `json:"_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Photo       string          `json:"photo"`
	Categories  categories      `json:"categories"`
}

func (p productDTO) toDomain() (domain.Product, error) {
	if p.ID == "" {
		return domain.Product{}, fmt.Errorf("%w: missing id", errInvalidProduct)
	}
	if p.Price.IsNegative() {
		return domain.Product{}, fmt.Errorf("%w: negative price for %s", errInvalidProduct, p.ID)
	}
	return domain.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       domain.MoneyFromDecimal(p.Price),
		Photo:       p.Photo,
		Categories:  []string(p.Categories),
	}, nil
}

// categories accepts an array, a JSON encoded array inside a string, or an
// array whose elements are themselves encoded arrays.
type categories []string

func (c *categories) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*c = nil
		return nil
	}

	var items []string
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		items = []string{s}
	} else if err := json.Unmarshal(b, &items); err != nil {
		return fmt.Errorf("categories: %w", err)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if strings.HasPrefix(item, "[") {
			var nested categories
			if err := nested.UnmarshalJSON([]byte(item)); err == nil {
				out = append(out, nested...)
				continue
			}
		}
		if item != "" {
			out = append(out, item)
		}
	}
	*c = out
	return nil
}
