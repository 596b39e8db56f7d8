package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/fjod/go_storefront/internal/apiclient"
	"github.com/fjod/go_storefront/internal/domain"
	"go.uber.org/zap"
)

var ErrProductNotFound = errors.New("product not found")

// Client reads products from the backend. It does not cache.
type Client struct {
	api *apiclient.Client
	log *zap.Logger
}

func NewClient(api *apiclient.Client, log *zap.Logger) *Client {
	return &Client{api: api, log: log}
}

// ListProducts returns every product. Entries the backend sends without an
// id or with a negative price are skipped.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var dtos []productDTO
	if err := c.api.Get(ctx, "/products", &dtos); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	products := make([]domain.Product, 0, len(dtos))
	for _, dto := range dtos {
		p, err := dto.toDomain()
		if err != nil {
			c.log.Warn("skipping product", zap.Error(err))
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if id == "" {
		return domain.Product{}, ErrProductNotFound
	}

	var dto productDTO
	err := c.api.Get(ctx, "/products/"+url.PathEscape(id), &dto)
	if apiclient.IsStatus(err, http.StatusNotFound) {
		return domain.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}

	p, err := dto.toDomain()
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}
