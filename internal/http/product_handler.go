package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type ProductHandler struct {
	products ProductSource
	timeout  time.Duration
}

func NewProductHandler(products ProductSource, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		products: products,
		timeout:  timeout,
	}
}

type ProductResponse struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       json.Number `json:"price"`
	Photo       string      `json:"photo,omitempty"`
	Categories  []string    `json:"categories"`
}

type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
}

func toProductResponse(p domain.Product) ProductResponse {
	categories := p.Categories
	if categories == nil {
		categories = []string{}
	}
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       moneyJSON(p.Price),
		Photo:       p.Photo,
		Categories:  categories,
	}
}

// GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.products.ListProducts(ctx)
	if err != nil {
		handleError(w, err)
		return
	}
	products := make([]ProductResponse, len(res))
	for i, p := range res {
		products[i] = toProductResponse(p)
	}

	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}

// GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.products.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toProductResponse(p))
}
