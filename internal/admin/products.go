package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/fjod/go_storefront/internal/apiclient"
	"github.com/fjod/go_storefront/internal/auth"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/domain"
	"go.uber.org/zap"
)

// Photo is an uploaded product image.
type Photo struct {
	Filename string
	Data     []byte
}

// ProductInput is a product as typed into the admin forms.
type ProductInput struct {
	Name        string
	Description string
	Price       domain.Money
	Categories  []string
	// Photo is required on create. On update a nil photo keeps the old one.
	Photo *Photo
}

func (in ProductInput) validate(create bool) error {
	var problems []string
	if strings.TrimSpace(in.Name) == "" {
		problems = append(problems, "name is required")
	}
	if in.Price <= 0 {
		problems = append(problems, "price must be positive")
	}
	if create && len(in.Categories) == 0 {
		problems = append(problems, "a category is required")
	}
	if create && (in.Photo == nil || len(in.Photo.Data) == 0) {
		problems = append(problems, "photo is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProduct, strings.Join(problems, ", "))
	}
	return nil
}

// form renders the input the way the backend's upload endpoints read it:
// categories travel as a JSON encoded array.
func (in ProductInput) form() (map[string]string, []apiclient.File, error) {
	fields := map[string]string{
		"name":        in.Name,
		"price":       in.Price.String(),
		"description": in.Description,
	}
	if len(in.Categories) > 0 {
		raw, err := json.Marshal(in.Categories)
		if err != nil {
			return nil, nil, err
		}
		fields["categories"] = string(raw)
	}
	var files []apiclient.File
	if in.Photo != nil && len(in.Photo.Data) > 0 {
		files = append(files, apiclient.File{Field: "photo", Name: in.Photo.Filename, Data: in.Photo.Data})
	}
	return fields, files, nil
}

type createdProduct struct {
	ID         string `json:"_id"`
	InsertedID string `json:"insertedId"`
}

// CreateProduct adds a product and returns its id. The id is empty when the
// backend does not report one.
func (c *Client) CreateProduct(ctx context.Context, s auth.Session, in ProductInput) (string, error) {
	if err := in.validate(true); err != nil {
		return "", err
	}
	api, err := c.as(s)
	if err != nil {
		return "", err
	}
	fields, files, err := in.form()
	if err != nil {
		return "", fmt.Errorf("create product: %w", err)
	}

	var resp createdProduct
	err = api.DoForm(ctx, http.MethodPost, "/addproducts", fields, files, &resp)
	if err != nil && !errors.Is(err, apiclient.ErrDecode) {
		return "", fmt.Errorf("create product: %w", err)
	}
	id := resp.ID
	if id == "" {
		id = resp.InsertedID
	}
	c.log.Info("product created",
		zap.String("product_id", id),
		zap.String("name", in.Name),
		zap.String("admin_id", s.User.ID))
	return id, nil
}

func (c *Client) UpdateProduct(ctx context.Context, s auth.Session, productID string, in ProductInput) error {
	if err := in.validate(false); err != nil {
		return err
	}
	api, err := c.as(s)
	if err != nil {
		return err
	}
	fields, files, err := in.form()
	if err != nil {
		return fmt.Errorf("update product %s: %w", productID, err)
	}

	err = api.DoForm(ctx, http.MethodPut, "/products/"+url.PathEscape(productID), fields, files, nil)
	if apiclient.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%w: %s", catalog.ErrProductNotFound, productID)
	}
	if err != nil {
		return fmt.Errorf("update product %s: %w", productID, err)
	}
	c.log.Info("product updated", zap.String("product_id", productID), zap.String("admin_id", s.User.ID))
	return nil
}

func (c *Client) DeleteProduct(ctx context.Context, s auth.Session, productID string) error {
	api, err := c.as(s)
	if err != nil {
		return err
	}
	err = api.Delete(ctx, "/products/"+url.PathEscape(productID))
	if apiclient.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%w: %s", catalog.ErrProductNotFound, productID)
	}
	if err != nil {
		return fmt.Errorf("delete product %s: %w", productID, err)
	}
	c.log.Info("product deleted", zap.String("product_id", productID), zap.String("admin_id", s.User.ID))
	return nil
}
