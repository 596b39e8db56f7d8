package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/apiclient"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCatalog(t *testing.T, routes map[string]string) *Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Product not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	api := apiclient.New(apiclient.Options{BaseURL: srv.URL, Timeout: time.Second})
	return NewClient(api, zap.NewNop())
}

func TestListProducts(t *testing.T) {
	c := newTestCatalog(t, map[string]string{
		"/products": `[
			{"_id":"p1","name":"Mug","description":"Blue","price":12.5,"photo":"https://img/1","categories":["Kitchen"]},
			{"_id":"p2","name":"Lamp","price":"19.999","categories":"[\"Home\",\"Light\"]"},
			{"_id":"p3","name":"Desk","price":120,"categories":["[\"Office\"]"]},
			{"name":"Ghost","price":1},
			{"_id":"p4","name":"Broken","price":-3}
		]`,
	})

	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)

	want := []domain.Product{
		{ID: "p1", Name: "Mug", Description: "Blue", Price: 1250, Photo: "https://img/1", Categories: []string{"Kitchen"}},
		{ID: "p2", Name: "Lamp", Price: 2000, Categories: []string{"Home", "Light"}},
		{ID: "p3", Name: "Desk", Price: 12000, Categories: []string{"Office"}},
	}
	if diff := cmp.Diff(want, products); diff != "" {
		t.Errorf("products mismatch (-want +got):\n%s", diff)
	}
}

func TestListProducts_Enveloped(t *testing.T) {
	c := newTestCatalog(t, map[string]string{
		"/products": `{"success":true,"data":[{"_id":"p1","name":"Mug","price":5}]}`,
	})

	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, domain.Money(500), products[0].Price)
}

func TestGetProduct(t *testing.T) {
	c := newTestCatalog(t, map[string]string{
		"/products/p1": `{"data":{"_id":"p1","name":"Mug","price":"7.25"}}`,
	})

	p, err := c.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Mug", p.Name)
	assert.Equal(t, domain.Money(725), p.Price)
}

func TestGetProduct_NotFound(t *testing.T) {
	c := newTestCatalog(t, map[string]string{})

	_, err := c.GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = c.GetProduct(context.Background(), "")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestGetProduct_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c := NewClient(apiclient.New(apiclient.Options{BaseURL: srv.URL}), zap.NewNop())

	_, err := c.GetProduct(context.Background(), "p1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrProductNotFound)
	assert.True(t, apiclient.IsStatus(err, http.StatusInternalServerError))
}

func TestCategories_Null(t *testing.T) {
	c := newTestCatalog(t, map[string]string{
		"/products/p1": `{"_id":"p1","name":"Mug","price":1,"categories":null}`,
	})
	p, err := c.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, p.Categories)
}
