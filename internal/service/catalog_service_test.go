package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/catalog"
	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProductCache struct {
	products    []models.Product
	readErr     error
	stores      int
	invalidated int
}

func (c *fakeProductCache) CachedProducts(context.Context) ([]models.Product, error) {
	return c.products, c.readErr
}

func (c *fakeProductCache) CacheProducts(_ context.Context, products []models.Product, _ time.Duration) error {
	c.products = products
	c.stores++
	return nil
}

func (c *fakeProductCache) InvalidateProducts(context.Context) error {
	c.products = nil
	c.invalidated++
	return nil
}

func newCatalogFixture() (*CatalogService, *fakeStore, *fakeProductCache) {
	st := newFakeStore()
	st.addProduct(models.Product{ID: 1, Title: "Sheesham Sofa", Category: "sofas", Price: 45000, StockQuantity: 2, Active: true})
	st.addProduct(models.Product{ID: 2, Title: "Teak Bench", Category: "benches", Price: 12000, StockQuantity: 0, Active: true})
	st.addProduct(models.Product{ID: 3, Title: "Draft Sofa", Category: "sofas", Price: 30000, StockQuantity: 5, Active: false})
	cache := &fakeProductCache{}
	return NewCatalogService(st, cache, 5*time.Minute), st, cache
}

func TestListProductsOnlyShowsActive(t *testing.T) {
	svc, _, cache := newCatalogFixture()

	page, err := svc.ListProducts(context.Background(), catalog.Filter{Category: "sofas"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(1), page.Items[0].ID)
	assert.Equal(t, 1, cache.stores)
}

func TestListProductsServesFromCache(t *testing.T) {
	svc, st, cache := newCatalogFixture()
	ctx := context.Background()

	_, err := svc.ListProducts(ctx, catalog.Filter{})
	require.NoError(t, err)

	st.addProduct(models.Product{ID: 4, Title: "New Desk", Price: 9000, StockQuantity: 1, Active: true})
	page, err := svc.ListProducts(ctx, catalog.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total, "stale until invalidated")

	svc.Invalidate(ctx)
	assert.Equal(t, 1, cache.invalidated)

	page, err = svc.ListProducts(ctx, catalog.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
}

func TestListProductsFallsBackWhenCacheFails(t *testing.T) {
	svc, _, cache := newCatalogFixture()
	cache.readErr = errors.New("redis down")

	page, err := svc.ListProducts(context.Background(), catalog.Filter{Availability: catalog.AvailabilityInStock})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestListProductsBadPriceBracket(t *testing.T) {
	svc, _, _ := newCatalogFixture()

	_, err := svc.ListProducts(context.Background(), catalog.Filter{PriceBracket: "cheap"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestGetProductHidesUnpublished(t *testing.T) {
	svc, _, _ := newCatalogFixture()
	ctx := context.Background()

	p, err := svc.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Sheesham Sofa", p.Title)

	_, err = svc.GetProduct(ctx, 3)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetProduct(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}
