package service

import (
	"context"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCartFixture() (*CartService, *fakeStore) {
	st := newFakeStore()
	st.addProduct(models.Product{ID: 1, Title: "Sheesham Sofa", Finish: "Walnut", Price: 8000, StockQuantity: 3, Active: true, ImageURL: "/sofa.jpg"})
	st.addProduct(models.Product{ID: 2, Title: "Side Table", Price: 2000, StockQuantity: 0, Active: true})
	st.addProduct(models.Product{ID: 3, Title: "Hidden Chair", Price: 1500, StockQuantity: 2, Active: false})
	return NewCartService(newFakeCarts(), st, 24*time.Hour), st
}

func TestCartAddUsesCatalogPrice(t *testing.T) {
	svc, _ := newCartFixture()

	cart, err := svc.Add(context.Background(), "s1", 1, 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "Sheesham Sofa", cart.Items[0].Title)
	assert.Equal(t, "Walnut", cart.Items[0].Finish)
	assert.Equal(t, "/sofa.jpg", cart.Items[0].Image)
	assert.Equal(t, int64(8000), cart.Subtotal)
	assert.Equal(t, 1, cart.ItemCount)
}

func TestCartAddAccumulatesAndCapsAtStock(t *testing.T) {
	svc, _ := newCartFixture()
	ctx := context.Background()

	_, err := svc.Add(ctx, "s1", 1, 2)
	require.NoError(t, err)
	cart, err := svc.Add(ctx, "s1", 1, 2)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, int64(24000), cart.Subtotal)
}

func TestCartAddErrors(t *testing.T) {
	tests := []struct {
		name      string
		session   string
		productID int64
		quantity  int
		wantErr   error
	}{
		{name: "sold out", session: "s1", productID: 2, quantity: 1, wantErr: ErrOutOfStock},
		{name: "unpublished", session: "s1", productID: 3, quantity: 1, wantErr: ErrNotFound},
		{name: "missing", session: "s1", productID: 42, quantity: 1, wantErr: ErrNotFound},
		{name: "zero quantity", session: "s1", productID: 1, quantity: 0, wantErr: ErrInvalidRequest},
		{name: "no session", session: "", productID: 1, quantity: 1, wantErr: ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newCartFixture()
			_, err := svc.Add(context.Background(), tt.session, tt.productID, tt.quantity)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCartUpdateAndRemove(t *testing.T) {
	svc, _ := newCartFixture()
	ctx := context.Background()

	_, err := svc.Add(ctx, "s1", 1, 1)
	require.NoError(t, err)

	cart, err := svc.Update(ctx, "s1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.ItemCount)

	cart, err = svc.Update(ctx, "s1", 1, 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, int64(0), cart.Subtotal)

	_, err = svc.Update(ctx, "s1", 1, -1)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCartClear(t *testing.T) {
	svc, _ := newCartFixture()
	ctx := context.Background()

	_, err := svc.Add(ctx, "s1", 1, 1)
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, "s1"))

	cart, err := svc.Get(ctx, "s1")
	require.NoError(t, err)
	assert.NotNil(t, cart.Items)
	assert.Empty(t, cart.Items)
}

func TestCartRefreshesPriceOnUpdate(t *testing.T) {
	svc, st := newCartFixture()
	ctx := context.Background()

	_, err := svc.Add(ctx, "s1", 1, 1)
	require.NoError(t, err)

	st.products[1].Price = 7500
	cart, err := svc.Update(ctx, "s1", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(7500), cart.Subtotal)
}
