package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ledger is a StockStore backed by two counters per product
type ledger struct {
	stock    map[int64]int
	reserved map[int64]int
	err      error
}

func (l *ledger) ListProducts(context.Context, bool) ([]models.Product, error) {
	var out []models.Product
	for id, qty := range l.stock {
		out = append(out, models.Product{ID: id, StockQuantity: qty, ReservedQuantity: l.reserved[id]})
	}
	return out, nil
}

func (l *ledger) ReserveStockTx(_ context.Context, productID int64, quantity int) error {
	if l.err != nil {
		return l.err
	}
	if l.stock[productID] < quantity {
		return store.ErrInsufficientStock
	}
	l.stock[productID] -= quantity
	l.reserved[productID] += quantity
	return nil
}

func (l *ledger) ReleaseStock(_ context.Context, productID int64, quantity int) error {
	l.stock[productID] += quantity
	l.reserved[productID] -= quantity
	return nil
}

func (l *ledger) RestockStock(_ context.Context, productID int64, quantity int) error {
	l.stock[productID] += quantity
	return nil
}

func (l *ledger) CommitStock(_ context.Context, productID int64, quantity int) error {
	l.reserved[productID] -= quantity
	return nil
}

// counterCache is a StockCache with an optional outage switch
type counterCache struct {
	available map[int64]int
	reserved  map[int64]int
	down      bool
}

var errCacheDown = errors.New("redis: connection refused")

func (c *counterCache) ReserveStock(_ context.Context, productID int64, quantity int) (bool, error) {
	if c.down {
		return false, errCacheDown
	}
	if c.available[productID] < quantity {
		return false, nil
	}
	c.available[productID] -= quantity
	c.reserved[productID] += quantity
	return true, nil
}

func (c *counterCache) ReleaseStock(_ context.Context, productID int64, quantity int) error {
	if c.down {
		return errCacheDown
	}
	c.available[productID] += quantity
	c.reserved[productID] -= quantity
	return nil
}

func (c *counterCache) RestockStock(_ context.Context, productID int64, quantity int) error {
	if c.down {
		return errCacheDown
	}
	if _, ok := c.available[productID]; ok {
		c.available[productID] += quantity
	}
	return nil
}

func (c *counterCache) CommitStock(_ context.Context, productID int64, quantity int) error {
	if c.down {
		return errCacheDown
	}
	c.reserved[productID] -= quantity
	return nil
}

func (c *counterCache) InitStock(_ context.Context, productID int64, available, reserved int) error {
	c.available[productID] = available
	c.reserved[productID] = reserved
	return nil
}

func (c *counterCache) DropStock(_ context.Context, productID int64) error {
	delete(c.available, productID)
	delete(c.reserved, productID)
	return nil
}

func newInventoryFixture() (*InventoryClient, *ledger, *counterCache) {
	l := &ledger{stock: map[int64]int{1: 4}, reserved: map[int64]int{}}
	c := &counterCache{available: map[int64]int{1: 4}, reserved: map[int64]int{}}
	return NewInventoryClient(l, c), l, c
}

func TestInventoryReserveBothLayers(t *testing.T) {
	ic, l, c := newInventoryFixture()

	ok, err := ic.ReserveStock(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, l.stock[1])
	assert.Equal(t, 1, c.available[1])
	assert.Equal(t, 3, c.reserved[1])
}

func TestInventoryCacheRejectsOversell(t *testing.T) {
	ic, l, _ := newInventoryFixture()

	ok, err := ic.ReserveStock(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 4, l.stock[1])
}

func TestInventoryFallsBackToLedgerWhenCacheDown(t *testing.T) {
	ic, l, c := newInventoryFixture()
	c.down = true

	ok, err := ic.ReserveStock(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, l.stock[1])

	ok, err = ic.ReserveStock(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInventoryUndoesCacheWhenLedgerRefuses(t *testing.T) {
	ic, l, c := newInventoryFixture()
	l.stock[1] = 1 // the ledger knows about a sale the cache missed

	ok, err := ic.ReserveStock(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 4, c.available[1])
	assert.Equal(t, 0, c.reserved[1])
}

func TestInventoryUndoesCacheOnLedgerError(t *testing.T) {
	ic, l, c := newInventoryFixture()
	l.err = errors.New("deadlock detected")

	_, err := ic.ReserveStock(context.Background(), 1, 1)
	assert.Error(t, err)
	assert.Equal(t, 4, c.available[1])
}

func TestInventoryReleaseAndCommit(t *testing.T) {
	ic, l, c := newInventoryFixture()
	ctx := context.Background()

	_, err := ic.ReserveStock(ctx, 1, 2)
	require.NoError(t, err)
	require.NoError(t, ic.ReleaseStock(ctx, 1, 1))
	require.NoError(t, ic.CommitStock(ctx, 1, 1))

	assert.Equal(t, 3, l.stock[1])
	assert.Equal(t, 0, l.reserved[1])
	assert.Equal(t, 3, c.available[1])
	assert.Equal(t, 0, c.reserved[1])
}

func TestInventoryRestockAfterCommit(t *testing.T) {
	ic, l, c := newInventoryFixture()
	ctx := context.Background()

	_, err := ic.ReserveStock(ctx, 1, 1)
	require.NoError(t, err)
	require.NoError(t, ic.CommitStock(ctx, 1, 1))
	require.NoError(t, ic.RestockStock(ctx, 1, 1))

	assert.Equal(t, 4, l.stock[1])
	assert.Equal(t, 0, l.reserved[1])
	assert.Equal(t, 4, c.available[1])
	assert.Equal(t, 0, c.reserved[1])
}

func TestInventoryReleaseSurvivesCacheOutage(t *testing.T) {
	ic, l, c := newInventoryFixture()
	ctx := context.Background()

	_, err := ic.ReserveStock(ctx, 1, 2)
	require.NoError(t, err)
	c.down = true

	require.NoError(t, ic.ReleaseStock(ctx, 1, 2))
	assert.Equal(t, 4, l.stock[1])
}

func TestSyncStockToRedis(t *testing.T) {
	l := &ledger{stock: map[int64]int{1: 4, 2: 7}, reserved: map[int64]int{2: 1}}
	c := &counterCache{available: map[int64]int{}, reserved: map[int64]int{}}
	ic := NewInventoryClient(l, c)

	require.NoError(t, ic.SyncStockToRedis(context.Background()))
	assert.Equal(t, 4, c.available[1])
	assert.Equal(t, 7, c.available[2])
	assert.Equal(t, 1, c.reserved[2])

	require.NoError(t, ic.Forget(context.Background(), 2))
	_, cached := c.available[2]
	assert.False(t, cached)
}

func TestInventoryResync(t *testing.T) {
	ic, _, c := newInventoryFixture()

	require.NoError(t, ic.Resync(context.Background(), &models.Product{ID: 1, StockQuantity: 10, ReservedQuantity: 2, UpdatedAt: time.Now()}))
	assert.Equal(t, 10, c.available[1])
	assert.Equal(t, 2, c.reserved[1])
}
