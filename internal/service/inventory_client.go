package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// InventoryClient handles stock operations: Redis is the fast path that
// turns away oversells early, PostgreSQL stays the ledger of record.
type InventoryClient struct {
	store  StockStore
	cache  StockCache
	logger *zap.Logger
}

// NewInventoryClient creates a new inventory client
func NewInventoryClient(store StockStore, cache StockCache) *InventoryClient {
	return &InventoryClient{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// ReserveStock reserves stock for a product
func (ic *InventoryClient) ReserveStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	ctx, span := util.StartSpan(ctx, "InventoryClient.ReserveStock")
	defer span.End()

	cached, err := ic.cache.ReserveStock(ctx, productID, quantity)
	if err != nil {
		ic.logger.Warn("Redis reservation failed, falling back to DB",
			zap.Int64("product_id", productID),
			zap.Error(err))
		return ic.reserveStockDB(ctx, productID, quantity)
	}

	if !cached {
		return false, nil
	}

	ok, err := ic.reserveStockDB(ctx, productID, quantity)
	if err != nil || !ok {
		// The ledger refused; hand the cached units back.
		if rerr := ic.cache.ReleaseStock(ctx, productID, quantity); rerr != nil {
			ic.logger.Error("Failed to undo Redis reservation",
				zap.Int64("product_id", productID),
				zap.Error(rerr))
		}
	}
	return ok, err
}

// reserveStockDB reserves stock using a row-locking transaction
func (ic *InventoryClient) reserveStockDB(ctx context.Context, productID int64, quantity int) (bool, error) {
	err := ic.store.ReserveStockTx(ctx, productID, quantity)
	if errors.Is(err, store.ErrInsufficientStock) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseStock returns reserved stock (compensation and cancellation)
func (ic *InventoryClient) ReleaseStock(ctx context.Context, productID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "InventoryClient.ReleaseStock")
	defer span.End()

	if err := ic.cache.ReleaseStock(ctx, productID, quantity); err != nil {
		ic.logger.Error("Failed to release stock in Redis",
			zap.Int64("product_id", productID),
			zap.Error(err))
	}

	return ic.store.ReleaseStock(ctx, productID, quantity)
}

// RestockStock puts a committed sale's units back on sale after a cancel
func (ic *InventoryClient) RestockStock(ctx context.Context, productID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "InventoryClient.RestockStock")
	defer span.End()

	if err := ic.cache.RestockStock(ctx, productID, quantity); err != nil {
		ic.logger.Error("Failed to restock in Redis",
			zap.Int64("product_id", productID),
			zap.Error(err))
	}

	return ic.store.RestockStock(ctx, productID, quantity)
}

// CommitStock finalizes reserved stock once an order is paid
func (ic *InventoryClient) CommitStock(ctx context.Context, productID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "InventoryClient.CommitStock")
	defer span.End()

	if err := ic.cache.CommitStock(ctx, productID, quantity); err != nil {
		ic.logger.Error("Failed to commit stock in Redis",
			zap.Int64("product_id", productID),
			zap.Error(err))
	}

	return ic.store.CommitStock(ctx, productID, quantity)
}

// Resync reloads one product's counts into Redis after an admin edit
func (ic *InventoryClient) Resync(ctx context.Context, product *models.Product) error {
	return ic.cache.InitStock(ctx, product.ID, product.StockQuantity, product.ReservedQuantity)
}

// Forget drops a deleted product's cached counts
func (ic *InventoryClient) Forget(ctx context.Context, productID int64) error {
	return ic.cache.DropStock(ctx, productID)
}

// SyncStockToRedis loads every product's stock counts into Redis
func (ic *InventoryClient) SyncStockToRedis(ctx context.Context) error {
	ic.logger.Info("Starting stock sync to Redis")

	products, err := ic.store.ListProducts(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}

	for i := range products {
		if err := ic.Resync(ctx, &products[i]); err != nil {
			ic.logger.Error("Failed to init Redis stock",
				zap.Int64("product_id", products[i].ID),
				zap.Error(err))
		}
	}

	ic.logger.Info("Stock sync completed", zap.Int("count", len(products)))
	return nil
}
