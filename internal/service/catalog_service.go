package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/catalog"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// CatalogService serves the storefront product grid
type CatalogService struct {
	products ProductRepository
	cache    ProductCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(products ProductRepository, cache ProductCache, cacheTTL time.Duration) *CatalogService {
	return &CatalogService{
		products: products,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// ListProducts returns one page of the filtered, sorted active catalog
func (s *CatalogService) ListProducts(ctx context.Context, filter catalog.Filter) (catalog.Page, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	products, err := s.activeProducts(ctx)
	if err != nil {
		return catalog.Page{}, err
	}

	page, err := catalog.Apply(products, filter)
	if err != nil {
		return catalog.Page{}, invalid("%v", err)
	}
	return page, nil
}

// GetProduct returns one published product
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProduct")
	defer span.End()

	product, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return product, nil
}

// Invalidate drops the cached product list
func (s *CatalogService) Invalidate(ctx context.Context) {
	if err := s.cache.InvalidateProducts(ctx); err != nil {
		s.logger.Warn("Failed to invalidate product cache", zap.Error(err))
	}
}

func (s *CatalogService) activeProducts(ctx context.Context) ([]models.Product, error) {
	cached, err := s.cache.CachedProducts(ctx)
	if err != nil {
		s.logger.Warn("Product cache read failed", zap.Error(err))
	}
	if cached != nil {
		util.ProductCacheTotal.WithLabelValues("hit").Inc()
		return cached, nil
	}
	util.ProductCacheTotal.WithLabelValues("miss").Inc()

	products, err := s.products.ListProducts(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	if err := s.cache.CacheProducts(ctx, products, s.cacheTTL); err != nil {
		s.logger.Warn("Failed to cache products", zap.Error(err))
	}
	return products, nil
}
