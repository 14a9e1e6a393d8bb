package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/reserve_stock.lua
var reserveStockScript string

//go:embed scripts/release_stock.lua
var releaseStockScript string

//go:embed scripts/commit_stock.lua
var commitStockScript string

//go:embed scripts/restock_stock.lua
var restockStockScript string

// ErrNotCached is returned when a product's stock has not been loaded into Redis
var ErrNotCached = errors.New("stock not cached")

const productListKey = "catalog:products"

type Client struct {
	rdb           *redis.Client
	reserveScript *redis.Script
	releaseScript *redis.Script
	commitScript  *redis.Script
	restockScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		reserveScript: redis.NewScript(reserveStockScript),
		releaseScript: redis.NewScript(releaseStockScript),
		commitScript:  redis.NewScript(commitStockScript),
		restockScript: redis.NewScript(restockStockScript),
	}, nil
}

// Ping checks the connection, used by the readiness check
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func stockKey(productID int64) string {
	return fmt.Sprintf("stock:%d", productID)
}

// ReserveStock atomically moves quantity from available to reserved.
// Returns false on insufficient stock and ErrNotCached when the product was
// never loaded, so the caller can fall back to the database.
func (c *Client) ReserveStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	result, err := c.reserveScript.Run(ctx, c.rdb, []string{stockKey(productID)}, quantity).Int64()
	if err != nil {
		return false, fmt.Errorf("reserve stock script failed: %w", err)
	}

	switch result {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, ErrNotCached
	}
}

// ReleaseStock atomically returns reserved stock to available (compensation)
func (c *Client) ReleaseStock(ctx context.Context, productID int64, quantity int) error {
	if err := c.releaseScript.Run(ctx, c.rdb, []string{stockKey(productID)}, quantity).Err(); err != nil {
		return fmt.Errorf("release stock script failed: %w", err)
	}
	return nil
}

// CommitStock atomically drops reserved stock once the sale is final
func (c *Client) CommitStock(ctx context.Context, productID int64, quantity int) error {
	if err := c.commitScript.Run(ctx, c.rdb, []string{stockKey(productID)}, quantity).Err(); err != nil {
		return fmt.Errorf("commit stock script failed: %w", err)
	}
	return nil
}

// RestockStock puts units from a cancelled, already committed sale back into
// available. A product that is not cached is left for the next resync.
func (c *Client) RestockStock(ctx context.Context, productID int64, quantity int) error {
	if err := c.restockScript.Run(ctx, c.rdb, []string{stockKey(productID)}, quantity).Err(); err != nil {
		return fmt.Errorf("restock script failed: %w", err)
	}
	return nil
}

// InitStock loads a product's stock counts into Redis
func (c *Client) InitStock(ctx context.Context, productID int64, available, reserved int) error {
	key := stockKey(productID)

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, "available", available, "reserved", reserved)

	_, err := pipe.Exec(ctx)
	return err
}

// DropStock forgets a product's cached stock, e.g. after an admin edit
func (c *Client) DropStock(ctx context.Context, productID int64) error {
	return c.rdb.Del(ctx, stockKey(productID)).Err()
}

// CachedProducts returns the cached active product list, or nil on a miss
func (c *Client) CachedProducts(ctx context.Context) ([]models.Product, error) {
	raw, err := c.rdb.Get(ctx, productListKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var products []models.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("corrupt product cache: %w", err)
	}
	return products, nil
}

// CacheProducts stores the active product list
func (c *Client) CacheProducts(ctx context.Context, products []models.Product, ttl time.Duration) error {
	raw, err := json.Marshal(products)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, productListKey, raw, ttl).Err()
}

// InvalidateProducts drops the cached product list
func (c *Client) InvalidateProducts(ctx context.Context) error {
	return c.rdb.Del(ctx, productListKey).Err()
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
