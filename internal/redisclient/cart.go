package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"storefront/internal/models"
)

// A cart lives in one hash per session: field = product id, value = JSON line.

func cartKey(sessionID string) string {
	return "cart:" + sessionID
}

// CartItems returns the session's cart lines ordered by product id
func (c *Client) CartItems(ctx context.Context, sessionID string) ([]models.CartItem, error) {
	fields, err := c.rdb.HGetAll(ctx, cartKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	return decodeCart(fields)
}

// PutCartItem writes one cart line and refreshes the cart's TTL
func (c *Client) PutCartItem(ctx context.Context, sessionID string, item models.CartItem, ttl time.Duration) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return err
	}

	key := cartKey(sessionID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, strconv.FormatInt(item.ProductID, 10), raw)
	pipe.Expire(ctx, key, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// RemoveCartItem drops one line from the cart
func (c *Client) RemoveCartItem(ctx context.Context, sessionID string, productID int64) error {
	return c.rdb.HDel(ctx, cartKey(sessionID), strconv.FormatInt(productID, 10)).Err()
}

// ClearCart empties the session's cart
func (c *Client) ClearCart(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, cartKey(sessionID)).Err()
}

func decodeCart(fields map[string]string) ([]models.CartItem, error) {
	items := make([]models.CartItem, 0, len(fields))
	for field, raw := range fields {
		var item models.CartItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("corrupt cart line %s: %w", field, err)
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return items, nil
}
