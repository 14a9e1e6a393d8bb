package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"
)

// CartService manages session-scoped carts. Prices and titles always come
// from the catalog, never from the client.
type CartService struct {
	carts    CartStore
	products ProductRepository
	ttl      time.Duration
}

// NewCartService creates a new cart service
func NewCartService(carts CartStore, products ProductRepository, ttl time.Duration) *CartService {
	return &CartService{carts: carts, products: products, ttl: ttl}
}

// Get returns the cart with its subtotal
func (s *CartService) Get(ctx context.Context, sessionID string) (*models.Cart, error) {
	if sessionID == "" {
		return nil, invalid("cart session is required")
	}
	items, err := s.carts.CartItems(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return buildCart(sessionID, items), nil
}

// Add puts quantity more of a product into the cart, capped at stock
func (s *CartService) Add(ctx context.Context, sessionID string, productID int64, quantity int) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Add")
	defer span.End()

	if quantity <= 0 {
		return nil, invalid("quantity must be positive")
	}
	cart, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, item := range cart.Items {
		if item.ProductID == productID {
			quantity += item.Quantity
			break
		}
	}
	util.CartOperationsTotal.WithLabelValues("add").Inc()
	return s.put(ctx, sessionID, productID, quantity)
}

// Update sets a line's quantity; zero removes the line
func (s *CartService) Update(ctx context.Context, sessionID string, productID int64, quantity int) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Update")
	defer span.End()

	if quantity < 0 {
		return nil, invalid("quantity cannot be negative")
	}
	util.CartOperationsTotal.WithLabelValues("update").Inc()
	if quantity == 0 {
		return s.Remove(ctx, sessionID, productID)
	}
	return s.put(ctx, sessionID, productID, quantity)
}

// Remove drops a line from the cart
func (s *CartService) Remove(ctx context.Context, sessionID string, productID int64) (*models.Cart, error) {
	if sessionID == "" {
		return nil, invalid("cart session is required")
	}
	if err := s.carts.RemoveCartItem(ctx, sessionID, productID); err != nil {
		return nil, fmt.Errorf("failed to remove cart item: %w", err)
	}
	util.CartOperationsTotal.WithLabelValues("remove").Inc()
	return s.Get(ctx, sessionID)
}

// Clear empties the cart
func (s *CartService) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return invalid("cart session is required")
	}
	util.CartOperationsTotal.WithLabelValues("clear").Inc()
	return s.carts.ClearCart(ctx, sessionID)
}

func (s *CartService) put(ctx context.Context, sessionID string, productID int64, quantity int) (*models.Cart, error) {
	product, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	if product.StockQuantity <= 0 {
		return nil, fmt.Errorf("%s: %w", product.Title, ErrOutOfStock)
	}
	if quantity > product.StockQuantity {
		quantity = product.StockQuantity
	}

	item := models.CartItem{
		ProductID: product.ID,
		Title:     product.Title,
		Finish:    product.Finish,
		Price:     product.Price,
		Quantity:  quantity,
		Image:     product.ImageURL,
	}
	if err := s.carts.PutCartItem(ctx, sessionID, item, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to save cart item: %w", err)
	}
	return s.Get(ctx, sessionID)
}

func buildCart(sessionID string, items []models.CartItem) *models.Cart {
	cart := &models.Cart{SessionID: sessionID, Items: items}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	for _, item := range cart.Items {
		cart.Subtotal += item.Price * int64(item.Quantity)
		cart.ItemCount += item.Quantity
	}
	return cart
}
