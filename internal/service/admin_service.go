package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"storefront/internal/catalog"
	"storefront/internal/checkout"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// Bulk product actions
const (
	BulkPublish = "publish"
	BulkHide    = "hide"
	BulkDelete  = "delete"
)

type catalogInvalidator interface {
	Invalidate(ctx context.Context)
}

// AdminService backs the admin console. Every mutation is attributed to an
// actor and announced as an ADMIN_ACTION or ORDER_STATUS_CHANGED event.
type AdminService struct {
	repo      AdminRepository
	inventory Inventory
	catalog   catalogInvalidator
	events    EventPublisher
	lowStock  int
	logger    *zap.Logger
	now       func() time.Time
}

// NewAdminService creates a new admin service
func NewAdminService(repo AdminRepository, inventory Inventory, catalog catalogInvalidator, events EventPublisher, lowStock int) *AdminService {
	return &AdminService{
		repo:      repo,
		inventory: inventory,
		catalog:   catalog,
		events:    events,
		lowStock:  lowStock,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// ProductPatch is a partial product update; nil fields are left alone
type ProductPatch struct {
	Title          *string            `json:"title"`
	Subtitle       *string            `json:"subtitle"`
	Price          *int64             `json:"price"`
	CompareAtPrice *int64             `json:"compare_at_price"`
	Category       *string            `json:"category"`
	Finish         *string            `json:"finish"`
	StockStatus    *string            `json:"stock_status"`
	StockQuantity  *int               `json:"stock_quantity"`
	ImageURL       *string            `json:"image_url"`
	Images         *[]string          `json:"images"`
	VideoURL       *string            `json:"video_url"`
	Description    *string            `json:"description"`
	Tags           *[]string          `json:"tags"`
	Attributes     *map[string]string `json:"attributes"`
	Active         *bool              `json:"active"`
	IsNew          *bool              `json:"is_new"`
}

func (p ProductPatch) apply(product *models.Product) {
	setString(&product.Title, p.Title)
	setString(&product.Subtitle, p.Subtitle)
	setString(&product.Category, p.Category)
	setString(&product.Finish, p.Finish)
	setString(&product.StockStatus, p.StockStatus)
	setString(&product.ImageURL, p.ImageURL)
	setString(&product.VideoURL, p.VideoURL)
	setString(&product.Description, p.Description)
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.CompareAtPrice != nil {
		product.CompareAtPrice = *p.CompareAtPrice
	}
	if p.StockQuantity != nil {
		product.StockQuantity = *p.StockQuantity
	}
	if p.Images != nil {
		product.Images = *p.Images
	}
	if p.Tags != nil {
		product.Tags = *p.Tags
	}
	if p.Attributes != nil {
		product.Attributes = *p.Attributes
	}
	if p.Active != nil {
		product.Active = *p.Active
	}
	if p.IsNew != nil {
		product.IsNew = *p.IsNew
	}
}

// CouponPatch is a partial coupon update
type CouponPatch struct {
	Code           *string    `json:"code"`
	DiscountType   *string    `json:"discount_type"`
	Value          *int64     `json:"value"`
	MinOrderAmount *int64     `json:"min_order_amount"`
	MaxDiscount    *int64     `json:"max_discount"`
	MaxUses        *int       `json:"max_uses"`
	ExpiresAt      *time.Time `json:"expires_at"`
	ClearExpiry    bool       `json:"clear_expiry"`
	Active         *bool      `json:"active"`
}

func (p CouponPatch) apply(c *models.Coupon) {
	if p.Code != nil {
		c.Code = *p.Code
	}
	setString(&c.DiscountType, p.DiscountType)
	if p.Value != nil {
		c.Value = *p.Value
	}
	if p.MinOrderAmount != nil {
		c.MinOrderAmount = *p.MinOrderAmount
	}
	if p.MaxDiscount != nil {
		c.MaxDiscount = *p.MaxDiscount
	}
	if p.MaxUses != nil {
		c.MaxUses = *p.MaxUses
	}
	if p.ExpiresAt != nil {
		c.ExpiresAt = p.ExpiresAt
	}
	if p.ClearExpiry {
		c.ExpiresAt = nil
	}
	if p.Active != nil {
		c.Active = *p.Active
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

// ListProducts lists every product, published or not
func (s *AdminService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.ListProducts(ctx, false)
}

// GetProduct returns one product regardless of its active flag
func (s *AdminService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return s.repo.GetProductByID(ctx, id)
}

// CreateProduct adds a product to the catalog
func (s *AdminService) CreateProduct(ctx context.Context, actor string, product *models.Product) error {
	ctx, span := util.StartSpan(ctx, "AdminService.CreateProduct")
	defer span.End()

	product.Title = strings.TrimSpace(product.Title)
	if product.StockStatus == "" {
		product.StockStatus = catalog.StockLabel(product.StockQuantity, s.lowStock)
	}
	if err := validateProduct(product); err != nil {
		return err
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	s.afterProductChange(ctx, product)
	s.announce(ctx, actor, "create", "product", product.ID, product.Title)
	return nil
}

// UpdateProduct applies a partial update
func (s *AdminService) UpdateProduct(ctx context.Context, actor string, id int64, patch ProductPatch) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.UpdateProduct")
	defer span.End()

	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.apply(product)
	if patch.StockQuantity != nil && patch.StockStatus == nil {
		product.StockStatus = catalog.StockLabel(product.StockQuantity, s.lowStock)
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if patch.StockQuantity != nil {
		if err := s.repo.SetStockQuantity(ctx, id, *patch.StockQuantity); err != nil {
			return nil, fmt.Errorf("failed to set stock: %w", err)
		}
	}
	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	s.afterProductChange(ctx, product)
	s.announce(ctx, actor, "update", "product", product.ID, product.Title)
	return product, nil
}

// DeleteProduct removes a product
func (s *AdminService) DeleteProduct(ctx context.Context, actor string, id int64) error {
	ctx, span := util.StartSpan(ctx, "AdminService.DeleteProduct")
	defer span.End()

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	if err := s.inventory.Forget(ctx, id); err != nil {
		s.logger.Warn("Failed to drop cached stock", zap.Int64("product_id", id), zap.Error(err))
	}
	s.catalog.Invalidate(ctx)
	s.announce(ctx, actor, "delete", "product", id, "")
	return nil
}

// BulkProducts publishes, hides or deletes many products at once
func (s *AdminService) BulkProducts(ctx context.Context, actor, action string, ids []int64) (int64, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.BulkProducts")
	defer span.End()

	if len(ids) == 0 {
		return 0, invalid("no products selected")
	}

	var (
		affected int64
		err      error
	)
	switch action {
	case BulkPublish:
		affected, err = s.repo.SetProductsActive(ctx, ids, true)
	case BulkHide:
		affected, err = s.repo.SetProductsActive(ctx, ids, false)
	case BulkDelete:
		affected, err = s.repo.DeleteProducts(ctx, ids)
		for _, id := range ids {
			if ferr := s.inventory.Forget(ctx, id); ferr != nil {
				s.logger.Warn("Failed to drop cached stock", zap.Int64("product_id", id), zap.Error(ferr))
			}
		}
	default:
		return 0, invalid("unknown bulk action %q", action)
	}
	if err != nil {
		return 0, fmt.Errorf("bulk %s failed: %w", action, err)
	}

	s.catalog.Invalidate(ctx)
	publishAdminAction(ctx, s.events, s.logger, actor, "bulk_"+action, "product", joinIDs(ids),
		fmt.Sprintf("%d affected", affected))
	util.AdminActionsTotal.WithLabelValues("product").Inc()
	return affected, nil
}

// ListOrders lists orders with optional status and search filters
func (s *AdminService) ListOrders(ctx context.Context, q store.OrderQuery) ([]models.Order, error) {
	if q.Status != "" && !models.IsOrderStatus(q.Status) {
		return nil, invalid("unknown order status %q", q.Status)
	}
	return s.repo.ListOrders(ctx, q)
}

// GetOrder returns an order with its lines
func (s *AdminService) GetOrder(ctx context.Context, id int64) (*OrderDetail, error) {
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.GetOrderItemsByOrderID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	return &OrderDetail{Order: order, Items: items}, nil
}

// UpdateOrderStatus moves an order along the fulfilment graph. Cancelling
// returns the order's stock: a held reservation is released, units from a
// paid sale are restocked.
func (s *AdminService) UpdateOrderStatus(ctx context.Context, actor string, id int64, to string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.UpdateOrderStatus")
	defer span.End()

	if !models.IsOrderStatus(to) {
		return nil, invalid("unknown order status %q", to)
	}
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := order.Status
	if !models.CanTransition(from, to) {
		return nil, fmt.Errorf("%s → %s: %w", from, to, ErrInvalidTransition)
	}

	var items []models.OrderItem
	if to == models.OrderStatusCancelled {
		items, err = s.repo.GetOrderItemsByOrderID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load order items: %w", err)
		}
	}
	committed := isSettled(order.PaymentStatus)

	if to == models.OrderStatusCancelled && order.PaymentStatus == models.PaymentStatusPending {
		ok, err := s.repo.ExpireOrder(ctx, id, "cancelled_by_admin")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("order %d: %w", id, store.ErrStaleState)
		}
		order.PaymentStatus = models.PaymentStatusExpired
	} else if err := s.repo.UpdateOrderStatus(ctx, id, from, to); err != nil {
		return nil, err
	}
	order.Status = to

	if to == models.OrderStatusCancelled {
		for _, item := range items {
			var err error
			if committed {
				err = s.inventory.RestockStock(ctx, item.ProductID, item.Quantity)
			} else {
				err = s.inventory.ReleaseStock(ctx, item.ProductID, item.Quantity)
			}
			if err != nil {
				s.logger.Error("Failed to restock cancelled item",
					zap.Int64("order_id", id),
					zap.Int64("product_id", item.ProductID),
					zap.Bool("committed", committed),
					zap.Error(err))
			}
		}
		s.catalog.Invalidate(ctx)
	}

	util.OrderStatusChangesTotal.WithLabelValues(to).Inc()
	s.logger.Info("Order status changed",
		zap.Int64("order_id", id),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("actor", actor))

	event := &models.OrderStatusChangedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		From:        from,
		To:          to,
		Actor:       actor,
	}
	if err := s.events.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}
	return order, nil
}

// ListCoupons lists every coupon
func (s *AdminService) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	return s.repo.ListCoupons(ctx)
}

// CreateCoupon adds a coupon
func (s *AdminService) CreateCoupon(ctx context.Context, actor string, coupon *models.Coupon) error {
	coupon.Code = checkout.NormalizeCouponCode(coupon.Code)
	if err := validateCoupon(coupon); err != nil {
		return err
	}
	if err := s.repo.CreateCoupon(ctx, coupon); err != nil {
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	s.announce(ctx, actor, "create", "coupon", coupon.ID, coupon.Code)
	return nil
}

// UpdateCoupon applies a partial coupon update
func (s *AdminService) UpdateCoupon(ctx context.Context, actor string, id int64, patch CouponPatch) (*models.Coupon, error) {
	coupon, err := s.repo.GetCouponByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.apply(coupon)
	coupon.Code = checkout.NormalizeCouponCode(coupon.Code)
	if err := validateCoupon(coupon); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCoupon(ctx, coupon); err != nil {
		return nil, err
	}
	s.announce(ctx, actor, "update", "coupon", coupon.ID, coupon.Code)
	return coupon, nil
}

// DeleteCoupon removes a coupon
func (s *AdminService) DeleteCoupon(ctx context.Context, actor string, id int64) error {
	if err := s.repo.DeleteCoupon(ctx, id); err != nil {
		return err
	}
	s.announce(ctx, actor, "delete", "coupon", id, "")
	return nil
}

// Settings returns every store setting
func (s *AdminService) Settings(ctx context.Context) (map[string]json.RawMessage, error) {
	return s.repo.GetSettings(ctx)
}

// UpdateSettings merges the given keys into the store settings
func (s *AdminService) UpdateSettings(ctx context.Context, actor string, values map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	if len(values) == 0 {
		return nil, invalid("no settings given")
	}
	keys := make([]string, 0, len(values))
	for k, v := range values {
		if strings.TrimSpace(k) == "" {
			return nil, invalid("setting name cannot be empty")
		}
		if !json.Valid(v) {
			return nil, invalid("setting %s is not valid JSON", k)
		}
		keys = append(keys, k)
	}
	if err := s.repo.UpsertSettings(ctx, values); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	publishAdminAction(ctx, s.events, s.logger, actor, "update", "settings", "store", strings.Join(keys, ","))
	util.AdminActionsTotal.WithLabelValues("settings").Inc()
	return s.repo.GetSettings(ctx)
}

// Customers aggregates buyers from confirmed orders
func (s *AdminService) Customers(ctx context.Context) ([]models.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

// Analytics summarizes the last days of trade
func (s *AdminService) Analytics(ctx context.Context, days int) (*models.Analytics, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.Analytics")
	defer span.End()

	if days <= 0 || days > 365 {
		days = 30
	}
	since := s.now().AddDate(0, 0, -days)
	return s.repo.Analytics(ctx, since, s.lowStock)
}

// Activity returns the most recent activity-log entries
func (s *AdminService) Activity(ctx context.Context, limit int) ([]models.ActivityLogEntry, error) {
	return s.repo.ListActivity(ctx, limit)
}

// Messages lists contact-form messages
func (s *AdminService) Messages(ctx context.Context, unreadOnly bool) ([]models.Message, error) {
	return s.repo.ListMessages(ctx, unreadOnly)
}

// MarkMessage flags a message read or unread
func (s *AdminService) MarkMessage(ctx context.Context, actor string, id int64, read bool) error {
	if err := s.repo.SetMessageRead(ctx, id, read); err != nil {
		return err
	}
	action := "mark_unread"
	if read {
		action = "mark_read"
	}
	s.announce(ctx, actor, action, "message", id, "")
	return nil
}

// DeleteMessage removes a message
func (s *AdminService) DeleteMessage(ctx context.Context, actor string, id int64) error {
	if err := s.repo.DeleteMessage(ctx, id); err != nil {
		return err
	}
	s.announce(ctx, actor, "delete", "message", id, "")
	return nil
}

// Enquiries lists bulk-order enquiries, optionally by status
func (s *AdminService) Enquiries(ctx context.Context, status string) ([]models.Enquiry, error) {
	if status != "" && !isEnquiryStatus(status) {
		return nil, invalid("unknown enquiry status %q", status)
	}
	return s.repo.ListEnquiries(ctx, status)
}

// UpdateEnquiry sets an enquiry's follow-up status
func (s *AdminService) UpdateEnquiry(ctx context.Context, actor string, id int64, status string) error {
	if !isEnquiryStatus(status) {
		return invalid("unknown enquiry status %q", status)
	}
	if err := s.repo.UpdateEnquiryStatus(ctx, id, status); err != nil {
		return err
	}
	s.announce(ctx, actor, "set_"+status, "enquiry", id, "")
	return nil
}

func (s *AdminService) afterProductChange(ctx context.Context, product *models.Product) {
	if err := s.inventory.Resync(ctx, product); err != nil {
		s.logger.Warn("Failed to resync cached stock", zap.Int64("product_id", product.ID), zap.Error(err))
	}
	s.catalog.Invalidate(ctx)
}

func (s *AdminService) announce(ctx context.Context, actor, action, entity string, id int64, detail string) {
	util.AdminActionsTotal.WithLabelValues(entity).Inc()
	publishAdminAction(ctx, s.events, s.logger, actor, action, entity, strconv.FormatInt(id, 10), detail)
}

func validateProduct(p *models.Product) error {
	switch {
	case p.Title == "":
		return invalid("title is required")
	case p.Price < 0:
		return invalid("price cannot be negative")
	case p.CompareAtPrice < 0:
		return invalid("compare-at price cannot be negative")
	case p.StockQuantity < 0:
		return invalid("stock quantity cannot be negative")
	}
	return nil
}

func validateCoupon(c *models.Coupon) error {
	switch {
	case c.Code == "":
		return invalid("coupon code is required")
	case c.DiscountType != models.DiscountPercentage && c.DiscountType != models.DiscountFlat:
		return invalid("discount type must be percentage or flat")
	case c.Value <= 0:
		return invalid("discount value must be positive")
	case c.DiscountType == models.DiscountPercentage && c.Value > 100:
		return invalid("percentage discount cannot exceed 100")
	case c.MinOrderAmount < 0 || c.MaxDiscount < 0 || c.MaxUses < 0:
		return invalid("limits cannot be negative")
	}
	return nil
}

func isEnquiryStatus(s string) bool {
	return s == models.EnquiryStatusNew || s == models.EnquiryStatusContacted || s == models.EnquiryStatusClosed
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
