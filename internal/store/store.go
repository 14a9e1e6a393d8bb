package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStaleState        = errors.New("record changed state concurrently")
)

const productColumns = `id, title, subtitle, price, compare_at_price, category, finish, stock_status,
	stock_quantity, reserved_quantity, image_url, images, video_url, description, tags, attributes,
	active, is_new, created_at, updated_at`

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing connection
func NewStoreWithDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection, used by the readiness check
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListProducts retrieves products, optionally only the published ones
func (s *Store) ListProducts(ctx context.Context, activeOnly bool) ([]models.Product, error) {
	query := "SELECT " + productColumns + " FROM products"
	if activeOnly {
		query += " WHERE active"
	}
	query += " ORDER BY id"

	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, query)
	return products, err
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// CreateProduct inserts a product
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (title, subtitle, price, compare_at_price, category, finish, stock_status,
			stock_quantity, image_url, images, video_url, description, tags, attributes, active, is_new)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at`

	p.Images = nonNullArray(p.Images)
	p.Tags = nonNullArray(p.Tags)

	return s.db.QueryRowxContext(ctx, query,
		p.Title, p.Subtitle, p.Price, p.CompareAtPrice, p.Category, p.Finish, p.StockStatus,
		p.StockQuantity, p.ImageURL, p.Images, p.VideoURL, p.Description, p.Tags, p.Attributes,
		p.Active, p.IsNew,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// UpdateProduct writes the descriptive columns of p. Stock counts are left
// to the reservation paths and SetStockQuantity; the current counts are read
// back into p.
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products SET title = $1, subtitle = $2, price = $3, compare_at_price = $4, category = $5,
			finish = $6, stock_status = $7, image_url = $8, images = $9, video_url = $10,
			description = $11, tags = $12, attributes = $13, active = $14, is_new = $15, updated_at = NOW()
		WHERE id = $16
		RETURNING stock_quantity, reserved_quantity, updated_at`

	p.Images = nonNullArray(p.Images)
	p.Tags = nonNullArray(p.Tags)

	err := s.db.QueryRowxContext(ctx, query,
		p.Title, p.Subtitle, p.Price, p.CompareAtPrice, p.Category, p.Finish, p.StockStatus,
		p.ImageURL, p.Images, p.VideoURL, p.Description, p.Tags, p.Attributes,
		p.Active, p.IsNew, p.ID,
	).Scan(&p.StockQuantity, &p.ReservedQuantity, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("product %d: %w", p.ID, ErrNotFound)
	}
	return err
}

// SetStockQuantity overwrites the sellable count after a stock-take
func (s *Store) SetStockQuantity(ctx context.Context, productID int64, quantity int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET stock_quantity = $1, updated_at = NOW() WHERE id = $2",
		quantity, productID)
	if err != nil {
		return err
	}
	return expectRows(res, fmt.Errorf("product %d: %w", productID, ErrNotFound))
}

func nonNullArray(a pq.StringArray) pq.StringArray {
	if a == nil {
		return pq.StringArray{}
	}
	return a
}

// DeleteProduct removes a product
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectRows(res, fmt.Errorf("product %d: %w", id, ErrNotFound))
}

// SetProductsActive publishes or hides products in one statement
func (s *Store) SetProductsActive(ctx context.Context, ids []int64, active bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In("UPDATE products SET active = ?, updated_at = NOW() WHERE id IN (?)", active, ids)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteProducts removes products in one statement
func (s *Store) DeleteProducts(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In("DELETE FROM products WHERE id IN (?)", ids)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReserveStockTx reserves stock within a transaction (FOR UPDATE lock)
func (s *Store) ReserveStockTx(ctx context.Context, productID int64, quantity int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var available int
	err = tx.GetContext(ctx, &available,
		"SELECT stock_quantity FROM products WHERE id = $1 FOR UPDATE", productID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to lock stock: %w", err)
	}

	if available < quantity {
		return fmt.Errorf("%w: available=%d, requested=%d", ErrInsufficientStock, available, quantity)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE products SET stock_quantity = stock_quantity - $1, reserved_quantity = reserved_quantity + $1, updated_at = NOW() WHERE id = $2",
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}

	return tx.Commit()
}

// ReleaseStock releases reserved stock (compensation)
func (s *Store) ReleaseStock(ctx context.Context, productID int64, quantity int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE products SET stock_quantity = stock_quantity + $1, reserved_quantity = GREATEST(reserved_quantity - $1, 0), updated_at = NOW() WHERE id = $2",
		quantity, productID)
	return err
}

// RestockStock puts units from a settled order back on sale. The order's
// reservation was already committed, so reserved_quantity is untouched.
func (s *Store) RestockStock(ctx context.Context, productID int64, quantity int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE products SET stock_quantity = stock_quantity + $1, updated_at = NOW() WHERE id = $2",
		quantity, productID)
	return err
}

// CommitStock commits reserved stock (final deduction)
func (s *Store) CommitStock(ctx context.Context, productID int64, quantity int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE products SET reserved_quantity = GREATEST(reserved_quantity - $1, 0), updated_at = NOW() WHERE id = $2",
		quantity, productID)
	return err
}

func expectRows(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
