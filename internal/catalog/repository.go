// Package catalog holds the product list orders are built from. Prices are
// stored in cents and snapshotted onto order items at purchase time.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iwanfadzly/call/platform/apperr"
)

// Product is a sellable item.
type Product struct {
	ID         uuid.UUID `json:"id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"priceCents"`
	Currency   string    `json:"currency"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// CreateProductParams are the fields needed to add a product.
type CreateProductParams struct {
	SKU        string
	Name       string
	PriceCents int64
	Currency   string
}

const productColumns = `id, sku, name, price_cents, currency, active, created_at, updated_at`

// Repository persists products.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new product repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new product. SKUs are unique.
func (r *Repository) Create(ctx context.Context, params CreateProductParams) (Product, error) {
	currency := params.Currency
	if currency == "" {
		currency = "MYR"
	}

	query := `
		INSERT INTO products (sku, name, price_cents, currency)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + productColumns

	p, err := scanProduct(r.pool.QueryRow(ctx, query, params.SKU, params.Name, params.PriceCents, currency))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Product{}, apperr.Conflict("a product with this SKU already exists")
		}
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

// GetByID retrieves a product.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, apperr.NotFound("product not found")
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// List returns active products.
func (r *Repository) List(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Deactivate hides a product from new orders without touching past ones.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("product not found")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.Currency, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
