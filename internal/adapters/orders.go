package adapters

import (
	"context"

	"github.com/iwanfadzly/call/internal/catalog"
	ordersvc "github.com/iwanfadzly/call/internal/orders/service"
	"github.com/iwanfadzly/call/internal/whatsapp"

	"github.com/google/uuid"
)

// CatalogAdapter exposes the product catalog to the orders module.
type CatalogAdapter struct {
	repo *catalog.Repository
}

// NewCatalogAdapter creates a catalog adapter.
func NewCatalogAdapter(repo *catalog.Repository) *CatalogAdapter {
	return &CatalogAdapter{repo: repo}
}

func (a *CatalogAdapter) ProductByID(ctx context.Context, id uuid.UUID) (ordersvc.ProductInfo, error) {
	product, err := a.repo.GetByID(ctx, id)
	if err != nil {
		return ordersvc.ProductInfo{}, err
	}
	return ordersvc.ProductInfo{
		ID:         product.ID,
		Name:       product.Name,
		PriceCents: product.PriceCents,
		Currency:   product.Currency,
	}, nil
}

var _ ordersvc.ProductCatalog = (*CatalogAdapter)(nil)

// OrderActionsAdapter exposes the order keyword shortcuts to the whatsapp
// module.
type OrderActionsAdapter struct {
	svc *ordersvc.Service
}

// NewOrderActionsAdapter creates an order actions adapter.
func NewOrderActionsAdapter(svc *ordersvc.Service) *OrderActionsAdapter {
	return &OrderActionsAdapter{svc: svc}
}

func (a *OrderActionsAdapter) ConfirmCODLatest(ctx context.Context, leadID uuid.UUID) error {
	_, err := a.svc.ConfirmCODLatest(ctx, leadID)
	return err
}

func (a *OrderActionsAdapter) MarkPaidLatest(ctx context.Context, leadID uuid.UUID) error {
	_, err := a.svc.MarkPaidLatest(ctx, leadID)
	return err
}

var _ whatsapp.OrderActions = (*OrderActionsAdapter)(nil)
