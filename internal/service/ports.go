package service

import (
	"context"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/shopify"
)

// InventoryReader reads authoritative per-location stock from the management API
type InventoryReader interface {
	VariantInventory(ctx context.Context, ref string) (*domain.VariantInventory, error)
}

// Platform is the commerce platform surface the checkout flow needs.
// *shopify.Client implements it.
type Platform interface {
	InventoryReader
	VerifyVariants(ctx context.Context, refs []string) (map[string]domain.VisibilityStatus, error)
	CreateCart(ctx context.Context, in shopify.CartInput) (*shopify.Cart, error)
	UpdateBuyerIdentity(ctx context.Context, cartID string, identity shopify.BuyerIdentity) error
}

var _ Platform = (*shopify.Client)(nil)
