package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/repository"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/shopify"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/pkg/errors"
)

// ResolvedItem is a cart line with its platform variant reference. Variant is nil when the
// reference came with the request and the catalog was not read.
type ResolvedItem struct {
	domain.ResolvedLineItem
	Variant *domain.Variant
}

// variantKey identifies the platform variant whatever form the reference came in, so a
// numeric id and its GID count as one variant.
func (it ResolvedItem) variantKey() string {
	return shopify.VariantGID(it.PlatformVariantRef)
}

// Resolution is the outcome of resolving a cart. Items and Failures are both ordered by
// cart index; every cart line appears in exactly one of them.
type Resolution struct {
	Items    []ResolvedItem
	Failures []errors.Reason
}

// VariantResolver maps catalog variant ids to platform variant references
type VariantResolver struct {
	catalog repository.CatalogRepository
	fanOut  int
	logger  *zap.Logger
}

func NewVariantResolver(catalog repository.CatalogRepository, fanOut int, logger *zap.Logger) *VariantResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fanOut < 1 {
		fanOut = 1
	}
	return &VariantResolver{catalog: catalog, fanOut: fanOut, logger: logger}
}

// Resolve resolves every line concurrently. Lines that already carry a reference pass
// through untouched without a catalog read. Per-line failures are collected, never
// returned as an error; the error return is reserved for cancellation.
func (r *VariantResolver) Resolve(ctx context.Context, tenant string, items []domain.CartLineItem) (*Resolution, error) {
	type outcome struct {
		item    *ResolvedItem
		failure *errors.Reason
	}
	outcomes := make([]outcome, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.fanOut)
	for i, item := range items {
		if item.PlatformVariantRef != "" {
			outcomes[i].item = &ResolvedItem{ResolvedLineItem: domain.ResolvedLineItem{Index: i, CartLineItem: item}}
			continue
		}
		g.Go(func() error {
			resolved, failure := r.resolveOne(gctx, tenant, i, item)
			outcomes[i] = outcome{item: resolved, failure: failure}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Resolution{}
	for _, o := range outcomes {
		if o.item != nil {
			res.Items = append(res.Items, *o.item)
		} else {
			res.Failures = append(res.Failures, *o.failure)
		}
	}
	return res, nil
}

func (r *VariantResolver) resolveOne(ctx context.Context, tenant string, index int, item domain.CartLineItem) (*ResolvedItem, *errors.Reason) {
	reason := func(kind errors.Kind, msg string) *errors.Reason {
		return &errors.Reason{
			Kind:      kind,
			LineIndex: index,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Message:   msg,
		}
	}

	variant, err := r.catalog.GetVariant(ctx, tenant, item.ProductID, item.VariantID)
	if err != nil {
		switch errors.KindOf(err) {
		case errors.KindNotFound:
			return nil, reason(errors.KindNotFound, fmt.Sprintf("Variant %s of product %s was not found", item.VariantID, item.ProductID))
		default:
			r.logger.Warn("Variant lookup failed",
				zap.String("tenant", tenant),
				zap.String("product_id", item.ProductID),
				zap.String("variant_id", item.VariantID),
				zap.Error(err))
			return nil, reason(errors.KindUpstreamUnavailable, "The product catalog is temporarily unavailable")
		}
	}

	if !variant.HasPlatformRef() {
		unlinked := &errors.ErrUnlinkedVariant{ProductID: item.ProductID, VariantID: item.VariantID}
		r.logger.Info("Variant is not linked to the platform",
			zap.String("tenant", tenant),
			zap.String("product_id", item.ProductID),
			zap.String("variant_id", item.VariantID))
		return nil, reason(errors.KindUnlinkedVariant, unlinked.Error())
	}

	item.PlatformVariantRef = *variant.PlatformVariantRef
	return &ResolvedItem{
		ResolvedLineItem: domain.ResolvedLineItem{Index: index, CartLineItem: item},
		Variant:          variant,
	}, nil
}
