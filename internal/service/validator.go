package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/repository"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/pkg/errors"
)

const tracerName = "github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/service"

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Validator runs the market, inventory and shipping checks over a cart
type Validator struct {
	resolver  *VariantResolver
	catalog   repository.CatalogRepository
	inventory InventoryReader
	markets   domain.MarketTable
	locations *domain.LocationTable
	fanOut    int
	logger    *zap.Logger
}

func NewValidator(
	resolver *VariantResolver,
	catalog repository.CatalogRepository,
	inventory InventoryReader,
	markets domain.MarketTable,
	locations *domain.LocationTable,
	fanOut int,
	logger *zap.Logger,
) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fanOut < 1 {
		fanOut = 1
	}
	return &Validator{
		resolver:  resolver,
		catalog:   catalog,
		inventory: inventory,
		markets:   markets,
		locations: locations,
		fanOut:    fanOut,
		logger:    logger,
	}
}

// ValidateCartInput rejects malformed carts before any external call
func ValidateCartInput(items []domain.CartLineItem) error {
	if len(items) == 0 {
		return &errors.ErrValidation{Message: "cart is empty"}
	}
	fields := map[string]string{}
	for i, item := range items {
		if item.ProductID == "" {
			fields[fmt.Sprintf("items[%d].productId", i)] = "is required"
		}
		if item.VariantID == "" && item.PlatformVariantRef == "" {
			fields[fmt.Sprintf("items[%d].variantId", i)] = "is required"
		}
		if item.Quantity <= 0 {
			fields[fmt.Sprintf("items[%d].quantity", i)] = "must be greater than 0"
		}
	}
	if len(fields) > 0 {
		return &errors.ErrValidation{Message: "invalid cart", Fields: fields}
	}
	return nil
}

// ValidationMarket is the market a cart is checked against: the destination country when
// one is known, the context market otherwise.
func ValidationMarket(sc domain.StoreContext, dest *domain.Address) string {
	if dest != nil && dest.CountryCode != "" {
		return domain.NormalizeMarketCode(dest.CountryCode)
	}
	return domain.NormalizeMarketCode(sc.Market)
}

type validation struct {
	verdict  *domain.CheckoutVerdict
	market   string
	resolved []ResolvedItem
}

// Validate returns the verdict for a cart. Every problem in the cart is reported; only a
// malformed cart or cancellation produce an error.
func (v *Validator) Validate(ctx context.Context, sc domain.StoreContext, items []domain.CartLineItem, dest *domain.Address) (*domain.CheckoutVerdict, error) {
	res, err := v.validate(ctx, sc, items, dest)
	if err != nil {
		return nil, err
	}
	return res.verdict, nil
}

type productLoad struct {
	product *domain.Product
	err     error
}

type stockLoad struct {
	inv *domain.VariantInventory
	err error
}

func (v *Validator) validate(ctx context.Context, sc domain.StoreContext, items []domain.CartLineItem, dest *domain.Address) (*validation, error) {
	if err := ValidateCartInput(items); err != nil {
		return nil, err
	}
	market := ValidationMarket(sc, dest)

	ctx, span := tracer().Start(ctx, "checkout.validate", trace.WithAttributes(
		attribute.String("tenant", sc.Tenant),
		attribute.String("market", market),
		attribute.Int("lines", len(items)),
	))
	defer span.End()

	resolution, err := v.resolver.Resolve(ctx, sc.Tenant, items)
	if err != nil {
		return nil, err
	}

	products := make(map[string]*productLoad)
	for _, item := range items {
		if _, ok := products[item.ProductID]; !ok {
			products[item.ProductID] = &productLoad{}
		}
	}
	stocks := make([]stockLoad, len(resolution.Items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.fanOut)
	for productID, load := range products {
		g.Go(func() error {
			load.product, load.err = v.catalog.GetProduct(gctx, sc.Tenant, productID)
			return nil
		})
	}
	for i, item := range resolution.Items {
		g.Go(func() error {
			stocks[i].inv, stocks[i].err = v.inventory.VariantInventory(gctx, item.variantKey())
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	verdict := &domain.CheckoutVerdict{
		Market:    v.checkMarkets(market, items, resolution, products),
		Inventory: v.checkInventory(market, items, resolution, stocks),
		Shipping:  v.checkShipping(dest),
	}
	verdict.Valid = verdict.Market.Valid && verdict.Inventory.Valid && verdict.Shipping.Valid
	verdict.Reasons = make([]errors.Reason, 0, len(verdict.Market.Reasons)+len(verdict.Inventory.Reasons)+len(verdict.Shipping.Reasons))
	verdict.Reasons = append(verdict.Reasons, verdict.Market.Reasons...)
	verdict.Reasons = append(verdict.Reasons, verdict.Inventory.Reasons...)
	verdict.Reasons = append(verdict.Reasons, verdict.Shipping.Reasons...)

	span.SetAttributes(attribute.Bool("valid", verdict.Valid), attribute.Int("reasons", len(verdict.Reasons)))
	return &validation{verdict: verdict, market: market, resolved: resolution.Items}, nil
}

// checkMarkets fails closed: a product without market data, an inactive product or a
// failed product read is never eligible.
func (v *Validator) checkMarkets(market string, items []domain.CartLineItem, resolution *Resolution, products map[string]*productLoad) domain.MarketCheck {
	check := domain.MarketCheck{Valid: true, Market: market, Items: make([]domain.MarketItemResult, 0, len(items)), Reasons: []errors.Reason{}}

	variants := make(map[int]*domain.Variant, len(resolution.Items))
	for _, it := range resolution.Items {
		if it.Variant != nil {
			variants[it.Index] = it.Variant
		}
	}

	for i, item := range items {
		result := domain.MarketItemResult{LineIndex: i, ProductID: item.ProductID, VariantID: item.VariantID}
		load := products[item.ProductID]

		var reason *errors.Reason
		switch {
		case load.err != nil && errors.IsNotFound(load.err):
			reason = &errors.Reason{Kind: errors.KindNotFound, Message: fmt.Sprintf("Product %s was not found", item.ProductID)}
		case load.err != nil:
			v.logger.Warn("Product lookup failed", zap.String("product_id", item.ProductID), zap.Error(load.err))
			reason = &errors.Reason{Kind: errors.KindUpstreamUnavailable, Message: "The product catalog is temporarily unavailable"}
		default:
			p := load.product
			eligible := p.Active && p.Markets.Allows(market)
			if variant := variants[i]; eligible && variant != nil && variant.Markets != nil {
				eligible = variant.Markets.Allows(market)
			}
			if eligible {
				result.Eligible = true
			} else {
				reason = &errors.Reason{Kind: errors.KindMarketIneligible, Message: fmt.Sprintf("%s is not available in %s", displayName(p), market)}
			}
		}

		if reason != nil {
			reason.LineIndex = i
			reason.ProductID = item.ProductID
			reason.VariantID = item.VariantID
			check.Reasons = append(check.Reasons, *reason)
			check.Valid = false
		}
		check.Items = append(check.Items, result)
	}
	return check
}

// checkInventory reports resolution failures and market-filtered stock per line, in cart
// order. Lines for the same variant are checked against their combined quantity.
func (v *Validator) checkInventory(market string, items []domain.CartLineItem, resolution *Resolution, stocks []stockLoad) domain.InventoryCheck {
	check := domain.InventoryCheck{Valid: true, Items: make([]domain.InventoryItemResult, 0, len(items)), Reasons: []errors.Reason{}}

	demand := make(map[string]int, len(resolution.Items))
	for _, it := range resolution.Items {
		demand[it.variantKey()] += it.Quantity
	}

	failures := make(map[int]errors.Reason, len(resolution.Failures))
	for _, f := range resolution.Failures {
		failures[f.LineIndex] = f
	}
	resolved := make(map[int]int, len(resolution.Items))
	for pos, it := range resolution.Items {
		resolved[it.Index] = pos
	}

	for i, item := range items {
		result := domain.InventoryItemResult{LineIndex: i, ProductID: item.ProductID, VariantID: item.VariantID, Requested: item.Quantity}

		if f, failed := failures[i]; failed {
			check.Items = append(check.Items, result)
			check.Reasons = append(check.Reasons, f)
			check.Valid = false
			continue
		}

		pos := resolved[i]
		ref := resolution.Items[pos].PlatformVariantRef
		key := resolution.Items[pos].variantKey()
		result.PlatformVariantRef = ref
		load := stocks[pos]

		reason := errors.Reason{LineIndex: i, ProductID: item.ProductID, VariantID: item.VariantID, PlatformVariantRef: ref}
		switch {
		case load.err != nil && errors.IsNotFound(load.err):
			reason.Kind = errors.KindNotFound
			reason.Message = fmt.Sprintf("Variant %s was not found on the commerce platform", item.VariantID)
		case load.err != nil:
			v.logger.Warn("Inventory lookup failed", zap.String("platform_variant_ref", ref), zap.Error(load.err))
			reason.Kind = errors.KindUpstreamUnavailable
			reason.Message = "Stock levels are temporarily unavailable"
		default:
			stock := AggregateStock(load.inv, market, v.locations)
			result.Available = stock.Available
			result.Backorder = stock.Backorder
			result.Purchasable = stock.Purchasable
			result.FulfillmentLocation = stock.PreferredLocation(item.Quantity)
			result.Valid = stock.Covers(demand[key])
			if !result.Valid {
				reason.Kind = errors.KindOutOfStock
				reason.Message = outOfStockMessage(stock.Available, item.Quantity, demand[key], market)
			}
		}

		if reason.Kind != "" {
			check.Reasons = append(check.Reasons, reason)
			check.Valid = false
		}
		check.Items = append(check.Items, result)
	}
	return check
}

func outOfStockMessage(available, requested, demand int, market string) string {
	switch {
	case available == 0:
		return fmt.Sprintf("Out of stock in %s; please try again later", market)
	case demand > requested:
		return fmt.Sprintf("Only %d available in %s for %d requested across the cart", available, market, demand)
	default:
		return fmt.Sprintf("Only %d available in %s, %d requested", available, market, requested)
	}
}

// checkShipping is skipped, not failed, while no destination is known.
func (v *Validator) checkShipping(dest *domain.Address) domain.ShippingCheck {
	if dest == nil || dest.CountryCode == "" {
		return domain.ShippingCheck{Valid: true, Skipped: true, Reasons: []errors.Reason{}}
	}

	country := domain.NormalizeMarketCode(dest.CountryCode)
	check := domain.ShippingCheck{Country: country, Reasons: []errors.Reason{}}
	m, ok := v.markets.Lookup(country)
	if !ok || !m.Supported || m.ShippingEstimate < 0 {
		check.Reasons = append(check.Reasons, errors.Reason{
			Kind:      errors.KindMarketIneligible,
			LineIndex: -1,
			Message:   fmt.Sprintf("We do not ship to %s", country),
		})
		return check
	}

	estimate := m.ShippingEstimate
	check.Valid = true
	check.Currency = m.Currency
	check.ShippingEstimate = &estimate
	return check
}

func displayName(p *domain.Product) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
