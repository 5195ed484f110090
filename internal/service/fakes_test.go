package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/config"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/shopify"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/pkg/errors"
)

const (
	refV1 = "gid://shopify/ProductVariant/1"
	refV2 = "gid://shopify/ProductVariant/2"
	refV3 = "gid://shopify/ProductVariant/3"

	locFI = "gid://shopify/Location/1"
	locDE = "gid://shopify/Location/2"
	locUS = "gid://shopify/Location/3"
)

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

type fakeCatalog struct {
	mu           sync.Mutex
	products     map[string]*domain.Product
	variants     map[string]*domain.Variant
	productErr   map[string]error
	variantErr   map[string]error
	variantReads int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products:   map[string]*domain.Product{},
		variants:   map[string]*domain.Variant{},
		productErr: map[string]error{},
		variantErr: map[string]error{},
	}
}

func (c *fakeCatalog) GetProduct(_ context.Context, _ string, productID string) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.productErr[productID]; err != nil {
		return nil, err
	}
	p, ok := c.products[productID]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "product", ID: productID}
	}
	return p, nil
}

func (c *fakeCatalog) GetVariant(_ context.Context, _ string, productID, variantID string) (*domain.Variant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variantReads++
	key := productID + "/" + variantID
	if err := c.variantErr[key]; err != nil {
		return nil, err
	}
	v, ok := c.variants[key]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "variant", ID: key}
	}
	return v, nil
}

func (c *fakeCatalog) ListVariants(_ context.Context, _ string, productID string) ([]*domain.Variant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*domain.Variant
	for _, v := range c.variants {
		if v.ProductID == productID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (c *fakeCatalog) reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.variantReads
}

func (c *fakeCatalog) addProduct(id string, markets []string, marketsObject map[string]domain.MarketAvailability) {
	c.products[id] = &domain.Product{
		ID:      id,
		Name:    "Product " + id,
		Markets: domain.NewMarketEligibility(markets, marketsObject),
		Active:  true,
	}
}

func (c *fakeCatalog) addVariant(productID, variantID string, ref *string) {
	c.variants[productID+"/"+variantID] = &domain.Variant{ID: variantID, ProductID: productID, PlatformVariantRef: ref}
}

type fakePlatform struct {
	mu          sync.Mutex
	inventory   map[string]*domain.VariantInventory
	invErr      map[string]error
	visibility  map[string]domain.VisibilityStatus
	verifyErr   error
	verifyCalls [][]string
	createErr   error
	createCalls []shopify.CartInput
	updateErr   error
	updateCalls int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		inventory:  map[string]*domain.VariantInventory{},
		invErr:     map[string]error{},
		visibility: map[string]domain.VisibilityStatus{},
	}
}

func (p *fakePlatform) VariantInventory(_ context.Context, ref string) (*domain.VariantInventory, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.invErr[ref]; err != nil {
		return nil, err
	}
	inv, ok := p.inventory[ref]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "platform variant", ID: ref}
	}
	return inv, nil
}

func (p *fakePlatform) VerifyVariants(ctx context.Context, refs []string) (map[string]domain.VisibilityStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verifyCalls = append(p.verifyCalls, append([]string(nil), refs...))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	out := make(map[string]domain.VisibilityStatus, len(refs))
	for _, ref := range refs {
		st, ok := p.visibility[ref]
		if !ok {
			st = domain.VisibilityAccessible
		}
		out[ref] = st
	}
	return out, nil
}

func (p *fakePlatform) CreateCart(_ context.Context, in shopify.CartInput) (*shopify.Cart, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createCalls = append(p.createCalls, in)
	if p.createErr != nil {
		return nil, p.createErr
	}
	cart := &shopify.Cart{ID: "gid://shopify/Cart/c1", CheckoutURL: "https://luna.example/cart/c/c1"}
	for _, l := range in.Lines {
		cart.Lines = append(cart.Lines, domain.SessionLine{PlatformVariantRef: l.MerchandiseID, Quantity: l.Quantity})
	}
	return cart, nil
}

func (p *fakePlatform) UpdateBuyerIdentity(context.Context, string, shopify.BuyerIdentity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateCalls++
	return p.updateErr
}

func (p *fakePlatform) setStock(ref string, policy domain.InventoryPolicy, levels ...domain.InventoryLevel) {
	p.inventory[ref] = &domain.VariantInventory{PlatformVariantRef: ref, Policy: policy, Levels: levels}
}

func testMarkets() domain.MarketTable {
	return domain.MarketTable{
		"FI": {Code: "FI", Supported: true, Currency: "EUR", ShippingEstimate: 4.9},
		"DE": {Code: "DE", Supported: true, Currency: "EUR", ShippingEstimate: 5.9},
		"US": {Code: "US", Supported: true, Currency: "USD", ShippingEstimate: 12},
		"GB": {Code: "GB", Supported: false, Currency: "GBP"},
	}
}

func testLocations(t testing.TB) *domain.LocationTable {
	t.Helper()
	table, err := domain.NewLocationTable([]domain.LocationEligibility{
		{Location: domain.Location{ID: locFI, Name: "Helsinki"}, Markets: []string{"FI"}, Priority: 1},
		{Location: domain.Location{ID: locDE, Name: "Berlin"}, Markets: []string{"DE"}, Priority: 2},
		{Location: domain.Location{ID: locUS, Name: "New Jersey"}, Markets: []string{"US"}, Priority: 3},
	})
	require.NoError(t, err)
	return table
}

type fixture struct {
	catalog      *fakeCatalog
	platform     *fakePlatform
	validator    *Validator
	orchestrator *Orchestrator
}

// newFixture sets up P1/V1 sold in DE with 5 units at the Berlin location
func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog := newFakeCatalog()
	catalog.addProduct("P1", nil, map[string]domain.MarketAvailability{"DE": {Available: boolPtr(true)}})
	catalog.addVariant("P1", "V1", strPtr(refV1))

	platform := newFakePlatform()
	platform.setStock(refV1, domain.InventoryPolicyDeny, domain.InventoryLevel{LocationID: locDE, Available: 5})

	resolver := NewVariantResolver(catalog, 4, nil)
	validator := NewValidator(resolver, catalog, platform, testMarkets(), testLocations(t), 4, nil)
	orchestrator := NewOrchestrator(validator, platform, config.CheckoutConfig{
		FanOut:             4,
		VerifyBatchSize:    50,
		IndexingRetryAfter: 30 * time.Second,
		UpstreamRetryAfter: 2 * time.Second,
	}, nil)
	return &fixture{catalog: catalog, platform: platform, validator: validator, orchestrator: orchestrator}
}
