package service

import "github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"

// MarketStock is the market-filtered stock picture of one variant
type MarketStock struct {
	Available   int
	Backorder   bool
	Purchasable bool
	// Locations holds eligible locations with stock, best priority first
	Locations []domain.InventoryLevel
}

// AvailableQuantity sums the variant's stock over the locations that serve market.
// Stock at any other location is never counted. Negative levels count as zero.
func AvailableQuantity(inv *domain.VariantInventory, market string, table *domain.LocationTable) int {
	return AggregateStock(inv, market, table).Available
}

// IsPurchasable reports whether the variant can be sold into market: stock at an
// eligible location, or a backorder policy that sells without stock.
func IsPurchasable(inv *domain.VariantInventory, market string, table *domain.LocationTable) bool {
	return AggregateStock(inv, market, table).Purchasable
}

// AggregateStock computes the market-filtered stock for a variant.
func AggregateStock(inv *domain.VariantInventory, market string, table *domain.LocationTable) MarketStock {
	var stock MarketStock
	if inv == nil {
		return stock
	}
	stock.Backorder = inv.Policy.AllowsBackorder()

	eligible := table.LocationsFor(market)
	if len(eligible) > 0 {
		byLocation := make(map[string]int, len(inv.Levels))
		for _, lvl := range inv.Levels {
			if lvl.Available > 0 {
				byLocation[lvl.LocationID] += lvl.Available
			}
		}
		// eligible is ordered best first
		for _, loc := range eligible {
			if qty := byLocation[loc.ID]; qty > 0 {
				stock.Available += qty
				stock.Locations = append(stock.Locations, domain.InventoryLevel{LocationID: loc.ID, Available: qty})
			}
		}
	}

	stock.Purchasable = stock.Available > 0 || stock.Backorder
	return stock
}

// Covers reports whether the stock satisfies a demand of qty units.
func (s MarketStock) Covers(qty int) bool {
	return s.Purchasable && (s.Backorder || qty <= s.Available)
}

// PreferredLocation returns the best-priority eligible location that can ship qty on its
// own, falling back to the best location holding any stock.
func (s MarketStock) PreferredLocation(qty int) string {
	for _, lvl := range s.Locations {
		if lvl.Available >= qty {
			return lvl.LocationID
		}
	}
	if len(s.Locations) > 0 {
		return s.Locations[0].LocationID
	}
	return ""
}
