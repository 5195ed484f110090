package domain

import "github.com/arben-grepi/ecomm-storefront-generator-sub004/pkg/errors"

// MarketItemResult is the market-eligibility outcome for one cart line.
type MarketItemResult struct {
	LineIndex int    `json:"lineIndex"`
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Eligible  bool   `json:"eligible"`
}

// MarketCheck is the market-eligibility verdict for the whole cart.
type MarketCheck struct {
	Valid   bool               `json:"valid"`
	Market  string             `json:"market"`
	Items   []MarketItemResult `json:"items"`
	Reasons []errors.Reason    `json:"reasons"`
}

// InventoryItemResult is the inventory outcome for one cart line.
type InventoryItemResult struct {
	LineIndex          int    `json:"lineIndex"`
	ProductID          string `json:"productId"`
	VariantID          string `json:"variantId"`
	PlatformVariantRef string `json:"platformVariantRef,omitempty"`
	Requested          int    `json:"requested"`
	Available          int    `json:"available"`
	Backorder          bool   `json:"backorder"`
	Purchasable        bool   `json:"purchasable"`
	Valid              bool   `json:"valid"`
	// FulfillmentLocation is the preferred eligible location holding stock for the line
	FulfillmentLocation string `json:"fulfillmentLocation,omitempty"`
}

// InventoryCheck is the inventory verdict for the whole cart.
type InventoryCheck struct {
	Valid   bool                  `json:"valid"`
	Items   []InventoryItemResult `json:"items"`
	Reasons []errors.Reason       `json:"reasons"`
}

// ShippingCheck is the destination verdict. Skipped is set when no destination was given.
type ShippingCheck struct {
	Valid            bool            `json:"valid"`
	Skipped          bool            `json:"skipped"`
	Country          string          `json:"country,omitempty"`
	Currency         string          `json:"currency,omitempty"`
	ShippingEstimate *float64        `json:"shippingEstimate,omitempty"`
	Reasons          []errors.Reason `json:"reasons"`
}

// CheckoutVerdict merges the three checks. Reasons lists every failure in check
// order (market, inventory, shipping), each check ordered by cart line.
type CheckoutVerdict struct {
	Valid     bool            `json:"valid"`
	Market    MarketCheck     `json:"market"`
	Inventory InventoryCheck  `json:"inventory"`
	Shipping  ShippingCheck   `json:"shipping"`
	Reasons   []errors.Reason `json:"reasons"`
}

// ReasonsOfKind returns the verdict reasons of one kind.
func (v *CheckoutVerdict) ReasonsOfKind(kind errors.Kind) []errors.Reason {
	var out []errors.Reason
	for _, r := range v.Reasons {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}
