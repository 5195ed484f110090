package shopify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/pkg/errors"
)

// VariantInventory reads the backorder policy and the available quantity per location.
// Untracked inventory is reported as the CONTINUE policy: the platform never stops selling it.
func (c *Client) VariantInventory(ctx context.Context, ref string) (*domain.VariantInventory, error) {
	gid := VariantGID(ref)
	resp, err := c.Execute(ctx, AdminAPI, "variantInventory", VariantInventoryQuery, map[string]interface{}{
		"id": gid,
	})
	if err != nil {
		return nil, fmt.Errorf("variant inventory: %w", err)
	}

	var result struct {
		ProductVariant *struct {
			ID              string `json:"id"`
			InventoryPolicy string `json:"inventoryPolicy"`
			InventoryItem   *struct {
				Tracked         bool `json:"tracked"`
				InventoryLevels struct {
					Nodes []struct {
						Location struct {
							ID   string `json:"id"`
							Name string `json:"name"`
						} `json:"location"`
						Quantities []struct {
							Name     string `json:"name"`
							Quantity int    `json:"quantity"`
						} `json:"quantities"`
					} `json:"nodes"`
				} `json:"inventoryLevels"`
			} `json:"inventoryItem"`
		} `json:"productVariant"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse variant inventory response: %w", err)
	}
	if result.ProductVariant == nil {
		return nil, &errors.ErrNotFound{Resource: "platform variant", ID: gid}
	}

	pv := result.ProductVariant
	inv := &domain.VariantInventory{
		PlatformVariantRef: pv.ID,
		Policy:             domain.InventoryPolicy(pv.InventoryPolicy),
	}
	if !inv.Policy.IsValid() {
		c.logger.Warn("Unknown inventory policy, treating as DENY")
		inv.Policy = domain.InventoryPolicyDeny
	}
	if pv.InventoryItem == nil {
		return inv, nil
	}
	if !pv.InventoryItem.Tracked {
		inv.Policy = domain.InventoryPolicyContinue
	}
	for _, lvl := range pv.InventoryItem.InventoryLevels.Nodes {
		available := 0
		for _, q := range lvl.Quantities {
			if q.Name == "available" {
				available = q.Quantity
			}
		}
		inv.Levels = append(inv.Levels, domain.InventoryLevel{
			LocationID: lvl.Location.ID,
			Available:  available,
		})
	}
	return inv, nil
}

// Publication is one sales channel a product may be published to
type Publication struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsPublished bool   `json:"isPublished"`
}

// PublicationStatus is the management-side publication picture of one product
type PublicationStatus struct {
	ProductRef   string          `json:"productRef"`
	Title        string          `json:"title"`
	Status       string          `json:"status"`
	Markets      map[string]bool `json:"markets"`
	Publications []Publication   `json:"publications"`
}

// ProductPublicationStatus reports product status, channel publications and, per market,
// whether the product is published there. One query is issued per market.
func (c *Client) ProductPublicationStatus(ctx context.Context, productRef string, markets []string) (*PublicationStatus, error) {
	gid := ProductGID(productRef)
	if len(markets) == 0 {
		return nil, &errors.ErrValidation{Message: "at least one market is required"}
	}

	status := &PublicationStatus{ProductRef: gid, Markets: make(map[string]bool, len(markets))}
	for i, market := range markets {
		market = domain.NormalizeMarketCode(market)
		resp, err := c.Execute(ctx, AdminAPI, "productPublication", ProductPublicationQuery, map[string]interface{}{
			"id":      gid,
			"country": market,
		})
		if err != nil {
			return nil, fmt.Errorf("product publication status: %w", err)
		}

		var result struct {
			Product *struct {
				ID                     string `json:"id"`
				Title                  string `json:"title"`
				Status                 string `json:"status"`
				PublishedInContext     bool   `json:"publishedInContext"`
				ResourcePublicationsV2 struct {
					Nodes []struct {
						IsPublished bool `json:"isPublished"`
						Publication struct {
							ID   string `json:"id"`
							Name string `json:"name"`
						} `json:"publication"`
					} `json:"nodes"`
				} `json:"resourcePublicationsV2"`
			} `json:"product"`
		}
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return nil, fmt.Errorf("failed to parse product publication response: %w", err)
		}
		if result.Product == nil {
			return nil, &errors.ErrNotFound{Resource: "platform product", ID: gid}
		}

		status.Markets[market] = result.Product.PublishedInContext
		if i == 0 {
			status.Title = result.Product.Title
			status.Status = result.Product.Status
			for _, n := range result.Product.ResourcePublicationsV2.Nodes {
				status.Publications = append(status.Publications, Publication{
					ID:          n.Publication.ID,
					Name:        n.Publication.Name,
					IsPublished: n.IsPublished,
				})
			}
		}
	}
	return status, nil
}
