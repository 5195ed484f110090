package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
)

// MaxNodesPerQuery is the platform limit on ids per nodes(ids:) query
const MaxNodesPerQuery = 250

// VerifyVariants reports the read-API visibility of each ref. Refs are normalized to
// GIDs; the returned map is keyed by the refs exactly as passed in.
func (c *Client) VerifyVariants(ctx context.Context, refs []string) (map[string]domain.VisibilityStatus, error) {
	out := make(map[string]domain.VisibilityStatus, len(refs))
	for start := 0; start < len(refs); start += MaxNodesPerQuery {
		end := start + MaxNodesPerQuery
		if end > len(refs) {
			end = len(refs)
		}
		if err := c.verifyBatch(ctx, refs[start:end], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Client) verifyBatch(ctx context.Context, refs []string, out map[string]domain.VisibilityStatus) error {
	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = VariantGID(ref)
	}

	resp, err := c.Execute(ctx, StorefrontAPI, "variantVisibility", VariantVisibilityQuery, map[string]interface{}{
		"ids": ids,
	})
	if err != nil {
		return fmt.Errorf("verify variants: %w", err)
	}

	var result struct {
		Nodes []*struct {
			ID               string `json:"id"`
			AvailableForSale bool   `json:"availableForSale"`
		} `json:"nodes"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("parse variant visibility response: %w", err)
	}
	if len(result.Nodes) != len(ids) {
		return fmt.Errorf("variant visibility: got %d nodes for %d ids", len(result.Nodes), len(ids))
	}

	for i, node := range result.Nodes {
		switch {
		// a non-variant node decodes with an empty id
		case node == nil || node.ID == "":
			out[refs[i]] = domain.VisibilityNotFound
		case !node.AvailableForSale:
			out[refs[i]] = domain.VisibilityNotForSale
		default:
			out[refs[i]] = domain.VisibilityAccessible
		}
	}
	return nil
}

// CartLine is one merchandise line of a new cart
type CartLine struct {
	MerchandiseID string
	Quantity      int
}

// Attribute is an opaque key/value pair carried on the cart and its order
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CartInput is the input of CreateCart
type CartInput struct {
	Lines       []CartLine
	CountryCode string
	Attributes  []Attribute
}

// Cart is a created storefront cart
type Cart struct {
	ID          string
	CheckoutURL string
	Lines       []domain.SessionLine
}

// CreateCart creates a cart holding every line. A response with userErrors is returned as *UserErrors.
func (c *Client) CreateCart(ctx context.Context, in CartInput) (*Cart, error) {
	lines := make([]map[string]interface{}, len(in.Lines))
	for i, l := range in.Lines {
		lines[i] = map[string]interface{}{
			"merchandiseId": VariantGID(l.MerchandiseID),
			"quantity":      l.Quantity,
		}
	}
	input := map[string]interface{}{
		"lines": lines,
	}
	if in.CountryCode != "" {
		input["buyerIdentity"] = map[string]interface{}{"countryCode": in.CountryCode}
	}
	if len(in.Attributes) > 0 {
		input["attributes"] = in.Attributes
	}

	resp, err := c.Execute(ctx, StorefrontAPI, "cartCreate", CartCreateMutation, map[string]interface{}{
		"input": input,
	})
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}

	var result struct {
		CartCreate struct {
			Cart *struct {
				ID          string `json:"id"`
				CheckoutURL string `json:"checkoutUrl"`
				Lines       struct {
					Nodes []struct {
						Quantity    int `json:"quantity"`
						Merchandise struct {
							ID string `json:"id"`
						} `json:"merchandise"`
					} `json:"nodes"`
				} `json:"lines"`
			} `json:"cart"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"cartCreate"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse cart create response: %w", err)
	}

	if len(result.CartCreate.UserErrors) > 0 {
		return nil, &UserErrors{Operation: "cartCreate", Errors: result.CartCreate.UserErrors}
	}
	if result.CartCreate.Cart == nil || result.CartCreate.Cart.CheckoutURL == "" {
		return nil, fmt.Errorf("cart create returned no checkout url")
	}

	cart := &Cart{
		ID:          result.CartCreate.Cart.ID,
		CheckoutURL: result.CartCreate.Cart.CheckoutURL,
	}
	for _, n := range result.CartCreate.Cart.Lines.Nodes {
		cart.Lines = append(cart.Lines, domain.SessionLine{
			PlatformVariantRef: n.Merchandise.ID,
			Quantity:           n.Quantity,
		})
	}
	return cart, nil
}

// BuyerIdentity is the enrichment sent after a cart exists
type BuyerIdentity struct {
	CountryCode     string
	DeliveryAddress *domain.Address
}

// UpdateBuyerIdentity attaches country and a (partial) delivery address to a cart
func (c *Client) UpdateBuyerIdentity(ctx context.Context, cartID string, identity BuyerIdentity) error {
	buyer := map[string]interface{}{}
	if identity.CountryCode != "" {
		buyer["countryCode"] = identity.CountryCode
	}
	if a := identity.DeliveryAddress; a != nil {
		addr := map[string]interface{}{"country": a.CountryCode}
		setIf := func(key string, v *string) {
			if v != nil && *v != "" {
				addr[key] = *v
			}
		}
		setIf("province", a.Province)
		setIf("city", a.City)
		setIf("zip", a.Zip)
		setIf("address1", a.Address1)
		setIf("address2", a.Address2)
		setIf("firstName", a.FirstName)
		setIf("lastName", a.LastName)
		setIf("phone", a.Phone)
		buyer["deliveryAddressPreferences"] = []map[string]interface{}{
			{"deliveryAddress": addr},
		}
	}

	resp, err := c.Execute(ctx, StorefrontAPI, "cartBuyerIdentityUpdate", CartBuyerIdentityUpdateMutation, map[string]interface{}{
		"cartId":        cartID,
		"buyerIdentity": buyer,
	})
	if err != nil {
		return fmt.Errorf("update buyer identity: %w", err)
	}

	var result struct {
		CartBuyerIdentityUpdate struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"cartBuyerIdentityUpdate"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse buyer identity response: %w", err)
	}
	if len(result.CartBuyerIdentityUpdate.UserErrors) > 0 {
		return &UserErrors{Operation: "cartBuyerIdentityUpdate", Errors: result.CartBuyerIdentityUpdate.UserErrors}
	}
	return nil
}

// MissingMerchandise reports whether any user error says a line's merchandise does not
// exist. On a freshly linked variant that is the read index lagging, not a bad id.
func (e *UserErrors) MissingMerchandise() bool {
	for _, ue := range e.Errors {
		switch ue.Code {
		case "MERCHANDISE_NOT_FOUND", "INVALID_MERCHANDISE_LINE":
			return true
		}
		if strings.Contains(strings.ToLower(ue.Message), "does not exist") {
			return true
		}
	}
	return false
}
