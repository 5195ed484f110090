package firestore

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/pkg/errors"
)

const (
	productsCollection = "products"
	variantsCollection = "variants"
)

type catalogRepository struct {
	client *firestore.Client
	root   string
	logger *zap.Logger
}

// NewCatalogRepository creates a catalog repository. Tenant catalogs live under
// {root}/{tenant}/products/{productId}/variants/{variantId}.
func NewCatalogRepository(client *firestore.Client, root string, logger *zap.Logger) *catalogRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if root == "" {
		root = "storefronts"
	}
	return &catalogRepository{
		client: client,
		root:   root,
		logger: logger,
	}
}

func (r *catalogRepository) product(tenant, productID string) *firestore.DocumentRef {
	return r.client.Collection(r.root).Doc(tenant).Collection(productsCollection).Doc(productID)
}

func (r *catalogRepository) GetProduct(ctx context.Context, tenant, productID string) (*domain.Product, error) {
	tenant, productID = strings.TrimSpace(tenant), strings.TrimSpace(productID)
	if tenant == "" || productID == "" {
		return nil, &errors.ErrNotFound{Resource: "product", ID: productID}
	}

	snap, err := r.product(tenant, productID).Get(ctx)
	if err != nil {
		return nil, r.classify(err, "product", productID)
	}
	return productFromData(snap.Ref.ID, snap.Data()), nil
}

func (r *catalogRepository) GetVariant(ctx context.Context, tenant, productID, variantID string) (*domain.Variant, error) {
	tenant, productID, variantID = strings.TrimSpace(tenant), strings.TrimSpace(productID), strings.TrimSpace(variantID)
	if tenant == "" || productID == "" || variantID == "" {
		return nil, &errors.ErrNotFound{Resource: "variant", ID: variantID}
	}

	snap, err := r.product(tenant, productID).Collection(variantsCollection).Doc(variantID).Get(ctx)
	if err != nil {
		return nil, r.classify(err, "variant", productID+"/"+variantID)
	}
	return variantFromData(productID, snap.Ref.ID, snap.Data()), nil
}

func (r *catalogRepository) ListVariants(ctx context.Context, tenant, productID string) ([]*domain.Variant, error) {
	it := r.product(tenant, productID).Collection(variantsCollection).Documents(ctx)
	defer it.Stop()

	var variants []*domain.Variant
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, r.classify(err, "variants", productID)
		}
		variants = append(variants, variantFromData(productID, snap.Ref.ID, snap.Data()))
	}
	return variants, nil
}

func (r *catalogRepository) classify(err error, resource, id string) error {
	switch status.Code(err) {
	case codes.NotFound:
		return &errors.ErrNotFound{Resource: resource, ID: id}
	case codes.Canceled:
		return fmt.Errorf("catalog read: %w", context.Canceled)
	case codes.DeadlineExceeded:
		return fmt.Errorf("catalog read: %w", context.DeadlineExceeded)
	}
	r.logger.Error("Failed to read catalog", zap.String("resource", resource), zap.String("id", id), zap.Error(err))
	return &errors.ErrUpstream{Service: "catalog store", Err: err}
}

// productFromData maps a product document. Market data may be stored as a list of
// codes, a code -> {available} map, or (older documents) a map under "markets".
func productFromData(id string, data map[string]interface{}) *domain.Product {
	p := &domain.Product{
		ID:      id,
		Name:    stringField(data, "name"),
		Markets: marketsFromData(data),
		Active:  boolField(data, "active", true),
	}
	if ref := stringField(data, "platformProductRef"); ref != "" {
		p.PlatformProductRef = &ref
	}
	return p
}

func variantFromData(productID, id string, data map[string]interface{}) *domain.Variant {
	v := &domain.Variant{
		ID:         id,
		ProductID:  productID,
		Size:       stringField(data, "size"),
		Color:      stringField(data, "color"),
		StockCount: intField(data, "stockCount"),
	}
	if m := marketsFromData(data); m.HasData() {
		v.Markets = &m
	}
	if ref := stringField(data, "platformVariantRef"); ref != "" {
		v.PlatformVariantRef = &ref
	}
	return v
}

func marketsFromData(data map[string]interface{}) domain.MarketEligibility {
	var (
		listed  []string
		entries = map[string]domain.MarketAvailability{}
	)
	collect := func(raw interface{}) {
		switch m := raw.(type) {
		case []interface{}:
			for _, c := range m {
				if s, ok := c.(string); ok {
					listed = append(listed, s)
				}
			}
		case map[string]interface{}:
			for code, entry := range m {
				var avail domain.MarketAvailability
				switch e := entry.(type) {
				case map[string]interface{}:
					if b, ok := e["available"].(bool); ok {
						avail.Available = &b
					}
				case bool:
					avail.Available = &e
				}
				entries[code] = avail
			}
		}
	}
	collect(data["markets"])
	collect(data["marketsObject"])
	return domain.NewMarketEligibility(listed, entries)
}

func stringField(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return strings.TrimSpace(s)
}

func boolField(data map[string]interface{}, key string, def bool) bool {
	if b, ok := data[key].(bool); ok {
		return b
	}
	return def
}

func intField(data map[string]interface{}, key string) int {
	switch n := data[key].(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
