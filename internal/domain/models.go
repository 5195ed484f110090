package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/pkg/errors"
)

// StoreContext is the (tenant, market) pair every checkout call runs under.
type StoreContext struct {
	Tenant string `json:"tenant"`
	Market string `json:"market"`
}

// Market is a shipping/availability jurisdiction (ISO country/region code).
type Market struct {
	Code             string
	Supported        bool
	Currency         string
	ShippingEstimate float64
}

// Product is a catalog product as stored in the catalog store
type Product struct {
	ID                 string
	Name               string
	Markets            MarketEligibility
	Active             bool
	PlatformProductRef *string
}

// Variant is a purchasable child of a Product.
// StockCount is informational only; authoritative stock lives on the platform.
type Variant struct {
	ID                 string
	ProductID          string
	Size               string
	Color              string
	StockCount         int
	Markets            *MarketEligibility
	PlatformVariantRef *string
}

// HasPlatformRef reports whether the variant is linked to a platform variant.
func (v *Variant) HasPlatformRef() bool {
	return v.PlatformVariantRef != nil && *v.PlatformVariantRef != ""
}

// Location is a fulfillment location known to the commerce platform
type Location struct {
	ID   string
	Name string
}

// InventoryLevel is the available quantity of one variant at one location.
type InventoryLevel struct {
	LocationID string
	Available  int
}

// VariantInventory is the platform-side stock picture for a variant.
type VariantInventory struct {
	PlatformVariantRef string
	Policy             InventoryPolicy
	Levels             []InventoryLevel
}

// CartLineItem is one requested line of a cart. PlatformVariantRef is empty when not yet known.
type CartLineItem struct {
	ProductID          string `json:"productId"`
	VariantID          string `json:"variantId"`
	Quantity           int    `json:"quantity"`
	PlatformVariantRef string `json:"platformVariantRef,omitempty"`
}

// ResolvedLineItem is a cart line annotated with its platform variant reference.
// Index is the position of the line in the caller's cart.
type ResolvedLineItem struct {
	Index int
	CartLineItem
}

// Address is a (possibly partial) shipping destination.
type Address struct {
	CountryCode string  `json:"countryCode"`
	Province    *string `json:"province,omitempty"`
	City        *string `json:"city,omitempty"`
	Zip         *string `json:"zip,omitempty"`
	Address1    *string `json:"address1,omitempty"`
	Address2    *string `json:"address2,omitempty"`
	FirstName   *string `json:"firstName,omitempty"`
	LastName    *string `json:"lastName,omitempty"`
	Phone       *string `json:"phone,omitempty"`
}

// SessionLine is a line item confirmed on the platform-side checkout session.
type SessionLine struct {
	PlatformVariantRef string `json:"platformVariantRef"`
	Quantity           int    `json:"quantity"`
}

// CheckoutSession is the transactable checkout object created on the platform.
// Its lifetime is owned by the platform.
type CheckoutSession struct {
	ID          string        `json:"sessionId"`
	RedirectURL string        `json:"redirectUrl"`
	AttemptID   string        `json:"attemptId"`
	Tenant      string        `json:"tenant"`
	Market      string        `json:"market"`
	Lines       []SessionLine `json:"lines"`
}

// IdempotencyReservationTimeout is how long a reserved key without a session blocks
// other requests using it. After that the reservation counts as abandoned.
const IdempotencyReservationTimeout = 2 * time.Minute

// IdempotencyKey stores a session created under a client-supplied Idempotency-Key. The key
// is reserved before the session is created; SessionID stays empty until then.
type IdempotencyKey struct {
	Key         string
	Tenant      string
	RequestHash string
	SessionID   string
	RedirectURL string
	AttemptID   string
	CreatedAt   time.Time
}

// Pending reports whether the key is reserved by an attempt that has no session yet
func (k *IdempotencyKey) Pending() bool {
	return k.SessionID == ""
}

// Abandoned reports whether a pending reservation outlived IdempotencyReservationTimeout
func (k *IdempotencyKey) Abandoned(now time.Time) bool {
	return k.Pending() && now.Sub(k.CreatedAt) > IdempotencyReservationTimeout
}

// CheckoutEvent is an audit record of one createSession outcome.
type CheckoutEvent struct {
	ID        uuid.UUID
	AttemptID string
	Tenant    string
	Market    string
	Outcome   string
	SessionID *string
	Detail    CheckoutEventDetail // event_data JSONB
	CreatedAt time.Time
}

// CheckoutEventDetail is what an outcome carries beyond its columns: the rejection for
// rejected and retry outcomes, the redirect and lines for created ones.
type CheckoutEventDetail struct {
	Kind        errors.Kind     `json:"kind,omitempty"`
	Message     string          `json:"message,omitempty"`
	Reasons     []errors.Reason `json:"reasons,omitempty"`
	RedirectURL string          `json:"redirectUrl,omitempty"`
	Lines       []SessionLine   `json:"lines,omitempty"`
}
