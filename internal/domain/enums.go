package domain

// InventoryPolicy is the platform backorder policy of a variant
type InventoryPolicy string

const (
	// DENY - stop selling when tracked stock reaches zero
	InventoryPolicyDeny InventoryPolicy = "DENY"
	// CONTINUE - keep selling without stock (ship on backorder)
	InventoryPolicyContinue InventoryPolicy = "CONTINUE"
)

// IsValid checks if the inventory policy is known
func (p InventoryPolicy) IsValid() bool {
	switch p {
	case InventoryPolicyDeny, InventoryPolicyContinue:
		return true
	default:
		return false
	}
}

// AllowsBackorder reports whether the variant may be sold beyond its tracked stock.
func (p InventoryPolicy) AllowsBackorder() bool {
	return p == InventoryPolicyContinue
}

// VisibilityStatus is the read-API view of a platform variant reference
type VisibilityStatus string

const (
	VisibilityAccessible VisibilityStatus = "ACCESSIBLE"
	// NOT_FOUND - not (yet) visible to the read API; may be an indexing delay
	VisibilityNotFound VisibilityStatus = "NOT_FOUND"
	// NOT_FOR_SALE - visible but not purchasable
	VisibilityNotForSale VisibilityStatus = "NOT_FOR_SALE"
)

// CheckoutOutcome labels a createSession result in audit events and metrics
type CheckoutOutcome string

const (
	OutcomeCreated  CheckoutOutcome = "created"
	OutcomeRejected CheckoutOutcome = "rejected"
	OutcomeRetry    CheckoutOutcome = "retry"
)
