package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a resource is not found
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrConflict is returned when there's a conflict (e.g., idempotency)
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conflict"
}

// ErrValidation is returned when validation fails
type ErrValidation struct {
	Message string
	Fields  map[string]string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// ErrUnlinkedVariant is returned when a catalog variant carries no platform variant reference.
type ErrUnlinkedVariant struct {
	ProductID string
	VariantID string
}

func (e *ErrUnlinkedVariant) Error() string {
	return fmt.Sprintf("variant %s of product %s is not linked to the commerce platform", e.VariantID, e.ProductID)
}

// ErrUpstream wraps a network or 5xx failure from an external system
// (catalog store, commerce platform, database).
type ErrUpstream struct {
	Service string
	Err     error
}

func (e *ErrUpstream) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *ErrUpstream) Unwrap() error {
	return e.Err
}

// Kind classifies a checkout failure.
type Kind string

const (
	KindNotFound            Kind = "NotFound"
	KindUnlinkedVariant     Kind = "UnlinkedVariant"
	KindMarketIneligible    Kind = "MarketIneligible"
	KindOutOfStock          Kind = "OutOfStock"
	KindIndexingDelay       Kind = "IndexingDelay"
	KindPlatformRejected    Kind = "PlatformRejected"
	KindUpstreamUnavailable Kind = "UpstreamUnavailable"
)

// Retryable reports whether the same request may succeed later without any change.
func (k Kind) Retryable() bool {
	return k == KindIndexingDelay || k == KindUpstreamUnavailable
}

// Reason is a single user-facing problem, tied to a cart line where one applies.
// LineIndex is -1 for cart-wide reasons (e.g. shipping).
type Reason struct {
	Kind               Kind   `json:"kind"`
	LineIndex          int    `json:"lineIndex"`
	ProductID          string `json:"productId,omitempty"`
	VariantID          string `json:"variantId,omitempty"`
	PlatformVariantRef string `json:"platformVariantRef,omitempty"`
	Message            string `json:"message"`
}

// Rejection is the orchestrator-level outcome when no checkout session was created.
type Rejection struct {
	Kind       Kind          `json:"kind"`
	Retryable  bool          `json:"retryable"`
	RetryAfter time.Duration `json:"-"`
	Reasons    []Reason      `json:"reasons"`
	Message    string        `json:"message"`
}

// NewRejection builds a rejection whose retryability follows its kind.
func NewRejection(kind Kind, retryAfter time.Duration, message string, reasons []Reason) *Rejection {
	r := &Rejection{
		Kind:      kind,
		Retryable: kind.Retryable(),
		Reasons:   reasons,
		Message:   message,
	}
	if r.Retryable {
		r.RetryAfter = retryAfter
	}
	if r.Reasons == nil {
		r.Reasons = []Reason{}
	}
	return r
}

func (r *Rejection) Error() string {
	if len(r.Reasons) == 0 {
		return fmt.Sprintf("checkout rejected (%s): %s", r.Kind, r.Message)
	}
	msgs := make([]string, len(r.Reasons))
	for i, reason := range r.Reasons {
		msgs[i] = reason.Message
	}
	return fmt.Sprintf("checkout rejected (%s): %s: %s", r.Kind, r.Message, strings.Join(msgs, "; "))
}

// AsRejection extracts a *Rejection from an error chain.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if stderrors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// IsNotFound reports whether err is (or wraps) an *ErrNotFound.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return stderrors.As(err, &nf)
}

// KindOf maps an error returned by a collaborator onto the checkout taxonomy.
// Errors that carry no classification are treated as upstream unavailability.
func KindOf(err error) Kind {
	var (
		nf       *ErrNotFound
		unlinked *ErrUnlinkedVariant
		rej      *Rejection
	)
	switch {
	case stderrors.As(err, &rej):
		return rej.Kind
	case stderrors.As(err, &unlinked):
		return KindUnlinkedVariant
	case stderrors.As(err, &nf):
		return KindNotFound
	default:
		return KindUpstreamUnavailable
	}
}
