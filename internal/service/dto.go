package service

import (
	"math"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/pkg/errors"
)

// ValidateRequest represents the validate payload
type ValidateRequest struct {
	Items       []domain.CartLineItem `json:"items" binding:"required,min=1"`
	Destination *domain.Address       `json:"destination,omitempty"`
}

// CreateSessionRequest represents the createSession payload. Tenant and market override
// the resolved request context when set.
type CreateSessionRequest struct {
	Items       []domain.CartLineItem `json:"items" binding:"required,min=1"`
	Destination *domain.Address       `json:"destination,omitempty"`
	Tenant      string                `json:"tenant,omitempty"`
	Market      string                `json:"market,omitempty"`
	ReturnPath  string                `json:"returnPath,omitempty"`
}

// SessionResponse is returned when a checkout session was created
type SessionResponse struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
	AttemptID   string `json:"attemptId"`
}

// RejectionResponse is returned when no checkout session was created
type RejectionResponse struct {
	Kind              errors.Kind     `json:"kind"`
	Retryable         bool            `json:"retryable"`
	RetryAfterSeconds int             `json:"retryAfterSeconds,omitempty"`
	Message           string          `json:"message"`
	Reasons           []errors.Reason `json:"reasons"`
	AttemptID         string          `json:"attemptId"`
}

// NewRejectionResponse renders a rejection; the retry hint is rounded up to whole seconds
func NewRejectionResponse(rej *errors.Rejection, attemptID string) RejectionResponse {
	resp := RejectionResponse{
		Kind:      rej.Kind,
		Retryable: rej.Retryable,
		Message:   rej.Message,
		Reasons:   rej.Reasons,
		AttemptID: attemptID,
	}
	if rej.Retryable && rej.RetryAfter > 0 {
		resp.RetryAfterSeconds = int(math.Ceil(rej.RetryAfter.Seconds()))
	}
	if resp.Reasons == nil {
		resp.Reasons = []errors.Reason{}
	}
	return resp
}
