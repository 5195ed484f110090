package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/config"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/shopify"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/pkg/errors"
)

// Cart attributes carried on the platform cart for the return flow and order webhooks.
// A leading underscore hides them from the buyer at checkout.
const (
	AttributeTenant     = "_storefront_tenant"
	AttributeMarket     = "_storefront_market"
	AttributeAttemptID  = "_checkout_attempt_id"
	AttributeReturnPath = "_return_path"
)

// SessionRequest is one checkout attempt
type SessionRequest struct {
	AttemptID   string
	Context     domain.StoreContext
	Items       []domain.CartLineItem
	Destination *domain.Address
	// ReturnPath is where the storefront resumes after checkout
	ReturnPath string
}

// Orchestrator creates checkout sessions with a verify-then-create protocol. It never
// retries on its own: lag and outages come back as retryable rejections with a hint.
type Orchestrator struct {
	validator *Validator
	platform  Platform
	cfg       config.CheckoutConfig
	logger    *zap.Logger
}

func NewOrchestrator(validator *Validator, platform Platform, cfg config.CheckoutConfig, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FanOut < 1 {
		cfg.FanOut = 1
	}
	if cfg.VerifyBatchSize < 1 {
		cfg.VerifyBatchSize = 50
	}
	return &Orchestrator{validator: validator, platform: platform, cfg: cfg, logger: logger}
}

// CreateSession validates the cart, verifies every variant on the read API and creates the
// platform cart. Rejections are returned as *errors.Rejection; a malformed cart as
// *errors.ErrValidation. Cancellation of ctx stops in-flight calls.
func (o *Orchestrator) CreateSession(ctx context.Context, req SessionRequest) (*domain.CheckoutSession, error) {
	if req.AttemptID == "" {
		req.AttemptID = uuid.NewString()
	}
	logger := o.logger.With(
		zap.String("attempt_id", req.AttemptID),
		zap.String("tenant", req.Context.Tenant),
		zap.String("market", req.Context.Market),
	)

	v, err := o.validator.validate(ctx, req.Context, req.Items, req.Destination)
	if err != nil {
		return nil, err
	}
	if !v.verdict.Valid {
		rej := o.rejectVerdict(v.verdict)
		logger.Info("Checkout rejected by validation", zap.String("kind", string(rej.Kind)), zap.Int("reasons", len(rej.Reasons)))
		return nil, rej
	}

	if err := o.verify(ctx, v.resolved); err != nil {
		return o.fail(ctx, logger, "verify", err)
	}

	cart, err := o.create(ctx, req, v)
	if err != nil {
		return o.fail(ctx, logger, "create", err)
	}

	session := &domain.CheckoutSession{
		ID:          cart.ID,
		RedirectURL: cart.CheckoutURL,
		AttemptID:   req.AttemptID,
		Tenant:      req.Context.Tenant,
		// the market the cart was created for, which follows the destination
		Market: v.market,
		Lines:  cart.Lines,
	}
	if len(session.Lines) == 0 {
		for _, it := range v.resolved {
			session.Lines = append(session.Lines, domain.SessionLine{PlatformVariantRef: it.PlatformVariantRef, Quantity: it.Quantity})
		}
	}

	o.finalize(ctx, logger, session.ID, v.market, req.Destination)

	logger.Info("Checkout session created", zap.String("session_id", session.ID), zap.Int("lines", len(session.Lines)))
	return session, nil
}

// rejectVerdict turns an invalid verdict into a rejection. Any permanent reason makes the
// rejection permanent; a verdict failing only on outages is retryable.
func (o *Orchestrator) rejectVerdict(verdict *domain.CheckoutVerdict) *errors.Rejection {
	for _, r := range verdict.Reasons {
		if !r.Kind.Retryable() {
			return errors.NewRejection(r.Kind, 0, "cart failed validation", verdict.Reasons)
		}
	}
	return errors.NewRejection(errors.KindUpstreamUnavailable, o.cfg.UpstreamRetryAfter, "a dependency is temporarily unavailable", verdict.Reasons)
}

// verify confirms read-API visibility of every line in concurrent batches. Items that are
// not for sale reject permanently; items not yet indexed reject with a retry hint.
func (o *Orchestrator) verify(ctx context.Context, items []ResolvedItem) error {
	ctx, span := tracer().Start(ctx, "checkout.verify", trace.WithAttributes(attribute.Int("lines", len(items))))
	defer span.End()

	seen := make(map[string]bool, len(items))
	var refs []string
	for _, it := range items {
		if key := it.variantKey(); !seen[key] {
			seen[key] = true
			refs = append(refs, key)
		}
	}

	var (
		mu       sync.Mutex
		statuses = make(map[string]domain.VisibilityStatus, len(refs))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.FanOut)
	for start := 0; start < len(refs); start += o.cfg.VerifyBatchSize {
		batch := refs[start:min(start+o.cfg.VerifyBatchSize, len(refs))]
		g.Go(func() error {
			got, err := o.platform.VerifyVariants(gctx, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for ref, st := range got {
				statuses[ref] = st
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	var notIndexed, notForSale []errors.Reason
	for _, it := range items {
		reason := errors.Reason{
			LineIndex:          it.Index,
			ProductID:          it.ProductID,
			VariantID:          it.VariantID,
			PlatformVariantRef: it.PlatformVariantRef,
		}
		switch st, ok := statuses[it.variantKey()]; {
		case !ok || st == domain.VisibilityNotFound:
			reason.Kind = errors.KindIndexingDelay
			reason.Message = "This item was updated moments ago and is not yet available for checkout"
			notIndexed = append(notIndexed, reason)
		case st == domain.VisibilityNotForSale:
			reason.Kind = errors.KindPlatformRejected
			reason.Message = "This item is currently not for sale"
			notForSale = append(notForSale, reason)
		}
	}
	span.SetAttributes(attribute.Int("not_indexed", len(notIndexed)), attribute.Int("not_for_sale", len(notForSale)))

	// a retry cannot fix an item that is not for sale, so that outcome wins
	if len(notForSale) > 0 {
		return errors.NewRejection(errors.KindPlatformRejected, 0, "items are not for sale", append(notForSale, notIndexed...))
	}
	if len(notIndexed) > 0 {
		return errors.NewRejection(errors.KindIndexingDelay, o.cfg.IndexingRetryAfter, "items are not yet visible to checkout", notIndexed)
	}
	return nil
}

func (o *Orchestrator) create(ctx context.Context, req SessionRequest, v *validation) (*shopify.Cart, error) {
	ctx, span := tracer().Start(ctx, "checkout.create")
	defer span.End()

	in := shopify.CartInput{
		CountryCode: v.market,
		Attributes: []shopify.Attribute{
			{Key: AttributeTenant, Value: req.Context.Tenant},
			{Key: AttributeMarket, Value: req.Context.Market},
			{Key: AttributeAttemptID, Value: req.AttemptID},
		},
	}
	if req.ReturnPath != "" {
		in.Attributes = append(in.Attributes, shopify.Attribute{Key: AttributeReturnPath, Value: req.ReturnPath})
	}
	for _, it := range v.resolved {
		in.Lines = append(in.Lines, shopify.CartLine{MerchandiseID: it.PlatformVariantRef, Quantity: it.Quantity})
	}

	cart, err := o.platform.CreateCart(ctx, in)
	if err == nil {
		span.SetAttributes(attribute.String("cart_id", cart.ID))
		return cart, nil
	}
	span.SetStatus(codes.Error, err.Error())

	var userErrs *shopify.UserErrors
	if stderrors.As(err, &userErrs) {
		if userErrs.MissingMerchandise() {
			// verify passed but create lost the race with the read index
			return nil, errors.NewRejection(errors.KindIndexingDelay, o.cfg.IndexingRetryAfter, "items are not yet visible to checkout", indexingReasons(v.resolved))
		}
		return nil, errors.NewRejection(errors.KindPlatformRejected, 0, userErrs.Error(), nil)
	}
	return nil, err
}

// finalize enriches the created cart with the destination. Failure is logged and ignored:
// the session already exists and its redirect URL stays valid.
func (o *Orchestrator) finalize(ctx context.Context, logger *zap.Logger, cartID, market string, dest *domain.Address) {
	if dest == nil || dest.CountryCode == "" {
		return
	}
	ctx, span := tracer().Start(ctx, "checkout.finalize")
	defer span.End()

	err := o.platform.UpdateBuyerIdentity(ctx, cartID, shopify.BuyerIdentity{CountryCode: market, DeliveryAddress: dest})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("Failed to enrich checkout session", zap.String("session_id", cartID), zap.Error(err))
	}
}

// fail maps a verify/create error onto the rejection taxonomy
func (o *Orchestrator) fail(ctx context.Context, logger *zap.Logger, step string, err error) (*domain.CheckoutSession, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	rej, ok := errors.AsRejection(err)
	if !ok {
		var upstream *errors.ErrUpstream
		if stderrors.As(err, &upstream) {
			rej = errors.NewRejection(errors.KindUpstreamUnavailable, o.cfg.UpstreamRetryAfter, "the commerce platform is temporarily unavailable", nil)
		} else {
			rej = errors.NewRejection(errors.KindPlatformRejected, 0, fmt.Sprintf("%s failed: %v", step, err), nil)
		}
	}

	switch rej.Kind {
	case errors.KindPlatformRejected:
		logger.Error("Checkout rejected by platform", zap.String("step", step), zap.Error(err))
	case errors.KindIndexingDelay:
		logger.Info("Checkout waiting for platform indexing", zap.String("step", step), zap.Int("lines", len(rej.Reasons)))
	default:
		logger.Warn("Checkout step failed", zap.String("step", step), zap.String("kind", string(rej.Kind)), zap.Error(err))
	}
	return nil, rej
}

func indexingReasons(items []ResolvedItem) []errors.Reason {
	reasons := make([]errors.Reason, 0, len(items))
	for _, it := range items {
		reasons = append(reasons, errors.Reason{
			Kind:               errors.KindIndexingDelay,
			LineIndex:          it.Index,
			ProductID:          it.ProductID,
			VariantID:          it.VariantID,
			PlatformVariantRef: it.PlatformVariantRef,
			Message:            "This item was updated moments ago and is not yet available for checkout",
		})
	}
	return reasons
}
