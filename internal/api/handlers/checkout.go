package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/api/middleware"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/events"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/metrics"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/repository"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/service"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/tenancy"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/pkg/errors"
)

// auditTimeout bounds the best-effort writes done after the response outcome is known
const auditTimeout = 3 * time.Second

// CartValidator produces checkout verdicts
type CartValidator interface {
	Validate(ctx context.Context, sc domain.StoreContext, items []domain.CartLineItem, dest *domain.Address) (*domain.CheckoutVerdict, error)
}

// SessionCreator creates checkout sessions
type SessionCreator interface {
	CreateSession(ctx context.Context, req service.SessionRequest) (*domain.CheckoutSession, error)
}

// CheckoutDeps are the collaborators of the checkout handlers. Repos, Events and Metrics
// are optional.
type CheckoutDeps struct {
	Validator    CartValidator
	Orchestrator SessionCreator
	Tenancy      *tenancy.Resolver
	Repos        *repository.Repositories
	Events       events.Publisher
	Metrics      *metrics.CheckoutMetrics
}

func HandleValidate(deps CheckoutDeps, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sc, ok := middleware.GetStoreContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store context not resolved"})
			return
		}

		var req service.ValidateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation failed",
				"details": err.Error(),
			})
			return
		}

		verdict, err := deps.Validator.Validate(c.Request.Context(), sc.StoreContext, req.Items, req.Destination)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		if deps.Metrics != nil {
			deps.Metrics.ObserveVerdict(verdict)
		}
		c.JSON(http.StatusOK, verdict)
	}
}

func HandleCreateSession(deps CheckoutDeps, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, ok := middleware.GetStoreContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store context not resolved"})
			return
		}

		key, requestHash, existing := middleware.GetIdempotencyInfo(c)
		if existing != nil {
			logger.Info("Replaying idempotent checkout session",
				zap.String("attempt_id", existing.AttemptID),
				zap.String("session_id", existing.SessionID))
			c.Header("Idempotent-Replayed", "true")
			c.JSON(http.StatusOK, service.SessionResponse{
				SessionID:   existing.SessionID,
				RedirectURL: existing.RedirectURL,
				AttemptID:   existing.AttemptID,
			})
			return
		}

		var req service.CreateSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation failed",
				"details": err.Error(),
			})
			return
		}

		sc := res.StoreContext
		if req.Tenant != "" {
			tenant, known := deps.Tenancy.Known(req.Tenant)
			if !known {
				respondError(c, logger, &errors.ErrValidation{Message: "unknown tenant", Fields: map[string]string{"tenant": req.Tenant}})
				return
			}
			sc.Tenant = tenant
		}
		if req.Market != "" {
			sc.Market = domain.NormalizeMarketCode(req.Market)
		}

		attemptID := uuid.NewString()
		var reservation *domain.IdempotencyKey
		if key != "" {
			var conflict bool
			reservation, conflict = reserveIdempotencyKey(c.Request.Context(), deps.Repos, logger, &domain.IdempotencyKey{
				Key:         key,
				Tenant:      res.Tenant,
				RequestHash: requestHash,
				AttemptID:   attemptID,
				CreatedAt:   time.Now().UTC(),
			})
			if conflict {
				c.JSON(http.StatusConflict, gin.H{"error": "a request with this idempotency key is still in progress"})
				return
			}
		}

		session, err := deps.Orchestrator.CreateSession(c.Request.Context(), service.SessionRequest{
			AttemptID:   attemptID,
			Context:     sc,
			Items:       req.Items,
			Destination: req.Destination,
			ReturnPath:  req.ReturnPath,
		})
		if err != nil {
			// a retry with the same key must run the flow again
			releaseIdempotencyKey(c.Request.Context(), deps.Repos, logger, reservation)

			rej, isRejection := errors.AsRejection(err)
			if !isRejection {
				if c.Request.Context().Err() == nil {
					respondError(c, logger, err)
					return
				}
				rej = errors.NewRejection(errors.KindUpstreamUnavailable, time.Second, "request cancelled before a session was created", nil)
			}
			recordRejection(c.Request.Context(), deps, logger, attemptID, sc, rej)
			respondRejection(c, rej, attemptID)
			return
		}

		recordSession(c.Request.Context(), deps, logger, session)
		if reservation != nil {
			reservation.SessionID = session.ID
			reservation.RedirectURL = session.RedirectURL
			completeIdempotencyKey(c.Request.Context(), deps.Repos, logger, reservation)
		}

		c.JSON(http.StatusCreated, service.SessionResponse{
			SessionID:   session.ID,
			RedirectURL: session.RedirectURL,
			AttemptID:   session.AttemptID,
		})
	}
}

func respondRejection(c *gin.Context, rej *errors.Rejection, attemptID string) {
	body := service.NewRejectionResponse(rej, attemptID)
	if rej.Retryable {
		if body.RetryAfterSeconds > 0 {
			c.Header("Retry-After", strconv.Itoa(body.RetryAfterSeconds))
		}
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusUnprocessableEntity, body)
}

func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var verr *errors.ErrValidation
	switch {
	case stderrors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  verr.Message,
			"fields": verr.Fields,
		})
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request cancelled"})
	default:
		logger.Error("Checkout request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func recordSession(ctx context.Context, deps CheckoutDeps, logger *zap.Logger, session *domain.CheckoutSession) {
	if deps.Metrics != nil {
		deps.Metrics.ObserveSession(domain.OutcomeCreated, nil)
	}
	sessionID := session.ID
	record(ctx, deps, logger, &domain.CheckoutEvent{
		AttemptID: session.AttemptID,
		Tenant:    session.Tenant,
		Market:    session.Market,
		Outcome:   string(domain.OutcomeCreated),
		SessionID: &sessionID,
		Detail: domain.CheckoutEventDetail{
			RedirectURL: session.RedirectURL,
			Lines:       session.Lines,
		},
	}, events.SessionCreated(session))
}

func recordRejection(ctx context.Context, deps CheckoutDeps, logger *zap.Logger, attemptID string, sc domain.StoreContext, rej *errors.Rejection) {
	ev := events.Rejected(attemptID, sc, rej)
	if deps.Metrics != nil {
		deps.Metrics.ObserveSession(domain.CheckoutOutcome(ev.Outcome), rej)
	}
	record(ctx, deps, logger, &domain.CheckoutEvent{
		AttemptID: attemptID,
		Tenant:    sc.Tenant,
		Market:    sc.Market,
		Outcome:   ev.Outcome,
		Detail: domain.CheckoutEventDetail{
			Kind:    rej.Kind,
			Message: rej.Message,
			Reasons: rej.Reasons,
		},
	}, ev)
}

// record writes the audit row and publishes the event. Neither may change the response,
// so both run detached from the request's cancellation.
func record(ctx context.Context, deps CheckoutDeps, logger *zap.Logger, row *domain.CheckoutEvent, ev events.CheckoutEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	if deps.Repos != nil && deps.Repos.CheckoutEvent != nil {
		if err := deps.Repos.CheckoutEvent.Create(ctx, row); err != nil {
			logger.Warn("Failed to write checkout audit event", zap.String("attempt_id", row.AttemptID), zap.Error(err))
		}
	}
	if deps.Events != nil {
		if err := deps.Events.Publish(ctx, ev); err != nil {
			logger.Warn("Failed to publish checkout event", zap.String("attempt_id", ev.AttemptID), zap.Error(err))
		}
	}
}

// reserveIdempotencyKey claims the key for this attempt. It returns nil without a conflict
// when the key store fails: the checkout proceeds, just without deduplication.
func reserveIdempotencyKey(ctx context.Context, repos *repository.Repositories, logger *zap.Logger, key *domain.IdempotencyKey) (*domain.IdempotencyKey, bool) {
	if repos == nil || repos.IdempotencyKey == nil {
		return nil, false
	}
	err := repos.IdempotencyKey.Reserve(ctx, key)
	if err == nil {
		return key, false
	}
	var conflict *errors.ErrConflict
	if stderrors.As(err, &conflict) {
		logger.Info("Idempotency key held by a concurrent request", zap.String("attempt_id", key.AttemptID))
		return nil, true
	}
	logger.Warn("Failed to reserve idempotency key", zap.String("attempt_id", key.AttemptID), zap.Error(err))
	return nil, false
}

func completeIdempotencyKey(ctx context.Context, repos *repository.Repositories, logger *zap.Logger, key *domain.IdempotencyKey) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	if err := repos.IdempotencyKey.Complete(ctx, key); err != nil {
		logger.Warn("Failed to store idempotency key", zap.String("attempt_id", key.AttemptID), zap.Error(err))
	}
}

func releaseIdempotencyKey(ctx context.Context, repos *repository.Repositories, logger *zap.Logger, key *domain.IdempotencyKey) {
	if key == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	if err := repos.IdempotencyKey.Release(ctx, key); err != nil {
		logger.Warn("Failed to release idempotency key", zap.String("attempt_id", key.AttemptID), zap.Error(err))
	}
}
