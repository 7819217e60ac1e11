// internal/handlers/subscription/subscription_handler.go
package subscription

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"cuscatlan-service/internal/domain/subscription"
	"cuscatlan-service/internal/middleware"
	"cuscatlan-service/internal/pkg/response"
	service "cuscatlan-service/internal/service/subscription"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// maxBulkLookup caps the admin bulk read.
const maxBulkLookup = 100

type SubscriptionHandler struct {
	subscriptionService *service.SubscriptionService
	lifetimePrice       float64
	logger              *zap.Logger
	now                 func() time.Time
}

func NewSubscriptionHandler(subscriptionService *service.SubscriptionService, lifetimePrice float64, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
		lifetimePrice:       lifetimePrice,
		logger:              logger,
		now:                 time.Now,
	}
}

// ========== User Endpoints ==========

// GetSubscription returns the caller's record and evaluated gates
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	identity := middleware.MustGetIdentity(c)

	rec := h.subscriptionService.LoadRecord(c.Request.Context(), identity)
	response.Success(c, http.StatusOK, "subscription retrieved", h.toResponse(identity, rec))
}

// GetAccess returns only the evaluated gates
func (h *SubscriptionHandler) GetAccess(c *gin.Context) {
	identity := middleware.MustGetIdentity(c)

	access := h.subscriptionService.Access(c.Request.Context(), identity, h.now())
	response.Success(c, http.StatusOK, "access evaluated", access)
}

// StartTrial grants the free trial if the caller is eligible
func (h *SubscriptionHandler) StartTrial(c *gin.Context) {
	identity := middleware.MustGetIdentity(c)

	rec, err := h.subscriptionService.StartTrial(c.Request.Context(), identity, h.now())
	if err != nil {
		h.logger.Error("failed to start trial", zap.String("identity", identity), zap.Error(err))
		response.FromError(c, "failed to start trial", err)
		return
	}
	response.Success(c, http.StatusOK, "trial processed", h.toResponse(identity, rec))
}

// Activate records the lifetime purchase
func (h *SubscriptionHandler) Activate(c *gin.Context) {
	identity := middleware.MustGetIdentity(c)

	// the body is optional
	var req subscription.ActivateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.ValidationError(c, "invalid request", err)
		return
	}

	paymentID := strings.TrimSpace(req.PaymentID)
	if paymentID == "" {
		paymentID = "pay_" + strings.ToLower(ulid.Make().String())
	}
	amount := req.Amount
	if amount == 0 {
		amount = h.lifetimePrice
	}

	rec, err := h.subscriptionService.ActivateSubscription(c.Request.Context(), identity, paymentID, amount, h.now())
	if err != nil {
		response.FromError(c, "failed to activate subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription activated", h.toResponse(identity, rec))
}

// ListPayments returns the caller's payments in the order they were recorded
func (h *SubscriptionHandler) ListPayments(c *gin.Context) {
	identity := middleware.MustGetIdentity(c)

	rec := h.subscriptionService.LoadRecord(c.Request.Context(), identity)
	response.Success(c, http.StatusOK, "payments retrieved", subscription.PaymentListResponse{
		Payments: rec.Payments,
		Total:    len(rec.Payments),
	})
}

// AddPayment appends a payment record without changing entitlement state
func (h *SubscriptionHandler) AddPayment(c *gin.Context) {
	identity := middleware.MustGetIdentity(c)

	var req subscription.AddPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	rec, err := h.subscriptionService.AddPayment(c.Request.Context(), identity, subscription.Payment{
		ID:            req.ID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Status:        req.Status,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
	}, h.now())
	if err != nil {
		response.FromError(c, "failed to record payment", err)
		return
	}

	response.Success(c, http.StatusCreated, "payment recorded", h.toResponse(identity, rec))
}

// ========== Admin Endpoints ==========

// AdminGetSubscription returns any identity's record
func (h *SubscriptionHandler) AdminGetSubscription(c *gin.Context) {
	identity := strings.ToLower(strings.TrimSpace(c.Param("identity")))
	if identity == "" {
		response.ValidationError(c, "identity is required", nil)
		return
	}

	rec := h.subscriptionService.LoadRecord(c.Request.Context(), identity)
	response.Success(c, http.StatusOK, "subscription retrieved", h.toResponse(identity, rec))
}

// AdminLookup resolves several identities at once: ?identities=a@x.com,b@x.com
func (h *SubscriptionHandler) AdminLookup(c *gin.Context) {
	ids := strings.Split(c.Query("identities"), ",")
	if len(ids) > maxBulkLookup {
		response.ValidationError(c, "too many identities", nil)
		return
	}

	found, missing, err := h.subscriptionService.LookupMany(c.Request.Context(), ids)
	if err != nil {
		response.FromError(c, "failed to look up subscriptions", err)
		return
	}

	out := subscription.BulkLookupResponse{
		Subscriptions: make(map[string]subscription.SubscriptionResponse, len(found)),
		Missing:       missing,
	}
	if out.Missing == nil {
		out.Missing = []string{}
	}
	for id, rec := range found {
		out.Subscriptions[id] = h.toResponse(id, rec)
	}

	response.Success(c, http.StatusOK, "subscriptions retrieved", out)
}

func (h *SubscriptionHandler) toResponse(identity string, rec *subscription.Record) subscription.SubscriptionResponse {
	return subscription.SubscriptionResponse{
		Identity: identity,
		Record:   rec,
		Access:   rec.Access(h.now()),
	}
}
