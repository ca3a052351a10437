package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nourishnest/backend/internal/services/referral"
)

// ReferralHandler handles referral ledger requests
type ReferralHandler struct {
	service *referral.ReferralService
}

// NewReferralHandler creates a new referral handler
func NewReferralHandler(service *referral.ReferralService) *ReferralHandler {
	return &ReferralHandler{service: service}
}

func authenticatedUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr := c.GetString("user_id")
	if userIDStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return uuid.Nil, false
	}
	return userID, true
}

// GenerateCode returns the caller's referral code, minting one on first use
func (h *ReferralHandler) GenerateCode(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	code, err := h.service.GenerateCode(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate referral code"})
		return
	}

	c.JSON(http.StatusOK, code)
}

// GetEvents returns the funnel events for the caller's referral code
func (h *ReferralHandler) GetEvents(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	// Issuance is idempotent, so this resolves the caller's current code.
	code, err := h.service.GenerateCode(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve referral code"})
		return
	}

	events, err := h.service.ListEvents(c.Request.Context(), code.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list referral events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": code, "events": events})
}

// RecordClickRequest is the payload for a referral link click
type RecordClickRequest struct {
	Code      string `json:"code" binding:"required"`
	SessionID string `json:"session_id" binding:"required"`
}

// RecordClick records a click on a shared referral link
func (h *ReferralHandler) RecordClick(c *gin.Context) {
	var req RecordClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	matched, err := h.service.RecordClick(c.Request.Context(), req.Code, req.SessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record click"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": matched})
}

// AttachSignupRequest is the payload for post-signup attribution
type AttachSignupRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Email     string `json:"email"`
}

// AttachSignup links a fresh signup to an earlier referral click
func (h *ReferralHandler) AttachSignup(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	var req AttachSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.AttachOnSignup(c.Request.Context(), req.SessionID, userID, req.Email); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to attach referral"})
		return
	}

	// Attribution is best-effort; a missed window is not an error.
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// RedeemRequest is the checkout-time redemption payload
type RedeemRequest struct {
	Code       string          `json:"code" binding:"required"`
	OrderID    string          `json:"order_id" binding:"required"`
	OrderValue decimal.Decimal `json:"order_value"`
	SessionID  string          `json:"session_id"`
	Email      string          `json:"email"`
}

// Redeem validates a referral code against the caller's order
func (h *ReferralHandler) Redeem(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.RedeemAtCheckout(c.Request.Context(), referral.RedeemInput{
		Code:          req.Code,
		OrderID:       req.OrderID,
		OrderValue:    req.OrderValue,
		RefereeUserID: userID,
		RefereeEmail:  req.Email,
		SessionID:     req.SessionID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to redeem referral code"})
		return
	}

	// Business rejections ride the same envelope with ok=false.
	c.JSON(http.StatusOK, result)
}

// OrderCancelledRequest voids the pending reward for an order
type OrderCancelledRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// OrderCancelled records that a referred order was cancelled
func (h *ReferralHandler) OrderCancelled(c *gin.Context) {
	var req OrderCancelledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.RecordOrderCancelled(c.Request.Context(), req.OrderID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record cancellation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ApplyCreditsRequest is the payload for spending credit against a charge
type ApplyCreditsRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// ApplyCredits debits the caller's credits against a charge
func (h *ReferralHandler) ApplyCredits(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	var req ApplyCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	applied, err := h.service.ApplyCredits(c.Request.Context(), userID, req.Amount)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply credits"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "amount_applied": applied})
}

// GetBalance returns the caller's spendable credit balance
func (h *ReferralHandler) GetBalance(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return
	}

	balance, err := h.service.GetBalance(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get balance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": balance})
}
