package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nourishnest/backend/internal/services/pricing"
)

// PricingHandler handles order pricing requests. The engine is pure, so
// these endpoints are safe to call on every cart change.
type PricingHandler struct{}

// NewPricingHandler creates a new pricing handler
func NewPricingHandler() *PricingHandler {
	return &PricingHandler{}
}

// QuoteRequest carries the selection plus catalog prices supplied by the
// caller; the catalog itself is an external collaborator.
type QuoteRequest struct {
	Selection pricing.Selection `json:"selection"`
	Member    bool              `json:"member"`
}

// Quote prices a cart/subscription selection
func (h *PricingHandler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, pricing.ComputeQuote(req.Selection, req.Member))
}

// BuilderQuoteRequest carries the build-your-own package contents
type BuilderQuoteRequest struct {
	Items []pricing.BuilderItem `json:"items"`
}

// BuilderQuote prices a build-your-own package
func (h *PricingHandler) BuilderQuote(c *gin.Context) {
	var req BuilderQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, pricing.ComputeBuilderQuote(req.Items))
}
