package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nourishnest/backend/internal/services/pricing"
)

func setupPricingRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewPricingHandler()
	router.POST("/api/pricing/quote", handler.Quote)
	router.POST("/api/pricing/package-builder", handler.BuilderQuote)
	return router
}

func TestQuoteEndpoint(t *testing.T) {
	router := setupPricingRouter()

	body := `{
		"selection": {
			"meals": [{"meal_id": "lactation-congee", "quantity": 8, "price": 20}]
		},
		"member": true
	}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pricing/quote", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var quote pricing.Quote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quote))
	assert.Equal(t, 8, quote.TotalMeals)
	assert.True(t, quote.Subtotal.Equal(decimal.NewFromInt(160)))
	assert.True(t, quote.Total.Equal(decimal.NewFromFloat(129.6)), "got %s", quote.Total)
	assert.True(t, quote.CheckoutAllowed)
}

func TestQuoteEndpointRejectsMalformedBody(t *testing.T) {
	router := setupPricingRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pricing/quote", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBuilderQuoteEndpoint(t *testing.T) {
	router := setupPricingRouter()

	body := `{
		"items": [
			{"meal_id": "congee", "quantity": 8, "price": 20},
			{"meal_id": "broth", "quantity": 4, "price": 15}
		]
	}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pricing/package-builder", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var quote pricing.BuilderQuote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quote))
	assert.Equal(t, 12, quote.TotalItems)
	assert.True(t, quote.Discount.Equal(decimal.NewFromInt(96)))
	assert.True(t, quote.Total.Equal(decimal.NewFromInt(124)))
}
