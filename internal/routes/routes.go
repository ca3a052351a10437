package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/nourishnest/backend/internal/handlers"
	"github.com/nourishnest/backend/internal/middleware"
)

// RegisterRoutes registers all API routes
func RegisterRoutes(router *gin.Engine, referralHandler *handlers.ReferralHandler, pricingHandler *handlers.PricingHandler, rateLimiter *middleware.RateLimiter) {
	// Public endpoints: clicks happen pre-signup, pricing renders for
	// anonymous carts. Both sit behind the rate limiter.
	public := router.Group("/api")
	public.Use(rateLimiter.Middleware())
	{
		public.POST("/referrals/click", referralHandler.RecordClick)
		public.POST("/pricing/quote", pricingHandler.Quote)
		public.POST("/pricing/package-builder", pricingHandler.BuilderQuote)
	}

	referralGroup := router.Group("/api/referrals")
	referralGroup.Use(middleware.AuthMiddleware())
	{
		referralGroup.POST("/code", referralHandler.GenerateCode)
		referralGroup.GET("/events", referralHandler.GetEvents)
		referralGroup.POST("/signup", referralHandler.AttachSignup)
		referralGroup.POST("/redeem", rateLimiter.Middleware(), referralHandler.Redeem)
		referralGroup.POST("/order-cancelled", referralHandler.OrderCancelled)
		referralGroup.POST("/apply-credits", referralHandler.ApplyCredits)
		referralGroup.GET("/balance", referralHandler.GetBalance)
	}
}
