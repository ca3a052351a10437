package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/nourishnest/backend/internal/cache"
	"github.com/nourishnest/backend/internal/config"
	"github.com/nourishnest/backend/internal/database"
	"github.com/nourishnest/backend/internal/handlers"
	"github.com/nourishnest/backend/internal/jobs"
	"github.com/nourishnest/backend/internal/middleware"
	"github.com/nourishnest/backend/internal/routes"
	"github.com/nourishnest/backend/internal/services/referral"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Initialize configuration
	cfg := config.LoadConfig()

	// Setup database connection (runs migrations)
	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Setup Redis for click attribution
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	if cfg.Redis.Password != "" {
		redisOpts.Password = cfg.Redis.Password
	}
	redisOpts.DB = cfg.Redis.DB
	redisClient := redis.NewClient(redisOpts)

	attributionWindow := time.Duration(cfg.Referral.AttributionWindowDays) * 24 * time.Hour
	attribution := cache.NewAttributionStore(redisClient, attributionWindow)

	// Referral ledger service
	referralService := referral.NewReferralService(db, attribution, referral.SystemClock(), cfg.Referral, cfg.FrontendURL)

	// Start the recurring credit sweep and expiry jobs
	scheduler := jobs.NewScheduler(referralService)
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize router
	router := gin.Default()

	// Configure CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Register routes
	rateLimiter := middleware.NewRateLimiter(60, 10)
	defer rateLimiter.Stop()

	referralHandler := handlers.NewReferralHandler(referralService)
	pricingHandler := handlers.NewPricingHandler()
	routes.RegisterRoutes(router, referralHandler, pricingHandler, rateLimiter)

	// Start server
	fmt.Printf("NourishNest API server running on port %s\n", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
