package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"geobadge-backend/config"
	"geobadge-backend/contracts"
	"geobadge-backend/handlers"
	"geobadge-backend/logger"
	"geobadge-backend/services"
	"geobadge-backend/store"
)

func connectToDatabase(cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	// Test the connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, err
	}
	return pool, nil
}

func connectToRedis(cfg config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

func connectToEthereum(cfg config.Config) (*ethclient.Client, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum client: %w", err)
	}
	return client, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using default environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Unable to load configuration: %v\n", err)
	}

	zlog, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("Unable to build logger: %v\n", err)
	}
	defer zlog.Sync()

	// Database connection
	pool, err := connectToDatabase(cfg)
	if err != nil {
		zlog.Fatalw("unable to connect to database", "err", err)
	}
	defer pool.Close()
	zlog.Info("connected to the database")

	// Redis connection (content store, challenges, rate limits)
	redisClient, err := connectToRedis(cfg)
	if err != nil {
		zlog.Fatalw("unable to connect to redis", "err", err)
	}
	defer redisClient.Close()
	zlog.Info("connected to redis")

	// Ethereum client connection
	ethClient, err := connectToEthereum(cfg)
	if err != nil {
		zlog.Fatalw("unable to connect to Ethereum node", "err", err)
	}
	defer ethClient.Close()
	zlog.Infow("connected to Ethereum node", "rpc", cfg.RPCURL)

	minter, err := contracts.NewBadgeMinter(ethClient, cfg.BadgeContract, cfg.MinterKey, cfg.ChainID)
	if err != nil {
		zlog.Fatalw("unable to set up badge contract", "err", err)
	}

	// Collaborators
	repo := store.NewPostgres(pool)
	content := store.NewRedisContent(redisClient)
	challenges := store.NewChallengeStore(redisClient, cfg.ChallengeTTL())
	limiter := store.NewRateLimiter(redisClient, cfg.RateLimitPerMin, time.Minute)

	// Core services
	visitService := services.NewVisitService(repo, content, zlog, cfg.MaxAccuracyMeters, cfg.DuplicateWindow())
	badgeService := services.NewBadgeService(repo, repo, content, minter, zlog, cfg.MintTimeout())

	// Handlers
	visitHandler := handlers.NewVisitHandler(visitService, zlog)
	badgeHandler := handlers.NewBadgeHandler(badgeService, zlog)
	authHandler := handlers.NewAuthHandler(challenges, cfg.ChallengeTTLMins*60, zlog)

	// Setup Gin
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:3000", "http://localhost:3001", "http://localhost:3002"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	// API routes
	api := router.Group("/api/v1")
	api.Use(handlers.RateLimit(limiter, zlog))
	{
		// Wallet login routes
		api.POST("/auth/challenge", authHandler.Challenge)
		api.POST("/auth/verify", authHandler.Verify)

		// Visit routes
		api.POST("/visits", visitHandler.SubmitVisit)
		api.POST("/visits/:id/verify", visitHandler.VerifyVisit)
		api.GET("/visits/:id", visitHandler.GetVisit)
		api.GET("/users/:address/visits", visitHandler.GetUserVisits)

		// Badge routes
		api.POST("/badges/claim", badgeHandler.ClaimBadge)
		api.GET("/users/:address/badges", badgeHandler.GetUserBadges)

		// Health check route
		api.GET("/test-db", func(c *gin.Context) {
			if err := pool.Ping(context.Background()); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Database connection failed: " + err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "Database connection OK"})
		})
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
		})
	})

	zlog.Infow("server starting", "port", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		zlog.Fatalw("failed to start server", "err", err)
	}
}
