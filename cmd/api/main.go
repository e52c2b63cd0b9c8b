package main

import (
	"fmt"
	"net/http"
	"os"

	"papertrade/internal/config"
	"papertrade/internal/database"
	"papertrade/internal/handlers"
	"papertrade/internal/logger"
	"papertrade/internal/marketdata"
	"papertrade/internal/metrics"
	"papertrade/internal/middleware"
	"papertrade/internal/services"
	"papertrade/internal/validator"

	"github.com/gin-gonic/gin"
)

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Register custom binding validators
	validator.Register()

	// Initialize services
	db := dbManager.DB()
	provider := marketdata.NewYahooProvider(nil, appConfig.MarketDataBaseURL)
	orderValidator := services.NewOrderValidator(appConfig.LookbackYears, appConfig.FeeRate)
	accountService := services.NewAccountService(db)
	ledgerService := services.NewLedgerService(db, provider, orderValidator, accountService, appConfig.FeeRate)
	simulatorService := services.NewSimulatorService(db, orderValidator, accountService)
	groupService := services.NewGroupService(db, provider, accountService, appConfig.RollupPageSize)

	// Initialize handlers
	accountHandler := handlers.NewAccountHandler(accountService)
	orderHandler := handlers.NewOrderHandler(ledgerService)
	simulatorHandler := handlers.NewSimulatorHandler(simulatorService)
	groupHandler := handlers.NewGroupHandler(groupService)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API v1 group
	v1 := router.Group("/api/v1")

	// Public routes
	v1.POST("/accounts", accountHandler.CreateAccount)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	// Account routes
	protected.GET("/account", accountHandler.GetAccount)
	protected.POST("/account/group", accountHandler.JoinGroup)
	protected.DELETE("/account/group", accountHandler.LeaveGroup)

	// Ledger routes
	protected.POST("/orders", orderHandler.PlaceOrder)
	protected.GET("/transactions", orderHandler.ListTransactions)
	protected.GET("/portfolio", orderHandler.GetPortfolio)
	protected.POST("/portfolio/refresh", orderHandler.RefreshPortfolio)

	// Simulator routes
	simulators := protected.Group("/simulators")
	simulators.POST("", simulatorHandler.CreateSimulator)
	simulators.GET("/:id", simulatorHandler.GetSimulator)
	simulators.POST("/:id/join", simulatorHandler.Join)
	simulators.POST("/:id/live", simulatorHandler.GoLive)
	simulators.POST("/:id/start", simulatorHandler.Start)
	simulators.POST("/:id/orders", simulatorHandler.PlaceOrder)
	simulators.GET("/:id/board", simulatorHandler.GetBoard)

	// Group routes
	groups := protected.Group("/groups")
	groups.POST("", groupHandler.CreateGroup)
	groups.GET("/:id", groupHandler.GetGroup)
	groups.POST("/:id/close", groupHandler.CloseGroup)
	groups.GET("/:id/snapshot", groupHandler.GetSnapshot)

	// Start server
	addr := ":" + appConfig.Port
	log.Infof("Starting server on %s", addr)
	return router.Run(addr)
}
