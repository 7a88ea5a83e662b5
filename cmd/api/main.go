package main

import (
	"context"
	"net/http"

	_ "garmentflow/api/swagger" // swagger docs
	"garmentflow/internal/config"
	"garmentflow/internal/database"
	"garmentflow/internal/handler"
	"garmentflow/internal/logger"
	"garmentflow/internal/middleware"
	"garmentflow/internal/repository"
	"garmentflow/internal/service"
	"garmentflow/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           GarmentFlow Production API
// @version         1.0
// @description     Order tracking, process transfers, reject logging and material stock for a garment factory.
// @host            localhost:8080
// @BasePath        /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	log := logger.Get()

	cfg, err := config.Load("configs/.env")
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	logger.SetLevel(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	log.WithField("driver", cfg.Database.Driver).Info("connected to database")

	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.InitPermissionMiddleware(db)
	if err := handler.RegisterValidators(); err != nil {
		log.WithError(err).Fatal("failed to register validators")
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	masterRepo := repository.NewMasterRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	processRepo := repository.NewProcessRepository(db)
	transferRepo := repository.NewTransferRepository(db)
	rejectRepo := repository.NewRejectRepository(db)
	stockRepo := repository.NewStockRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	userService := service.NewUserService(userRepo, roleRepo, cfg.JWTSecret)
	roleService := service.NewRoleService(roleRepo, txManager)
	auditService := service.NewAuditService(auditRepo)
	masterService := service.NewMasterService(masterRepo, auditRepo, txManager)
	orderService := service.NewOrderService(orderRepo, processRepo, masterRepo, auditRepo, txManager)
	processService := service.NewProcessService(orderRepo, processRepo, transferRepo, rejectRepo, txManager, wsHub)
	stockService := service.NewStockService(stockRepo, orderRepo, auditRepo, txManager, wsHub)
	dashboardService := service.NewDashboardService(dashboardRepo, stockService)

	ctx := context.Background()
	if err := roleService.SeedDefaultRolesAndPermissions(ctx); err != nil {
		log.WithError(err).Error("failed to seed roles and permissions")
	}
	if cfg.SeedAdminEmail != "" && cfg.SeedAdminPassword != "" {
		if err := userService.SeedAdmin(ctx, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
			log.WithError(err).Error("failed to seed admin user")
		}
	}

	// Initialize Handlers
	handlers := []interface {
		RegisterRoutes(router *gin.RouterGroup)
	}{
		handler.NewUserHandler(userService),
		handler.NewRoleHandler(roleService),
		handler.NewAuditHandler(auditService),
		handler.NewMasterHandler(masterService),
		handler.NewOrderHandler(orderService, processService, stockService),
		handler.NewProcessHandler(processService),
		handler.NewStockHandler(stockService),
		handler.NewDashboardHandler(dashboardService),
	}

	// Set up Gin Router
	router := gin.New()
	router.Use(logger.RequestLogger(), gin.Recovery())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "board_clients": wsHub.Clients()})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	api := router.Group("/api")
	for _, h := range handlers {
		h.RegisterRoutes(api)
	}

	log.WithField("port", cfg.Port).Info("server listening")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("server failed")
	}
}
