package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"ngdi-portal/internal/audit"
	"ngdi-portal/internal/config"
	"ngdi-portal/internal/handler"
	"ngdi-portal/internal/middleware"
	"ngdi-portal/internal/models"
	"ngdi-portal/internal/ratelimit"
	"ngdi-portal/internal/repository"
	"ngdi-portal/internal/service"
	"ngdi-portal/internal/storage"
	"ngdi-portal/internal/token"
)

type Server struct {
	router  *gin.Engine
	db      *sqlx.DB
	cfg     *config.Config
	logger  *zap.Logger
	log     *logrus.Logger
	storage *storage.Client
}

func NewServer(db *sqlx.DB, redisClient redis.UniversalClient, cfg *config.Config, logger *zap.Logger, storageClient *storage.Client, notifier service.Notifier) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	s := &Server{
		router:  router,
		db:      db,
		cfg:     cfg,
		logger:  logger,
		log:     logrus.New(),
		storage: storageClient,
	}

	s.setupRoutes(redisClient, notifier)

	return s
}

func (s *Server) setupRoutes(redisClient redis.UniversalClient, notifier service.Notifier) {
	// Repositories
	userRepo := repository.NewUserRepository(s.db, s.logger)
	metadataRepo := repository.NewMetadataRepository(s.db, s.logger)
	orgRepo := repository.NewOrganizationRepository(s.db, s.logger)

	// Auth building blocks
	limiter := ratelimit.New(redisClient, ratelimit.Config{
		MaxAttempts: s.cfg.RateLimit.MaxAttempts,
		Window:      s.cfg.RateLimit.Window,
		FailOpen:    s.cfg.RateLimit.FailOpen,
	})
	trail := audit.NewTrail(redisClient, s.logger)
	issuer := token.NewIssuer(token.Config{
		Secret:           []byte(s.cfg.Auth.JWTSecret),
		AccessTTL:        s.cfg.Auth.AccessTokenTTL,
		RefreshExtension: s.cfg.Auth.RefreshExtension,
	}, nil, s.logger)

	// Services
	authService := service.NewAuthService(userRepo, limiter, issuer, trail, notifier, s.cfg, s.logger)
	metadataService := service.NewMetadataService(metadataRepo, notifier, s.logger)
	adminService := service.NewUserAdminService(userRepo, orgRepo, trail, notifier, s.logger)

	// Handlers
	authHandler := handler.NewAuthHandler(authService, s.cfg, s.log)
	metadataHandler := handler.NewMetadataHandler(metadataService, s.log)
	adminHandler := handler.NewAdminHandler(adminService, trail, s.log)
	profileHandler := handler.NewProfileHandler(userRepo, s.log)
	uploadHandler := handler.NewUploadHandler(s.storage, s.log)

	s.router.Use(middleware.SecurityHeaders(s.cfg.IsProduction()))

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	cookieName := s.cfg.Auth.SessionCookie

	// Authentication routes
	authGroup := s.router.Group("/api/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/session", authHandler.Session)
	authGroup.POST("/sync", authHandler.Sync)

	// Public catalog routes: anonymous callers only see published records,
	// signed-in staff get their wider view.
	catalog := s.router.Group("/api/metadata")
	catalog.Use(middleware.OptionalAuth(issuer, userRepo, cookieName, s.logger))
	catalog.GET("", metadataHandler.Search)
	catalog.GET("/:id", metadataHandler.Get)

	// Authenticated routes
	authRequired := s.router.Group("/api")
	authRequired.Use(middleware.AuthMiddleware(issuer, userRepo, cookieName, s.logger))
	{
		authRequired.POST("/auth/logout", authHandler.Logout)
		authRequired.GET("/profile", profileHandler.Get)
		authRequired.PUT("/profile", profileHandler.Update)
		authRequired.POST("/uploads/avatar", uploadHandler.PresignAvatar)
		authRequired.GET("/uploads", uploadHandler.PresignDownload)

		officers := authRequired.Group("/metadata")
		officers.Use(middleware.RequireRole(models.RoleNodeOfficer, models.RoleAdmin))
		{
			officers.POST("", metadataHandler.Create)
			officers.PUT("/:id", metadataHandler.Update)
			officers.DELETE("/:id", metadataHandler.Delete)
			officers.POST("/:id/validate", metadataHandler.Validate)
			officers.POST("/:id/publish", metadataHandler.Publish)
			officers.POST("/:id/attachment", uploadHandler.PresignAttachment)
		}

		admin := authRequired.Group("/admin")
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/users", adminHandler.ListUsers)
			admin.POST("/users", adminHandler.CreateUser)
			admin.PUT("/users/:id/role", adminHandler.ChangeRole)
			admin.PUT("/users/:id/disabled", adminHandler.SetDisabled)
			admin.GET("/organizations", adminHandler.ListOrganizations)
			admin.POST("/organizations", adminHandler.CreateOrganization)
			admin.GET("/audit", adminHandler.AuditTrail)
		}
	}
}

func (s *Server) Run(addr string) {
	s.log.Infof("Server starting on port %s...", addr)
	if err := s.router.Run(addr); err != nil {
		s.log.Fatalf("Server failed to start: %v", err)
	}
}
