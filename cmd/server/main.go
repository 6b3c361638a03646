// Package main runs the grants portal HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/grantportal/backend/config"
	"github.com/grantportal/backend/internal/access"
	"github.com/grantportal/backend/internal/admin"
	"github.com/grantportal/backend/internal/applications"
	"github.com/grantportal/backend/internal/cycles"
	"github.com/grantportal/backend/internal/dashboard"
	"github.com/grantportal/backend/internal/documents"
	"github.com/grantportal/backend/internal/emaillogs"
	"github.com/grantportal/backend/internal/identity"
	"github.com/grantportal/backend/internal/middleware"
	"github.com/grantportal/backend/internal/notify"
	"github.com/grantportal/backend/internal/organizations"
	"github.com/grantportal/backend/internal/users"
	"github.com/grantportal/backend/pkg/database"
	"github.com/grantportal/backend/pkg/queue"
	"github.com/grantportal/backend/pkg/redis"
	"github.com/grantportal/backend/pkg/response"
	"github.com/grantportal/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	if err := database.Migrate(cfg.Database.DSN(), logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	// Email goes through the Redis queue when available; otherwise it is only logged.
	var notifier notify.Notifier
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable, emails will be logged only", zap.Error(err))
		notifier = notify.NewLogNotifier(logger)
	} else {
		defer rdb.Close()
		notifier = notify.NewQueueNotifier(queue.NewQueue(rdb.Client, logger), logger)
	}

	var objects documents.ObjectStore
	var objectDeleter admin.ObjectDeleter
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			DocumentsBucket:      cfg.AWS.DocumentsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			objects, objectDeleter = s3Client, s3Client
		}
	} else {
		logger.Warn("AWS_REGION not set, document uploads disabled")
	}

	provider, err := newIdentityProvider(cfg.Identity, logger)
	if err != nil {
		logger.Fatal("identity provider", zap.Error(err))
	}
	if cfg.Identity.APIURL == "" {
		logger.Warn("IDENTITY_API_URL not set, membership management will fail")
	}
	directory := identity.NewDirectoryClient(cfg.Identity.APIURL, cfg.Identity.APIKey,
		time.Duration(cfg.Identity.APITimeoutSec)*time.Second, logger)

	// Repositories
	userRepo := users.NewRepository(pool)
	cycleRepo := cycles.NewRepository(pool)
	orgRepo := organizations.NewRepository(pool)
	documentRepo := documents.NewRepository(pool)
	applicationRepo := applications.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)
	emailLogsRepo := emaillogs.NewRepository(pool)

	// Handlers
	userHandler := users.NewHandler(userRepo, logger)
	cycleHandler := cycles.NewHandler(cycleRepo, logger)
	orgHandler := organizations.NewHandler(orgRepo, cycleRepo, userRepo, logger)
	documentHandler := documents.NewHandler(documentRepo, objects, userRepo, logger)
	applicationHandler := applications.NewHandler(applicationRepo, cycleRepo, orgRepo, userRepo, notifier,
		applications.Config{StaffEmail: cfg.Email.AdminEmail, BaseURL: cfg.Server.BaseURL}, logger)
	adminHandler := admin.NewHandler(directory, cfg.Identity.OrgID, adminRepo, objectDeleter, logger)
	emailLogsHandler := emaillogs.NewHandler(emailLogsRepo, logger)
	dashboardHandler := dashboard.NewHandler(applicationRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Identity(provider, cfg.Identity.OrgID))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		checks := gin.H{"database": "ok"}
		if err := pool.Ping(c.Request.Context()); err != nil {
			checks["database"] = "unavailable"
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "data": checks, "error": "database unavailable"})
			return
		}
		if rdb != nil {
			checks["redis"] = "ok"
			if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
				checks["redis"] = "unavailable"
			}
		}
		response.OK(c, checks)
	})

	// Pages
	router.GET("/dashboard", middleware.RequirePageRole(access.RoleMember), dashboardHandler.Show)

	api := router.Group("/api")
	api.Use(middleware.RequireIdentity())
	{
		api.GET("/me", userHandler.Me)

		// Cycles
		api.GET("/cycles", cycleHandler.ListOpen)

		// Organizations
		api.POST("/organizations", orgHandler.Create)
		api.GET("/organizations", middleware.RequireRole(access.RoleMember), orgHandler.List)
		api.POST("/organizations/review-profile", orgHandler.ReviewProfile)
		api.GET("/organizations/:id", orgHandler.Get)
		api.PATCH("/organizations/:id", orgHandler.Update)

		// Documents
		api.GET("/organizations/:id/documents", documentHandler.ListByOrganization)
		api.POST("/organizations/:id/documents", documentHandler.Upload)
		api.DELETE("/documents/:id", documentHandler.Delete)

		// Applications
		api.GET("/applications", applicationHandler.List)
		api.POST("/applications", applicationHandler.Create)
		api.GET("/applications/:id", applicationHandler.Get)
		api.PATCH("/applications/:id/status", middleware.RequireRole(access.RoleManager), applicationHandler.UpdateStatus)
		api.PUT("/applications/:id/review", middleware.RequireRole(access.RoleMember), applicationHandler.Review)

		// Staff
		staff := api.Group("/admin")
		{
			staff.GET("/cycles", middleware.RequireRole(access.RoleManager), cycleHandler.List)
			staff.POST("/cycles", middleware.RequireRole(access.RoleAdmin), cycleHandler.Create)
			staff.PATCH("/cycles/:id", middleware.RequireRole(access.RoleAdmin), cycleHandler.Update)
			staff.GET("/email-logs", middleware.RequireRole(access.RoleManager), emailLogsHandler.List)

			staff.GET("/users", middleware.RequireRole(access.RoleAdmin), adminHandler.ListUsers)
			staff.PATCH("/users/:id/role", middleware.RequireRole(access.RoleAdmin), adminHandler.UpdateRole)
			staff.DELETE("/users/:id", middleware.RequireRole(access.RoleAdmin), adminHandler.RemoveUser)
			staff.POST("/reset-sample-data", middleware.RequireRole(access.RoleAdmin), adminHandler.ResetSampleData)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// newIdentityProvider verifies session tokens with the RS256 public key when configured, else the HS256 secret.
func newIdentityProvider(cfg config.IdentityConfig, logger *zap.Logger) (identity.Provider, error) {
	if cfg.SessionPublicKey != "" {
		return identity.NewRSATokenProvider(cfg.SessionPublicKey, cfg.SessionIssuer, logger)
	}
	return identity.NewHMACTokenProvider(cfg.SessionSecret, cfg.SessionIssuer, logger), nil
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
