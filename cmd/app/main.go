package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/azatarm-prog/telegive-participant/docs"
	"github.com/azatarm-prog/telegive-participant/internal/common/config"
	"github.com/azatarm-prog/telegive-participant/internal/common/logger"
	"github.com/azatarm-prog/telegive-participant/internal/common/middleware"
	captchahttp "github.com/azatarm-prog/telegive-participant/internal/features/captcha/delivery/http"
	"github.com/azatarm-prog/telegive-participant/internal/features/captcha/generator"
	captchapg "github.com/azatarm-prog/telegive-participant/internal/features/captcha/repository/postgres"
	captcharedis "github.com/azatarm-prog/telegive-participant/internal/features/captcha/repository/redis"
	captchaservice "github.com/azatarm-prog/telegive-participant/internal/features/captcha/service"
	participanthttp "github.com/azatarm-prog/telegive-participant/internal/features/participant/delivery/http"
	participantpg "github.com/azatarm-prog/telegive-participant/internal/features/participant/repository/postgres"
	participantservice "github.com/azatarm-prog/telegive-participant/internal/features/participant/service"
	"github.com/azatarm-prog/telegive-participant/internal/platform/postgres"
	"github.com/azatarm-prog/telegive-participant/internal/platform/redis"
	"github.com/azatarm-prog/telegive-participant/internal/platform/telegive"
)

// @title           Participant Service API
// @version         1.0
// @description     Participation and winner selection service for Telegram giveaways.

// @BasePath  /api

// @securityDefinitions.apikey ServiceToken
// @in header
// @name X-Service-Token
// @description Shared secret for service-to-service calls

// @tag.name participants
// @tag.description Registration, listing and participation history

// @tag.name captcha
// @tag.description One-time human verification sessions

// @tag.name winners
// @tag.description Winner selection and audit records

func main() {
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Debug)

	logger.Info().
		Str("service", cfg.ServiceName).
		Bool("debug", cfg.Debug).
		Msg("Starting participant service")

	postgresClient, err := postgres.NewClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer postgresClient.Close()

	logger.Info().Msg("Database connection established")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	redisClient, err := redis.Open(ctx, cfg)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	logger.Info().Msg("Redis connection established")

	sessionRepository := captcharedis.NewRepository(redisClient.Client)
	recordRepository := captchapg.NewRecordRepository(postgresClient.GetDB())
	participantRepository := participantpg.NewRepository(postgresClient.GetDB())

	subscriptionClient := telegive.NewClient(cfg)

	captchaSvc := captchaservice.New(
		sessionRepository,
		recordRepository,
		generator.New(cfg.Captcha.MinNumber, cfg.Captcha.MaxNumber),
		cfg.Captcha.MaxAttempts,
		cfg.Captcha.SessionTimeout,
	)
	participantSvc := participantservice.New(
		participantRepository,
		recordRepository,
		captchaSvc,
		subscriptionClient,
	)

	logger.Info().Msg("Services initialized")

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Accept", "X-Service-Token", "X-Service-Name", "X-Request-ID", "init_data"}
	router.Use(cors.New(corsConfig))

	router.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))

	captchaHandler := captchahttp.NewCaptchaHandler(captchaSvc, participantSvc)
	participantHandler := participanthttp.NewParticipantHandler(participantSvc)

	api := router.Group("/api")
	api.Use(middleware.RequireServiceToken(cfg.Auth.ServiceToken))
	{
		captchaHandler.RegisterRoutes(api)
		participantHandler.RegisterRoutes(api)
	}

	public := router.Group("/api/public")
	public.Use(middleware.TelegramInitData(cfg.Auth.BotToken))
	{
		captchaHandler.RegisterPublicRoutes(public)
		participantHandler.RegisterPublicRoutes(public)
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	registerProbes(router, cfg, postgresClient, redisClient)

	logger.Info().Msg("Routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

func registerProbes(router *gin.Engine, cfg *config.Config, postgresClient *postgres.Client, redisClient *redis.Client) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   cfg.ServiceName,
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := postgresClient.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "postgres unavailable",
				"details": err.Error(),
			})
			return
		}

		if err := redisClient.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "redis unavailable",
				"details": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   cfg.ServiceName,
		})
	})
}
