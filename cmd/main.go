package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/momo-ra/ai-agent-microservices-v1/internal/aiclient"
	"github.com/momo-ra/ai-agent-microservices-v1/internal/handler"
	"github.com/momo-ra/ai-agent-microservices-v1/internal/middleware"
	"github.com/momo-ra/ai-agent-microservices-v1/internal/model"
	"github.com/momo-ra/ai-agent-microservices-v1/internal/plantdb"
	"github.com/momo-ra/ai-agent-microservices-v1/internal/service"
	"github.com/momo-ra/ai-agent-microservices-v1/pkg/config"
	"github.com/momo-ra/ai-agent-microservices-v1/pkg/jwtutil"
	"github.com/momo-ra/ai-agent-microservices-v1/pkg/logger"
	"github.com/momo-ra/ai-agent-microservices-v1/prometheus"
)

const (
	serviceName = "plant-agent"
	version     = "1.0.0"
)

func main() {
	// Load configuration
	conf, err := config.Load(serviceName)
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	err = logger.InitLogger(&logger.LogConfig{
		Level:       conf.Log.Level,
		Environment: conf.Server.Env,
		ServiceName: conf.ServiceName,
	})
	if err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.Info("configuration loaded", conf.LogConfig()...)

	// Registry database connection
	registry, err := plantdb.NewRegistry(&conf.Registry, log)
	if err != nil {
		log.Fatal("failed to connect to registry database", zap.Error(err))
	}

	// Per-plant connection cache and session scope
	cache := plantdb.NewCache(registry, log)
	scope := plantdb.NewScope(cache)
	resolver := plantdb.NewResolver(registry)
	lifecycle := plantdb.NewLifecycle(registry, cache, log,
		&model.ChatSession{},
		&model.ChatMessage{},
		&model.Artifact{},
	)

	prometheus.RegisterConnectionGauge(cache.Size)

	// Startup verification: registry schema plus every active plant
	initCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := lifecycle.InitializeAll(initCtx); err != nil {
		cancel()
		log.Fatal("startup initialization failed", zap.Error(err))
	}
	cancel()

	// AI agent client and application services
	ai := aiclient.New(conf.AI, log)
	artifactSvc := service.NewArtifactService(scope, log)
	chatSvc := service.NewChatService(scope, ai, artifactSvc, log)
	querySvc := service.NewQueryService(scope, log)
	advisorSvc := service.NewAdvisorService(scope, ai, log)

	// Handlers
	chatHandler := handler.NewChatHandler(chatSvc)
	queryHandler := handler.NewQueryHandler(querySvc)
	artifactHandler := handler.NewArtifactHandler(artifactSvc)
	advisorHandler := handler.NewAdvisorHandler(advisorSvc)
	healthHandler := handler.NewHealthHandler(lifecycle, ai, serviceName, version)

	// JWT utility
	jwt := jwtutil.NewJWTUtil(&conf.JWT)

	// Echo framework
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(middleware.RequestID())
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())

	// Public routes
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))
	e.GET("/health", healthHandler.Live)
	e.GET("/healthz", healthHandler.Ready)

	// Secured routes
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuth(jwt))

	api.POST("/diagnostics/ai-connection", healthHandler.AIConnection)

	// Chat routes resolve the plant from headers; session ownership is
	// enforced per plant database.
	chat := api.Group("/chat", middleware.PlantContext(resolver))
	chat.POST("/sessions", chatHandler.CreateSession)
	chat.GET("/sessions/:session_id", chatHandler.GetSessionInfo)
	chat.GET("/sessions/:session_id/history", chatHandler.GetHistory)
	chat.POST("/sessions/:session_id/messages", chatHandler.SendMessage)

	// Query, artifact and advisor routes require a validated access grant.
	query := api.Group("/query", middleware.PlantAccess(resolver))
	query.POST("/execute", queryHandler.Execute)
	query.POST("/transform", queryHandler.Transform)
	query.POST("/analyze", queryHandler.Analyze)

	artifacts := api.Group("/artifacts", middleware.PlantAccess(resolver))
	artifacts.POST("", artifactHandler.Create)
	artifacts.GET("", artifactHandler.ListByUser)
	artifacts.GET("/search", artifactHandler.Search)
	artifacts.GET("/session/:session_id", artifactHandler.ListBySession)
	artifacts.GET("/:artifact_id", artifactHandler.Get)
	artifacts.PUT("/:artifact_id", artifactHandler.Update)
	artifacts.DELETE("/:artifact_id", artifactHandler.Delete)

	advisor := api.Group("/advisor", middleware.PlantAccess(resolver))
	advisor.POST("/build-request", advisorHandler.BuildRequest)
	advisor.POST("/advise", advisorHandler.Advise)

	// Start server
	go func() {
		log.Info("starting " + serviceName + " on port " + conf.Server.Port)
		if err := e.Start(":" + conf.Server.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	// Graceful shutdown: stop accepting requests, then release every plant
	// connection and the registry pool.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	lifecycle.CloseAll(shutdownCtx)
	log.Info("shutdown complete")
}
