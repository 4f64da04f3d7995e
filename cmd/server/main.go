package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-service/config"
	"market-service/internal/api"
	"market-service/internal/broker"
	"market-service/internal/models"
	"market-service/internal/reactive"
	"market-service/internal/redisclient"
	"market-service/internal/service"
	"market-service/internal/store"
	"market-service/internal/util"
	"market-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting market service")

	tp, err := util.InitTracer("market-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicChanges)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	changePublisher := broker.NewChangeFeedPublisher(producer)

	view := reactive.New()
	dispatcher := worker.NewDispatcher()

	sessionTTL := time.Duration(cfg.Auth.SessionTTLSeconds) * time.Second
	authService := service.NewAuthService(db, redisClient, sessionTTL)
	catalogService := service.NewCatalogService(db, changePublisher, view)
	syncController := service.NewSyncController(db, dispatcher, view)

	// Session lifecycle drives the sync state machine.
	authService.OnSessionChange(func(session *models.Session) {
		if session == nil {
			syncController.Stop()
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := syncController.Start(ctx, session); err != nil {
			logger.Warn("Sync started degraded", zap.Error(err))
		}
	})

	hub := api.NewHub()
	if _, err := dispatcher.Subscribe(hub.Broadcast); err != nil {
		log.Fatalf("Failed to attach websocket hub: %v", err)
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	changeConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicChanges, cfg.Kafka.ConsumerGroup)
	feedWorker := worker.NewChangeFeedWorker(changeConsumer, dispatcher)
	go func() {
		if err := feedWorker.Start(workerCtx); err != nil {
			log.Printf("Change-feed worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(authService, catalogService, view, db, redisClient, hub)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	syncController.Stop()
	workerCancel()
	feedWorker.Stop()

	log.Println("Server exited")
}
