package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vikasavnish/gymledger/internal/api"
	"github.com/vikasavnish/gymledger/internal/config"
	"github.com/vikasavnish/gymledger/internal/db"
	"github.com/vikasavnish/gymledger/internal/logging"
	"github.com/vikasavnish/gymledger/internal/messaging"
	"github.com/vikasavnish/gymledger/internal/metrics"
	"github.com/vikasavnish/gymledger/internal/tasks"
	"github.com/vikasavnish/gymledger/internal/websocket"
)

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Info("no .env file found, using environment variables")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	// Amounts go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	database, err := db.Connect(cfg.Database, logger.Named("db"))
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	var redisClient *redis.Client
	redisClient, err = db.ConnectRedis(cfg.Redis)
	switch {
	case errors.Is(err, db.ErrRedisDisabled):
		logger.Info("redis disabled, dispatch results kept in memory")
	case err != nil:
		logger.Warn("failed to connect to redis, dispatch results kept in memory", zap.Error(err))
		redisClient = nil
	default:
		defer redisClient.Close()
	}

	wsHub := websocket.NewHub(logger.Named("ws"))
	go wsHub.Run()
	defer wsHub.Close()

	m := metrics.New()
	gateway := messaging.NewWhatsAppClient(cfg.Messaging)
	if !gateway.Configured() {
		logger.Warn("whatsapp credentials missing, reminders will fail until configured")
	}

	svc := api.NewServices(database, redisClient, wsHub, gateway, m, cfg, logger)

	taskManager := tasks.NewManager(svc.Reminders, cfg.Schedule, logger.Named("tasks"))
	taskManager.StartScheduledTasks()
	defer taskManager.StopAllTasks()

	router := api.SetupRouter(database, svc, wsHub, m, cfg, logger)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: corsMiddleware.Handler(router),
	}

	go func() {
		logger.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("reminder_mode", string(svc.Reminders.Mode())))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
