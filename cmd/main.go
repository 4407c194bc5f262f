package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"dispatch-service/internal/api"
	"dispatch-service/internal/auth"
	"dispatch-service/internal/config"
	"dispatch-service/internal/coordination"
	"dispatch-service/internal/db"
	"dispatch-service/internal/db/memdb"
	"dispatch-service/internal/kafka"
	"dispatch-service/internal/logging"
	"dispatch-service/internal/metrics"
	"dispatch-service/internal/notification"
	"dispatch-service/internal/providers"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Dir:        cfg.Logging.Dir,
		Level:      cfg.Logging.Level,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Connect to storage
	var store coordination.Store
	switch cfg.DB.Driver {
	case config.DriverMemory:
		logger.Warn("Using in-memory store; state is lost on restart")
		mem := memdb.New()
		if cfg.DB.SeedFile != "" {
			if err := mem.LoadSeedFile(cfg.DB.SeedFile); err != nil {
				log.Fatalf("Memory store seed failed: %v", err)
			}
			logger.Infof("Seeded in-memory store from %s", cfg.DB.SeedFile)
		} else {
			logger.Warn("No DB_SEED_FILE set; the in-memory store has no responders")
		}
		store = mem
	default:
		dbConn, err := db.New(ctx, cfg.DB.DSN)
		if err != nil {
			logger.Errorf("Failed to connect to database: %v", err)
			log.Fatalf("Database connection failed: %v", err)
		}
		defer dbConn.Close()
		if err := dbConn.Migrate(ctx); err != nil {
			log.Fatalf("Database migration failed: %v", err)
		}
		store = dbConn
	}

	// Notification sinks
	hub := notification.NewHub(logger)
	sinks := []notification.Sink{hub}
	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventTopic)
		sinks = append(sinks, producer)
	}
	if cfg.Telegram.BotToken != "" {
		tg, err := providers.NewTelegram(providers.TelegramConfig{
			BotToken:  cfg.Telegram.BotToken,
			ChatID:    cfg.Telegram.ChatID,
			RateLimit: cfg.Telegram.RateLimit,
		}, logger)
		if err != nil {
			log.Fatalf("Telegram init failed: %v", err)
		}
		sinks = append(sinks, tg)
	}

	var wg sync.WaitGroup
	svc := notification.New(logger, m, notification.Config{
		QueueSize:  cfg.Notification.QueueSize,
		MaxWorkers: cfg.Notification.MaxWorkers,
	}, sinks...)
	svc.Start(&wg)

	policy, _ := coordination.ParseRejectPolicy(cfg.Coordination.RejectPolicy)
	engine := coordination.New(store, logger,
		coordination.WithNotifier(svc),
		coordination.WithMetrics(m),
		coordination.WithRejectPolicy(policy),
		coordination.WithAvailabilityRetry(cfg.Coordination.AvailabilityRetries, cfg.Coordination.AvailabilityBackoff),
	)

	// Initialize Kafka consumer
	var consumer *kafka.Consumer
	if len(cfg.Kafka.Brokers) > 0 {
		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.AlertTopic, cfg.Kafka.GroupID, engine, logger)
		logger.Infof("Kafka consumer initialized with topic: %s", cfg.Kafka.AlertTopic)
		consumer.Start(ctx, &wg)
	}

	// Start API server
	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(engine, hub, logger)
	router := api.NewRouter(logger, api.RouterConfig{
		BasePath:  cfg.API.BasePath,
		Validator: auth.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
		Metrics:   m,
		Gatherer:  reg,
	}, handler)
	srv := &http.Server{
		Addr:              cfg.API.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("API server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API server shutdown failed: %v", err)
	}
	hub.Close()
	svc.Stop()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Errorf("Kafka consumer close failed: %v", err)
		}
	}
	wg.Wait()
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Errorf("Kafka producer close failed: %v", err)
		}
	}
	logger.Info("Shutdown complete")
}
