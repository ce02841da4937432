// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/nyasabox/nyasabox-api/internal/cache"
	"github.com/nyasabox/nyasabox-api/internal/config"
	"github.com/nyasabox/nyasabox-api/internal/database"
	"github.com/nyasabox/nyasabox-api/internal/i18n"
	"github.com/nyasabox/nyasabox-api/internal/jobs"
	"github.com/nyasabox/nyasabox-api/internal/metrics"
	"github.com/nyasabox/nyasabox-api/internal/router"
	"github.com/nyasabox/nyasabox-api/internal/utils"
	"github.com/nyasabox/nyasabox-api/pkg/events"
	"github.com/nyasabox/nyasabox-api/pkg/paychangu"
	"github.com/nyasabox/nyasabox-api/pkg/retry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	setupLogging(cfg)
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	// Run database migrations
	if err := database.RunMigrations(db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}

	if err := database.SeedInitialData(db, cfg.Admin); err != nil {
		logrus.WithError(err).Fatal("Failed to seed initial data")
	}

	// Initialize i18n
	if err := i18n.Initialize(cfg.I18n.LocalesPath, cfg.I18n.DefaultLocale); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize i18n")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	redisClient := connectRedis(cfg.Redis)
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher := connectPublisher(cfg.Events)
	defer publisher.Close()

	gateway := paychangu.NewClient(
		cfg.Payment.GatewayBaseURL,
		cfg.Payment.GatewaySecretKey,
		cfg.Payment.RequestTimeout,
		paychangu.WithRetryPolicy(retry.Policy{Attempts: cfg.Payment.RetryAttempts, Delay: cfg.Payment.RetryDelay}),
		paychangu.WithVerifyTimeout(cfg.Payment.VerifyTimeout),
		paychangu.WithObserver(m),
	)

	svc, err := router.BuildServices(db, cfg, router.Dependencies{
		Gateway:   gateway,
		Operators: cache.NewOperatorCache(redisClient, cfg.Payment.OperatorCacheTTL),
		Publisher: publisher,
		Metrics:   m,
	})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize services")
	}

	scheduler := jobs.NewScheduler(svc.Payment, cfg.Payment.SweepSchedule)
	if err := scheduler.Start(); err != nil {
		logrus.WithError(err).Fatal("Failed to start scheduler")
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	r := router.Initialize(db, cfg, svc, registry)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown server
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}

	// Wait for an in-flight sweep to return
	select {
	case <-scheduler.Stop().Done():
	case <-ctx.Done():
	}

	logrus.Info("Server exited")
}

func setupLogging(cfg *config.Config) {
	if cfg.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// connectRedis returns nil when Redis is disabled or unreachable; the
// operator list is then fetched from the gateway on every call.
func connectRedis(cfg config.RedisConfig) redis.UniversalClient {
	if !cfg.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).Warn("Redis ping failed; operator cache disabled")
		client.Close()
		return nil
	}

	logrus.WithField("addr", cfg.Addr()).Info("Redis connected")
	return client
}

func connectPublisher(cfg config.EventsConfig) events.Publisher {
	if cfg.AMQPURL == "" {
		logrus.Info("AMQP_URL not set; distribution events are not published")
		return events.NoopPublisher{}
	}

	publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange)
	if err != nil {
		logrus.WithError(err).Warn("Event broker unavailable; distribution events are not published")
		return events.NoopPublisher{}
	}
	return publisher
}
