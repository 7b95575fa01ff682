package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fjod/storefront/internal/backend"
	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/coupon"
	h "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/pricing"
	"github.com/fjod/storefront/internal/publisher"
	"github.com/fjod/storefront/internal/repository"
)

type Config struct {
	HTTPPort              string
	BackendURL            string
	RedisAddr             string
	DBPath                string
	MigrationsPath        string
	KafkaBrokers          []string
	RequestTimeout        time.Duration
	BackendTimeout        time.Duration
	ShutdownTimeout       time.Duration
	CartSettleDelay       time.Duration
	FreeDeliveryThreshold float64
	FlatShippingFee       float64
	TaxRate               float64
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:              getEnv("HTTP_PORT", "8080"),
		BackendURL:            getEnv("BACKEND_URL", "http://localhost:9000"),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		DBPath:                getEnv("DB_PATH", "storefront.db"),
		MigrationsPath:        getEnv("MIGRATIONS_PATH", "migrations"),
		KafkaBrokers:          splitNonEmpty(getEnv("KAFKA_BROKERS", "")),
		RequestTimeout:        30 * time.Second,
		BackendTimeout:        10 * time.Second,
		ShutdownTimeout:       10 * time.Second,
		CartSettleDelay:       2 * time.Second,
		FreeDeliveryThreshold: getEnvFloat("FREE_DELIVERY_THRESHOLD", 300),
		FlatShippingFee:       getEnvFloat("FLAT_SHIPPING_FEE", 50),
		TaxRate:               getEnvFloat("TAX_RATE", 0.1),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Printf("invalid float for %s, using default %v", key, defaultValue)
	}
	return defaultValue
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func main() {
	cfg := loadConfig()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	repo, err := repository.NewRepository(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer repo.Close()
	if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	pollerCtx, stopPoller := context.WithCancel(context.Background())
	defer stopPoller()
	if len(cfg.KafkaBrokers) > 0 {
		poller := publisher.NewOutboxPoller(repo, cfg.KafkaBrokers...)
		go poller.Run(pollerCtx)
		log.Printf("outbox poller started, brokers: %v", cfg.KafkaBrokers)
	} else {
		log.Println("no kafka brokers configured, outbox poller disabled")
	}

	backendClient := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)
	policy := pricing.Policy{
		FreeDeliveryThreshold: cfg.FreeDeliveryThreshold,
		FlatShippingFee:       cfg.FlatShippingFee,
		TaxRate:               cfg.TaxRate,
	}

	registry := h.NewRegistry(
		cart.NewRedisGuestStore(rdb),
		coupon.New(backendClient),
		backendClient,
		repo,
		policy,
		cfg.CartSettleDelay,
	)

	router := h.NewRouter(registry, backendClient, policy, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("storefront starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	stopPoller()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
