/**
 * @description
 * This is the main entry point for the registry-service. It is responsible
 * for initializing all components of the service, including configuration,
 * database connection, external API clients, the message broker producer,
 * rate limiters, the repository, the core application service, the webhook
 * reconciler, and the HTTP server. It wires everything together and starts
 * the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Redis client for distributed rate limiting.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/stripeclient, pkg/emailclient, pkg/rabbitmq: External service clients.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bramlijst/registry-service/internal/api"
	"github.com/bramlijst/registry-service/internal/app"
	"github.com/bramlijst/registry-service/internal/config"
	"github.com/bramlijst/registry-service/internal/store"
	"github.com/bramlijst/registry-service/pkg/emailclient"
	rmrabbit "github.com/bramlijst/registry-service/pkg/rabbitmq"
	"github.com/bramlijst/registry-service/pkg/stripeclient"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.StripeSecretKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"stripe secret key must be configured\" env=STRIPE_SECRET_KEY")
	}
	if strings.TrimSpace(cfg.StripeWebhookSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"stripe webhook secret must be configured\" env=STRIPE_WEBHOOK_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting registry-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts behind poolers.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer. A dead broker degrades to dropped
	// events, never to a dead payment path.
	var producer rmrabbit.Publisher
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"rabbitmq url missing; event publishing disabled\" env=RABBITMQ_URL")
		producer = &rmrabbit.NoopPublisher{}
	} else if eventProducer, prodErr := rmrabbit.NewEventProducer(cfg.RabbitMQURL); prodErr != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", prodErr)
		producer = &rmrabbit.NoopPublisher{}
	} else {
		producer = eventProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}
	defer producer.Close()

	// Redis backs the distributed rate limiters when available; otherwise
	// the in-memory limiters cover a single instance.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; using in-memory rate limiting\" err=%v", parseErr)
		} else {
			redisClient = redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; using in-memory rate limiting\" err=%v", pingErr)
				redisClient.Close()
				redisClient = nil
			} else {
				defer redisClient.Close()
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	limiterCtx, cancelLimiters := context.WithCancel(context.Background())
	defer cancelLimiters()

	checkoutWindow := time.Duration(cfg.CheckoutRateLimitWindowSeconds) * time.Second
	connectWindow := time.Duration(cfg.ConnectRateLimitWindowSeconds) * time.Second
	var checkoutLimiter, connectLimiter app.RateLimiter
	if redisClient != nil {
		checkoutLimiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix, checkoutWindow, cfg.CheckoutRateLimitRequests)
		connectLimiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix, connectWindow, cfg.ConnectRateLimitRequests)
	} else {
		checkoutLimiter = app.NewMemoryRateLimiter(limiterCtx, checkoutWindow, cfg.CheckoutRateLimitRequests)
		connectLimiter = app.NewMemoryRateLimiter(limiterCtx, connectWindow, cfg.ConnectRateLimitRequests)
	}

	// Initialize the external clients.
	stripeClient := stripeclient.NewClient(cfg.StripeSecretKey)
	emailClient := emailclient.NewClient(cfg.ResendAPIKey, cfg.EmailFrom)
	if cfg.ResendAPIKey == "" {
		log.Println("level=warn component=bootstrap msg=\"resend api key missing; emails run in log-only mode\" env=RESEND_API_KEY")
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service and the webhook reconciler.
	notifier := app.NewNotifier(emailClient, repository)
	registryService := app.NewService(
		repository,
		stripeClient,
		notifier,
		cfg.AppBaseURL,
		cfg.Currency,
		cfg.MinContributionCents,
	)
	reconciler := app.NewReconciler(repository, notifier, producer)

	// Initialize the API handlers and router.
	handlers := api.NewHandlers(registryService, reconciler, api.HandlersConfig{
		CheckoutLimiter:    checkoutLimiter,
		ConnectLimiter:     connectLimiter,
		WebhookSecret:      cfg.StripeWebhookSecret,
		ConnectClientID:    cfg.StripeConnectClientID,
		ConnectStateSecret: cfg.ConnectStateSecret,
		AppBaseURL:         cfg.AppBaseURL,
	})
	router := api.RegistryRoutes(handlers, cfg.AuthJWKSURL)

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
