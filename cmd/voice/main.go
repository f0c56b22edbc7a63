package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/doorlink/doorlink/internal/http/handlers"
	httpmw "github.com/doorlink/doorlink/internal/http/middleware"
	"github.com/doorlink/doorlink/internal/repo/postgres"
	"github.com/doorlink/doorlink/internal/repo/redisstore"
	"github.com/doorlink/doorlink/internal/service"
	"github.com/doorlink/doorlink/internal/twiml"
	"github.com/doorlink/doorlink/pkg/config"
	"github.com/doorlink/doorlink/pkg/database"
	"github.com/doorlink/doorlink/pkg/events"
	"github.com/doorlink/doorlink/pkg/logger"
	mw "github.com/doorlink/doorlink/pkg/middleware"
	redisconn "github.com/doorlink/doorlink/pkg/redis"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := database.Connect(ctx, cfg.Database.URL, database.Options{
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxLifetime: cfg.Database.MaxLifetime,
	})
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to Redis
	redisClient, err := redisconn.Connect(ctx, cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Initialize repositories
	accountRepo := postgres.NewAccountRepository(pool)
	callLogRepo := postgres.NewCallLogRepository(pool)
	ephemeralRepo := redisstore.NewEphemeralRepository(redisClient)
	rateLimitRepo := redisstore.NewRateLimitRepository(redisClient, cfg.Verify.RateLimitMax, cfg.Verify.RateLimitWindow)

	// Initialize services
	gatewayService := service.NewGatewayService(accountRepo, callLogRepo, ephemeralRepo, eventBus, cfg)
	verifyService := service.NewVerifyService(accountRepo, ephemeralRepo, rateLimitRepo, cfg)
	reconcileService := service.NewReconcileService(accountRepo, callLogRepo, ephemeralRepo, eventBus)

	// Initialize handlers
	twimlCfg := twiml.Config{
		GatherTimeout: int(cfg.Verify.GatherTimeout.Seconds()),
		DigitCount:    cfg.Verify.GatherDigitCount,
	}
	voiceHandlers := handlers.NewVoiceHandlers(gatewayService, verifyService, reconcileService, twimlCfg)
	callsHandler := handlers.NewCallsHandler(callLogRepo, cfg.Auth.JWTSecret)
	stripeHandlers := handlers.NewStripeHandlers(accountRepo, cfg.Stripe.WebhookSecret)

	// Setup router
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("voice"))
	r.Use(mw.Logging)
	r.Use(mw.Health)

	// Provider webhooks
	r.Group(func(r chi.Router) {
		r.Use(httpmw.ValidateSignature(cfg.Telephony.AuthToken, cfg.Telephony.PublicBaseURL))
		r.Use(mw.CallSID)
		r.Post("/voice", voiceHandlers.HandleVoice)
		r.Post("/voice/status", voiceHandlers.HandleStatus)
	})

	// Billing collaborator webhook
	r.Post("/webhooks/stripe", stripeHandlers.HandleWebhook)

	// Dashboard API
	r.Route("/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
		r.Use(callsHandler.RequireJWT)
		r.Get("/accounts/{id}/calls", callsHandler.ListCalls)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting voice service", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down voice service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Voice service error", "error", err)
		os.Exit(1)
	}
}
