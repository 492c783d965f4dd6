package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mia/config"
	"mia/cron"
	"mia/database"
	"mia/database/repository"
	"mia/handlers"
	"mia/middleware"
	"mia/routes"
	"mia/services/billing"
	"mia/services/booking"
	"mia/services/conversation"
	"mia/services/identity"
	"mia/services/notification"
	"mia/services/payment"
	"mia/services/profile"
	"mia/services/session"
	"mia/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func newBackend(ctx context.Context) (conversation.Backend, func()) {
	logger := utils.GetLogger()
	cfg := config.AppConfig
	if cfg.ChatBackend == "gemini" {
		gb, err := conversation.NewGeminiBackend(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Sugar().Fatalf("main: failed to initialize gemini backend: %v", err)
		}
		return gb, func() { _ = gb.Close() }
	}
	return conversation.NewWebhookBackend(cfg.ChatBackendURL, cfg.ChatTimeout), func() {}
}

func newProcessor() payment.Processor {
	cfg := config.AppConfig
	if cfg.PaymentProvider == "stripe" {
		if cfg.StripeKey == "" {
			utils.GetLogger().Sugar().Fatal("main: STRIPE_KEY is required for the stripe payment provider")
		}
		return payment.NewStripeProcessor(cfg.StripeKey)
	}
	return payment.NewGatewayProcessor(cfg.PaymentGatewayURL, cfg.PaymentGatewayAPIKey)
}

func newNotifier(ctx context.Context, users repository.UserRepository) notification.Notifier {
	logger := utils.GetLogger()
	if err := utils.FirebaseInit(ctx); err != nil {
		logger.Warn("main: push notifications disabled", zap.Error(err))
		return notification.NoopNotifier{}
	}
	if utils.FCMClient == nil {
		return notification.NoopNotifier{}
	}
	n, err := notification.NewDefaultNotificationService(users, utils.FCMClient)
	if err != nil {
		logger.Warn("main: push notifications disabled", zap.Error(err))
		return notification.NoopNotifier{}
	}
	return n
}

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	defer func() { _ = logger.Sync() }()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	database.InitDB()
	utils.InitCache()
	utils.InitAuthCache()
	cache := utils.GetCacheClient()
	cfg := config.AppConfig

	// repositories.
	userRepo := repository.NewMongoUserRepository()
	bookingRepo := repository.NewMongoBookingRepo()
	paymentRepo := repository.NewMongoPaymentRepo()
	invoiceRepo := repository.NewMongoInvoiceRepo()
	profileRepo := repository.NewMongoProfileRepo()

	// identity and client sessions.
	identityService := identity.NewIdentityService(userRepo, identity.NewRedisTokenCache(utils.GetAuthCacheClient()), cfg.TokenTTL)
	gate := session.NewGate(session.NewRedisStore(cache, cfg.SessionTTL), cfg.AnonymousPromptLimit)
	gate.Bind(identityService)

	// booking lifecycle and payment handoff.
	handoff := payment.NewHandoff(newProcessor(), payment.Config{
		SuccessURL: cfg.CheckoutSuccessURL,
		CancelURL:  cfg.CheckoutCancelURL,
		Currency:   cfg.Currency,
	})
	orchestrator := booking.NewOrchestrator(bookingRepo, paymentRepo, booking.NewRedisStateStore(cache, cfg.SessionTTL), handoff)
	orchestrator.Subscribe(notification.BookingHandler(newNotifier(ctx, userRepo)))

	// conversation.
	backend, closeBackend := newBackend(ctx)
	defer closeBackend()
	chat := conversation.NewService(
		gate,
		backend,
		conversation.NewRedisMessageStore(cache, cfg.SessionTTL),
		conversation.NewRedisTurnLock(cache, cfg.ChatTimeout+10*time.Second),
		orchestrator,
		cfg.ChatTimeout,
	)
	gate.OnSessionChange(chat.HandleSessionChange)
	gate.OnSessionChange(orchestrator.HandleSessionChange)

	// background reconciliation.
	queueClient := asynq.NewClient(cron.RedisOpt())
	defer queueClient.Close()
	worker := cron.InitReconcileWorker(orchestrator)

	utils.StartHealthMonitor(ctx, []*redis.Client{cache, utils.GetAuthCacheClient()}, database.MongoClient)

	handlerBundle := &handlers.HandlerBundle{
		Identity:      identityService,
		Gate:          gate,
		Chat:          chat,
		Bookings:      orchestrator,
		Billing:       billing.NewBillingService(invoiceRepo, bookingRepo),
		Profiles:      profile.NewProfileService(profileRepo, paymentRepo),
		Retries:       cron.NewReconcileQueue(queueClient),
		WebhookSecret: cfg.StripeWebhookSecret,
	}

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware(cfg.MaxRequestsPerMin))
	routes.RegisterRoutes(router, handlerBundle)

	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}
	worker.Shutdown()
	stop()
	if err := database.CloseDB(shutdownCtx); err != nil {
		logger.Sugar().Errorf("main: failed to disconnect from MongoDB: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
