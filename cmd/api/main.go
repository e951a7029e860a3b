package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/melodio/api/internal/handlers"
	"github.com/melodio/api/internal/payments"
	"github.com/melodio/api/internal/platform/auth"
	"github.com/melodio/api/internal/platform/config"
	pfirestore "github.com/melodio/api/internal/platform/firestore"
	"github.com/melodio/api/internal/platform/jobs"
	"github.com/melodio/api/internal/platform/observability"
	"github.com/melodio/api/internal/platform/secrets"
	firestoreRepo "github.com/melodio/api/internal/repositories/firestore"
	"github.com/melodio/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := registry.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	authMiddleware, err := buildAuthMiddleware(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise authentication", zap.Error(err))
	}

	gateway, err := buildCheckoutGateway(logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialise checkout gateway", zap.Error(err))
	}

	publisher, pubsubClient, err := buildEventPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise event publisher", zap.Error(err))
	}
	if pubsubClient != nil {
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
	}
	if publisher == nil {
		logger.Warn("order event topic not configured; events will not be published")
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Carts:    registry.Carts(),
		Products: registry.Products(),
		Clock:    time.Now,
		Logger:   zapEventLogger(logger.Named("cart")),
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	inventoryService, err := services.NewInventoryService(services.InventoryServiceDeps{
		Products: registry.Products(),
		Clock:    time.Now,
		Logger:   zapEventLogger(logger.Named("inventory")),
	})
	if err != nil {
		logger.Fatal("failed to initialise inventory service", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     registry.Orders(),
		Users:      registry.Users(),
		Carts:      cartService,
		Inventory:  inventoryService,
		Gateway:    gateway,
		UnitOfWork: registry,
		Checkout: services.CheckoutSettings{
			SuccessURL: cfg.Payments.SuccessURL,
			CancelURL:  cfg.Payments.CancelURL,
			Currency:   cfg.Payments.Currency,
		},
		Clock:  time.Now,
		Events: publisher,
		Logger: zapEventLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	expiryWorker, err := services.NewOrderExpiryWorker(services.OrderExpiryDeps{
		Orders:   registry.Orders(),
		Service:  orderService,
		TTL:      cfg.Orders.PendingTTL,
		Interval: cfg.Orders.SweepInterval,
		Batch:    cfg.Orders.SweepBatch,
		Clock:    time.Now,
		Logger:   zapEventLogger(logger.Named("expiry")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order expiry worker", zap.Error(err))
	}

	workerCtx, workerCancel := context.WithCancel(observability.WithLogger(context.Background(), logger.Named("expiry")))
	var workerWG sync.WaitGroup
	workerWG.Add(1)
	go func() {
		defer workerWG.Done()
		expiryWorker.Run(workerCtx)
	}()

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	cartHandlers := handlers.NewCartHandlers(cartService)
	orderHandlers := handlers.NewOrderHandlers(orderService)
	healthHandlers := handlers.NewHealthHandlers(registry.Health())

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCartRoutes(func(r chi.Router) {
			r.Use(authMiddleware)
			cartHandlers.Routes(r)
		}),
		handlers.WithOrderRoutes(func(r chi.Router) {
			r.Use(authMiddleware)
			orderHandlers.Routes(r)
		}),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("melodio api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	workerCancel()
	workerWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildAuthMiddleware(ctx context.Context, cfg config.Config) (func(http.Handler) http.Handler, error) {
	switch cfg.Auth.Mode {
	case "static":
		return auth.StaticIdentityMiddleware(cfg.Auth.StaticUID), nil
	case "firebase":
		verifier, err := auth.NewFirebaseVerifier(ctx, auth.FirebaseConfig{
			ProjectID:       cfg.Firebase.ProjectID,
			CredentialsFile: cfg.Firebase.CredentialsFile,
		})
		if err != nil {
			return nil, err
		}
		return auth.NewAuthenticator(verifier).RequireAuth(), nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

func buildCheckoutGateway(logger *zap.Logger, cfg config.Config) (payments.CheckoutGateway, error) {
	if strings.TrimSpace(cfg.Payments.StripeAPIKey) == "" {
		// Direct orders still work; checkout endpoints report the gateway as unconfigured.
		return nil, nil
	}

	stripeGateway, err := payments.NewStripeGateway(payments.StripeGatewayConfig{
		APIKey: cfg.Payments.StripeAPIKey,
		Logger: zapEventLogger(logger.Named("payments")),
		Clock:  time.Now,
	})
	if err != nil {
		return nil, err
	}

	manager, err := payments.NewManager(map[string]payments.CheckoutGateway{
		"stripe": stripeGateway,
	})
	if err != nil {
		return nil, err
	}

	return manager.Bound(payments.PaymentContext{Currency: cfg.Payments.Currency}), nil
}

func buildEventPublisher(ctx context.Context, cfg config.Config) (services.OrderEventPublisher, *pubsub.Client, error) {
	topicName := strings.TrimSpace(cfg.Events.OrderTopic)
	if topicName == "" {
		return nil, nil, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.Firestore.ProjectID)
	if err != nil {
		return nil, nil, err
	}

	publisher, err := jobs.NewPubSubOrderEventPublisher(client.Topic(topicName))
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return publisher, client, nil
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger) (*secrets.Fetcher, error) {
	defaultProject := strings.TrimSpace(os.Getenv("API_SECRET_DEFAULT_PROJECT_ID"))
	if defaultProject == "" {
		defaultProject = strings.TrimSpace(os.Getenv("API_FIREBASE_PROJECT_ID"))
	}
	fallbackPath := strings.TrimSpace(os.Getenv("API_SECRET_FALLBACK_FILE"))

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if fallbackPath != "" {
		opts = append(opts, secrets.WithFallbackFile(fallbackPath))
	}
	if credentialsFile := strings.TrimSpace(os.Getenv("API_FIREBASE_CREDENTIALS_FILE")); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func zapEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug("event", zFields...)
	}
}
