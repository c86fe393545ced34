package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/menuboard/api/internal/handlers"
	"github.com/menuboard/api/internal/platform/config"
	pfirestore "github.com/menuboard/api/internal/platform/firestore"
	"github.com/menuboard/api/internal/platform/idempotency"
	"github.com/menuboard/api/internal/platform/jobs"
	"github.com/menuboard/api/internal/platform/observability"
	"github.com/menuboard/api/internal/platform/secrets"
	"github.com/menuboard/api/internal/repositories"
	firestoreRepo "github.com/menuboard/api/internal/repositories/firestore"
	"github.com/menuboard/api/internal/repositories/memory"
	"github.com/menuboard/api/internal/repositories/postgres"
	"github.com/menuboard/api/internal/repositories/zones"
	"github.com/menuboard/api/internal/services"
)

const meterName = "github.com/menuboard/api"

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

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

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)))
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	meter := otel.GetMeterProvider().Meter(meterName)
	events := func(name string) func(context.Context, string, map[string]any) {
		return observability.EventLogger(logger, name)
	}

	backgroundCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	var readiness []handlers.HealthOption

	cartRepo, closeCarts, err := newCartRepository(backgroundCtx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise cart repository", zap.Error(err))
	}
	defer closeCarts()
	if pinger, ok := cartRepo.(interface{ Ping(context.Context) error }); ok {
		readiness = append(readiness, handlers.WithReadinessCheck("firestore", pinger.Ping))
	}

	var catalogRepo repositories.CatalogRepository
	if dsn := strings.TrimSpace(cfg.Catalog.DatabaseURL); dsn != "" {
		db, err := postgres.Open(ctx, dsn, cfg.Catalog.MaxOpenConns)
		if err != nil {
			logger.Fatal("failed to open catalog database", zap.Error(err))
		}
		defer db.Close()
		repo := postgres.NewCatalogRepository(db, postgres.WithQueryTimeout(cfg.Catalog.QueryTimeout))
		catalogRepo = repo
		readiness = append(readiness, handlers.WithReadinessCheck("catalog", repo.Ping))
	} else {
		logger.Warn("no catalog database configured; menu endpoints disabled and carts accept client snapshots")
	}

	zoneRepo, err := zones.Load(cfg.Zones.File)
	if err != nil {
		logger.Fatal("failed to load delivery zones", zap.Error(err))
	}

	composer, err := services.NewOrderComposer(services.OrderComposerConfig{
		StoreName:      cfg.Store.Name,
		CurrencyLabel:  cfg.Store.CurrencyLabel,
		Locale:         cfg.Store.Locale,
		HandoffBaseURL: cfg.Handoff.BaseURL,
		Phone:          cfg.Handoff.Phone,
	})
	if err != nil {
		logger.Fatal("failed to initialise order composer", zap.Error(err))
	}

	dispatcher, closeDispatcher, err := newHandoffDispatcher(ctx, cfg, events("handoff"))
	if err != nil {
		logger.Fatal("failed to initialise hand-off dispatcher", zap.Error(err))
	}
	defer closeDispatcher()

	sessions, err := services.NewCartSessions(services.CartSessionsDeps{
		Repository: cartRepo,
		Clock:      time.Now,
		Logger:     events("sessions"),
	})
	if err != nil {
		logger.Fatal("failed to initialise cart sessions", zap.Error(err))
	}
	pricer := services.NewCartPricingEngine(services.CartPricingEngineDeps{
		Currency: cfg.Store.CurrencyLabel,
		Logger:   events("pricing"),
	})

	cartDeps := services.CartServiceDeps{
		Sessions:        sessions,
		Pricer:          pricer,
		MaxLineQuantity: cfg.Cart.MaxLineQuantity,
		Meter:           meter,
		Logger:          events("cart"),
	}
	if catalogRepo != nil {
		cartDeps.Catalog = catalogRepo
	}
	cartService, err := services.NewCartService(cartDeps)
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Sessions:   sessions,
		Composer:   composer,
		Zones:      zoneRepo,
		Dispatcher: dispatcher,
		Pricer:     pricer,
		Hours: services.BusinessHours{
			Opening:  cfg.Hours.Opening,
			Closing:  cfg.Hours.Closing,
			Interval: cfg.Hours.SlotInterval,
			Default:  cfg.Hours.ScheduledTime,
		},
		Meter:  meter,
		Logger: events("checkout"),
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products: catalogRepo,
		Zones:    zoneRepo,
		Logger:   events("catalog"),
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	sessionOpts := []handlers.SessionOption{
		handlers.WithSessionHeader(cfg.Cart.SessionHeader),
		handlers.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	}
	menuHandlers := handlers.NewMenuHandlers(catalogService)
	cartHandlers := handlers.NewCartHandlers(cartService, sessionOpts...)
	checkoutHandlers := handlers.NewCheckoutHandlers(checkoutService, sessionOpts...)

	projectID := cfg.Firestore.ProjectID
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID, cfg.Cart.SessionHeader),
	}

	replayStore := idempotency.NewMemoryStore()
	go replayStore.RunSweeper(backgroundCtx, cfg.Cart.SweepInterval)
	replayMiddleware := idempotency.Middleware(replayStore,
		idempotency.WithSessionHeader(cfg.Cart.SessionHeader),
	)

	healthOpts := append([]handlers.HealthOption{
		handlers.WithHealthBuildInfo(buildInfoFromEnv(envValues, cfg, startedAt)),
	}, readiness...)

	router := handlers.NewRouter(
		handlers.WithRequestTimeout(cfg.Server.RequestTimeout),
		handlers.WithMiddlewares(middlewares...),
		handlers.WithSessionMiddlewares(replayMiddleware),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthOpts...)),
		handlers.WithMenuRoutes(menuHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
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
		serverLogger.Info("menuboard api listening",
			zap.String("cartPersistence", cfg.Cart.Persistence),
			zap.String("handoffMode", cfg.Handoff.Mode),
			zap.Bool("catalog", catalogRepo != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")
	stopBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}
	project := lookup("MENU_SECRETS_PROJECT_ID")
	if project == "" {
		project = lookup("MENU_FIRESTORE_PROJECT_ID")
	}
	fallback := lookup("MENU_SECRETS_FALLBACK_FILE")
	if fallback == "" {
		fallback = ".secrets.local"
	}
	return secrets.NewFetcher(ctx,
		secrets.WithDefaultProject(project),
		secrets.WithFallbackFile(fallback),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithMeter(otel.GetMeterProvider().Meter(meterName)),
	)
}

func newCartRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.CartRepository, func(), error) {
	switch cfg.Cart.Persistence {
	case config.PersistenceFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore)
		repo, err := firestoreRepo.NewCartRepository(provider, cfg.Firestore.CartCollection, cfg.Cart.SessionTTL)
		if err != nil {
			_ = provider.Close()
			return nil, func() {}, err
		}
		closeFn := func() {
			if err := provider.Close(); err != nil {
				logger.Warn("firestore close error", zap.Error(err))
			}
		}
		return firestoreCarts{CartRepository: repo, provider: provider}, closeFn, nil
	default:
		repo := memory.NewCartRepository(memory.WithTTL(cfg.Cart.SessionTTL))
		go repo.RunSweeper(ctx, cfg.Cart.SweepInterval)
		return repo, func() {}, nil
	}
}

// firestoreCarts exposes the provider ping for readiness.
type firestoreCarts struct {
	*firestoreRepo.CartRepository
	provider *pfirestore.Provider
}

func (f firestoreCarts) Ping(ctx context.Context) error {
	return f.provider.Ping(ctx)
}

func newHandoffDispatcher(ctx context.Context, cfg config.Config, logger func(context.Context, string, map[string]any)) (services.HandoffDispatcher, func(), error) {
	if cfg.Handoff.Mode != config.HandoffModePubSub {
		return services.NewLinkHandoff(logger), func() {}, nil
	}
	client, topic, err := jobs.OpenTopic(ctx, cfg.PubSub)
	if err != nil {
		return nil, func() {}, err
	}
	publisher, err := jobs.NewPubSubHandoffPublisher(topic)
	if err != nil {
		topic.Stop()
		_ = client.Close()
		return nil, func() {}, err
	}
	closeFn := func() {
		topic.Stop()
		_ = client.Close()
	}
	return publisher, closeFn, nil
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(env["MENU_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["MENU_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Secrets.Environment)
	if environment == "" {
		environment = "local"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}
