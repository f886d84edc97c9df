package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	appevent "github.com/mystique/backend/internal/application/event"
	cartapp "github.com/mystique/backend/internal/application/cart"
	catalogapp "github.com/mystique/backend/internal/application/catalog"
	identityapp "github.com/mystique/backend/internal/application/identity"
	reportapp "github.com/mystique/backend/internal/application/report"
	tradeapp "github.com/mystique/backend/internal/application/trade"
	"github.com/mystique/backend/internal/domain/shared"
	"github.com/mystique/backend/internal/domain/shared/valueobject"
	"github.com/mystique/backend/internal/infrastructure/auth"
	"github.com/mystique/backend/internal/infrastructure/billing"
	"github.com/mystique/backend/internal/infrastructure/cache"
	"github.com/mystique/backend/internal/infrastructure/config"
	"github.com/mystique/backend/internal/infrastructure/event"
	"github.com/mystique/backend/internal/infrastructure/logger"
	"github.com/mystique/backend/internal/infrastructure/migration"
	"github.com/mystique/backend/internal/infrastructure/persistence"
	"github.com/mystique/backend/internal/infrastructure/report"
	"github.com/mystique/backend/internal/infrastructure/scheduler"
	"github.com/mystique/backend/internal/infrastructure/storage"
	"github.com/mystique/backend/internal/infrastructure/telemetry"
	"github.com/mystique/backend/internal/interfaces/http/handler"
	"github.com/mystique/backend/internal/interfaces/http/middleware"
	"github.com/mystique/backend/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/lib/pq"
	_ "github.com/mystique/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const version = "1.0.0"

//	@title			Mystique API
//	@version		1.0
//	@description	Storefront and admin API of the Mystique clothing shop: catalog, cart, checkout and reports.

//	@contact.name	Mystique Support
//	@contact.email	support@mystique.example.com

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:4000
//	@BasePath	/api

//	@securityDefinitions.apikey	TokenAuth
//	@in							header
//	@name						token
//	@description				JWT issued by /user/login or /user/admin, sent raw in the "token" header

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := newLogger(cfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	rootCtx := context.Background()

	providers, err := telemetry.Setup(rootCtx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	if providers.Enabled() {
		// Re-create the logger so records are also exported over OTLP
		level, _ := zapcore.ParseLevel(cfg.Log.Level)
		log, err = newLogger(cfg, telemetry.NewZapCore(providers, cfg.Telemetry.ServiceName, level))
		if err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	defer func() {
		_ = logger.Sync(log)
	}()
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			log.Warn("Telemetry shutdown incomplete", zap.Error(err))
		}
	}()

	log.Info("Starting Mystique backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	if cfg.Telemetry.ProfilingEnabled {
		profiler, err := telemetry.StartProfiler(cfg.Telemetry.PyroscopeEndpoint, cfg.Telemetry.ServiceName, providers, log)
		if err != nil {
			log.Fatal("Failed to start profiler", zap.Error(err))
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithFullSQL(cfg.Telemetry.DBLogFullSQL),
	)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, cfg.Telemetry, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to access database handle", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := runMigrations(cfg.Database.DSN(), log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}
	log.Info("Database connected successfully")

	// Redis backs idempotency keys and the token blacklist when configured
	redisClient, err := cache.Connect(rootCtx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	var (
		sharedCache    redis.UniversalClient
		tokenBlacklist auth.TokenBlacklist = auth.NewInMemoryTokenBlacklist()
	)
	if redisClient != nil {
		defer func() {
			_ = redisClient.Close()
		}()
		sharedCache = redisClient
		tokenBlacklist = auth.NewRedisTokenBlacklist(redisClient)
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	idempotencyConfig := shared.DefaultIdempotencyConfig()
	idempotencyConfig.TTL = cfg.Checkout.IdempotencyTTL
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(idempotencyConfig,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore(sharedCache)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	// Repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	userRepo := persistence.NewGormUserRepository(db.DB)
	cartRepo := persistence.NewGormCartRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Identity
	jwtService := auth.NewJWTService(cfg.JWT)
	authService := identityapp.NewAuthService(userRepo, jwtService, tokenBlacklist, identityapp.DefaultAuthServiceConfig(), log)
	if cfg.Admin.Email != "" {
		created, err := authService.EnsureAdmin(rootCtx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			log.Fatal("Failed to provision admin account", zap.Error(err))
		}
		if created {
			log.Info("Admin account created", zap.String("email", cfg.Admin.Email))
		}
	}

	// Catalog
	objectStorage, err := newObjectStorage(rootCtx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}
	uploader, err := storage.NewPooledImageUploader(objectStorage, cfg.Storage.UploadWorkers,
		int64(cfg.Storage.MaxImageSizeMB)<<20, log)
	if err != nil {
		log.Fatal("Failed to start image uploader", zap.Error(err))
	}
	defer uploader.Close()
	productService := catalogapp.NewProductService(productRepo, uploader, log)

	// Cart and checkout
	cartService := cartapp.NewCartService(cartRepo, productRepo, log)

	currency, err := valueobject.ParseCurrency(cfg.Checkout.Currency)
	if err != nil {
		log.Fatal("Invalid checkout currency", zap.Error(err))
	}
	deliveryFee, err := decimal.NewFromString(cfg.Checkout.DeliveryFee)
	if err != nil {
		log.Fatal("Invalid checkout delivery fee", zap.String("value", cfg.Checkout.DeliveryFee), zap.Error(err))
	}
	orderService := tradeapp.NewOrderService(txScope, orderRepo, cartRepo, log)
	orderService.SetConfig(tradeapp.OrderServiceConfig{
		Currency:       currency,
		DeliveryFee:    deliveryFee,
		CheckoutTTL:    cfg.Checkout.SessionTTL,
		IdempotencyTTL: cfg.Checkout.IdempotencyTTL,
		ExpiryBatch:    cfg.Checkout.ExpiryBatch,
		FrontendURL:    cfg.Checkout.FrontendURL,
	})
	orderService.SetIdempotencyStore(idempotencyStore)
	if cfg.Stripe.Enabled() {
		gateway, err := billing.NewStripeCheckoutGateway(cfg.Stripe, log)
		if err != nil {
			log.Fatal("Failed to initialize Stripe gateway", zap.Error(err))
		}
		orderService.SetCheckoutGateway(gateway)
		log.Info("Stripe checkout enabled")
	} else {
		log.Warn("Stripe secret key not set, card checkout is unavailable")
	}

	// Event bus
	eventBus := event.NewInMemoryEventBus(log)
	handlerIdempotency := shared.DefaultIdempotencyConfig()
	handlerIdempotency.KeyPrefix = "shop:event:"

	businessMetrics, err := telemetry.NewBusinessMetrics(providers.Meter("mystique/orders"))
	if err != nil {
		log.Fatal("Failed to create business metrics", zap.Error(err))
	}
	metricsHandler := event.NewIdempotentHandler(appevent.NewOrderMetricsHandler(businessMetrics),
		idempotencyStore, handlerIdempotency, log)
	eventBus.Subscribe(metricsHandler, metricsHandler.EventTypes()...)

	if cfg.Kafka.Enabled {
		kafkaPublisher, err := event.NewKafkaPublisher(cfg.Kafka, event.NewDefaultEventSerializer(), log)
		if err != nil {
			log.Fatal("Failed to create Kafka publisher", zap.Error(err))
		}
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				log.Warn("Error closing Kafka publisher", zap.Error(err))
			}
		}()
		forwarder := appevent.NewOrderEventPublisher(kafkaPublisher, log)
		eventBus.Subscribe(forwarder, forwarder.EventTypes()...)
		log.Info("Order events forwarded to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}

	productService.SetEventPublisher(eventBus)
	orderService.SetEventPublisher(eventBus)
	authService.SetEventPublisher(eventBus)

	if err := eventBus.Start(rootCtx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Warn("Error stopping event bus", zap.Error(err))
		}
	}()

	// Reports
	reportService := reportapp.NewReportService(orderRepo, userRepo, log,
		report.NewCSVRenderer(),
		report.NewXLSXRenderer(),
		report.NewPDFRenderer(report.PDFConfig{
			ExecPath:      cfg.Report.ChromePath,
			RemoteURL:     cfg.Report.ChromeURL,
			Timeout:       cfg.Report.PDFTimeout,
			NoSandbox:     cfg.Report.NoSandbox,
			LocaleTag:     cfg.Report.LocaleTag,
			CompanyHeader: cfg.Report.CompanyHeader,
		}, log),
	)
	reportService.SetMaxRows(cfg.Report.MaxRows)

	// Background jobs
	jobScheduler := scheduler.NewScheduler(time.Minute, log)
	if err := jobScheduler.Register(cfg.Checkout.ExpirySchedule,
		scheduler.NewCheckoutExpiryJob(orderService, cfg.Checkout.SessionTTL, log)); err != nil {
		log.Fatal("Failed to schedule checkout expiry", zap.Error(err))
	}
	jobScheduler.Start(rootCtx)
	defer func() {
		if err := jobScheduler.Stop(context.Background()); err != nil {
			log.Warn("Scheduler stopped with running jobs", zap.Error(err))
		}
	}()

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	profilingConfig := middleware.DefaultProfilingConfig()
	profilingConfig.Enabled = cfg.Telemetry.ProfilingEnabled

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.TracingAttributeInjector(),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(providers.Meter("mystique/http"), log),
		middleware.ProfilingWithConfig(profilingConfig),
		middleware.CORSWithConfig(corsConfig),
		middleware.SecureWithConfig(middleware.DefaultSecurityConfig()),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, sqlDB)
	engine.GET("/health", systemHandler.Health)

	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:    cfg.Swagger.Enabled,
			AllowedIPs: cfg.Swagger.AllowedIPs,
		}),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	handlers := router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Product: handler.NewProductHandler(productService),
		Cart:    handler.NewCartHandler(cartService),
		Order:   handler.NewOrderHandler(orderService),
		Report:  handler.NewReportHandler(reportService),
	}
	guards := router.Guards{
		Authenticate: gin.HandlersChain{
			middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
				JWTService:     jwtService,
				TokenBlacklist: tokenBlacklist,
				Logger:         log,
			}),
			// runs again so the span carries the authenticated user
			middleware.TracingAttributeInjector(),
		},
		Admin:      middleware.RequireAdmin(),
		LoginLimit: middleware.AuthRateLimit(middleware.NewRateLimiter(cfg.HTTP.LoginRateLimit, cfg.HTTP.LoginRateWindow)),
	}
	router.NewRouter(engine).Register(router.ShopRoutes(handlers, guards)...).Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}

func newLogger(cfg *config.Config, extra ...zapcore.Core) (*zap.Logger, error) {
	return logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}, extra...)
}

// runMigrations applies the SQL migrations embedded in the binary over a
// dedicated connection, which the migrator closes when done
func runMigrations(dsn string, log *zap.Logger) error {
	migrationDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	migrator, err := migration.New(migrationDB, "", log)
	if err != nil {
		_ = migrationDB.Close()
		return err
	}
	defer func() {
		_ = migrator.Close()
	}()
	return migrator.Up()
}

// newObjectStorage returns S3 storage, or in-process storage when no bucket is
// configured (local development only)
func newObjectStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (catalogapp.ObjectStorageService, error) {
	if cfg.Storage.Bucket == "" {
		if cfg.App.Env == "production" {
			return nil, errors.New("storage.bucket is required in production")
		}
		log.Warn("storage.bucket not set, product images are kept in memory")
		return storage.NewMemoryObjectStorage("http://localhost:" + cfg.App.Port + "/images"), nil
	}
	s3Storage, err := storage.NewS3ObjectStorage(&cfg.Storage, log)
	if err != nil {
		return nil, err
	}
	if err := s3Storage.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return s3Storage, nil
}
