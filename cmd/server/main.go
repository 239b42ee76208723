// Command server runs the invoice validation HTTP service.
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
	"go.uber.org/zap"

	"github.com/facturasegura/backend/internal/afip"
	appvalidation "github.com/facturasegura/backend/internal/application/validation"
	"github.com/facturasegura/backend/internal/infrastructure/cache"
	"github.com/facturasegura/backend/internal/infrastructure/config"
	"github.com/facturasegura/backend/internal/infrastructure/event"
	"github.com/facturasegura/backend/internal/infrastructure/logger"
	"github.com/facturasegura/backend/internal/infrastructure/persistence"
	"github.com/facturasegura/backend/internal/infrastructure/scheduler"
	"github.com/facturasegura/backend/internal/interfaces/http/handler"
	"github.com/facturasegura/backend/internal/interfaces/http/middleware"
	"github.com/facturasegura/backend/internal/interfaces/http/router"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", zap.Error(err))
		}
	}()
	log.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName))

	resultRepo := persistence.NewGormResultRepository(db.DB)
	queueRepo := persistence.NewGormQueueRepository(db.DB)
	connectivityRepo := persistence.NewGormConnectivityRepository(db.DB)
	documentRepo := persistence.NewGormDocumentRepository(db.DB)

	cacheStore, err := cache.NewStoreFactory(cfg, db.DB, cache.WithLogger(log)).CreateStore()
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	log.Info("validation cache ready", zap.String("backend", cfg.Cache.Backend))

	// The development signer only works against local stubs and the
	// homologation simulator. Production deployments swap in a PKCS#7
	// signer backed by the fiscal certificate.
	var signer afip.Signer = afip.DevSigner{}
	httpClient := &http.Client{Timeout: cfg.AFIP.RequestTimeout}
	credentials := afip.NewCredentialManager(cfg.AFIP.WSAAEndpoint, signer,
		afip.WithCredentialLogger(log),
		afip.WithCredentialHTTPClient(httpClient),
		afip.WithExpiryBuffer(cfg.AFIP.ExpiryBuffer),
	)
	gateway := afip.NewSoapGateway(cfg.AFIP.WSFEEndpoint, cfg.AFIP.RegistryEndpoint, cfg.AFIP.CUIT,
		afip.WithGatewayLogger(log),
		afip.WithGatewayHTTPClient(httpClient),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := event.NewInMemoryEventBus(log)
	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("event bus: %w", err)
	}

	orchestrator := appvalidation.NewOrchestrator(
		gateway,
		credentials,
		cacheStore,
		resultRepo,
		documentRepo,
		queueRepo,
		bus,
		cfg.AFIP.ServiceName,
		cfg.RetryQueue,
		appvalidation.WithOrchestratorLogger(log),
	)
	retryService := appvalidation.NewRetryService(queueRepo, orchestrator, cfg.RetryQueue,
		appvalidation.WithRetryLogger(log))
	statsService := appvalidation.NewStatsService(resultRepo)

	retryScheduler := scheduler.NewRetryScheduler(retryService, queueRepo, cfg.RetryQueue, log)
	if err := retryScheduler.Start(ctx); err != nil {
		return fmt.Errorf("retry scheduler: %w", err)
	}

	monitor := scheduler.NewConnectivityMonitor(gateway, connectivityRepo, cfg.AFIP.ServiceName, cfg.Monitor, log)
	if cfg.Monitor.Enabled {
		if err := monitor.Start(ctx); err != nil {
			return fmt.Errorf("connectivity monitor: %w", err)
		}
	} else {
		log.Info("connectivity monitor disabled")
	}

	engine := newEngine(cfg, log)
	validationHandler := handler.NewValidationHandler(
		orchestrator,
		resultRepo,
		retryService,
		statsService,
		monitor,
		connectivityRepo,
		log,
	)
	router.NewRouter(engine).Register(validationHandler).Setup()

	engine.GET("/health", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
	if cfg.Monitor.Enabled {
		if err := monitor.Stop(shutdownCtx); err != nil {
			log.Error("connectivity monitor shutdown failed", zap.Error(err))
		}
	}
	if err := retryScheduler.Stop(shutdownCtx); err != nil {
		log.Error("retry scheduler shutdown failed", zap.Error(err))
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("event bus shutdown failed", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}

func newEngine(cfg *config.Config, log *zap.Logger) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig()))
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("failed to set trusted proxies", zap.Error(err))
		}
	}
	return engine
}
