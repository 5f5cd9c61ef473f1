package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shopsaga/order-core/internal/cart"
	"github.com/shopsaga/order-core/internal/config"
	"github.com/shopsaga/order-core/internal/coupon"
	"github.com/shopsaga/order-core/internal/delivery"
	"github.com/shopsaga/order-core/internal/handlers"
	"github.com/shopsaga/order-core/internal/httpapi"
	"github.com/shopsaga/order-core/internal/inventory"
	"github.com/shopsaga/order-core/internal/lock"
	"github.com/shopsaga/order-core/internal/notify"
	"github.com/shopsaga/order-core/internal/obsmetrics"
	"github.com/shopsaga/order-core/internal/order"
	"github.com/shopsaga/order-core/internal/outbox"
	"github.com/shopsaga/order-core/internal/payment"
	"github.com/shopsaga/order-core/internal/point"
	"github.com/shopsaga/order-core/internal/stats"
	"github.com/shopsaga/order-core/internal/telemetry"
	"github.com/shopsaga/order-core/pkg/database"
	"github.com/shopsaga/order-core/pkg/memstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	initLogger(cfg)

	for _, warning := range cfg.WarnIfDefaultCredentials() {
		log.Warn().Msg(warning)
	}

	ctx := context.Background()

	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	store, err := memstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.DialTimeout, 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to memory store")
	}

	shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracing")
	}
	metrics := obsmetrics.New()

	// runCtx governs every background loop; cancelling it is the first step
	// of shutdown, well before the HTTP server stops accepting connections.
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	locker := lock.NewManager(store, cfg.Lock.DefaultTTL, cfg.Lock.WaitTimeout, cfg.Lock.RenewInterval)
	hub := notify.NewHub(store)
	go hub.Run(runCtx)

	gateway := payment.NewStripeGateway(cfg.Gateway)
	orderSvc := order.NewService(pool)
	pointSvc := point.NewService(pool, locker, cfg.Point)
	pointRepo := point.NewRepository(pool)
	inventorySvc := inventory.NewService()
	couponSvc := coupon.NewService(store)
	couponRepo := coupon.NewRepository(pool)
	couponDrainer := coupon.NewDrainer(store, couponRepo, locker, cfg.Coupon.DrainBatchSize, hub)
	coordinator := payment.NewCoordinator(pool, locker, gateway, orderSvc, cfg.Point)
	deliverySvc := delivery.NewService(hub)
	statsSvc := stats.NewService(store, pool)
	statsFolder := stats.NewFolder(store, pool)
	statsIngestor := stats.NewIngestor(store)
	cartSvc := cart.NewService(pool)

	registry := handlers.BuildRegistry(handlers.Services{
		Pool:        pool,
		DB:          pool,
		Payment:     coordinator,
		Inventory:   inventorySvc,
		Coupon:      couponSvc,
		Delivery:    deliverySvc,
		Cart:        cartSvc,
		Point:       pointSvc,
		PointLookup: pointRepo,
		Hub:         hub,
		Stats:       statsIngestor,
	})

	dispatcher := outbox.NewDispatcher(pool, registry, cfg.Outbox)
	dlqMonitor := outbox.NewDLQMonitor(pool, cfg.Outbox, func(count int) {
		metrics.OutboxDLQTotal.Add(float64(count))
		log.Warn().Int("unresolved", count).Msg("outbox DLQ alert threshold exceeded")
	})

	go dispatcher.RunLoop(runCtx)
	go dlqMonitor.RunLoop(runCtx)
	go couponDrainer.DrainLoop(runCtx, cfg.Coupon.DrainInterval, couponRepo.ListActiveIDs)
	go statsFolder.FoldLoop(runCtx, cfg.Stats.FoldInterval)
	go runCacheWarmLoop(runCtx, statsSvc, cfg.Stats)

	app := fiber.New(fiber.Config{
		AppName:      "order-core",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // the SSE route holds its response open indefinitely
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())

	app.Get("/metrics", obsmetrics.Handler())

	httpapi.Register(app, httpapi.Services{
		Point:    pointSvc,
		Payment:  coordinator,
		Orders:   orderSvc,
		Coupon:   couponSvc,
		Hub:      hub,
		DB:       pool,
		Pool:     pool,
		Delivery: deliverySvc,
	})

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	cancelRun()

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during tracer shutdown")
	}

	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("database connections closed")
	log.Info().Msg("server stopped")
}

// runCacheWarmLoop periodically repopulates the popularity ranking cache for
// every configured limit (§4.10), the read-side counterpart to FoldLoop's
// write-side aggregation.
func runCacheWarmLoop(ctx context.Context, svc *stats.Service, cfg config.StatsConfig) {
	ticker := time.NewTicker(cfg.CacheWarmInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.WarmCache(ctx, cfg.PopularLimits); err != nil {
				log.Error().Err(err).Msg("stats: cache warm failed")
			}
		}
	}
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
