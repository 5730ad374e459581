package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/push-relay/internal/config"
	"github.com/kursadbilgin/push-relay/internal/handler"
	infraredis "github.com/kursadbilgin/push-relay/internal/infra/redis"
	"github.com/kursadbilgin/push-relay/internal/ledger"
	"github.com/kursadbilgin/push-relay/internal/observability"
	"github.com/kursadbilgin/push-relay/internal/pushover"
	"github.com/kursadbilgin/push-relay/internal/ratelimit"
	"github.com/kursadbilgin/push-relay/internal/service"
	"github.com/kursadbilgin/push-relay/internal/transport"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("push-relay stopped with error", zap.Error(err))
	}
	logger.Info("push-relay stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	metrics := observability.NewMetrics()

	store, err := ledger.Open(afero.NewOsFs(), cfg.LedgerPath, logger)
	if err != nil {
		return fmt.Errorf("ledger initialization failed: %w", err)
	}

	client, err := pushover.NewClient(pushover.Config{
		UserKey:           cfg.PushoverUserKey,
		APIToken:          cfg.PushoverAPIToken,
		Debug:             cfg.PushoverDebug,
		ProxyURL:          cfg.PushoverProxyURL,
		AutoRefreshSounds: cfg.AutoRefreshSounds,
		Timeout:           cfg.PushoverTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("pushover client initialization failed: %w", err)
	}

	notifications, err := service.NewNotificationService(store, client, service.DeliveryDefaults{
		Sound:    cfg.PushoverDefaultSound,
		Priority: cfg.PushoverDefaultPriority,
	}, logger)
	if err != nil {
		return err
	}
	notifications.SetMetrics(metrics)

	var (
		rdb     *goredis.Client
		limiter ratelimit.RateLimiter
	)
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer rdb.Close()

		limiter, err = infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
		if err != nil {
			return err
		}
	} else {
		limiter = ratelimit.NewLocalRateLimiter(cfg.RateLimitPerSec)
	}

	app := fiber.New(fiber.Config{
		AppName:               "push-relay",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(observability.RequestLogger(logger))
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSAllowOrigins}))
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, store, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := app.Group("", ratelimit.Middleware(limiter, logger))
	if err := handler.RegisterNotificationRoutes(api, notifications); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.PushoverEnabled() && client.AutoRefreshSounds() {
		refresher, err := service.NewSoundRefresher(client, cfg.SoundRefreshSchedule, logger)
		if err != nil {
			return err
		}
		refresher.SetMetrics(metrics)
		g.Go(func() error {
			return refresher.Start(gctx)
		})
	}

	g.Go(func() error {
		logger.Info("push-relay api started",
			zap.Int("port", cfg.APIPort),
			zap.String("ledgerPath", store.Path()),
			zap.Bool("pushoverEnabled", cfg.PushoverEnabled()),
			zap.Bool("redisRateLimit", rdb != nil),
		)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
