package main // Entry point package

import (
    "context"
    "errors"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/transit-seat-reservation/internal/config"
    "github.com/iliyamo/transit-seat-reservation/internal/database"
    "github.com/iliyamo/transit-seat-reservation/internal/handler"
    "github.com/iliyamo/transit-seat-reservation/internal/logger"
    "github.com/iliyamo/transit-seat-reservation/internal/middleware"
    "github.com/iliyamo/transit-seat-reservation/internal/queue"
    "github.com/iliyamo/transit-seat-reservation/internal/repository"
    "github.com/iliyamo/transit-seat-reservation/internal/reservation"
    "github.com/iliyamo/transit-seat-reservation/internal/router"
    queue_publisher "github.com/iliyamo/transit-seat-reservation/internal/service"
)

func main() {
    _ = godotenv.Load() // optional .env for local development

    cfg := config.Load()
    log := logger.New(cfg.LogBackend, cfg.LogLevel, cfg.LogFormat)

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database connect failed: %v", err)
    }
    defer db.Close()

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    if err := database.EnsureSchema(ctx, db); err != nil {
        log.Fatalf("schema bootstrap failed: %v", err)
    }

    repo := repository.NewServiceRepo(db)
    engine := reservation.NewEngine(repo, cfg.LockTTL)
    sweeper := reservation.NewSweeper(engine, cfg.SweepInterval, log)
    go sweeper.Run(ctx)

    // Background consumer appending confirmed bookings to logs/booking.log.
    go func() {
        if err := queue.StartSeatBookedConsumer(ctx, queue_publisher.BrokerURL(), log); err != nil && !errors.Is(err, context.Canceled) {
            log.Errorf("booking consumer stopped: %v", err)
        }
    }()

    // Redis is optional; when unavailable both middlewares pass through.
    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Warnf("redis unavailable, response cache and rate limiting disabled")
    }
    cacheCfg := config.LoadCacheConfig()
    cacheMW := middleware.NewRedisCache(cacheCfg, rdb)
    limitMW := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

    // Every seat mutation drops cached catalog responses so a cached
    // body never shows a seat as FREE after it was locked or booked.
    invalidate := middleware.NewCacheInvalidator(cacheCfg, rdb)

    svcHandler := handler.NewServiceHandler(repo)
    svcHandler.Invalidate = invalidate
    bookingHandler := handler.NewBookingHandler(engine, repo, log)
    bookingHandler.Invalidate = invalidate

    e := echo.New()
    e.HideBanner = true
    router.RegisterRoutes(e, svcHandler, bookingHandler, cacheMW, limitMW)

    addr := ":" + cfg.Port
    log.Infof("listening on %s (env=%s, lock ttl=%s, sweep=%s)", addr, cfg.Env, cfg.LockTTL, cfg.SweepInterval)

    if err := e.Start(addr); err != nil {
        log.Fatalf("server stopped: %v", err)
    }
}
