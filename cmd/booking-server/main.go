package main

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/das622/appointment-booking-api/internal/cache"
	"github.com/das622/appointment-booking-api/internal/config"
	"github.com/das622/appointment-booking-api/internal/service/auth"
	"github.com/das622/appointment-booking-api/internal/service/booking"
	"github.com/das622/appointment-booking-api/internal/store/postgres"
	httptransport "github.com/das622/appointment-booking-api/internal/transport/http"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "booking-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "booking-server"),
	)
	slog.SetDefault(log)

	log.Info("starting",
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("log_level", cfg.LogLevel),
		slog.Int("slot_minutes", cfg.SlotMinutes),
	)

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	connectCtx, connectCancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := postgres.Open(connectCtx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	connectCancel()
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	var slotCache booking.AvailabilityCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Warn("redis unreachable; availability caching disabled",
				slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
		} else {
			slotCache = cache.NewAvailability(rdb, cfg.CacheTTL, log)
			log.Info("availability cache enabled", slog.String("redis_addr", cfg.RedisAddr))
		}
	}

	users := postgres.NewUserRepo(db)
	calendar := postgres.NewBookingRepo(db)

	authSvc := auth.NewService(users, []byte(cfg.JWTSecret), cfg.TokenTTL)
	bookingSvc := booking.NewService(calendar, slotCache, cfg.SlotMinutes)

	srv := httptransport.NewServer([]byte(cfg.JWTSecret), authSvc, bookingSvc, db, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(cfg.HTTPAddr)
	}()

	log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		if err := srv.Shutdown(cfg.ShutdownTimeout); err != nil {
			log.Warn("http shutdown failed", slog.Any("err", err))
		} else {
			log.Info("http server stopped")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("http server stopped with error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
