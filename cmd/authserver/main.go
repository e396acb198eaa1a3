package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/modelfolio/authcore"
	"github.com/modelfolio/authcore/httpapi"
	"github.com/modelfolio/authcore/identity"
	"github.com/modelfolio/authcore/notify"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	production := os.Getenv("PRODUCTION") == "true"

	var logger *zap.Logger
	var err error
	if production {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	secret := os.Getenv("SIGNING_SECRET")
	if secret == "" {
		logger.Fatal("SIGNING_SECRET is required (min 32 bytes)")
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("redis unreachable", zap.String("addr", redisAddr), zap.Error(err))
	}

	store, cleanup, err := buildIdentityStore(logger)
	if err != nil {
		logger.Fatal("identity store init failed", zap.Error(err))
	}
	defer cleanup()

	notifier := buildNotifier(logger, production)

	cfg := authcore.DefaultConfig()
	cfg.JWT.SigningSecret = []byte(secret)
	cfg.Security.ProductionMode = production
	cfg.Codes.EnableIPThrottle = os.Getenv("ENABLE_IP_THROTTLE") == "true"

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityStore(store).
		WithNotifier(notifier).
		WithLogger(logger).
		Build()
	if err != nil {
		logger.Fatal("engine build failed", zap.Error(err))
	}
	defer engine.Close()

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           httpapi.NewServer(engine, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.Bool("production", production))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

// buildIdentityStore picks Postgres when DATABASE_URL is set, otherwise the
// in-memory store (development only; accounts vanish on restart).
func buildIdentityStore(logger *zap.Logger) (authcore.IdentityStore, func(), error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Warn("DATABASE_URL not set, using in-memory identity store")
		return identity.NewMemory(), func() {}, nil
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return identity.NewPostgres(pool), pool.Close, nil
}

// buildNotifier picks SMTP when configured; in development without SMTP the
// dev notifier logs codes instead.
func buildNotifier(logger *zap.Logger, production bool) authcore.Notifier {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		if production {
			logger.Fatal("SMTP_HOST is required in production")
		}
		logger.Warn("SMTP not configured, logging codes instead of sending")
		return notify.NewDev(logger)
	}

	port := os.Getenv("SMTP_PORT")
	if port == "" {
		port = "465"
	}
	return notify.NewSMTP(
		host,
		port,
		os.Getenv("SMTP_USER"),
		os.Getenv("SMTP_PASS"),
		os.Getenv("SMTP_FROM"),
	)
}
