// Command api serves the gateway's HTTP surface: payment and refund
// intake, webhook subscription management, and health/metrics endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/lumenpay/gateway/internal/config"
	"github.com/lumenpay/gateway/internal/dbpool"
	"github.com/lumenpay/gateway/internal/httpserver"
	"github.com/lumenpay/gateway/internal/intake"
	"github.com/lumenpay/gateway/internal/lifecycle"
	"github.com/lumenpay/gateway/internal/logger"
	"github.com/lumenpay/gateway/internal/metrics"
	"github.com/lumenpay/gateway/internal/queue"
	"github.com/lumenpay/gateway/internal/store"
)

// redisPinger adapts *redis.Client to intake.Pinger.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using system environment variables")
	}

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	appLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     "gateway-api",
		Environment: cfg.Logging.Environment,
	})

	resources := lifecycle.NewManager()
	defer func() {
		if err := resources.Close(); err != nil {
			appLogger.Error().Err(err).Msg("error during shutdown cleanup")
		}
	}()

	pool, err := dbpool.NewSharedPool(cfg.Postgres.DSN, cfg.Postgres.Pool)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("connect postgres")
	}
	resources.Register("postgres-pool", pool)

	s, err := store.NewPostgresStoreWithDB(pool.DB())
	if err != nil {
		appLogger.Fatal().Err(err).Msg("init store")
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	queueClient := queue.NewClient(redisOpt)
	resources.Register("queue-client", queueClient)

	inspector := queue.NewInspector(redisOpt)
	resources.Register("queue-inspector", inspector)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	resources.Register("redis-pinger", rdb)

	metricsCollector := metrics.New(prometheus.DefaultRegisterer)
	stopDBStats := reportDBStats(pool, metricsCollector, 15*time.Second)
	resources.RegisterFunc("db-stats-reporter", func() error {
		stopDBStats()
		return nil
	})

	handlers := intake.New(s, queueClient, inspector, redisPinger{client: rdb}, cfg.Idempotency, metricsCollector, appLogger)
	srv := httpserver.New(cfg, handlers, metricsCollector, appLogger)

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info().Str("address", cfg.Server.Address).Msg("gateway api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		appLogger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		appLogger.Error().Err(err).Msg("http server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("error shutting down http server")
	}
}

// reportDBStats starts a goroutine publishing the shared pool's connection
// stats to the active-connections gauge and returns a func to stop it.
func reportDBStats(pool *dbpool.SharedPool, m *metrics.Metrics, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				m.DBConnectionsActive.Set(float64(pool.DB().Stats().InUse))
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}
