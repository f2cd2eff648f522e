// Command worker runs the gateway's background processing: payment
// resolution, webhook delivery, the outbox poller that turns pending
// webhook_events into delivery tasks, and periodic idempotency cleanup.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lumenpay/gateway/internal/circuitbreaker"
	"github.com/lumenpay/gateway/internal/config"
	"github.com/lumenpay/gateway/internal/dbpool"
	"github.com/lumenpay/gateway/internal/dispatcher"
	"github.com/lumenpay/gateway/internal/lifecycle"
	"github.com/lumenpay/gateway/internal/logger"
	"github.com/lumenpay/gateway/internal/metrics"
	"github.com/lumenpay/gateway/internal/processor"
	"github.com/lumenpay/gateway/internal/queue"
	"github.com/lumenpay/gateway/internal/signer"
	"github.com/lumenpay/gateway/internal/store"
)

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
		Service:     "gateway-worker",
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

	metricsCollector := metrics.New(prometheus.DefaultRegisterer)

	paymentHandler := processor.New(s, cfg.Payment, metricsCollector, appLogger)

	breaker := circuitbreaker.NewManager(circuitbreaker.DefaultConfig())
	sg := signer.New(cfg.Webhook.SignatureTolerance.Duration)
	webhookHandler := dispatcher.New(s, queueClient, cfg.Webhook, sg, breaker, metricsCollector, appLogger)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeProcessPayment, paymentHandler.ProcessTask)
	mux.HandleFunc(queue.TypeDeliverWebhook, webhookHandler.DeliverTask)

	asynqServer := queue.NewServer(redisOpt, cfg.Payment.Workers, cfg.Webhook.Workers, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopPoller := runOutboxPoller(ctx, s, queueClient, cfg.Poll, appLogger)
	resources.RegisterFunc("outbox-poller", func() error {
		stopPoller()
		return nil
	})

	cleanupCron := cron.New()
	if _, err := cleanupCron.AddFunc("@hourly", func() {
		purgeExpiredIdempotencyRecords(ctx, s, appLogger)
	}); err != nil {
		appLogger.Fatal().Err(err).Msg("schedule idempotency cleanup")
	}
	cleanupCron.Start()
	resources.RegisterFunc("cleanup-cron", func() error {
		<-cleanupCron.Stop().Done()
		return nil
	})

	go func() {
		appLogger.Info().Msg("gateway worker started")
		if err := asynqServer.Run(mux); err != nil {
			appLogger.Fatal().Err(err).Msg("asynq server stopped")
		}
	}()

	<-ctx.Done()
	appLogger.Info().Msg("shutdown signal received")
	asynqServer.Shutdown()
}

// runOutboxPoller periodically claims due pending webhook_events and
// enqueues each for delivery. It is how newly inserted outbox events reach
// the webhooks queue, and it re-enqueues events whose retry is due or that a
// crashed worker left pending. Returns a func to stop the poller.
func runOutboxPoller(ctx context.Context, s store.Store, q *queue.Client, cfg config.PollConfig, appLogger zerolog.Logger) func() {
	ticker := time.NewTicker(cfg.Interval.Duration)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				pollCtx, cancel := context.WithTimeout(ctx, cfg.Interval.Duration)
				events, err := s.ClaimDueEvents(pollCtx, time.Now(), cfg.Batch)
				cancel()
				if err != nil {
					appLogger.Error().Err(err).Msg("outbox poll failed")
					continue
				}
				for _, event := range events {
					if _, err := q.EnqueueDeliverWebhook(event.ID, time.Time{}); err != nil {
						appLogger.Error().Err(err).Str("event_id", event.ID).Msg("failed to enqueue claimed webhook event")
					}
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() { close(done) }
}

// purgeExpiredIdempotencyRecords deletes idempotency records past their TTL.
func purgeExpiredIdempotencyRecords(ctx context.Context, s store.Store, appLogger zerolog.Logger) {
	n, err := s.PurgeExpiredIdempotencyRecords(ctx, time.Now())
	if err != nil {
		appLogger.Error().Err(err).Msg("idempotency cleanup failed")
		return
	}
	if n > 0 {
		appLogger.Info().Int64("deleted", n).Msg("purged expired idempotency records")
	}
}
