// Package intake implements the gateway's HTTP surface: payment and refund
// creation, webhook subscription CRUD, health checks, and the test-support
// job status endpoint. Idempotency is enforced here, ahead of the state
// machines the processor and dispatcher drive.
package intake

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/lumenpay/gateway/internal/config"
	"github.com/lumenpay/gateway/internal/metrics"
	"github.com/lumenpay/gateway/internal/queue"
	"github.com/lumenpay/gateway/internal/store"
)

// Enqueuer schedules a payment for processing. *queue.Client satisfies this.
type Enqueuer interface {
	EnqueueProcessPayment(paymentID string) (*asynq.TaskInfo, error)
}

// QueueInspector reports queue depth for /test/jobs/status. *queue.Inspector
// satisfies this.
type QueueInspector interface {
	Status() ([]queue.QueueStatus, error)
}

// Pinger is satisfied by a store and by a raw redis client, used for the
// component health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers implements the HTTP handlers backing the gateway's REST API.
type Handlers struct {
	store       store.Store
	queue       Enqueuer
	inspector   QueueInspector
	redisPinger Pinger
	idempotency config.IdempotencyConfig
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	startedAt   time.Time
}

// New builds a Handlers. redisPinger and inspector may be nil (health/job
// status endpoints degrade gracefully when unset).
func New(s store.Store, q Enqueuer, inspector QueueInspector, redisPinger Pinger, idempotency config.IdempotencyConfig, m *metrics.Metrics, logger zerolog.Logger) *Handlers {
	return &Handlers{
		store:       s,
		queue:       q,
		inspector:   inspector,
		redisPinger: redisPinger,
		idempotency: idempotency,
		metrics:     m,
		logger:      logger.With().Str("component", "intake").Logger(),
		startedAt:   time.Now(),
	}
}
