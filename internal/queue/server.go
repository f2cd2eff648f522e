package queue

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// NewServer builds an asynq.Server that services the payments and webhooks
// queues from one shared pool of paymentWorkers+webhookWorkers goroutines.
// The two counts are the queues' relative priority weights; neither queue
// gets a pool of its own.
func NewServer(redisOpt asynq.RedisConnOpt, paymentWorkers, webhookWorkers int, logger zerolog.Logger) *asynq.Server {
	return asynq.NewServer(redisOpt, asynq.Config{
		Queues: map[string]int{
			QueuePayments: paymentWorkers,
			QueueWebhooks: webhookWorkers,
		},
		Concurrency: paymentWorkers + webhookWorkers,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error().
				Str("task_type", task.Type()).
				Err(err).
				Msg("task processing failed")
		}),
	})
}

// Inspector exposes queue depth and task state for the /test/jobs/status
// endpoint, backed by asynq's own Redis-stored task bookkeeping.
type Inspector struct {
	inspector *asynq.Inspector
}

// NewInspector builds an Inspector over the given Redis connection options.
func NewInspector(redisOpt asynq.RedisConnOpt) *Inspector {
	return &Inspector{inspector: asynq.NewInspector(redisOpt)}
}

// Close releases the underlying Redis connection.
func (i *Inspector) Close() error {
	return i.inspector.Close()
}

// QueueStatus summarizes one queue's pending/active/retry/archived counts.
type QueueStatus struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Completed int    `json:"completed"`
}

// Status returns the current status of both managed queues.
func (i *Inspector) Status() ([]QueueStatus, error) {
	queues := []string{QueuePayments, QueueWebhooks}
	out := make([]QueueStatus, 0, len(queues))
	for _, q := range queues {
		info, err := i.inspector.GetQueueInfo(q)
		if err != nil {
			return nil, err
		}
		out = append(out, QueueStatus{
			Queue:     q,
			Pending:   info.Pending,
			Active:    info.Active,
			Retry:     info.Retry,
			Archived:  info.Archived,
			Completed: info.Completed,
		})
	}
	return out, nil
}
