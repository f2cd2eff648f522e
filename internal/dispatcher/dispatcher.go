// Package dispatcher delivers webhook outbox events to subscriber endpoints:
// it signs each payload, POSTs it through a circuit breaker, and schedules a
// backed-off retry (or marks the event exhausted) based on the outcome.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/lumenpay/gateway/internal/apperrors"
	"github.com/lumenpay/gateway/internal/circuitbreaker"
	"github.com/lumenpay/gateway/internal/config"
	"github.com/lumenpay/gateway/internal/httputil"
	"github.com/lumenpay/gateway/internal/metrics"
	"github.com/lumenpay/gateway/internal/queue"
	"github.com/lumenpay/gateway/internal/signer"
	"github.com/lumenpay/gateway/internal/store"
	"github.com/lumenpay/gateway/internal/testsupport"
)

// Enqueuer schedules a webhook retry. *queue.Client satisfies this; tests
// substitute a fake to avoid needing a live Redis.
type Enqueuer interface {
	EnqueueDeliverWebhook(eventID string, processAt time.Time) (*asynq.TaskInfo, error)
}

// Handler implements asynq.Handler for queue.TypeDeliverWebhook tasks.
type Handler struct {
	store   store.Store
	queue   Enqueuer
	cfg     config.WebhookConfig
	signer  *signer.Signer
	breaker *circuitbreaker.Manager
	client  *http.Client
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New builds a webhook delivery Handler.
func New(s store.Store, q Enqueuer, cfg config.WebhookConfig, sg *signer.Signer, breaker *circuitbreaker.Manager, m *metrics.Metrics, logger zerolog.Logger) *Handler {
	return &Handler{
		store:   s,
		queue:   q,
		cfg:     cfg,
		signer:  sg,
		breaker: breaker,
		client:  httputil.NewClient(cfg.Timeout.Duration),
		metrics: m,
		logger:  logger.With().Str("component", "dispatcher").Logger(),
	}
}

// DeliverTask resolves one DeliverWebhookPayload task: it loads the event
// and its subscription, signs and POSTs the payload, and records the
// attempt outcome. On failure it schedules a retry by re-enqueuing the same
// event id with a computed backoff, unless the retry budget is exhausted.
func (h *Handler) DeliverTask(ctx context.Context, task *asynq.Task) error {
	var payload queue.DeliverWebhookPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return apperrors.Fatal("invalid_payload", "invalid DeliverWebhook payload", err)
	}

	event, sub, err := h.store.GetEvent(ctx, payload.EventID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			h.logger.Warn().Str("event_id", payload.EventID).Msg("event not found, dropping task")
			return nil
		}
		return err
	}
	if event.Status != store.EventPending {
		h.logger.Debug().Str("event_id", event.ID).Str("status", string(event.Status)).Msg("event no longer pending, skipping")
		return nil
	}
	if sub.ID == "" || !sub.Active {
		h.logger.Warn().Str("event_id", event.ID).Str("webhook_id", event.WebhookID).Msg("subscription missing or inactive, failing event")
		_, err := h.store.RecordEventAttempt(ctx, event.ID, store.AttemptOutcome{Success: false, LastError: "subscription missing or inactive", Permanent: true})
		return err
	}

	start := time.Now()
	deliverErr := h.deliver(ctx, sub, event)

	outcome := store.AttemptOutcome{Success: deliverErr == nil}
	if deliverErr != nil {
		outcome.LastError = deliverErr.Error()
		outcome.NextRetry = time.Now().Add(testsupport.Jitter(testsupport.RetrySchedule(h.cfg, event.RetryCount)))
	}

	updated, err := h.store.RecordEventAttempt(ctx, event.ID, outcome)
	if err != nil {
		return err
	}

	if h.metrics != nil {
		h.metrics.ObserveWebhookAttempt(event.EventType, outcome.Success, time.Since(start), updated.RetryCount)
	}

	switch updated.Status {
	case store.EventCompleted:
		h.logger.Info().Str("event_id", updated.ID).Str("event_type", updated.EventType).Msg("webhook delivered")
		return nil
	case store.EventFailed:
		if h.metrics != nil {
			h.metrics.ObserveWebhookExhausted(updated.EventType)
		}
		h.logger.Warn().Str("event_id", updated.ID).Str("event_type", updated.EventType).Int("retry_count", updated.RetryCount).Msg("webhook delivery exhausted retries")
		return nil
	default:
		if _, err := h.queue.EnqueueDeliverWebhook(updated.ID, *updated.NextRetry); err != nil {
			return apperrors.Transient("requeue_failed", "failed to schedule webhook retry", err)
		}
		h.logger.Info().Str("event_id", updated.ID).Int("retry_count", updated.RetryCount).Time("next_retry", *updated.NextRetry).Msg("webhook delivery failed, retry scheduled")
		return nil
	}
}

func (h *Handler) deliver(ctx context.Context, sub store.WebhookSubscription, event store.WebhookEvent) error {
	_, err := h.breaker.Execute(circuitbreaker.ServiceWebhook, func() (interface{}, error) {
		return nil, h.post(ctx, sub, event)
	})
	return err
}

func (h *Handler) post(ctx context.Context, sub store.WebhookSubscription, event store.WebhookEvent) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(event.Payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", event.EventType)
	req.Header.Set("X-Webhook-Id", event.ID)

	hdr := h.signer.Sign(sub.Secret, event.Payload, time.Now())
	req.Header.Set("X-Webhook-Signature", hdr.Signature)
	req.Header.Set("X-Webhook-Timestamp", hdr.Timestamp)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("subscriber responded with status %d", resp.StatusCode)
	}
	return nil
}
