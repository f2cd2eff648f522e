// Package processor resolves pending payments: it simulates the outcome of
// a payment attempt and atomically transitions the payment to completed or
// failed, emitting the corresponding outbox event.
package processor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/lumenpay/gateway/internal/apperrors"
	"github.com/lumenpay/gateway/internal/config"
	"github.com/lumenpay/gateway/internal/metrics"
	"github.com/lumenpay/gateway/internal/queue"
	"github.com/lumenpay/gateway/internal/store"
	"github.com/lumenpay/gateway/internal/testsupport"
)

// Handler implements asynq.Handler for queue.TypeProcessPayment tasks.
type Handler struct {
	store   store.Store
	cfg     config.PaymentConfig
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New builds a payment processing Handler.
func New(s store.Store, cfg config.PaymentConfig, m *metrics.Metrics, logger zerolog.Logger) *Handler {
	return &Handler{store: s, cfg: cfg, metrics: m, logger: logger.With().Str("component", "processor").Logger()}
}

type completedEventPayload struct {
	PaymentID string `json:"payment_id"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Email     string `json:"email,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// ProcessTask resolves one ProcessPaymentPayload task: it loads the
// payment, simulates processor latency and outcome, then CASes the payment
// to completed/failed and inserts the triggering outbox event atomically.
// If the payment is no longer pending (a redelivered job racing a prior
// successful attempt), it is a no-op so retries are safe.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload queue.ProcessPaymentPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return apperrors.Fatal("invalid_payload", "invalid ProcessPayment payload", err)
	}

	payment, err := h.store.GetPayment(ctx, payload.PaymentID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			h.logger.Warn().Str("payment_id", payload.PaymentID).Msg("payment not found, dropping task")
			return nil
		}
		return err
	}
	if payment.Status != store.PaymentPending {
		h.logger.Debug().Str("payment_id", payment.ID).Str("status", string(payment.Status)).Msg("payment no longer pending, skipping")
		return nil
	}

	delay := testsupport.ProcessingDelay(h.cfg)
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return ctx.Err()
	}

	start := time.Now()
	success := testsupport.Outcome(h.cfg)

	outcomePayload := completedEventPayload{
		PaymentID: payment.ID,
		Amount:    payment.Amount.Value.StringFixed(2),
		Currency:  payment.Amount.Currency,
	}
	if success {
		outcomePayload.Email = payment.CustomerEmail
	} else {
		outcomePayload.Reason = "simulated decline"
	}
	eventPayload, err := json.Marshal(outcomePayload)
	if err != nil {
		return apperrors.Fatal("marshal_failed", "marshal payment outcome event", err)
	}

	updated, eventIDs, applied, err := h.store.CompletePaymentOutcome(ctx, payment.ID, success, eventPayload)
	if err != nil {
		return err
	}
	if !applied {
		h.logger.Debug().Str("payment_id", payment.ID).Msg("redelivered task raced a prior completion, no-op")
		return nil
	}

	if h.metrics != nil {
		h.metrics.ObservePaymentOutcome(updated.PaymentMethod, success, time.Since(start))
	}
	h.logger.Info().
		Str("payment_id", updated.ID).
		Str("status", string(updated.Status)).
		Int("outbox_events", len(eventIDs)).
		Msg("payment outcome resolved")

	return nil
}
