package processor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenpay/gateway/internal/config"
	"github.com/lumenpay/gateway/internal/idgen"
	"github.com/lumenpay/gateway/internal/money"
	"github.com/lumenpay/gateway/internal/queue"
	"github.com/lumenpay/gateway/internal/store"
)

func mustAmount(t *testing.T, s string) money.Amount {
	t.Helper()
	a, err := money.New(s, "USD")
	require.NoError(t, err)
	return a
}

func testConfig(success bool) config.PaymentConfig {
	return config.PaymentConfig{
		TestMode:            true,
		TestPaymentSuccess:  success,
		TestProcessingDelay: config.Duration{Duration: time.Millisecond},
	}
}

func newTask(t *testing.T, paymentID string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(queue.ProcessPaymentPayload{PaymentID: paymentID})
	require.NoError(t, err)
	return asynq.NewTask(queue.TypeProcessPayment, payload)
}

func TestProcessTaskMarksCompletedOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	p := store.Payment{ID: idgen.Payment(), Amount: mustAmount(t, "25.00"), CustomerEmail: "a@b.c"}
	_, err := s.CreatePayment(ctx, store.CreatePaymentInput{Payment: p})
	require.NoError(t, err)

	sub, err := s.CreateSubscription(ctx, store.WebhookSubscription{ID: idgen.Subscription(), URL: "https://example.com/hook", Events: []string{"payment.completed"}, Active: true, Secret: "s"})
	require.NoError(t, err)

	h := New(s, testConfig(true), nil, zerolog.Nop())
	task := newTask(t, p.ID)
	require.NoError(t, h.ProcessTask(ctx, task))

	updated, err := s.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, store.PaymentCompleted, updated.Status)

	events, err := s.GetEventsForSubscription(ctx, sub.ID, store.EventListFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)

	var payload completedEventPayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, p.ID, payload.PaymentID)
	assert.Equal(t, "25.00", payload.Amount)
	assert.Equal(t, "USD", payload.Currency)
	assert.Equal(t, "a@b.c", payload.Email)
	assert.Empty(t, payload.Reason)
}

func TestProcessTaskMarksFailedOnFailure(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	p := store.Payment{ID: idgen.Payment(), Amount: mustAmount(t, "25.00"), CustomerEmail: "a@b.c"}
	_, err := s.CreatePayment(ctx, store.CreatePaymentInput{Payment: p})
	require.NoError(t, err)

	sub, err := s.CreateSubscription(ctx, store.WebhookSubscription{ID: idgen.Subscription(), URL: "https://example.com/hook", Events: []string{"payment.failed"}, Active: true, Secret: "s"})
	require.NoError(t, err)

	h := New(s, testConfig(false), nil, zerolog.Nop())
	require.NoError(t, h.ProcessTask(ctx, newTask(t, p.ID)))

	updated, err := s.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, store.PaymentFailed, updated.Status)

	events, err := s.GetEventsForSubscription(ctx, sub.ID, store.EventListFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)

	var payload completedEventPayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, p.ID, payload.PaymentID)
	assert.Equal(t, "25.00", payload.Amount)
	assert.Equal(t, "USD", payload.Currency)
	assert.Empty(t, payload.Email)
	assert.Equal(t, "simulated decline", payload.Reason)
}

func TestProcessTaskNoOpOnRedeliveryAfterCompletion(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	p := store.Payment{ID: idgen.Payment(), Amount: mustAmount(t, "25.00"), CustomerEmail: "a@b.c"}
	_, err := s.CreatePayment(ctx, store.CreatePaymentInput{Payment: p})
	require.NoError(t, err)

	h := New(s, testConfig(true), nil, zerolog.Nop())
	require.NoError(t, h.ProcessTask(ctx, newTask(t, p.ID)))
	// Redelivered task after the payment already resolved: must not error
	// and must not flip the payment's terminal status.
	require.NoError(t, h.ProcessTask(ctx, newTask(t, p.ID)))

	updated, err := s.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, store.PaymentCompleted, updated.Status)
}

func TestProcessTaskDropsUnknownPayment(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	h := New(s, testConfig(true), nil, zerolog.Nop())
	require.NoError(t, h.ProcessTask(ctx, newTask(t, "pay_does_not_exist")))
}
