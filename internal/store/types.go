// Package store implements the gateway's durable, transactional state: the
// source of truth for payments, refunds, webhook subscriptions, the webhook
// outbox, and idempotency records.
package store

import (
	"encoding/json"
	"time"

	"github.com/lumenpay/gateway/internal/money"
)

type PaymentStatus string

const (
	PaymentPending          PaymentStatus = "pending"
	PaymentCompleted        PaymentStatus = "completed"
	PaymentFailed           PaymentStatus = "failed"
	PaymentRefunded         PaymentStatus = "refunded"
	PaymentPartialRefunded  PaymentStatus = "partial_refunded"
)

// paymentTransitions enumerates the forward-only DAG edges a payment may
// follow. A status absent from the map (failed, refunded) is terminal.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:         {PaymentCompleted, PaymentFailed},
	PaymentCompleted:       {PaymentRefunded, PaymentPartialRefunded},
	PaymentPartialRefunded: {PaymentRefunded, PaymentPartialRefunded},
}

// CanTransition reports whether from -> to is a legal payment state edge.
func CanTransition(from, to PaymentStatus) bool {
	for _, allowed := range paymentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundProcessed RefundStatus = "processed"
	RefundFailed    RefundStatus = "failed"
)

type EventStatus string

const (
	EventPending   EventStatus = "pending"
	EventCompleted EventStatus = "completed"
	EventFailed    EventStatus = "failed"
)

// Payment is the durable record of a single payment intent and its outcome.
type Payment struct {
	ID             string
	IdempotencyKey string
	Amount         money.Amount
	Status         PaymentStatus
	CustomerEmail  string
	CustomerName   string
	Description    string
	PaymentMethod  string
	Metadata       json.RawMessage
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Refund is a (possibly partial) refund against a completed payment.
type Refund struct {
	ID        string
	PaymentID string
	Amount    money.Amount
	Reason    string
	Status    RefundStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WebhookSubscription is a receiver registered to be notified of a set of
// event types.
type WebhookSubscription struct {
	ID        string
	URL       string
	Events    []string
	Active    bool
	Secret    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListensFor reports whether the subscription is active and subscribed to
// eventType.
func (w WebhookSubscription) ListensFor(eventType string) bool {
	if !w.Active {
		return false
	}
	for _, e := range w.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// WebhookEvent is a single outbox row: one event, bound to one subscription,
// awaiting (or having completed) delivery.
type WebhookEvent struct {
	ID         string
	WebhookID  string
	EventType  string
	Payload    json.RawMessage
	Status     EventStatus
	RetryCount int
	MaxRetries int
	NextRetry  *time.Time
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IdempotencyRecord is the persisted response for a previously accepted
// request, keyed by the client-supplied Idempotency-Key.
type IdempotencyRecord struct {
	Key       string
	PaymentID string
	Response  json.RawMessage
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the record should be treated as absent at time now.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// AttemptOutcome describes the result of one webhook delivery attempt, fed to
// RecordEventAttempt.
type AttemptOutcome struct {
	Success   bool
	LastError string
	// NextRetry is the scheduled retry time when Success is false and the
	// event has not exhausted its retry budget. Computed by the caller
	// (dispatcher) using the configured backoff schedule.
	NextRetry time.Time
	// Permanent marks the event failed outright regardless of retry budget,
	// used when the owning subscription is missing or inactive.
	Permanent bool
}

// EventListFilter constrains GetEventsForSubscription.
type EventListFilter struct {
	Status string
	Limit  int
	Offset int
}
