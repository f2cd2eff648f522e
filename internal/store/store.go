package store

import (
	"context"
	"time"
)

// CreatePaymentInput carries the validated fields needed to create a payment
// and, optionally, record an idempotency response in the same transaction.
type CreatePaymentInput struct {
	Payment Payment
	// IdempotencyKey is empty when the client omitted the header.
	IdempotencyKey string
}

// CreatePaymentResult wraps a created payment. CreatePayment itself returns a
// Payment; when the idempotency key already exists it returns DuplicateKey.
type CreatePaymentResult struct {
	Payment Payment
}

// CreateRefundInput carries the validated fields needed to create a refund.
type CreateRefundInput struct {
	PaymentID string
	Amount    Refund
	Reason    string
}

// Store is the durable, transactional state backing the gateway. Every
// multi-row mutation listed here is atomic; callers never see partial
// effects.
type Store interface {
	// CreatePayment inserts a pending payment and, if idempotencyKey is
	// non-empty, an idempotency record bound to it, in one transaction.
	// Returns an *apperrors.Error of kind DuplicateKey if idempotencyKey
	// already exists.
	CreatePayment(ctx context.Context, in CreatePaymentInput) (Payment, error)

	// GetPayment loads a payment by id. Returns NotFound if absent.
	GetPayment(ctx context.Context, id string) (Payment, error)

	// MarkPayment performs a compare-and-set transition: it succeeds only if
	// the payment's current status legally transitions to newStatus.
	// Returns InvalidState on an illegal or stale transition.
	MarkPayment(ctx context.Context, id string, newStatus PaymentStatus) (Payment, error)

	// CompletePaymentOutcome transitions a pending payment to completed or
	// failed and inserts the corresponding outbox events, all in one
	// transaction. If the payment is no longer pending (a redelivered job
	// racing a prior attempt), applied is false and no rows are touched.
	CompletePaymentOutcome(ctx context.Context, paymentID string, success bool, eventPayload []byte) (payment Payment, eventIDs []string, applied bool, err error)

	// CreateRefund validates the payment's status and remaining refund
	// budget, inserts the refund, and updates the parent payment's status
	// (partial_refunded or refunded) in one transaction.
	CreateRefund(ctx context.Context, paymentID string, amount Refund, reason string) (Refund, Payment, error)

	// MarkRefund sets a refund's status to newStatus. It does not check the
	// refund's current status; any status is overwritten.
	MarkRefund(ctx context.Context, id string, newStatus RefundStatus) (Refund, error)

	// GetRefundsForPayment lists refunds for a payment, descending by
	// created_at.
	GetRefundsForPayment(ctx context.Context, paymentID string) ([]Refund, error)

	// SumActiveRefunds returns the sum of refund amounts with status in
	// {pending, processed} for a payment (the refund budget consumer).
	SumActiveRefunds(ctx context.Context, paymentID string) (string, error)

	// CreateSubscription inserts a new webhook subscription.
	CreateSubscription(ctx context.Context, sub WebhookSubscription) (WebhookSubscription, error)

	// GetSubscription loads a subscription by id. Returns NotFound if absent.
	GetSubscription(ctx context.Context, id string) (WebhookSubscription, error)

	// ListSubscriptions lists all webhook subscriptions.
	ListSubscriptions(ctx context.Context) ([]WebhookSubscription, error)

	// UpdateSubscription applies a partial update (URL, events, active) to an
	// existing subscription.
	UpdateSubscription(ctx context.Context, id string, patch SubscriptionPatch) (WebhookSubscription, error)

	// DeleteSubscription removes a subscription and cascades to its events.
	DeleteSubscription(ctx context.Context, id string) error

	// InsertOutboxEvents inserts one pending WebhookEvent row per active
	// subscription listening for eventType, in a transaction of its own; it
	// does not join a caller's transaction. CompletePaymentOutcome and
	// CreateRefund insert their events inside their own transactions.
	InsertOutboxEvents(ctx context.Context, eventType string, payload []byte) ([]string, error)

	// ClaimDueEvents selects up to limit pending events eligible for
	// delivery (next_retry is null or <= now), ordered by next_retry then
	// created_at. Rows locked by a concurrent call are skipped only while
	// that call runs; nothing marks the returned rows as claimed, so a
	// later call returns them again until their status or next_retry
	// changes.
	ClaimDueEvents(ctx context.Context, now time.Time, limit int) ([]WebhookEvent, error)

	// GetEvent loads a single webhook event with its owning subscription.
	GetEvent(ctx context.Context, id string) (WebhookEvent, WebhookSubscription, error)

	// GetEventsForSubscription lists events for a subscription, applying the
	// given filter.
	GetEventsForSubscription(ctx context.Context, subscriptionID string, filter EventListFilter) ([]WebhookEvent, error)

	// RecordEventAttempt applies the outcome of one delivery attempt,
	// transitioning the event to completed, failed, or back to pending with
	// an updated retry_count/next_retry.
	RecordEventAttempt(ctx context.Context, eventID string, outcome AttemptOutcome) (WebhookEvent, error)

	// LookupIdempotent returns the recorded response for key, or NotFound if
	// absent or expired.
	LookupIdempotent(ctx context.Context, key string) (IdempotencyRecord, error)

	// CreateIdempotencyPlaceholder reserves key ahead of an operation whose
	// response isn't known yet (refund creation uses it; CreatePayment
	// writes its own record inline). Returns DuplicateKey if key
	// is already in use. The handler fills in the real response afterward
	// via SaveIdempotentResponse.
	CreateIdempotencyPlaceholder(ctx context.Context, key string, paymentID string, ttl time.Duration) error

	// SaveIdempotentResponse overwrites the response body and TTL of an
	// idempotency record (created alongside a payment or by
	// CreateIdempotencyPlaceholder), once the handler has composed the
	// canonical response body.
	SaveIdempotentResponse(ctx context.Context, key string, response []byte, ttl time.Duration) error

	// PurgeExpiredIdempotencyRecords deletes idempotency records whose
	// expires_at is before now, returning the count removed.
	PurgeExpiredIdempotencyRecords(ctx context.Context, now time.Time) (int64, error)

	// Ping verifies the store's underlying connection is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources owned by the store.
	Close() error
}

// SubscriptionPatch carries the optional fields of a PATCH /webhooks/{id}
// request; nil fields are left unchanged.
type SubscriptionPatch struct {
	URL    *string
	Events []string
	Active *bool
}
