package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumenpay/gateway/internal/apperrors"
	"github.com/lumenpay/gateway/internal/idgen"
)

// MemoryStore is an in-process, mutex-guarded Store implementation used by
// unit tests that don't need a live Postgres instance.
type MemoryStore struct {
	mu            sync.Mutex
	payments      map[string]Payment
	refunds       map[string]Refund
	subscriptions map[string]WebhookSubscription
	events        map[string]WebhookEvent
	idempotency   map[string]IdempotencyRecord
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payments:      make(map[string]Payment),
		refunds:       make(map[string]Refund),
		subscriptions: make(map[string]WebhookSubscription),
		events:        make(map[string]WebhookEvent),
		idempotency:   make(map[string]IdempotencyRecord),
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
func (m *MemoryStore) Close() error                   { return nil }

func (m *MemoryStore) CreatePayment(ctx context.Context, in CreatePaymentInput) (Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if in.IdempotencyKey != "" {
		for _, p := range m.payments {
			if p.IdempotencyKey == in.IdempotencyKey {
				return Payment{}, apperrors.DuplicateKey("idempotency_key_exists", "a payment already exists for this idempotency key")
			}
		}
	}

	p := in.Payment
	if p.Status == "" {
		p.Status = PaymentPending
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	m.payments[p.ID] = p

	if in.IdempotencyKey != "" {
		m.idempotency[in.IdempotencyKey] = IdempotencyRecord{
			Key:       in.IdempotencyKey,
			PaymentID: p.ID,
			Response:  []byte(`{}`),
			CreatedAt: now,
			ExpiresAt: now.Add(24 * time.Hour),
		}
	}
	return p, nil
}

func (m *MemoryStore) SaveIdempotentResponse(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.idempotency[key]
	if !ok {
		return apperrors.NotFound("idempotency_record_not_found", "no idempotency record for key")
	}
	now := time.Now().UTC()
	rec.Response = response
	rec.CreatedAt = now
	rec.ExpiresAt = now.Add(ttl)
	m.idempotency[key] = rec
	return nil
}

func (m *MemoryStore) CreateIdempotencyPlaceholder(ctx context.Context, key string, paymentID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.idempotency[key]; ok {
		return apperrors.DuplicateKey("idempotency_key_exists", "an idempotency record already exists for this key")
	}
	now := time.Now().UTC()
	m.idempotency[key] = IdempotencyRecord{
		Key:       key,
		PaymentID: paymentID,
		Response:  []byte(`{}`),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	return nil
}

func (m *MemoryStore) GetPayment(ctx context.Context, id string) (Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return Payment{}, apperrors.NotFound("payment_not_found", "payment not found")
	}
	return p, nil
}

func (m *MemoryStore) MarkPayment(ctx context.Context, id string, newStatus PaymentStatus) (Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return Payment{}, apperrors.NotFound("payment_not_found", "payment not found")
	}
	if !CanTransition(p.Status, newStatus) {
		return Payment{}, apperrors.InvalidState("illegal_transition", "illegal payment status transition")
	}
	p.Status = newStatus
	p.UpdatedAt = time.Now().UTC()
	m.payments[id] = p
	return p, nil
}

func (m *MemoryStore) CompletePaymentOutcome(ctx context.Context, paymentID string, success bool, eventPayload []byte) (Payment, []string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[paymentID]
	if !ok {
		return Payment{}, nil, false, apperrors.NotFound("payment_not_found", "payment not found")
	}
	if p.Status != PaymentPending {
		return p, nil, false, nil
	}

	newStatus := PaymentCompleted
	eventType := "payment.completed"
	if !success {
		newStatus = PaymentFailed
		eventType = "payment.failed"
	}
	p.Status = newStatus
	p.UpdatedAt = time.Now().UTC()
	m.payments[paymentID] = p

	ids := m.insertOutboxEventsLocked(eventType, eventPayload)
	return p, ids, true, nil
}

func (m *MemoryStore) CreateRefund(ctx context.Context, paymentID string, refund Refund, reason string) (Refund, Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[paymentID]
	if !ok {
		return Refund{}, Payment{}, apperrors.NotFound("payment_not_found", "payment not found")
	}
	if p.Status != PaymentCompleted && p.Status != PaymentPartialRefunded {
		return Refund{}, Payment{}, apperrors.InvalidState("payment_not_refundable", "payment status does not permit refunds")
	}

	already := m.sumActiveRefundsLockedDecimal(paymentID)
	remaining := p.Amount.Value.Sub(already)
	if refund.Amount.Value.IsNegative() || refund.Amount.Value.IsZero() || refund.Amount.Value.GreaterThan(remaining) {
		return Refund{}, Payment{}, apperrors.InvalidState("refund_amount_exceeds_budget", "refund amount exceeds remaining refundable budget")
	}

	now := time.Now().UTC()
	refund.PaymentID = paymentID
	refund.Reason = reason
	refund.Status = RefundProcessed
	refund.CreatedAt, refund.UpdatedAt = now, now
	m.refunds[refund.ID] = refund

	newTotal := already.Add(refund.Amount.Value)
	if newTotal.GreaterThanOrEqual(p.Amount.Value) {
		p.Status = PaymentRefunded
	} else {
		p.Status = PaymentPartialRefunded
	}
	p.UpdatedAt = now
	m.payments[paymentID] = p

	payload := []byte(`{"refund_id":"` + refund.ID + `","payment_id":"` + paymentID + `"}`)
	m.insertOutboxEventsLocked("refund.created", payload)
	m.insertOutboxEventsLocked("refund.processed", payload)

	return refund, p, nil
}

func (m *MemoryStore) MarkRefund(ctx context.Context, id string, newStatus RefundStatus) (Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refunds[id]
	if !ok {
		return Refund{}, apperrors.NotFound("refund_not_found", "refund not found")
	}
	r.Status = newStatus
	r.UpdatedAt = time.Now().UTC()
	m.refunds[id] = r
	return r, nil
}

func (m *MemoryStore) GetRefundsForPayment(ctx context.Context, paymentID string) ([]Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Refund
	for _, r := range m.refunds {
		if r.PaymentID == paymentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) SumActiveRefunds(ctx context.Context, paymentID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sumActiveRefundsLockedDecimal(paymentID).StringFixed(2), nil
}

func (m *MemoryStore) sumActiveRefundsLockedDecimal(paymentID string) decimal.Decimal {
	total := decimal.Zero
	for _, r := range m.refunds {
		if r.PaymentID != paymentID {
			continue
		}
		if r.Status == RefundPending || r.Status == RefundProcessed {
			total = total.Add(r.Amount.Value)
		}
	}
	return total
}

func (m *MemoryStore) CreateSubscription(ctx context.Context, sub WebhookSubscription) (WebhookSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	sub.CreatedAt, sub.UpdatedAt = now, now
	m.subscriptions[sub.ID] = sub
	return sub, nil
}

func (m *MemoryStore) GetSubscription(ctx context.Context, id string) (WebhookSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subscriptions[id]
	if !ok {
		return WebhookSubscription{}, apperrors.NotFound("subscription_not_found", "webhook subscription not found")
	}
	return sub, nil
}

func (m *MemoryStore) ListSubscriptions(ctx context.Context) ([]WebhookSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WebhookSubscription, 0, len(m.subscriptions))
	for _, s := range m.subscriptions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) UpdateSubscription(ctx context.Context, id string, patch SubscriptionPatch) (WebhookSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subscriptions[id]
	if !ok {
		return WebhookSubscription{}, apperrors.NotFound("subscription_not_found", "webhook subscription not found")
	}
	if patch.URL != nil {
		sub.URL = *patch.URL
	}
	if patch.Events != nil {
		sub.Events = dedupe(patch.Events)
	}
	if patch.Active != nil {
		sub.Active = *patch.Active
	}
	sub.UpdatedAt = time.Now().UTC()
	m.subscriptions[id] = sub
	return sub, nil
}

func (m *MemoryStore) DeleteSubscription(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscriptions[id]; !ok {
		return apperrors.NotFound("subscription_not_found", "webhook subscription not found")
	}
	delete(m.subscriptions, id)
	for eid, ev := range m.events {
		if ev.WebhookID == id {
			delete(m.events, eid)
		}
	}
	return nil
}

func (m *MemoryStore) InsertOutboxEvents(ctx context.Context, eventType string, payload []byte) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertOutboxEventsLocked(eventType, payload), nil
}

func (m *MemoryStore) insertOutboxEventsLocked(eventType string, payload []byte) []string {
	var ids []string
	for _, sub := range m.subscriptions {
		if !sub.ListensFor(eventType) {
			continue
		}
		id := idgen.Event()
		now := time.Now().UTC()
		m.events[id] = WebhookEvent{
			ID:         id,
			WebhookID:  sub.ID,
			EventType:  eventType,
			Payload:    payload,
			Status:     EventPending,
			MaxRetries: defaultMaxRetries,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		ids = append(ids, id)
	}
	return ids
}

func (m *MemoryStore) ClaimDueEvents(ctx context.Context, now time.Time, limit int) ([]WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []WebhookEvent
	for _, ev := range m.events {
		if ev.Status != EventPending {
			continue
		}
		if ev.NextRetry != nil && ev.NextRetry.After(now) {
			continue
		}
		due = append(due, ev)
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextRetry == nil && due[j].NextRetry == nil {
			return due[i].CreatedAt.Before(due[j].CreatedAt)
		}
		if due[i].NextRetry == nil {
			return true
		}
		if due[j].NextRetry == nil {
			return false
		}
		return due[i].NextRetry.Before(*due[j].NextRetry)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *MemoryStore) GetEvent(ctx context.Context, id string) (WebhookEvent, WebhookSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return WebhookEvent{}, WebhookSubscription{}, apperrors.NotFound("event_not_found", "webhook event not found")
	}
	sub := m.subscriptions[ev.WebhookID]
	return ev, sub, nil
}

func (m *MemoryStore) GetEventsForSubscription(ctx context.Context, subscriptionID string, filter EventListFilter) ([]WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []WebhookEvent
	for _, ev := range m.events {
		if ev.WebhookID != subscriptionID {
			continue
		}
		if filter.Status != "" && string(ev.Status) != filter.Status {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if filter.Offset >= len(out) {
		return nil, nil
	}
	end := filter.Offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[filter.Offset:end], nil
}

func (m *MemoryStore) RecordEventAttempt(ctx context.Context, eventID string, outcome AttemptOutcome) (WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[eventID]
	if !ok {
		return WebhookEvent{}, apperrors.NotFound("event_not_found", "webhook event not found")
	}
	if ev.Status != EventPending {
		return ev, nil
	}

	now := time.Now().UTC()
	ev.UpdatedAt = now
	if outcome.Success {
		ev.Status = EventCompleted
	} else {
		ev.RetryCount++
		ev.LastError = outcome.LastError
		if outcome.Permanent || ev.RetryCount >= ev.MaxRetries {
			ev.Status = EventFailed
			ev.NextRetry = nil
		} else {
			nr := outcome.NextRetry
			ev.NextRetry = &nr
		}
	}
	m.events[eventID] = ev
	return ev, nil
}

func (m *MemoryStore) LookupIdempotent(ctx context.Context, key string) (IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.idempotency[key]
	if !ok {
		return IdempotencyRecord{}, apperrors.NotFound("idempotency_record_not_found", "no recorded response for this idempotency key")
	}
	if rec.Expired(time.Now().UTC()) {
		return IdempotencyRecord{}, apperrors.NotFound("idempotency_record_expired", "idempotency record has expired")
	}
	return rec, nil
}

func (m *MemoryStore) PurgeExpiredIdempotencyRecords(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for k, rec := range m.idempotency {
		if rec.ExpiresAt.Before(now) {
			delete(m.idempotency, k)
			count++
		}
	}
	return count, nil
}
