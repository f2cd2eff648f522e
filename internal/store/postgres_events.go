package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/lumenpay/gateway/internal/apperrors"
	"github.com/lumenpay/gateway/internal/idgen"
)

const defaultMaxRetries = 5

// insertOutboxEventsTx inserts one pending WebhookEvent row per active
// subscription listening for eventType, using tx so the insert shares the
// caller's transaction with its triggering state change.
func (s *PostgresStore) insertOutboxEventsTx(ctx context.Context, tx *sql.Tx, eventType string, payload []byte) ([]string, error) {
	query := fmt.Sprintf(`SELECT id, url, events, active, secret, created_at, updated_at FROM %s WHERE active = true`, s.subscriptionsTable)
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Transient("db_query_failed", "failed to list active subscriptions", err)
	}

	var targets []WebhookSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			rows.Close()
			return nil, apperrors.Transient("db_scan_failed", "failed to scan subscription", err)
		}
		if sub.ListensFor(eventType) {
			targets = append(targets, sub)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, apperrors.Transient("db_query_failed", "failed iterating subscriptions", err)
	}
	rows.Close()

	insert := fmt.Sprintf(`
		INSERT INTO %s (id, webhook_id, event_type, payload, status, retry_count, max_retries, next_retry, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, '', $8, $8)
	`, s.eventsTable)

	now := time.Now().UTC()
	ids := make([]string, 0, len(targets))
	for _, sub := range targets {
		id := idgen.Event()
		if _, err := tx.ExecContext(ctx, insert, id, sub.ID, eventType, []byte(payload), EventPending, 0, defaultMaxRetries, now); err != nil {
			return nil, apperrors.Transient("db_insert_failed", "failed to insert outbox event", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// InsertOutboxEvents inserts outbox events in a dedicated transaction. Use
// only when there is no existing state mutation to couple the insert to;
// CreateRefund and CompletePaymentOutcome use insertOutboxEventsTx within
// their own transactions instead.
func (s *PostgresStore) InsertOutboxEvents(ctx context.Context, eventType string, payload []byte) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Transient("db_begin_failed", "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids, err := s.insertOutboxEventsTx(ctx, tx, eventType, payload)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Transient("db_commit_failed", "failed to commit transaction", err)
	}
	return ids, nil
}

func (s *PostgresStore) CompletePaymentOutcome(ctx context.Context, paymentID string, success bool, eventPayload []byte) (Payment, []string, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Payment{}, nil, false, apperrors.Transient("db_begin_failed", "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`
		SELECT id, COALESCE(idempotency_key, ''), amount, currency, status, customer_email, customer_name, description, payment_method, metadata, created_at, updated_at
		FROM %s WHERE id = $1 FOR UPDATE
	`, s.paymentsTable)
	payment, err := scanPayment(tx.QueryRowContext(ctx, query, paymentID))
	if err == sql.ErrNoRows {
		return Payment{}, nil, false, apperrors.NotFound("payment_not_found", "payment not found")
	}
	if err != nil {
		return Payment{}, nil, false, apperrors.Transient("db_query_failed", "failed to load payment", err)
	}

	if payment.Status != PaymentPending {
		// Another worker already completed this job; redelivery is a no-op.
		return payment, nil, false, nil
	}

	newStatus := PaymentCompleted
	eventType := "payment.completed"
	if !success {
		newStatus = PaymentFailed
		eventType = "payment.failed"
	}

	now := time.Now().UTC()
	update := fmt.Sprintf(`UPDATE %s SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`, s.paymentsTable)
	result, err := tx.ExecContext(ctx, update, newStatus, now, paymentID, PaymentPending)
	if err != nil {
		return Payment{}, nil, false, apperrors.Transient("db_update_failed", "failed to update payment status", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return Payment{}, nil, false, apperrors.Transient("db_rows_affected_failed", "failed to confirm payment update", err)
	}
	if rows == 0 {
		return payment, nil, false, nil
	}
	payment.Status = newStatus
	payment.UpdatedAt = now

	eventIDs, err := s.insertOutboxEventsTx(ctx, tx, eventType, eventPayload)
	if err != nil {
		return Payment{}, nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return Payment{}, nil, false, apperrors.Transient("db_commit_failed", "failed to commit transaction", err)
	}
	return payment, eventIDs, true, nil
}

func (s *PostgresStore) ClaimDueEvents(ctx context.Context, now time.Time, limit int) ([]WebhookEvent, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Transient("db_begin_failed", "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`
		SELECT id, webhook_id, event_type, payload, status, retry_count, max_retries, next_retry, last_error, created_at, updated_at
		FROM %s
		WHERE status = 'pending' AND (next_retry IS NULL OR next_retry <= $1)
		ORDER BY next_retry ASC NULLS FIRST, created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, s.eventsTable)
	rows, err := tx.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, apperrors.Transient("db_query_failed", "failed to claim due events", err)
	}

	var claimed []WebhookEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			rows.Close()
			return nil, apperrors.Transient("db_scan_failed", "failed to scan webhook event", err)
		}
		claimed = append(claimed, ev)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, apperrors.Transient("db_query_failed", "failed iterating claimed events", err)
	}
	rows.Close()

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Transient("db_commit_failed", "failed to commit transaction", err)
	}
	return claimed, nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id string) (WebhookEvent, WebhookSubscription, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT e.id, e.webhook_id, e.event_type, e.payload, e.status, e.retry_count, e.max_retries, e.next_retry, e.last_error, e.created_at, e.updated_at,
		       s.id, s.url, s.events, s.active, s.secret, s.created_at, s.updated_at
		FROM %s e JOIN %s s ON s.id = e.webhook_id
		WHERE e.id = $1
	`, s.eventsTable, s.subscriptionsTable)

	var ev WebhookEvent
	var sub WebhookSubscription
	var payload []byte
	var nextRetry sql.NullTime
	var events pq.StringArray

	row := s.db.QueryRowContext(ctx, query, id)
	err := row.Scan(
		&ev.ID, &ev.WebhookID, &ev.EventType, &payload, &ev.Status, &ev.RetryCount, &ev.MaxRetries, &nextRetry, &ev.LastError, &ev.CreatedAt, &ev.UpdatedAt,
		&sub.ID, &sub.URL, &events, &sub.Active, &sub.Secret, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return WebhookEvent{}, WebhookSubscription{}, apperrors.NotFound("event_not_found", "webhook event not found")
	}
	if err != nil {
		return WebhookEvent{}, WebhookSubscription{}, apperrors.Transient("db_query_failed", "failed to load webhook event", err)
	}
	ev.Payload = json.RawMessage(payload)
	if nextRetry.Valid {
		t := nextRetry.Time
		ev.NextRetry = &t
	}
	sub.Events = []string(events)
	return ev, sub, nil
}

func (s *PostgresStore) GetEventsForSubscription(ctx context.Context, subscriptionID string, filter EventListFilter) ([]WebhookEvent, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT id, webhook_id, event_type, payload, status, retry_count, max_retries, next_retry, last_error, created_at, updated_at
		FROM %s WHERE webhook_id = $1
	`, s.eventsTable)
	args := []interface{}{subscriptionID}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Transient("db_query_failed", "failed to list webhook events", err)
	}
	defer rows.Close()

	var out []WebhookEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, apperrors.Transient("db_scan_failed", "failed to scan webhook event", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecordEventAttempt(ctx context.Context, eventID string, outcome AttemptOutcome) (WebhookEvent, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return WebhookEvent{}, apperrors.Transient("db_begin_failed", "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`
		SELECT id, webhook_id, event_type, payload, status, retry_count, max_retries, next_retry, last_error, created_at, updated_at
		FROM %s WHERE id = $1 FOR UPDATE
	`, s.eventsTable)
	ev, err := scanEvent(tx.QueryRowContext(ctx, query, eventID))
	if err == sql.ErrNoRows {
		return WebhookEvent{}, apperrors.NotFound("event_not_found", "webhook event not found")
	}
	if err != nil {
		return WebhookEvent{}, apperrors.Transient("db_query_failed", "failed to load webhook event", err)
	}

	if ev.Status != EventPending {
		return ev, nil
	}

	now := time.Now().UTC()
	var update string
	var args []interface{}

	if outcome.Success {
		ev.Status = EventCompleted
		ev.UpdatedAt = now
		update = fmt.Sprintf(`UPDATE %s SET status = $1, updated_at = $2 WHERE id = $3`, s.eventsTable)
		args = []interface{}{ev.Status, now, eventID}
	} else {
		ev.RetryCount++
		ev.LastError = outcome.LastError
		ev.UpdatedAt = now
		if outcome.Permanent || ev.RetryCount >= ev.MaxRetries {
			ev.Status = EventFailed
			ev.NextRetry = nil
			update = fmt.Sprintf(`UPDATE %s SET status = $1, retry_count = $2, last_error = $3, next_retry = NULL, updated_at = $4 WHERE id = $5`, s.eventsTable)
			args = []interface{}{ev.Status, ev.RetryCount, ev.LastError, now, eventID}
		} else {
			ev.NextRetry = &outcome.NextRetry
			update = fmt.Sprintf(`UPDATE %s SET retry_count = $1, last_error = $2, next_retry = $3, updated_at = $4 WHERE id = $5`, s.eventsTable)
			args = []interface{}{ev.RetryCount, ev.LastError, outcome.NextRetry, now, eventID}
		}
	}

	if _, err := tx.ExecContext(ctx, update, args...); err != nil {
		return WebhookEvent{}, apperrors.Transient("db_update_failed", "failed to record event attempt", err)
	}
	if err := tx.Commit(); err != nil {
		return WebhookEvent{}, apperrors.Transient("db_commit_failed", "failed to commit transaction", err)
	}
	return ev, nil
}

func scanEvent(row rowScanner) (WebhookEvent, error) {
	var ev WebhookEvent
	var payload []byte
	var nextRetry sql.NullTime
	if err := row.Scan(&ev.ID, &ev.WebhookID, &ev.EventType, &payload, &ev.Status, &ev.RetryCount, &ev.MaxRetries, &nextRetry, &ev.LastError, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
		return WebhookEvent{}, err
	}
	ev.Payload = json.RawMessage(payload)
	if nextRetry.Valid {
		t := nextRetry.Time
		ev.NextRetry = &t
	}
	return ev, nil
}
