package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/lumenpay/gateway/internal/apperrors"
)

func (s *PostgresStore) CreateSubscription(ctx context.Context, sub WebhookSubscription) (WebhookSubscription, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	sub.CreatedAt, sub.UpdatedAt = now, now

	query := fmt.Sprintf(`
		INSERT INTO %s (id, url, events, active, secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.subscriptionsTable)
	_, err := s.db.ExecContext(ctx, query, sub.ID, sub.URL, pq.StringArray(dedupe(sub.Events)), sub.Active, sub.Secret, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return WebhookSubscription{}, apperrors.Transient("db_insert_failed", "failed to insert webhook subscription", err)
	}
	return sub, nil
}

func (s *PostgresStore) GetSubscription(ctx context.Context, id string) (WebhookSubscription, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT id, url, events, active, secret, created_at, updated_at FROM %s WHERE id = $1`, s.subscriptionsTable)
	row := s.db.QueryRowContext(ctx, query, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return WebhookSubscription{}, apperrors.NotFound("subscription_not_found", "webhook subscription not found")
	}
	if err != nil {
		return WebhookSubscription{}, apperrors.Transient("db_query_failed", "failed to load subscription", err)
	}
	return sub, nil
}

func (s *PostgresStore) ListSubscriptions(ctx context.Context) ([]WebhookSubscription, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT id, url, events, active, secret, created_at, updated_at FROM %s ORDER BY created_at DESC`, s.subscriptionsTable)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Transient("db_query_failed", "failed to list subscriptions", err)
	}
	defer rows.Close()

	var out []WebhookSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, apperrors.Transient("db_scan_failed", "failed to scan subscription", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateSubscription(ctx context.Context, id string, patch SubscriptionPatch) (WebhookSubscription, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	existing, err := s.GetSubscription(ctx, id)
	if err != nil {
		return WebhookSubscription{}, err
	}
	if patch.URL != nil {
		existing.URL = *patch.URL
	}
	if patch.Events != nil {
		existing.Events = dedupe(patch.Events)
	}
	if patch.Active != nil {
		existing.Active = *patch.Active
	}
	existing.UpdatedAt = time.Now().UTC()

	query := fmt.Sprintf(`UPDATE %s SET url = $1, events = $2, active = $3, updated_at = $4 WHERE id = $5`, s.subscriptionsTable)
	if _, err := s.db.ExecContext(ctx, query, existing.URL, pq.StringArray(existing.Events), existing.Active, existing.UpdatedAt, id); err != nil {
		return WebhookSubscription{}, apperrors.Transient("db_update_failed", "failed to update subscription", err)
	}
	return existing, nil
}

func (s *PostgresStore) DeleteSubscription(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.subscriptionsTable)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return apperrors.Transient("db_delete_failed", "failed to delete subscription", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Transient("db_rows_affected_failed", "failed to confirm deletion", err)
	}
	if rows == 0 {
		return apperrors.NotFound("subscription_not_found", "webhook subscription not found")
	}
	return nil
}

func scanSubscription(row rowScanner) (WebhookSubscription, error) {
	var sub WebhookSubscription
	var events pq.StringArray
	if err := row.Scan(&sub.ID, &sub.URL, &events, &sub.Active, &sub.Secret, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return WebhookSubscription{}, err
	}
	sub.Events = []string(events)
	return sub, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
