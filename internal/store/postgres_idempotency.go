package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lumenpay/gateway/internal/apperrors"
)

func (s *PostgresStore) LookupIdempotent(ctx context.Context, key string) (IdempotencyRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT key, payment_id, response, created_at, expires_at FROM %s WHERE key = $1`, s.idempotencyTable)
	var rec IdempotencyRecord
	var response []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&rec.Key, &rec.PaymentID, &response, &rec.CreatedAt, &rec.ExpiresAt)
	if err == sql.ErrNoRows {
		return IdempotencyRecord{}, apperrors.NotFound("idempotency_record_not_found", "no recorded response for this idempotency key")
	}
	if err != nil {
		return IdempotencyRecord{}, apperrors.Transient("db_query_failed", "failed to look up idempotency record", err)
	}
	rec.Response = json.RawMessage(response)

	if rec.Expired(time.Now().UTC()) {
		return IdempotencyRecord{}, apperrors.NotFound("idempotency_record_expired", "idempotency record has expired")
	}
	return rec, nil
}

func (s *PostgresStore) CreateIdempotencyPlaceholder(ctx context.Context, key string, paymentID string, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var paymentIDArg interface{}
	if paymentID != "" {
		paymentIDArg = paymentID
	}
	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO %s (key, payment_id, response, created_at, expires_at) VALUES ($1, $2, $3, $4, $5)`, s.idempotencyTable)
	_, err := s.db.ExecContext(ctx, query, key, paymentIDArg, []byte(`{}`), now, now.Add(ttl))
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.DuplicateKey("idempotency_key_exists", "an idempotency record already exists for this key")
		}
		return apperrors.Transient("db_insert_failed", "failed to reserve idempotency key", err)
	}
	return nil
}

func (s *PostgresStore) PurgeExpiredIdempotencyRecords(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at < $1`, s.idempotencyTable)
	result, err := s.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, apperrors.Transient("db_delete_failed", "failed to purge expired idempotency records", err)
	}
	return result.RowsAffected()
}
