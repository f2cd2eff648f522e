package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/lumenpay/gateway/internal/apperrors"
	"github.com/lumenpay/gateway/internal/money"
)

func (s *PostgresStore) CreatePayment(ctx context.Context, in CreatePaymentInput) (Payment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p := in.Payment
	if p.Status == "" {
		p.Status = PaymentPending
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Payment{}, apperrors.Transient("db_begin_failed", "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var idempKey interface{}
	if in.IdempotencyKey != "" {
		idempKey = in.IdempotencyKey
	}

	insertPayment := fmt.Sprintf(`
		INSERT INTO %s (id, idempotency_key, amount, currency, status, customer_email, customer_name, description, payment_method, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, s.paymentsTable)

	_, err = tx.ExecContext(ctx, insertPayment,
		p.ID, idempKey, p.Amount.Value, p.Amount.Currency, p.Status,
		p.CustomerEmail, p.CustomerName, p.Description, p.PaymentMethod,
		nullableJSON(p.Metadata), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Payment{}, apperrors.DuplicateKey("idempotency_key_exists", "a payment already exists for this idempotency key")
		}
		return Payment{}, apperrors.Transient("db_insert_failed", "failed to insert payment", err)
	}

	if in.IdempotencyKey != "" {
		insertIdem := fmt.Sprintf(`
			INSERT INTO %s (key, payment_id, response, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5)
		`, s.idempotencyTable)
		// response is filled in by the caller via SaveIdempotentResponse once
		// the canonical response body is composed; placeholder empty object
		// keeps the row present for the uniqueness guarantee.
		_, err = tx.ExecContext(ctx, insertIdem, in.IdempotencyKey, p.ID, []byte(`{}`), now, now.Add(24*time.Hour))
		if err != nil {
			if isUniqueViolation(err) {
				return Payment{}, apperrors.DuplicateKey("idempotency_key_exists", "a payment already exists for this idempotency key")
			}
			return Payment{}, apperrors.Transient("db_insert_failed", "failed to insert idempotency record", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Payment{}, apperrors.Transient("db_commit_failed", "failed to commit transaction", err)
	}
	return p, nil
}

// SaveIdempotentResponse overwrites the placeholder response body and TTL for
// a record created alongside a payment, once the handler has composed the
// canonical response. The intake handler calls it within the same request,
// after CreatePayment (or CreateRefund) succeeds, since the response body
// depends on the created resource's id.
func (s *PostgresStore) SaveIdempotentResponse(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	query := fmt.Sprintf(`UPDATE %s SET response = $1, created_at = $2, expires_at = $3 WHERE key = $4`, s.idempotencyTable)
	_, err := s.db.ExecContext(ctx, query, response, now, now.Add(ttl), key)
	if err != nil {
		return apperrors.Transient("db_update_failed", "failed to save idempotent response", err)
	}
	return nil
}

func (s *PostgresStore) GetPayment(ctx context.Context, id string) (Payment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT id, COALESCE(idempotency_key, ''), amount, currency, status, customer_email, customer_name, description, payment_method, metadata, created_at, updated_at
		FROM %s WHERE id = $1
	`, s.paymentsTable)

	row := s.db.QueryRowContext(ctx, query, id)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return Payment{}, apperrors.NotFound("payment_not_found", "payment not found")
	}
	if err != nil {
		return Payment{}, apperrors.Transient("db_query_failed", "failed to load payment", err)
	}
	return p, nil
}

func (s *PostgresStore) MarkPayment(ctx context.Context, id string, newStatus PaymentStatus) (Payment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	current, err := s.GetPayment(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	if !CanTransition(current.Status, newStatus) {
		return Payment{}, apperrors.InvalidState("illegal_transition", fmt.Sprintf("cannot transition payment from %s to %s", current.Status, newStatus))
	}

	query := fmt.Sprintf(`UPDATE %s SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`, s.paymentsTable)
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query, newStatus, now, id, current.Status)
	if err != nil {
		return Payment{}, apperrors.Transient("db_update_failed", "failed to update payment status", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return Payment{}, apperrors.Transient("db_rows_affected_failed", "failed to confirm payment update", err)
	}
	if rows == 0 {
		return Payment{}, apperrors.InvalidState("concurrent_transition", "payment status changed concurrently")
	}

	current.Status = newStatus
	current.UpdatedAt = now
	return current, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (Payment, error) {
	var p Payment
	var metadata []byte
	var amount decimalString
	if err := row.Scan(&p.ID, &p.IdempotencyKey, &amount, &p.Amount.Currency, &p.Status,
		&p.CustomerEmail, &p.CustomerName, &p.Description, &p.PaymentMethod,
		&metadata, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Payment{}, err
	}
	amt, err := money.New(string(amount), p.Amount.Currency)
	if err != nil {
		return Payment{}, err
	}
	p.Amount = amt
	if len(metadata) > 0 {
		p.Metadata = json.RawMessage(metadata)
	}
	return p, nil
}

// decimalString scans a NUMERIC column into its raw textual representation.
type decimalString []byte

func (d *decimalString) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		*d = append([]byte(nil), v...)
	case string:
		*d = []byte(v)
	case nil:
		*d = []byte("0")
	default:
		return fmt.Errorf("unsupported scan type for decimalString: %T", src)
	}
	return nil
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return []byte(`{}`)
	}
	return []byte(raw)
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
