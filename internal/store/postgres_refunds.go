package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumenpay/gateway/internal/apperrors"
	"github.com/lumenpay/gateway/internal/money"
)

func (s *PostgresStore) CreateRefund(ctx context.Context, paymentID string, refund Refund, reason string) (Refund, Payment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Refund{}, Payment{}, apperrors.Transient("db_begin_failed", "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	paymentQuery := fmt.Sprintf(`
		SELECT id, COALESCE(idempotency_key, ''), amount, currency, status, customer_email, customer_name, description, payment_method, metadata, created_at, updated_at
		FROM %s WHERE id = $1 FOR UPDATE
	`, s.paymentsTable)
	payment, err := scanPayment(tx.QueryRowContext(ctx, paymentQuery, paymentID))
	if err == sql.ErrNoRows {
		return Refund{}, Payment{}, apperrors.NotFound("payment_not_found", "payment not found")
	}
	if err != nil {
		return Refund{}, Payment{}, apperrors.Transient("db_query_failed", "failed to load payment", err)
	}

	if payment.Status != PaymentCompleted && payment.Status != PaymentPartialRefunded {
		return Refund{}, Payment{}, apperrors.InvalidState("payment_not_refundable", fmt.Sprintf("payment status %s does not permit refunds", payment.Status))
	}

	sumQuery := fmt.Sprintf(`SELECT COALESCE(SUM(amount), 0) FROM %s WHERE payment_id = $1 AND status IN ('pending', 'processed')`, s.refundsTable)
	var sumStr decimalString
	if err := tx.QueryRowContext(ctx, sumQuery, paymentID).Scan(&sumStr); err != nil {
		return Refund{}, Payment{}, apperrors.Transient("db_query_failed", "failed to sum existing refunds", err)
	}
	alreadyRefunded, err := decimal.NewFromString(string(sumStr))
	if err != nil {
		return Refund{}, Payment{}, apperrors.Fatal("bad_decimal", "corrupt refund sum", err)
	}
	remaining := payment.Amount.Value.Sub(alreadyRefunded)

	if refund.Amount.Value.LessThanOrEqual(decimal.Zero) || refund.Amount.Value.GreaterThan(remaining) {
		return Refund{}, Payment{}, apperrors.InvalidState("refund_amount_exceeds_budget", fmt.Sprintf("refund amount exceeds remaining refundable budget of %s", remaining.StringFixed(2)))
	}

	now := time.Now().UTC()
	refund.PaymentID = paymentID
	refund.Reason = reason
	// Refunds are modeled as synchronous: created already processed, with
	// their outbox events inserted in this same transaction and no background
	// ProcessRefund worker.
	refund.Status = RefundProcessed
	refund.CreatedAt, refund.UpdatedAt = now, now

	insertRefund := fmt.Sprintf(`
		INSERT INTO %s (id, payment_id, amount, currency, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.refundsTable)
	if _, err := tx.ExecContext(ctx, insertRefund, refund.ID, refund.PaymentID, refund.Amount.Value, refund.Amount.Currency, refund.Reason, refund.Status, refund.CreatedAt, refund.UpdatedAt); err != nil {
		return Refund{}, Payment{}, apperrors.Transient("db_insert_failed", "failed to insert refund", err)
	}

	newlyRefunded := alreadyRefunded.Add(refund.Amount.Value)
	var newPaymentStatus PaymentStatus
	if newlyRefunded.GreaterThanOrEqual(payment.Amount.Value) {
		newPaymentStatus = PaymentRefunded
	} else {
		newPaymentStatus = PaymentPartialRefunded
	}

	updatePayment := fmt.Sprintf(`UPDATE %s SET status = $1, updated_at = $2 WHERE id = $3`, s.paymentsTable)
	if _, err := tx.ExecContext(ctx, updatePayment, newPaymentStatus, now, paymentID); err != nil {
		return Refund{}, Payment{}, apperrors.Transient("db_update_failed", "failed to update payment status", err)
	}
	payment.Status = newPaymentStatus
	payment.UpdatedAt = now

	refundPayload := refundEventPayload{
		RefundID:  refund.ID,
		PaymentID: paymentID,
		Amount:    refund.Amount.Value.StringFixed(2),
		Currency:  refund.Amount.Currency,
		Reason:    reason,
	}
	payloadBytes, err := json.Marshal(refundPayload)
	if err != nil {
		return Refund{}, Payment{}, apperrors.Fatal("marshal_failed", "failed to marshal refund event payload", err)
	}
	if _, err := s.insertOutboxEventsTx(ctx, tx, "refund.created", payloadBytes); err != nil {
		return Refund{}, Payment{}, err
	}
	if _, err := s.insertOutboxEventsTx(ctx, tx, "refund.processed", payloadBytes); err != nil {
		return Refund{}, Payment{}, err
	}

	if err := tx.Commit(); err != nil {
		return Refund{}, Payment{}, apperrors.Transient("db_commit_failed", "failed to commit transaction", err)
	}
	return refund, payment, nil
}

type refundEventPayload struct {
	RefundID  string `json:"refund_id"`
	PaymentID string `json:"payment_id"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Reason    string `json:"reason,omitempty"`
}

func (s *PostgresStore) MarkRefund(ctx context.Context, id string, newStatus RefundStatus) (Refund, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	query := fmt.Sprintf(`UPDATE %s SET status = $1, updated_at = $2 WHERE id = $3 RETURNING id, payment_id, amount, currency, reason, status, created_at, updated_at`, s.refundsTable)
	row := s.db.QueryRowContext(ctx, query, newStatus, now, id)
	refund, err := scanRefund(row)
	if err == sql.ErrNoRows {
		return Refund{}, apperrors.NotFound("refund_not_found", "refund not found")
	}
	if err != nil {
		return Refund{}, apperrors.Transient("db_update_failed", "failed to update refund status", err)
	}
	return refund, nil
}

func (s *PostgresStore) GetRefundsForPayment(ctx context.Context, paymentID string) ([]Refund, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT id, payment_id, amount, currency, reason, status, created_at, updated_at
		FROM %s WHERE payment_id = $1 ORDER BY created_at DESC
	`, s.refundsTable)
	rows, err := s.db.QueryContext(ctx, query, paymentID)
	if err != nil {
		return nil, apperrors.Transient("db_query_failed", "failed to list refunds", err)
	}
	defer rows.Close()

	var out []Refund
	for rows.Next() {
		r, err := scanRefund(rows)
		if err != nil {
			return nil, apperrors.Transient("db_scan_failed", "failed to scan refund", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SumActiveRefunds(ctx context.Context, paymentID string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT COALESCE(SUM(amount), 0) FROM %s WHERE payment_id = $1 AND status IN ('pending', 'processed')`, s.refundsTable)
	var sum decimalString
	if err := s.db.QueryRowContext(ctx, query, paymentID).Scan(&sum); err != nil {
		return "", apperrors.Transient("db_query_failed", "failed to sum refunds", err)
	}
	return string(sum), nil
}

func scanRefund(row rowScanner) (Refund, error) {
	var r Refund
	var amount decimalString
	if err := row.Scan(&r.ID, &r.PaymentID, &amount, &r.Amount.Currency, &r.Reason, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return Refund{}, err
	}
	amt, err := money.New(string(amount), r.Amount.Currency)
	if err != nil {
		return Refund{}, err
	}
	r.Amount = amt
	return r, nil
}
