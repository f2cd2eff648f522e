package intake

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumenpay/gateway/internal/apperrors"
	"github.com/lumenpay/gateway/internal/idgen"
	"github.com/lumenpay/gateway/internal/money"
	"github.com/lumenpay/gateway/internal/store"
)

const defaultCurrency = "USD"

// CreatePayment handles POST /payments.
func (h *Handlers) CreatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idempotencyKey := r.Header.Get(idempotencyKeyHeader)

	if idempotencyKey != "" {
		if rec, err := h.store.LookupIdempotent(ctx, idempotencyKey); err == nil {
			w.Header().Set("X-Idempotency-Replay", "true")
			writeJSON(w, http.StatusOK, json.RawMessage(rec.Response))
			return
		} else if !apperrors.IsKind(err, apperrors.KindNotFound) {
			writeError(w, err)
			return
		}
	}

	var req createPaymentRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	amount, err := money.New(req.Amount, currency)
	if err != nil {
		writeError(w, err)
		return
	}
	if amount.IsZero() {
		writeError(w, apperrors.Validation("invalid_amount", "amount must be greater than zero"))
		return
	}
	if req.CustomerEmail == "" {
		writeError(w, apperrors.Validation("missing_customer_email", "customer_email is required"))
		return
	}

	payment := store.Payment{
		ID:            idgen.Payment(),
		Amount:        amount,
		Status:        store.PaymentPending,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		Description:   req.Description,
		PaymentMethod: req.PaymentMethod,
		Metadata:      req.Metadata,
	}

	created, err := h.store.CreatePayment(ctx, store.CreatePaymentInput{Payment: payment, IdempotencyKey: idempotencyKey})
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindDuplicateKey) {
			h.replayDuplicatePayment(w, r, idempotencyKey)
			return
		}
		writeError(w, err)
		return
	}

	resp := newPaymentResponse(created)
	body, err := json.Marshal(resp)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal payment response")
		writeError(w, apperrors.Fatal("marshal_failed", "failed to compose payment response", err))
		return
	}
	if idempotencyKey != "" {
		if err := h.store.SaveIdempotentResponse(ctx, idempotencyKey, body, h.idempotency.TTL()); err != nil {
			h.logger.Error().Err(err).Str("payment_id", created.ID).Msg("failed to persist idempotent response")
		}
	}

	if _, err := h.queue.EnqueueProcessPayment(created.ID); err != nil {
		h.logger.Error().Err(err).Str("payment_id", created.ID).Msg("failed to enqueue payment for processing")
		writeError(w, apperrors.Transient("enqueue_failed", "payment created but could not be scheduled for processing", err))
		return
	}

	if h.metrics != nil {
		h.metrics.ObservePaymentIntake(payment.PaymentMethod, payment.Amount.Currency, amountFloat(payment.Amount))
	}

	writeJSON(w, http.StatusCreated, json.RawMessage(body))
}

// replayDuplicatePayment re-reads the payment bound to idempotencyKey and
// returns the short "already exists" acknowledgement per the create-payment
// duplicate-key contract.
func (h *Handlers) replayDuplicatePayment(w http.ResponseWriter, r *http.Request, idempotencyKey string) {
	rec, err := h.store.LookupIdempotent(r.Context(), idempotencyKey)
	if err != nil {
		writeError(w, apperrors.Fatal("idempotency_lookup_failed", "payment already exists but its record could not be re-read", err))
		return
	}
	payment, err := h.store.GetPayment(r.Context(), rec.PaymentID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := newPaymentResponse(payment)
	resp.Message = "Payment already exists"
	writeJSON(w, http.StatusOK, resp)
}

// GetPayment handles GET /payments/{id}.
func (h *Handlers) GetPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	payment, err := h.store.GetPayment(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	refunds, err := h.store.GetRefundsForPayment(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := newPaymentResponse(payment)
	for _, rf := range refunds {
		resp.Refunds = append(resp.Refunds, newRefundResponse(rf))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateRefund handles POST /payments/{id}/refund.
func (h *Handlers) CreateRefund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paymentID := chi.URLParam(r, "id")
	idempotencyKey := r.Header.Get(idempotencyKeyHeader)

	if idempotencyKey != "" {
		if rec, err := h.store.LookupIdempotent(ctx, idempotencyKey); err == nil {
			writeJSON(w, http.StatusOK, json.RawMessage(rec.Response))
			return
		} else if !apperrors.IsKind(err, apperrors.KindNotFound) {
			writeError(w, err)
			return
		}
	}

	var req createRefundRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}

	payment, err := h.store.GetPayment(ctx, paymentID)
	if err != nil {
		writeError(w, err)
		return
	}

	var refundAmount money.Amount
	if req.Amount != nil {
		refundAmount, err = money.New(*req.Amount, payment.Amount.Currency)
		if err != nil {
			writeError(w, err)
			return
		}
	} else {
		sum, err := h.store.SumActiveRefunds(ctx, paymentID)
		if err != nil {
			writeError(w, err)
			return
		}
		alreadyRefunded, err := money.New(sum, payment.Amount.Currency)
		if err != nil {
			writeError(w, err)
			return
		}
		refundAmount = payment.Amount.Sub(alreadyRefunded)
	}
	if refundAmount.IsZero() || refundAmount.Value.IsNegative() {
		writeError(w, apperrors.Validation("invalid_refund_amount", "refund amount must be greater than zero"))
		return
	}

	if idempotencyKey != "" {
		if err := h.store.CreateIdempotencyPlaceholder(ctx, idempotencyKey, paymentID, h.idempotency.TTL()); err != nil {
			if apperrors.IsKind(err, apperrors.KindDuplicateKey) {
				writeError(w, apperrors.Transient("idempotency_race", "a refund with this idempotency key is already in flight", err))
				return
			}
			writeError(w, err)
			return
		}
	}

	refund := store.Refund{ID: idgen.Refund(), Amount: refundAmount}
	created, _, err := h.store.CreateRefund(ctx, paymentID, refund, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := newRefundResponse(created)
	body, err := json.Marshal(resp)
	if err != nil {
		writeError(w, apperrors.Fatal("marshal_failed", "failed to compose refund response", err))
		return
	}
	if idempotencyKey != "" {
		if err := h.store.SaveIdempotentResponse(ctx, idempotencyKey, body, h.idempotency.TTL()); err != nil {
			h.logger.Error().Err(err).Str("refund_id", created.ID).Msg("failed to persist idempotent response")
		}
	}

	if h.metrics != nil {
		h.metrics.ObserveRefund(string(created.Status), created.Amount.Currency, amountFloat(created.Amount))
	}

	writeJSON(w, http.StatusCreated, json.RawMessage(body))
}

func amountFloat(a money.Amount) float64 {
	f, _ := a.Value.Float64()
	return f
}
