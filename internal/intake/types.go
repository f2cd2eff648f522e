package intake

import (
	"encoding/json"
	"time"

	"github.com/lumenpay/gateway/internal/store"
)

// createPaymentRequest is the POST /payments request body.
type createPaymentRequest struct {
	Amount        string          `json:"amount"`
	Currency      string          `json:"currency"`
	CustomerEmail string          `json:"customer_email"`
	CustomerName  string          `json:"customer_name"`
	Description   string          `json:"description"`
	PaymentMethod string          `json:"payment_method"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// paymentResponse is the canonical JSON representation of a payment,
// returned from POST/GET /payments and recorded verbatim as the idempotent
// replay body.
type paymentResponse struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	Amount        string          `json:"amount"`
	Currency      string          `json:"currency"`
	CustomerEmail string          `json:"customer_email"`
	CustomerName  string          `json:"customer_name,omitempty"`
	Description   string          `json:"description,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	Message       string          `json:"message,omitempty"`
	Refunds       []refundResponse `json:"refunds,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func newPaymentResponse(p store.Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		Status:        string(p.Status),
		Amount:        p.Amount.Value.StringFixed(2),
		Currency:      p.Amount.Currency,
		CustomerEmail: p.CustomerEmail,
		CustomerName:  p.CustomerName,
		Description:   p.Description,
		PaymentMethod: p.PaymentMethod,
		Metadata:      p.Metadata,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// createRefundRequest is the POST /payments/{id}/refund request body.
// Amount is optional; an omitted amount refunds the full remaining budget.
type createRefundRequest struct {
	Amount *string `json:"amount,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

type refundResponse struct {
	ID        string    `json:"id"`
	PaymentID string    `json:"payment_id"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newRefundResponse(r store.Refund) refundResponse {
	return refundResponse{
		ID:        r.ID,
		PaymentID: r.PaymentID,
		Amount:    r.Amount.Value.StringFixed(2),
		Currency:  r.Amount.Currency,
		Status:    string(r.Status),
		Reason:    r.Reason,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// createSubscriptionRequest is the POST /webhooks request body.
type createSubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// subscriptionResponse is the JSON representation of a webhook subscription.
// Secret is populated only on creation.
type subscriptionResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Active    bool      `json:"active"`
	Secret    string    `json:"secret,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newSubscriptionResponse(s store.WebhookSubscription, includeSecret bool) subscriptionResponse {
	resp := subscriptionResponse{
		ID:        s.ID,
		URL:       s.URL,
		Events:    s.Events,
		Active:    s.Active,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if includeSecret {
		resp.Secret = s.Secret
	}
	return resp
}

type updateSubscriptionRequest struct {
	URL    *string  `json:"url,omitempty"`
	Events []string `json:"events,omitempty"`
	Active *bool    `json:"active,omitempty"`
}

type eventResponse struct {
	ID         string          `json:"id"`
	WebhookID  string          `json:"webhook_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	Status     string          `json:"status"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
	LastError  string          `json:"last_error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func newEventResponse(e store.WebhookEvent) eventResponse {
	return eventResponse{
		ID:         e.ID,
		WebhookID:  e.WebhookID,
		EventType:  e.EventType,
		Payload:    e.Payload,
		Status:     string(e.Status),
		RetryCount: e.RetryCount,
		MaxRetries: e.MaxRetries,
		LastError:  e.LastError,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}
