package intake

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lumenpay/gateway/internal/apperrors"
	"github.com/lumenpay/gateway/internal/idgen"
	"github.com/lumenpay/gateway/internal/store"
)

// secretEntropyBytes yields a base64 secret with at least 256 bits of
// entropy (32 raw bytes).
const secretEntropyBytes = 32

func generateWebhookSecret() (string, error) {
	b := make([]byte, secretEntropyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", apperrors.Fatal("secret_generation_failed", "failed to generate webhook secret", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CreateSubscription handles POST /webhooks.
func (h *Handlers) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.URL == "" {
		writeError(w, apperrors.Validation("missing_url", "url is required"))
		return
	}
	if len(req.Events) == 0 {
		writeError(w, apperrors.Validation("missing_events", "events must contain at least one event type"))
		return
	}

	secret, err := generateWebhookSecret()
	if err != nil {
		writeError(w, err)
		return
	}

	sub := store.WebhookSubscription{
		ID:     idgen.Subscription(),
		URL:    req.URL,
		Events: req.Events,
		Active: true,
		Secret: secret,
	}
	created, err := h.store.CreateSubscription(r.Context(), sub)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newSubscriptionResponse(created, true))
}

// ListSubscriptions handles GET /webhooks.
func (h *Handlers) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.store.ListSubscriptions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]subscriptionResponse, 0, len(subs))
	for _, s := range subs {
		out = append(out, newSubscriptionResponse(s, false))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetSubscription handles GET /webhooks/{id}.
func (h *Handlers) GetSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := h.store.GetSubscription(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSubscriptionResponse(sub, false))
}

// UpdateSubscription handles PATCH /webhooks/{id}.
func (h *Handlers) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateSubscriptionRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}

	patch := store.SubscriptionPatch{URL: req.URL, Events: req.Events, Active: req.Active}
	updated, err := h.store.UpdateSubscription(r.Context(), id, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSubscriptionResponse(updated, false))
}

// DeleteSubscription handles DELETE /webhooks/{id}.
func (h *Handlers) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteSubscription(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// GetSubscriptionEvents handles GET /webhooks/{id}/events.
func (h *Handlers) GetSubscriptionEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.GetSubscription(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	filter := store.EventListFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	events, err := h.store.GetEventsForSubscription(r.Context(), id, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, newEventResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
