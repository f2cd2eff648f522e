package intake

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenpay/gateway/internal/store"
)

func newWebhookRouter(h *Handlers) chi.Router {
	r := chi.NewRouter()
	r.Post("/webhooks", h.CreateSubscription)
	r.Get("/webhooks", h.ListSubscriptions)
	r.Get("/webhooks/{id}", h.GetSubscription)
	r.Patch("/webhooks/{id}", h.UpdateSubscription)
	r.Delete("/webhooks/{id}", h.DeleteSubscription)
	r.Get("/webhooks/{id}/events", h.GetSubscriptionEvents)
	return r
}

func TestCreateSubscriptionGeneratesSecret(t *testing.T) {
	s := store.NewMemoryStore()
	h := newTestHandlers(t, s, &fakeEnqueuer{})
	router := newWebhookRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/webhooks",
		`{"url":"https://example.com/hook","events":["payment.completed"]}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp subscriptionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Secret)
	assert.True(t, resp.Active)
}

func TestCreateSubscriptionRejectsMissingEvents(t *testing.T) {
	s := store.NewMemoryStore()
	h := newTestHandlers(t, s, &fakeEnqueuer{})
	router := newWebhookRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/webhooks", `{"url":"https://example.com/hook"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSubscriptionsOmitsSecret(t *testing.T) {
	s := store.NewMemoryStore()
	h := newTestHandlers(t, s, &fakeEnqueuer{})
	router := newWebhookRouter(h)

	createRec := doJSON(t, router, http.MethodPost, "/webhooks",
		`{"url":"https://example.com/hook","events":["payment.completed"]}`, nil)
	require.Equal(t, http.StatusCreated, createRec.Code)

	listRec := doJSON(t, router, http.MethodGet, "/webhooks", "", nil)
	require.Equal(t, http.StatusOK, listRec.Code)

	var subs []subscriptionResponse
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &subs))
	require.Len(t, subs, 1)
	assert.Empty(t, subs[0].Secret)
}

func TestUpdateSubscriptionTogglesActive(t *testing.T) {
	s := store.NewMemoryStore()
	h := newTestHandlers(t, s, &fakeEnqueuer{})
	router := newWebhookRouter(h)

	createRec := doJSON(t, router, http.MethodPost, "/webhooks",
		`{"url":"https://example.com/hook","events":["payment.completed"]}`, nil)
	var created subscriptionResponse
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	updateRec := doJSON(t, router, http.MethodPatch, "/webhooks/"+created.ID, `{"active":false}`, nil)
	require.Equal(t, http.StatusOK, updateRec.Code)

	var updated subscriptionResponse
	require.NoError(t, json.Unmarshal(updateRec.Body.Bytes(), &updated))
	assert.False(t, updated.Active)
}

func TestDeleteSubscriptionThenGetEventsNotFound(t *testing.T) {
	s := store.NewMemoryStore()
	h := newTestHandlers(t, s, &fakeEnqueuer{})
	router := newWebhookRouter(h)

	createRec := doJSON(t, router, http.MethodPost, "/webhooks",
		`{"url":"https://example.com/hook","events":["payment.completed"]}`, nil)
	var created subscriptionResponse
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	deleteRec := doJSON(t, router, http.MethodDelete, "/webhooks/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, deleteRec.Code)

	eventsRec := doJSON(t, router, http.MethodGet, "/webhooks/"+created.ID+"/events", "", nil)
	assert.Equal(t, http.StatusNotFound, eventsRec.Code)
}

func TestGetSubscriptionEventsReturnsEmptyList(t *testing.T) {
	s := store.NewMemoryStore()
	h := newTestHandlers(t, s, &fakeEnqueuer{})
	router := newWebhookRouter(h)

	createRec := doJSON(t, router, http.MethodPost, "/webhooks",
		`{"url":"https://example.com/hook","events":["payment.completed"]}`, nil)
	var created subscriptionResponse
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	eventsRec := doJSON(t, router, http.MethodGet, "/webhooks/"+created.ID+"/events", "", nil)
	require.Equal(t, http.StatusOK, eventsRec.Code)

	var events []eventResponse
	require.NoError(t, json.Unmarshal(eventsRec.Body.Bytes(), &events))
	assert.Empty(t, events)
}
