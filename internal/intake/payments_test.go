package intake

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenpay/gateway/internal/config"
	"github.com/lumenpay/gateway/internal/queue"
	"github.com/lumenpay/gateway/internal/store"
)

type fakeEnqueuer struct {
	paymentIDs []string
	fail       bool
}

func (f *fakeEnqueuer) EnqueueProcessPayment(paymentID string) (*asynq.TaskInfo, error) {
	if f.fail {
		return nil, assert.AnError
	}
	f.paymentIDs = append(f.paymentIDs, paymentID)
	return &asynq.TaskInfo{}, nil
}

type fakeInspector struct {
	statuses []queue.QueueStatus
}

func (f *fakeInspector) Status() ([]queue.QueueStatus, error) {
	return f.statuses, nil
}

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(ctx context.Context) error {
	return f.err
}

func newTestHandlers(t *testing.T, s store.Store, q Enqueuer) *Handlers {
	t.Helper()
	return New(s, q, &fakeInspector{}, fakePinger{}, config.IdempotencyConfig{TTLHours: 24}, nil, zerolog.Nop())
}

func newTestRouter(h *Handlers) chi.Router {
	r := chi.NewRouter()
	r.Post("/payments", h.CreatePayment)
	r.Get("/payments/{id}", h.GetPayment)
	r.Post("/payments/{id}/refund", h.CreateRefund)
	return r
}

func doJSON(t *testing.T, router chi.Router, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreatePaymentSucceedsAndEnqueues(t *testing.T) {
	s := store.NewMemoryStore()
	fake := &fakeEnqueuer{}
	h := newTestHandlers(t, s, fake)
	router := newTestRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/payments",
		`{"amount":"10.00","currency":"USD","customer_email":"a@example.com"}`, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp paymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, []string{resp.ID}, fake.paymentIDs)
}

func TestCreatePaymentRejectsZeroAmount(t *testing.T) {
	s := store.NewMemoryStore()
	h := newTestHandlers(t, s, &fakeEnqueuer{})
	router := newTestRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/payments",
		`{"amount":"0","currency":"USD","customer_email":"a@example.com"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePaymentIdempotentReplay(t *testing.T) {
	s := store.NewMemoryStore()
	fake := &fakeEnqueuer{}
	h := newTestHandlers(t, s, fake)
	router := newTestRouter(h)

	headers := map[string]string{"Idempotency-Key": "key-1"}
	body := `{"amount":"25.00","currency":"USD","customer_email":"a@example.com"}`

	first := doJSON(t, router, http.MethodPost, "/payments", body, headers)
	require.Equal(t, http.StatusCreated, first.Code)

	second := doJSON(t, router, http.MethodPost, "/payments", body, headers)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Replay"))

	var firstResp, secondResp paymentResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstResp))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondResp))
	assert.Equal(t, firstResp.ID, secondResp.ID)
	assert.Len(t, fake.paymentIDs, 1)
}

func TestGetPaymentIncludesRefunds(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	h := newTestHandlers(t, s, &fakeEnqueuer{})
	router := newTestRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/payments",
		`{"amount":"50.00","currency":"USD","customer_email":"a@example.com"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created paymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	payment, err := s.GetPayment(ctx, created.ID)
	require.NoError(t, err)
	_, _, _, err = s.CompletePaymentOutcome(ctx, payment.ID, true, []byte(`{}`))
	require.NoError(t, err)

	refundRec := doJSON(t, router, http.MethodPost, "/payments/"+created.ID+"/refund",
		`{"amount":"20.00","reason":"customer request"}`, nil)
	require.Equal(t, http.StatusCreated, refundRec.Code)

	getRec := doJSON(t, router, http.MethodGet, "/payments/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, getRec.Code)
	var full paymentResponse
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &full))
	require.Len(t, full.Refunds, 1)
	assert.Equal(t, "20.00", full.Refunds[0].Amount)
}

func TestCreateRefundDefaultsToRemainingBalance(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	h := newTestHandlers(t, s, &fakeEnqueuer{})
	router := newTestRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/payments",
		`{"amount":"100.00","currency":"USD","customer_email":"a@example.com"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created paymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	payment, err := s.GetPayment(ctx, created.ID)
	require.NoError(t, err)
	_, _, _, err = s.CompletePaymentOutcome(ctx, payment.ID, true, []byte(`{}`))
	require.NoError(t, err)

	refundRec := doJSON(t, router, http.MethodPost, "/payments/"+created.ID+"/refund", `{}`, nil)
	require.Equal(t, http.StatusCreated, refundRec.Code)
	var refund refundResponse
	require.NoError(t, json.Unmarshal(refundRec.Body.Bytes(), &refund))
	assert.Equal(t, "100.00", refund.Amount)
}

func TestCreateRefundIdempotentReplay(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	h := newTestHandlers(t, s, &fakeEnqueuer{})
	router := newTestRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/payments",
		`{"amount":"30.00","currency":"USD","customer_email":"a@example.com"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created paymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	payment, err := s.GetPayment(ctx, created.ID)
	require.NoError(t, err)
	_, _, _, err = s.CompletePaymentOutcome(ctx, payment.ID, true, []byte(`{}`))
	require.NoError(t, err)

	headers := map[string]string{"Idempotency-Key": "refund-key-1"}
	first := doJSON(t, router, http.MethodPost, "/payments/"+created.ID+"/refund", `{"amount":"10.00"}`, headers)
	require.Equal(t, http.StatusCreated, first.Code)

	second := doJSON(t, router, http.MethodPost, "/payments/"+created.ID+"/refund", `{"amount":"10.00"}`, headers)
	require.Equal(t, http.StatusOK, second.Code)

	var firstResp, secondResp refundResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstResp))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondResp))
	assert.Equal(t, firstResp.ID, secondResp.ID)
}

func TestCreatePaymentEnqueueFailureReturnsTransientError(t *testing.T) {
	s := store.NewMemoryStore()
	h := newTestHandlers(t, s, &fakeEnqueuer{fail: true})
	router := newTestRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/payments",
		`{"amount":"10.00","currency":"USD","customer_email":"a@example.com"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
