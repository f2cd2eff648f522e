package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenpay/gateway/internal/config"
	"github.com/lumenpay/gateway/internal/intake"
	"github.com/lumenpay/gateway/internal/metrics"
	"github.com/lumenpay/gateway/internal/queue"
	"github.com/lumenpay/gateway/internal/store"
)

type fakeEnqueuer struct{}

func (fakeEnqueuer) EnqueueProcessPayment(paymentID string) (*asynq.TaskInfo, error) {
	return &asynq.TaskInfo{}, nil
}

type fakeInspector struct{}

func (fakeInspector) Status() ([]queue.QueueStatus, error) {
	return []queue.QueueStatus{{Queue: "payments"}, {Queue: "webhooks"}}, nil
}

func newTestServer(t *testing.T) (chi.Router, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Address: ":0"},
		RateLimit: config.RateLimitConfig{
			GlobalEnabled: false,
			PerIPEnabled:  false,
		},
		Idempotency: config.IdempotencyConfig{TTLHours: 24},
	}
	h := intake.New(store.NewMemoryStore(), fakeEnqueuer{}, fakeInspector{}, nil, cfg.Idempotency, metrics.New(prometheus.NewRegistry()), zerolog.Nop())
	router := chi.NewRouter()
	ConfigureRouter(router, cfg, h, nil, zerolog.Nop())
	return router, cfg
}

func TestHealthRouteReachable(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeadersPresent(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestCreatePaymentThroughRouter(t *testing.T) {
	router, _ := newTestServer(t)

	createReq := httptest.NewRequest(http.MethodPost, "/payments",
		strings.NewReader(`{"amount":"12.50","currency":"USD","customer_email":"a@example.com"}`))
	createReq.Header.Set("Content-Type", "application/json")
	createRec := httptest.NewRecorder()
	router.ServeHTTP(createRec, createReq)

	require.Equal(t, http.StatusCreated, createRec.Code)
}

func TestMetricsEndpointServed(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
