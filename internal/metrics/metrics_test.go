package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsInitialization(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m == nil {
		t.Fatal("metrics collector should not be nil")
	}
	if m.PaymentsTotal == nil {
		t.Error("PaymentsTotal should be initialized")
	}
	if m.WebhooksTotal == nil {
		t.Error("WebhooksTotal should be initialized")
	}
	if m.DBQueryDuration == nil {
		t.Error("DBQueryDuration should be initialized")
	}
}

func TestObservePaymentIntake(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObservePaymentIntake("card", "USD", 100)

	count := promtest.ToFloat64(m.PaymentsTotal.WithLabelValues("card"))
	if count != 1 {
		t.Errorf("expected 1 payment, got %.0f", count)
	}

	amount := promtest.ToFloat64(m.PaymentAmountTotal.WithLabelValues("USD"))
	if amount != 100 {
		t.Errorf("expected payment amount 100, got %.0f", amount)
	}
}

func TestObservePaymentOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObservePaymentOutcome("card", true, 1*time.Second)
	successCount := promtest.ToFloat64(m.PaymentsSuccessTotal.WithLabelValues("card"))
	if successCount != 1 {
		t.Errorf("expected 1 successful payment, got %.0f", successCount)
	}

	m.ObservePaymentOutcome("card", false, 1*time.Second)
	failCount := promtest.ToFloat64(m.PaymentsFailedTotal.WithLabelValues("card"))
	if failCount != 1 {
		t.Errorf("expected 1 failed payment, got %.0f", failCount)
	}
}

func TestObserveRefund(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveRefund("processed", "USD", 40)

	count := promtest.ToFloat64(m.RefundsTotal.WithLabelValues("processed"))
	if count != 1 {
		t.Errorf("expected 1 refund, got %.0f", count)
	}

	amount := promtest.ToFloat64(m.RefundAmountTotal.WithLabelValues("USD"))
	if amount != 40 {
		t.Errorf("expected refund amount 40, got %.0f", amount)
	}
}

func TestObserveWebhookAttempt(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveWebhookAttempt("payment.completed", true, 500*time.Millisecond, 0)
	delivered := promtest.ToFloat64(m.WebhooksTotal.WithLabelValues("payment.completed", "delivered"))
	if delivered != 1 {
		t.Errorf("expected 1 delivered webhook, got %.0f", delivered)
	}

	m.ObserveWebhookAttempt("payment.failed", false, 2*time.Second, 3)
	failed := promtest.ToFloat64(m.WebhooksTotal.WithLabelValues("payment.failed", "failed"))
	if failed != 1 {
		t.Errorf("expected 1 failed webhook, got %.0f", failed)
	}
	retries := promtest.ToFloat64(m.WebhookRetriesTotal.WithLabelValues("payment.failed"))
	if retries != 1 {
		t.Errorf("expected 1 webhook retry record, got %.0f", retries)
	}
}

func TestObserveWebhookExhausted(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveWebhookExhausted("payment.failed")

	dead := promtest.ToFloat64(m.WebhookDeadTotal.WithLabelValues("payment.failed"))
	if dead != 1 {
		t.Errorf("expected 1 exhausted webhook, got %.0f", dead)
	}
}

func TestObserveRateLimit(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveRateLimit("per_ip")

	hits := promtest.ToFloat64(m.RateLimitHitsTotal.WithLabelValues("per_ip"))
	if hits != 1 {
		t.Errorf("expected 1 rate limit hit, got %.0f", hits)
	}
}

func TestObserveDBQuery(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveDBQuery("create_payment", 50*time.Millisecond)

	if m.DBQueryDuration == nil {
		t.Error("DBQueryDuration should be initialized")
	}
}
