// Package testsupport holds the deterministic overrides the gateway applies
// when running with TEST_MODE enabled: a fixed payment outcome, a fixed
// processing delay, and a compressed webhook retry schedule so integration
// tests don't wait on minute-scale backoff.
package testsupport

import (
	"math/rand"
	"time"

	"github.com/lumenpay/gateway/internal/config"
)

// Outcome decides whether a simulated payment should succeed, honoring
// TEST_MODE's forced outcome when enabled and falling back to the
// configured success rate otherwise.
func Outcome(cfg config.PaymentConfig) bool {
	if cfg.TestMode {
		return cfg.TestPaymentSuccess
	}
	return rand.Float64() < cfg.SuccessRate
}

// ProcessingDelay returns how long the processor should simulate work for,
// honoring TEST_MODE's fixed delay when enabled and otherwise picking a
// random duration within the configured range.
func ProcessingDelay(cfg config.PaymentConfig) time.Duration {
	if cfg.TestMode {
		return cfg.TestProcessingDelay.Duration
	}
	lo, hi := cfg.ProcessingDelayMin.Duration, cfg.ProcessingDelayMax.Duration
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)))
}

// RetrySchedule returns the backoff duration after the given number of prior
// delivery failures (retryCount). The nth retry (n = retryCount+1) backs off
// 2^n minutes in production; RetryIntervalsTest compresses that to 2^n
// seconds so retry-exhaustion tests run in seconds instead of hours.
func RetrySchedule(cfg config.WebhookConfig, retryCount int) time.Duration {
	base := time.Minute
	if cfg.RetryIntervalsTest {
		base = time.Second
	}
	attempt := retryCount + 1
	return time.Duration(1<<uint(attempt)) * base
}

// Jitter applies up to +/-10% random jitter to a backoff duration, so that a
// burst of events failing at the same instant don't all retry in lockstep.
func Jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	spread := float64(d) * 0.10
	offset := (rand.Float64()*2 - 1) * spread
	return d + time.Duration(offset)
}
