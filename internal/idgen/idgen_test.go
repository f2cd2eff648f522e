package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewHasPrefix(t *testing.T) {
	id := New("pay")
	assert.True(t, strings.HasPrefix(id, "pay_"))
}

func TestNewIsUnique(t *testing.T) {
	assert.NotEqual(t, New("pay"), New("pay"))
}

func TestPaymentRefundSubscriptionEventPrefixes(t *testing.T) {
	assert.True(t, strings.HasPrefix(Payment(), PrefixPayment+"_"))
	assert.True(t, strings.HasPrefix(Refund(), PrefixRefund+"_"))
	assert.True(t, strings.HasPrefix(Subscription(), PrefixSubscription+"_"))
	assert.True(t, strings.HasPrefix(Event(), PrefixEvent+"_"))
}
