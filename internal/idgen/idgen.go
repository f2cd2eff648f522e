// Package idgen generates prefixed, random resource identifiers in the style
// used throughout the gateway's payment, refund, webhook, and event records.
package idgen

import (
	"github.com/google/uuid"
)

const (
	PrefixPayment      = "pay"
	PrefixRefund       = "ref"
	PrefixSubscription = "whk"
	PrefixEvent        = "evt"
	PrefixIdempotency  = "idm"
)

// New generates a prefixed identifier of the form "<prefix>_<uuid>".
func New(prefix string) string {
	return prefix + "_" + uuid.New().String()
}

// Payment generates a new payment id.
func Payment() string { return New(PrefixPayment) }

// Refund generates a new refund id.
func Refund() string { return New(PrefixRefund) }

// Subscription generates a new webhook subscription id.
func Subscription() string { return New(PrefixSubscription) }

// Event generates a new webhook event id.
func Event() string { return New(PrefixEvent) }
