package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsNegativeAmount(t *testing.T) {
	_, err := New("-5.00", "USD")
	assert.Error(t, err)
}

func TestNewAllowsZeroAmount(t *testing.T) {
	a, err := New("0", "USD")
	require.NoError(t, err)
	assert.True(t, a.IsZero())
}

func TestNewRejectsMalformedCurrency(t *testing.T) {
	_, err := New("10.00", "usd")
	assert.Error(t, err)
}

func TestFromCentsRendersFixedPoint(t *testing.T) {
	a, err := FromCents(1099, "USD")
	require.NoError(t, err)
	assert.Equal(t, "10.99 USD", a.String())
}

func TestAddSubGreaterThan(t *testing.T) {
	a, _ := New("30.00", "USD")
	b, _ := New("10.00", "USD")
	assert.True(t, a.GreaterThan(b))
	assert.Equal(t, "20.00 USD", a.Sub(b).String())
	assert.Equal(t, "40.00 USD", a.Add(b).String())
}
