package signer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	s := New(5 * time.Minute)
	body := []byte(`{"event":"payment.succeeded"}`)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	hdr := s.Sign("whsec_test", body, now)
	require.NotEmpty(t, hdr.Signature)
	require.NotEmpty(t, hdr.Timestamp)

	err := s.Verify("whsec_test", body, hdr, now)
	assert.NoError(t, err)
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	s := New(5 * time.Minute)
	now := time.Now()
	hdr := s.Sign("whsec_test", []byte("original"), now)

	err := s.Verify("whsec_test", []byte("tampered"), hdr, now)
	assert.Error(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	s := New(5 * time.Minute)
	now := time.Now()
	body := []byte("payload")
	hdr := s.Sign("whsec_a", body, now)

	err := s.Verify("whsec_b", body, hdr, now)
	assert.Error(t, err)
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	s := New(1 * time.Minute)
	signedAt := time.Now().Add(-10 * time.Minute)
	body := []byte("payload")
	hdr := s.Sign("whsec_test", body, signedAt)

	err := s.Verify("whsec_test", body, hdr, time.Now())
	assert.Error(t, err)
}

func TestVerifyToleranceDisabledWhenZero(t *testing.T) {
	s := New(0)
	signedAt := time.Now().Add(-48 * time.Hour)
	body := []byte("payload")
	hdr := s.Sign("whsec_test", body, signedAt)

	err := s.Verify("whsec_test", body, hdr, time.Now())
	assert.NoError(t, err)
}
