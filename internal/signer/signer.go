// Package signer implements HMAC-SHA256 request signing and verification for
// outbound webhook deliveries.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Headers are the values a webhook receiver needs to verify a delivery.
type Headers struct {
	Signature string
	Timestamp string
}

// Signer signs and verifies webhook payloads with a per-subscription secret.
type Signer struct {
	tolerance time.Duration
}

// New builds a Signer that accepts timestamps within tolerance of now on
// Verify. A tolerance of zero disables the skew check.
func New(tolerance time.Duration) *Signer {
	return &Signer{tolerance: tolerance}
}

// Sign computes the signature header value for body at timestamp ts, using
// secret. The signed string is "<ms-since-epoch>.<body>", HMAC-SHA256'd and
// lower-hex encoded.
func (s *Signer) Sign(secret string, body []byte, ts time.Time) Headers {
	millis := ts.UnixMilli()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(signedPayload(millis, body))
	sig := hex.EncodeToString(mac.Sum(nil))
	return Headers{
		Signature: sig,
		Timestamp: strconv.FormatInt(millis, 10),
	}
}

// Verify recomputes the expected signature for body/secret at the timestamp
// carried in hdr and compares it in constant time, also rejecting timestamps
// outside the configured tolerance window.
func (s *Signer) Verify(secret string, body []byte, hdr Headers, now time.Time) error {
	millis, err := strconv.ParseInt(hdr.Timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("signer: invalid timestamp header: %w", err)
	}

	if s.tolerance > 0 {
		skew := now.Sub(time.UnixMilli(millis))
		if skew < 0 {
			skew = -skew
		}
		if skew > s.tolerance {
			return fmt.Errorf("signer: timestamp outside tolerance window (skew=%s)", skew)
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(signedPayload(millis, body))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(hdr.Signature))) {
		return fmt.Errorf("signer: signature mismatch")
	}
	return nil
}

func signedPayload(millis int64, body []byte) []byte {
	prefix := strconv.FormatInt(millis, 10) + "."
	buf := make([]byte, 0, len(prefix)+len(body))
	buf = append(buf, prefix...)
	buf = append(buf, body...)
	return buf
}
