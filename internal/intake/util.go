package intake

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/lumenpay/gateway/internal/apperrors"
	"github.com/lumenpay/gateway/pkg/responders"
)

const idempotencyKeyHeader = "Idempotency-Key"

// decodeJSON decodes a JSON request body into dest, rejecting unknown fields.
func decodeJSON(r io.ReadCloser, dest any) error {
	defer r.Close()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return apperrors.Validation("malformed_body", "request body is not valid JSON")
	}
	return nil
}

func writeError(w http.ResponseWriter, err error) {
	apperrors.WriteJSON(w, err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	responders.JSON(w, status, payload)
}
