package apperrors

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON body returned to API clients for any non-2xx
// response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable kind/code, a human-readable
// message, and optional structured context.
type ErrorDetail struct {
	Kind      Kind                   `json:"kind"`
	Code      string                 `json:"code,omitempty"`
	Message   string                 `json:"message"`
	Retryable bool                   `json:"retryable"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// WriteJSON writes err as a JSON ErrorResponse with the appropriate status
// code. Errors not already an *Error are treated as Fatal/internal.
func WriteJSON(w http.ResponseWriter, err error) {
	appErr, ok := As(err)
	if !ok {
		appErr = Fatal("internal_error", "an internal error occurred", err)
	}

	resp := ErrorResponse{
		Error: ErrorDetail{
			Kind:      appErr.Kind,
			Code:      appErr.Code,
			Message:   appErr.Message,
			Retryable: appErr.IsRetryable(),
			Details:   appErr.Details,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus())
	json.NewEncoder(w).Encode(resp)
}
