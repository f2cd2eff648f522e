package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Validation("bad", "bad"), http.StatusBadRequest},
		{NotFound("missing", "missing"), http.StatusNotFound},
		{InvalidState("bad_state", "bad state"), http.StatusBadRequest},
		{DuplicateKey("dup", "dup"), http.StatusConflict},
		{Transient("timeout", "timeout", nil), http.StatusServiceUnavailable},
		{Fatal("boom", "boom", nil), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.err.HTTPStatus())
	}
}

func TestIsRetryableOnlyForTransient(t *testing.T) {
	assert.True(t, Transient("timeout", "timeout", nil).IsRetryable())
	assert.False(t, Fatal("boom", "boom", nil).IsRetryable())
	assert.False(t, Validation("bad", "bad").IsRetryable())
}

func TestAsAndIsKindUnwrapThroughWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := fmt.Errorf("query failed: %w", Transient("db_timeout", "query timed out", cause))

	e, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindTransient, e.Kind)
	assert.True(t, IsKind(wrapped, KindTransient))
	assert.False(t, IsKind(wrapped, KindFatal))
	assert.ErrorIs(t, wrapped, cause)
}

func TestErrorMessageIncludesCauseWhenPresent(t *testing.T) {
	cause := errors.New("boom")
	e := Transient("db_timeout", "query timed out", cause)
	assert.Contains(t, e.Error(), "boom")
	assert.Contains(t, e.Error(), "query timed out")
}
