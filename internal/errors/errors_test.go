package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	plain := UnauthorizedError("missing token")
	assert.Equal(t, "unauthorized: missing token", plain.Error())

	wrapped := InternalError("query failed", errors.New("connection reset"))
	assert.Equal(t, "internal: query failed: connection reset", wrapped.Error())
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := InternalError("query failed", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Nil(t, UnauthorizedError("missing token").Unwrap())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{UnauthorizedError("x"), http.StatusUnauthorized},
		{ForbiddenError("x"), http.StatusForbidden},
		{ValidationError("x"), http.StatusBadRequest},
		{NotFoundError("x"), http.StatusNotFound},
		{InternalError("x", nil), http.StatusInternalServerError},
		{ExternalError("x", nil), http.StatusBadGateway},
		{&Error{Type: "mystery"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Type), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestWithContext(t *testing.T) {
	err := ValidationError("limit must be between 1 and 500").
		WithContext("value", "9000").
		WithContext("param", "limit")

	assert.Equal(t, "9000", err.Context["value"])
	assert.Equal(t, "limit", err.Context["param"])

	resp := err.ToResponse()
	assert.Equal(t, "limit must be between 1 and 500", resp.Error)
	assert.Equal(t, TypeValidation, resp.Type)
	assert.Equal(t, err.Context, resp.Context)
}

func TestAsStructuredError(t *testing.T) {
	assert.Nil(t, AsStructuredError(nil))

	structured := ForbiddenError("staff role required")
	assert.Same(t, structured, AsStructuredError(structured))

	wrapped := fmt.Errorf("handler: %w", structured)
	assert.Same(t, structured, AsStructuredError(wrapped))

	plain := AsStructuredError(errors.New("boom"))
	require.NotNil(t, plain)
	assert.Equal(t, TypeInternal, plain.Type)
	assert.Equal(t, "internal server error", plain.Message)
}
