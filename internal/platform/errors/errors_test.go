package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	cause := fmt.Errorf("gateway unreachable")

	tests := []struct {
		name       string
		err        *Error
		wantType   ErrorType
		wantStatus int
		wantCause  error
	}{
		{"validation", ValidationError("phones must not be empty"), TypeValidation, http.StatusBadRequest, nil},
		{"unauthorized", UnauthorizedError("wrong admin token"), TypeUnauthorized, http.StatusUnauthorized, nil},
		{"not found", NotFoundError("user not found"), TypeNotFound, http.StatusNotFound, nil},
		{"conflict", ConflictError("pairing in progress"), TypeConflict, http.StatusConflict, nil},
		{"timeout", TimeoutError("label not visible", cause), TypeTimeout, http.StatusGatewayTimeout, cause},
		{"internal", InternalError("store failed", cause), TypeInternal, http.StatusInternalServerError, cause},
		{"external", ExternalError("engine failed", cause), TypeExternal, http.StatusBadGateway, cause},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantStatus, tt.err.HTTPStatus())
			assert.Equal(t, tt.wantCause, tt.err.Cause)
			assert.NotNil(t, tt.err.Context)
			assert.Contains(t, tt.err.Error(), string(tt.wantType))
		})
	}
}

func TestErrorStringWithoutCause(t *testing.T) {
	err := ValidationError("test message")

	assert.Equal(t, "validation: test message", err.Error())
	assert.NotContains(t, err.Error(), "nil")
}

func TestErrorStringWithCause(t *testing.T) {
	err := InternalError("wrapper message", fmt.Errorf("underlying issue"))

	assert.Equal(t, "internal: wrapper message: underlying issue", err.Error())
}

func TestWithFieldChaining(t *testing.T) {
	err := NotFoundError("label not found").
		WithField("phone", "5550001").
		WithField("label", "VIP")

	assert.Len(t, err.Context, 2)
	assert.Equal(t, "5550001", err.Context["phone"])
	assert.Equal(t, "VIP", err.Context["label"])
}

func TestWithFieldNilMap(t *testing.T) {
	err := &Error{Type: TypeValidation, Message: "test"}

	err = err.WithField("key", "value")

	assert.Equal(t, "value", err.Context["key"])
}

func TestToResponse(t *testing.T) {
	resp := ValidationError("invalid body").WithField("field", "phones").ToResponse()

	assert.Equal(t, "invalid body", resp.Error)
	assert.Equal(t, TypeValidation, resp.Type)
	assert.Equal(t, "phones", resp.Context["field"])
}

func TestUnwrapAndIs(t *testing.T) {
	root := fmt.Errorf("root")
	wrapped := ExternalError("wrapped", root)

	assert.Equal(t, root, errors.Unwrap(wrapped))
	assert.True(t, errors.Is(wrapped, root))
	assert.Nil(t, errors.Unwrap(ValidationError("x")))
}

func TestAsStructuredError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, AsStructuredError(nil))
	})

	t.Run("already structured", func(t *testing.T) {
		original := ConflictError("busy")
		assert.Same(t, original, AsStructuredError(original))
	})

	t.Run("wrapped structured", func(t *testing.T) {
		original := NotFoundError("user not found")
		result := AsStructuredError(fmt.Errorf("lookup: %w", original))
		require.NotNil(t, result)
		assert.Equal(t, TypeNotFound, result.Type)
	})

	t.Run("plain error", func(t *testing.T) {
		original := fmt.Errorf("boom")
		result := AsStructuredError(original)
		assert.Equal(t, TypeInternal, result.Type)
		assert.Equal(t, "internal server error", result.Message)
		assert.Equal(t, original, result.Cause)
	})
}

func TestHTTPStatusUnknownType(t *testing.T) {
	err := &Error{Type: ErrorType("unknown")}
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
}
