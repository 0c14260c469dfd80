package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_Error(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "BAD_REQUEST: invalid email", BadRequest("invalid email", "").Error())
	assert.Equal(t, "NOT_FOUND: user not found (42)", NotFound("user not found", "42").Error())

	var nilErr *APIError
	assert.Empty(t, nilErr.Error())
}

func TestAs(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("update profile: %w", Forbidden("not your profile"))
	apiErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, apiErr.HTTPStatus)
	assert.Equal(t, "FORBIDDEN", apiErr.Code)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
