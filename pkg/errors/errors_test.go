package errors

import (
	"database/sql"
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	cloned := Clone(ErrAlreadyQueued, "already waiting at position 3")
	wrapped := fmt.Errorf("handler: %w", cloned)

	got := FromError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, "ALREADY_QUEUED", got.Code)
	assert.Equal(t, http.StatusConflict, got.Status)
	assert.Equal(t, "already waiting at position 3", got.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	got := FromError(sql.ErrConnDone)
	require.NotNil(t, got)
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.True(t, stdErrors.Is(got, sql.ErrConnDone))
	assert.Nil(t, FromError(nil))
}

func TestIsMatchesByCode(t *testing.T) {
	assert.True(t, stdErrors.Is(Clone(ErrNotFound, "course not found"), ErrNotFound))
	assert.False(t, stdErrors.Is(Clone(ErrNotFound, "course not found"), ErrConflict))
	assert.True(t, stdErrors.Is(Internal(sql.ErrTxDone, "boom"), ErrInternal))
}
