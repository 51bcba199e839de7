package response

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccess(t *testing.T) {
	body, err := json.Marshal(Success(map[string]string{"sessionId": "cs_1"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":{"sessionId":"cs_1"}}`, string(body))
}

func TestError(t *testing.T) {
	body, err := json.Marshal(Error(ErrCodeConflict, "offer no longer available"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":{"code":"CONFLICT","message":"offer no longer available"}}`, string(body))
}

func TestErrorWithDetails(t *testing.T) {
	resp := ErrorWithDetails(ErrCodeUpstream, "refunds failed", []string{"t1", "t2"})
	require.NotNil(t, resp.Error)
	assert.False(t, resp.Success)
	assert.Equal(t, []string{"t1", "t2"}, resp.Error.Details)
}

func TestShorthands(t *testing.T) {
	assert.Equal(t, ErrCodeValidation, BadRequest("x").Error.Code)
	assert.Equal(t, ErrCodeNotFound, NotFound("x").Error.Code)
	assert.Equal(t, ErrCodeUnauthorized, Unauthorized("x").Error.Code)
	assert.Equal(t, "Internal server error", InternalError("").Error.Message)
}
