package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/next-action-service/internal/apperr"
)

type sample struct {
	UserID string `json:"user_id" validate:"required,max=255"`
	Limit  int    `json:"limit" validate:"gte=0,lte=100"`
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(sample{UserID: "u1", Limit: 5}))
}

func TestStruct_UsesJSONNames(t *testing.T) {
	err := Struct(sample{Limit: -1})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Contains(t, err.Error(), "user_id is required")
	assert.Contains(t, err.Error(), "limit must be >= 0")
}
