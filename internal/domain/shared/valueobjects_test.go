package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserID(t *testing.T) {
	const canonical = "7b1e4f0a-2c3d-4e5f-8a9b-0c1d2e3f4a5b"

	for _, in := range []string{
		canonical,
		" 7B1E4F0A-2C3D-4E5F-8A9B-0C1D2E3F4A5B ",
		"{7b1e4f0a-2c3d-4e5f-8a9b-0c1d2e3f4a5b}",
		"urn:uuid:7b1e4f0a-2c3d-4e5f-8a9b-0c1d2e3f4a5b",
	} {
		id, err := NewUserID(in)
		require.NoError(t, err, in)
		assert.Equal(t, canonical, id.String())
		assert.True(t, id.IsValid())
	}

	_, err := NewUserID("  ")
	assert.ErrorIs(t, err, ErrEmptyValue)
	assert.True(t, IsValidation(err))

	_, err = NewUserID("user-42")
	assert.ErrorIs(t, err, ErrInvalidUserID)
	assert.True(t, IsValidation(err))

	assert.False(t, UserID("7B1E4F0A-2C3D-4E5F-8A9B-0C1D2E3F4A5B").IsValid())
}

func TestRank(t *testing.T) {
	assert.True(t, Rank(0).IsUnranked())
	assert.False(t, Rank(1).IsUnranked())
}

func TestPagination_Limit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, 7, Pagination{PageSize: 7}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsForbidden(ErrFeatureDisabled))
	assert.True(t, IsUnauthorized(ErrMissingToken))
	assert.True(t, IsValidation(ErrUnknownXPSource))
	assert.True(t, IsValidation(ErrLevelOutOfRange))
	assert.False(t, IsValidation(ErrFeatureDisabled))
	assert.True(t, IsRetryable(ErrServiceUnavailable))
	assert.False(t, IsRetryable(ErrInvalidUserID))
}
