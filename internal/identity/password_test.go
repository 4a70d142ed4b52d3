package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "correct-horse-battery", hash)

	// Same password hashes to a different string each time.
	again, err := HashPassword("correct-horse-battery")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again)
}

func TestHashPasswordTooShort(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery")
	require.NoError(t, err)

	assert.NoError(t, VerifyPassword(hash, "correct-horse-battery"))
	assert.Error(t, VerifyPassword(hash, "wrong-password"))
}
