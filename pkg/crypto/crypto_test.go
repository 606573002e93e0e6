package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.True(t, VerifyPassword("s3cret-pass", hash))
	assert.False(t, VerifyPassword("wrong", hash))
}

func TestGenerateTemporaryPassword(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		pwd, err := GenerateTemporaryPassword(12)
		require.NoError(t, err)
		assert.Len(t, pwd, 12)
		for _, c := range pwd {
			assert.True(t, strings.ContainsRune(temporaryPasswordAlphabet, c), "unexpected rune %q", c)
		}
		seen[pwd] = true
	}
	assert.Greater(t, len(seen), 1)
}
