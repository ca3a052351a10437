package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTokenLengthAndCharset(t *testing.T) {
	token, err := GenerateToken(8)
	require.NoError(t, err)
	assert.Len(t, token, 8)

	for _, r := range token {
		assert.True(t, strings.ContainsRune(tokenCharset, r), "unexpected character %q", r)
	}
}

func TestGenerateTokenIsRandom(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := GenerateToken(8)
		require.NoError(t, err)
		assert.False(t, seen[token], "token %s generated twice", token)
		seen[token] = true
	}
}
