package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	k1, err := deriveKey(testSecret, infoSigning)
	require.NoError(t, err)
	k2, err := deriveKey(testSecret, infoEncryption)
	require.NoError(t, err)
	again, err := deriveKey(testSecret, infoSigning)
	require.NoError(t, err)

	assert.Len(t, k1, 32)
	assert.NotEqual(t, k1, k2, "keys for different purposes must differ")
	assert.Equal(t, k1, again, "derivation must be deterministic")
}

func TestTokenCipher(t *testing.T) {
	key, err := deriveKey(testSecret, infoEncryption)
	require.NoError(t, err)
	c, err := newTokenCipher(key)
	require.NoError(t, err)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty", ""},
		{"access token", "ya29.a0AfH6SMBx"},
		{"unicode", "tökén-✓"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := c.Seal(tt.plaintext)
			require.NoError(t, err)
			if tt.plaintext != "" {
				assert.NotEqual(t, tt.plaintext, sealed)
			}

			opened, err := c.Open(sealed)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, opened)
		})
	}
}

func TestTokenCipher_NonceIsRandom(t *testing.T) {
	key, _ := deriveKey(testSecret, infoEncryption)
	c, err := newTokenCipher(key)
	require.NoError(t, err)

	a, _ := c.Seal("same")
	b, _ := c.Seal("same")
	assert.NotEqual(t, a, b)
}

func TestTokenCipher_OpenErrors(t *testing.T) {
	key, _ := deriveKey(testSecret, infoEncryption)
	c, err := newTokenCipher(key)
	require.NoError(t, err)

	_, err = c.Open("!!!not-base64")
	assert.Error(t, err)

	_, err = c.Open("AAAA")
	assert.Error(t, err)

	_, err = newTokenCipher([]byte("short"))
	assert.Error(t, err)
}
