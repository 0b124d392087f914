package license

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueReturnsUniqueKeys(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := Issue()
		_, err := uuid.Parse(key)
		require.NoError(t, err)
		assert.False(t, seen[key], "duplicate license key issued")
		seen[key] = true
	}
}

func TestGenerateEncryptedQR(t *testing.T) {
	gen := NewQRGenerator("test-secret")

	png, err := gen.GenerateEncryptedQR(Issue())
	require.NoError(t, err)
	require.NotEmpty(t, png)

	// PNG magic bytes.
	assert.Equal(t, []byte{0x89, 0x50, 0x4E, 0x47}, png[:4])
}

func TestGenerateEncryptedQRRandomizesCiphertext(t *testing.T) {
	gen := NewQRGenerator("test-secret")

	// Same key twice: a fresh IV per call means the encoded payloads
	// differ, so scanned codes cannot be correlated.
	first, err := gen.GenerateEncryptedQR("same-key")
	require.NoError(t, err)
	second, err := gen.GenerateEncryptedQR("same-key")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
