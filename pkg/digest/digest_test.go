package digest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnownVectors(t *testing.T) {
	tests := []struct {
		algo Algorithm
		want string
	}{
		// keccak256("") as used by Ethereum tooling.
		{Keccak256, "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{SHA256, "0xe3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{Blake3, "0xaf1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"},
	}
	for _, tt := range tests {
		t.Run(string(tt.algo), func(t *testing.T) {
			d, err := Bytes(tt.algo, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.String())
		})
	}
}

func TestFileMatchesBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lab-report.pdf")
	content := []byte("moisture 17.2%, HMF 12.4 mg/kg")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	fromFile, err := File(Default, path)
	require.NoError(t, err)
	fromBytes, err := Bytes(Default, content)
	require.NoError(t, err)
	assert.Equal(t, fromBytes, fromFile)
	assert.False(t, fromFile.IsZero())
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, Default, a)

	a, err = ParseAlgorithm("BLAKE3")
	require.NoError(t, err)
	assert.Equal(t, Blake3, a)

	_, err = ParseAlgorithm("md5")
	assert.Error(t, err)
}
