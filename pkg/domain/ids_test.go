package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "certtrace/pkg/domain-errors"
)

// TestParseAddress_Invariants validates the parsing invariant:
// "addresses are exactly 20 bytes, 0x-prefixed hex".
func TestParseAddress_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseAddress("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects missing prefix", func(t *testing.T) {
		_, err := ParseAddress(strings.Repeat("ab", AddressLength))
		require.Error(t, err)
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := ParseAddress("0x1234")
		require.Error(t, err)
	})

	t.Run("accepts mixed case and normalizes", func(t *testing.T) {
		a, err := ParseAddress("0xAbCdEf0000000000000000000000000000000001")
		require.NoError(t, err)
		assert.Equal(t, "0xabcdef0000000000000000000000000000000001", a.String())
	})

	t.Run("zero address parses but is the null identity", func(t *testing.T) {
		a, err := ParseAddress("0x" + strings.Repeat("0", 40))
		require.NoError(t, err)
		assert.True(t, a.IsZero())
	})
}

func TestDigest(t *testing.T) {
	t.Run("round trips through JSON", func(t *testing.T) {
		d, err := ParseDigest("0x" + strings.Repeat("a1", DigestLength))
		require.NoError(t, err)

		raw, err := json.Marshal(struct {
			Digest Digest `json:"digest"`
		}{d})
		require.NoError(t, err)

		var out struct {
			Digest Digest `json:"digest"`
		}
		require.NoError(t, json.Unmarshal(raw, &out))
		assert.Equal(t, d, out.Digest)
	})

	t.Run("zero digest reports zero", func(t *testing.T) {
		assert.True(t, Digest{}.IsZero())
	})
}

func TestParseSequenceIDs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"one", "1", true},
		{"large", "18446744073709551615", true},
		{"zero", "0", false},
		{"negative", "-1", false},
		{"hex", "0x1", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, certErr := ParseCertificateID(tt.input)
			_, opErr := ParseOperationID(tt.input)
			if tt.ok {
				assert.NoError(t, certErr)
				assert.NoError(t, opErr)
				return
			}
			assert.True(t, dErrors.HasCode(certErr, dErrors.CodeValidation))
			assert.True(t, dErrors.HasCode(opErr, dErrors.CodeValidation))
		})
	}
}
