package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "gsid-registry/pkg/domain-errors"
)

func TestParseGSID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseGSID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := ParseGSID("ABC123")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects ambiguous symbols", func(t *testing.T) {
		for _, bad := range []string{"I", "L", "O", "U"} {
			_, err := ParseGSID(bad + strings.Repeat("0", GSIDLength-1))
			require.Error(t, err, "symbol %s should be rejected", bad)
		}
	})

	t.Run("accepts canonical value", func(t *testing.T) {
		g, err := ParseGSID("0123456789ABCDEF")
		require.NoError(t, err)
		assert.Equal(t, GSID("0123456789ABCDEF"), g)
	})
}

func TestCenterID(t *testing.T) {
	assert.False(t, CenterUnknown.IsKnown())
	assert.True(t, CenterID(5).IsKnown())
}
