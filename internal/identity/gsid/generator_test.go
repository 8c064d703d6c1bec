package gsid

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gsid-registry/pkg/domain"
)

func TestGenerate_Format(t *testing.T) {
	g := New()
	id, err := g.Generate()
	require.NoError(t, err)

	assert.Len(t, string(id), domain.GSIDLength)
	for _, r := range string(id) {
		assert.True(t, strings.ContainsRune(domain.GSIDAlphabet, r), "symbol %q outside alphabet", r)
	}
	for _, banned := range "ILOU" {
		assert.NotContains(t, string(id), string(banned))
	}

	_, err = domain.ParseGSID(string(id))
	assert.NoError(t, err)
}

func TestGenerate_Uniqueness(t *testing.T) {
	g := New()
	seen := make(map[domain.GSID]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		id, err := g.Generate()
		require.NoError(t, err)
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate identifier after %d generations: %s", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestGenerate_LocalSortability(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	early := &Generator{now: func() time.Time { return base }}
	late := &Generator{now: func() time.Time { return base.Add(25 * time.Millisecond) }}

	a, err := early.Generate()
	require.NoError(t, err)
	b, err := late.Generate()
	require.NoError(t, err)

	// The clock prefixes alone decide the comparison for a small gap.
	assert.Less(t, string(a)[:clockSymbols], string(b)[:clockSymbols])
	assert.Less(t, string(a), string(b))
}

func TestGenerate_ClockPrefixIsDeterministic(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)
	g := &Generator{now: func() time.Time { return at }}

	a, err := g.Generate()
	require.NoError(t, err)
	b, err := g.Generate()
	require.NoError(t, err)

	assert.Equal(t, string(a)[:clockSymbols], string(b)[:clockSymbols])
	assert.NotEqual(t, a, b, "random suffixes should differ")
}
