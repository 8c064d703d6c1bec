// Package match resolves free-text center names against the center
// directory. Import files frequently carry a center's name rather than its
// id, with spelling drift between submissions.
package match

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// DefaultThreshold is the minimum similarity for a fuzzy hit.
const DefaultThreshold = 0.8

// Center is one directory entry.
type Center struct {
	ID   int
	Name string
}

// Similarity scores two normalized names in [0,1].
type Similarity interface {
	Score(a, b string) float64
}

// Levenshtein scores by edit distance relative to the longer name.
type Levenshtein struct{}

func (Levenshtein) Score(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// Matcher resolves names against a fixed directory.
type Matcher struct {
	centers   []Center
	sim       Similarity
	threshold float64
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithSimilarity swaps the scoring function.
func WithSimilarity(sim Similarity) Option {
	return func(m *Matcher) { m.sim = sim }
}

// WithThreshold overrides the fuzzy-hit threshold. Values outside (0,1] are
// ignored.
func WithThreshold(t float64) Option {
	return func(m *Matcher) {
		if t > 0 && t <= 1 {
			m.threshold = t
		}
	}
}

// New builds a matcher over the given directory.
func New(centers []Center, opts ...Option) *Matcher {
	m := &Matcher{
		centers:   centers,
		sim:       Levenshtein{},
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match resolves a center name. Exact normalized matches win outright; below
// that the highest-scoring center at or above the threshold is returned, and
// on a score tie the earlier directory entry wins.
func (m *Matcher) Match(name string) (Center, float64, bool) {
	query := normalize(name)
	if query == "" {
		return Center{}, 0, false
	}

	var best Center
	bestScore := 0.0
	found := false
	for _, c := range m.centers {
		candidate := normalize(c.Name)
		if candidate == query {
			return c, 1, true
		}
		score := m.sim.Score(query, candidate)
		if score > bestScore {
			best, bestScore, found = c, score, true
		}
	}
	if !found || bestScore < m.threshold {
		return Center{}, 0, false
	}
	return best, bestScore, true
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
