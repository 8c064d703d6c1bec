// Package gsid produces canonical global subject identifiers.
//
// An identifier is 16 symbols over the 32-symbol alphabet in pkg/domain: the
// first 8 encode the current Unix-millisecond clock (low-order digits only, so
// values are approximately lexicographically increasing over short windows,
// with no global ordering guarantee), the last 8 are uniformly random for
// collision resistance. The store's primary-key constraint is the
// authoritative uniqueness guard; the generator itself never checks the store.
package gsid

import (
	"crypto/rand"
	"fmt"
	"time"

	"gsid-registry/pkg/domain"
)

const (
	clockSymbols  = 8
	randomSymbols = 8
	alphabetSize  = int64(len(domain.GSIDAlphabet))
)

// Generator creates GSIDs. The zero value is not usable; construct with New.
type Generator struct {
	now func() time.Time
}

// New returns a Generator on the system clock.
func New() *Generator {
	return &Generator{now: time.Now}
}

// Generate returns one well-formed identifier. It fails only when the system
// entropy source does.
func (g *Generator) Generate() (domain.GSID, error) {
	buf := make([]byte, domain.GSIDLength)

	// Most significant clock symbol first; repeated div/mod keeps only the
	// low-order 40 bits of the millisecond clock.
	ms := g.now().UnixMilli()
	for i := clockSymbols - 1; i >= 0; i-- {
		buf[i] = domain.GSIDAlphabet[ms%alphabetSize]
		ms /= alphabetSize
	}

	rnd := make([]byte, randomSymbols)
	if _, err := rand.Read(rnd); err != nil {
		return "", fmt.Errorf("read entropy: %w", err)
	}
	// 256 is a multiple of 32, so the modulo stays uniform.
	for i, b := range rnd {
		buf[clockSymbols+i] = domain.GSIDAlphabet[int64(b)%alphabetSize]
	}

	return domain.GSID(buf), nil
}
