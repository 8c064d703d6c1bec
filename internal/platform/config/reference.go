package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Reference is the versioned reference-data file: validation tables, the
// center directory, and seeded aliases. It ships alongside the binary and is
// reviewed like code.
type Reference struct {
	Version    string        `toml:"version"`
	Validation ValidationRef `toml:"validation"`
	Centers    []CenterRef   `toml:"centers"`
	Aliases    []AliasRef    `toml:"aliases"`
	Matching   MatchingRef   `toml:"matching"`
}

// ValidationRef externalizes the identifier screening tables.
type ValidationRef struct {
	PlaceholderPrefixes []string `toml:"placeholder_prefixes"`
	NumericIDTypes      []string `toml:"numeric_id_types"`
}

// CenterRef is one contributing center in the directory.
type CenterRef struct {
	ID   int    `toml:"id"`
	Name string `toml:"name"`
}

// AliasRef seeds one center-independent secondary key.
type AliasRef struct {
	Alias string `toml:"alias"`
	GSID  string `toml:"gsid"`
}

// MatchingRef tunes fuzzy center-name matching.
type MatchingRef struct {
	// SimilarityThreshold is the minimum score in [0,1] for a fuzzy center
	// name hit. Zero falls back to the built-in default.
	SimilarityThreshold float64 `toml:"similarity_threshold"`
}

// LoadReference parses the TOML reference file. An empty path yields an empty
// Reference so development setups run without one.
func LoadReference(path string) (Reference, error) {
	var ref Reference
	if path == "" {
		return ref, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ref, fmt.Errorf("read reference file: %w", err)
	}
	if err := toml.Unmarshal(data, &ref); err != nil {
		return ref, fmt.Errorf("parse reference file: %w", err)
	}
	return ref, nil
}
