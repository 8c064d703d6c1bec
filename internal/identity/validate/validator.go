// Package validate screens candidate local identifiers before the resolution
// engine trusts them as matching input.
package validate

import (
	"fmt"
	"strings"

	"gsid-registry/pkg/domain"
	platformstrings "gsid-registry/pkg/platform/strings"
)

// Severity grades a validation result.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Result is the outcome of screening one identifier.
type Result struct {
	Valid    bool     `json:"valid"`
	Severity Severity `json:"severity"`
	Warnings []string `json:"warnings,omitempty"`
}

// Config carries the externalized screening tables. Both lists ship in the
// versioned reference-data file rather than being compiled into source.
type Config struct {
	// PlaceholderPrefixes rejects identifiers that begin with any of these
	// (case-insensitive). Defaults to test, demo, example.
	PlaceholderPrefixes []string
	// NumericIDTypes lists identifier types for which purely numeric values
	// are expected (sample or record numbers); numeric identifiers of any
	// other type draw a warning.
	NumericIDTypes []string
}

// DefaultPlaceholderPrefixes are applied when the reference file omits its own.
var DefaultPlaceholderPrefixes = []string{"test", "demo", "example"}

// Validator classifies candidate identifiers as clean, suspicious, or reject.
type Validator struct {
	prefixes     []string
	numericTypes map[domain.IdentifierType]bool
}

// New builds a Validator from reference configuration.
func New(cfg Config) *Validator {
	prefixes := cfg.PlaceholderPrefixes
	if len(prefixes) == 0 {
		prefixes = DefaultPlaceholderPrefixes
	}
	lowered := platformstrings.DedupeAndTrimLower(prefixes)
	numeric := make(map[domain.IdentifierType]bool, len(cfg.NumericIDTypes))
	for _, t := range cfg.NumericIDTypes {
		numeric[domain.IdentifierType(t)] = true
	}
	return &Validator{prefixes: lowered, numericTypes: numeric}
}

// Validate trims the identifier and grades it. Trimming itself produces no
// warning; every other finding appends one.
func (v *Validator) Validate(localID string, identifierType domain.IdentifierType) Result {
	trimmed := strings.TrimSpace(localID)

	if reason, rejected := v.rejectReason(trimmed); rejected {
		return Result{Valid: false, Severity: SeverityError, Warnings: []string{reason}}
	}

	var warnings []string
	if len(trimmed) < 3 {
		warnings = append(warnings, "identifier is shorter than 3 characters")
	}
	numeric := isNumeric(trimmed)
	alphabetic := isAlphabetic(trimmed)
	if numeric && len(trimmed) <= 3 {
		warnings = append(warnings, "short numeric identifier is easily mistyped")
	}
	if alphabetic && len(trimmed) <= 2 {
		warnings = append(warnings, "short alphabetic identifier is easily mistyped")
	}
	if strings.ContainsAny(trimmed, " \t") {
		warnings = append(warnings, "identifier contains internal whitespace")
	}
	if hasUnexpectedCharacters(trimmed) {
		warnings = append(warnings, "identifier contains characters outside alphanumeric, underscore, hyphen")
	}
	if numeric && !v.numericTypes[identifierType] {
		warnings = append(warnings, fmt.Sprintf("purely numeric identifier is unexpected for type %q", identifierType))
	}

	if len(warnings) > 0 {
		return Result{Valid: true, Severity: SeverityWarning, Warnings: warnings}
	}
	return Result{Valid: true, Severity: SeverityInfo}
}

func (v *Validator) rejectReason(trimmed string) (string, bool) {
	if trimmed == "" {
		return "identifier is empty", true
	}
	lower := strings.ToLower(trimmed)
	for _, prefix := range v.prefixes {
		if strings.HasPrefix(lower, prefix) {
			return fmt.Sprintf("identifier matches placeholder prefix %q", prefix), true
		}
	}
	for _, filler := range []rune{'0', '9', 'x'} {
		if allRune(lower, filler) {
			return fmt.Sprintf("identifier is entirely repeated %q characters", filler), true
		}
	}
	return "", false
}

func allRune(s string, r rune) bool {
	for _, c := range s {
		if c != r {
			return false
		}
	}
	return s != ""
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isAlphabetic(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

func hasUnexpectedCharacters(s string) bool {
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-', c == ' ', c == '\t':
			// internal whitespace is reported separately
		default:
			return true
		}
	}
	return false
}
