// Package domain holds the registry's core identifier types. Constructing them
// through the Parse functions at trust boundaries enforces format invariants;
// direct casting bypasses validation.
package domain

import (
	"strings"

	dErrors "gsid-registry/pkg/domain-errors"
)

// GSIDAlphabet is the 32-symbol alphabet for global subject identifiers:
// digits and uppercase letters with the visually ambiguous I, L, O, U removed.
const GSIDAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// GSIDLength is the canonical identifier length: 8 clock symbols followed by
// 8 random symbols.
const GSIDLength = 16

// GSID is the canonical global identity key assigned to a subject.
type GSID string

// ParseGSID constructs a GSID from external input.
//
// Errors: CodeInvalidInput when the value is empty, has the wrong length, or
// contains symbols outside the canonical alphabet.
func ParseGSID(s string) (GSID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "gsid cannot be empty")
	}
	if len(s) != GSIDLength {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "gsid must be %d characters", GSIDLength)
	}
	for _, r := range s {
		if !strings.ContainsRune(GSIDAlphabet, r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "gsid contains invalid characters")
		}
	}
	return GSID(s), nil
}

func (g GSID) String() string { return string(g) }

// CenterID identifies a contributing center. Zero is reserved for "Unknown";
// mappings registered under it may later be promoted to a known center, never
// the reverse.
type CenterID int

// CenterUnknown is the reserved id for records whose originating center has
// not been established yet.
const CenterUnknown CenterID = 0

// IsKnown reports whether the center is a real contributing site.
func (c CenterID) IsKnown() bool { return c != CenterUnknown }

// IdentifierType tags the kind of local identifier a center submitted.
type IdentifierType string

// IdentifierTypePrimary is the default when a caller omits the type.
const IdentifierTypePrimary IdentifierType = "primary"
