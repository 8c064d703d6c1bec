// Package models defines the identity registry's domain records and the
// decision type the resolution engine produces.
package models

import (
	"time"

	"github.com/google/uuid"

	"gsid-registry/pkg/domain"
)

// Action is the outcome class of a resolution decision.
type Action string

const (
	ActionCreateNew      Action = "create_new"
	ActionLinkExisting   Action = "link_existing"
	ActionCenterPromoted Action = "center_promoted"
	ActionReviewRequired Action = "review_required"
	ActionError          Action = "error"
)

// MatchStrategy names the rule that produced a decision.
type MatchStrategy string

const (
	StrategyExact                MatchStrategy = "exact"
	StrategyAlias                MatchStrategy = "alias"
	StrategyNoMatch              MatchStrategy = "no_match"
	StrategyExactWithdrawn       MatchStrategy = "exact_withdrawn"
	StrategyAliasWithdrawn       MatchStrategy = "alias_withdrawn"
	StrategyExactMatch           MatchStrategy = "exact_match"
	StrategyValidationFailed     MatchStrategy = "validation_failed"
	StrategyCrossCenterConflict  MatchStrategy = "cross_center_conflict"
	StrategyMultipleGSIDConflict MatchStrategy = "multiple_gsid_conflict"
)

// Identity is the canonical subject record. Withdrawn and FlaggedForReview are
// mutated only by the resolution engine and the review workflow.
type Identity struct {
	GSID             domain.GSID
	CenterID         domain.CenterID
	RegistrationYear *int
	Control          bool
	Withdrawn        bool
	FlaggedForReview bool
	ReviewNotes      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LocalIdentifier links one center's local identifier to an identity. The
// triple (CenterID, LocalSubjectID, IdentifierType) is the natural key and is
// unique at all times. CenterID may be rewritten once, from CenterUnknown to a
// known center, never the reverse.
type LocalIdentifier struct {
	CenterID       domain.CenterID
	LocalSubjectID string
	IdentifierType domain.IdentifierType
	GSID           domain.GSID
	CreatedAt      time.Time
}

// Alias is a center-independent secondary key used only for matching. Aliases
// are seeded as reference data, never created by ordinary registration.
type Alias struct {
	Alias string
	GSID  domain.GSID
}

// ResolutionLogEntry is the immutable audit record of one resolution decision.
// Exactly one entry is written per attempted resolution, mutation or not.
type ResolutionLogEntry struct {
	ID              uuid.UUID
	InputCenterID   domain.CenterID
	InputLocalID    string
	MatchedGSID     domain.GSID
	Action          Action
	MatchStrategy   MatchStrategy
	Confidence      float64
	RequiresReview  bool
	ReviewReason    string
	CreatedBy       string
	CreatedAt       time.Time
	ReviewedBy      string
	ReviewedAt      *time.Time
	ResolutionNotes string
}

// ReviewCase is the derived view the review workflow serves: a flagged
// identity plus the local identifiers currently pointing at it.
type ReviewCase struct {
	GSID             domain.GSID             `json:"gsid"`
	ReviewNotes      string                  `json:"review_notes,omitempty"`
	CenterID         domain.CenterID         `json:"center_id"`
	LocalIdentifiers []ReviewLocalIdentifier `json:"local_identifiers"`
	Withdrawn        bool                    `json:"withdrawn"`
	CreatedAt        time.Time               `json:"created_at"`
}

// ReviewLocalIdentifier is the compact identifier view inside a ReviewCase.
type ReviewLocalIdentifier struct {
	CenterID       domain.CenterID       `json:"center_id"`
	LocalSubjectID string                `json:"local_subject_id"`
	IdentifierType domain.IdentifierType `json:"identifier_type"`
}

// RegisterRequest is one single-candidate registration.
type RegisterRequest struct {
	CenterID         domain.CenterID
	LocalSubjectID   string
	IdentifierType   domain.IdentifierType
	RegistrationYear *int
	Control          bool
	CreatedBy        string
}

// Candidate is one (local identifier, type) pair in a multi-candidate request.
type Candidate struct {
	LocalSubjectID string
	IdentifierType domain.IdentifierType
}

// SubjectRequest is a multi-candidate registration: all candidates are
// resolved together and, on a clean match, linked to one identity.
type SubjectRequest struct {
	CenterID   domain.CenterID
	Candidates []Candidate
	CreatedBy  string
}

// Decision is the resolution engine's answer for one request.
type Decision struct {
	GSID               domain.GSID      `json:"gsid,omitempty"`
	Action             Action           `json:"action"`
	MatchStrategy      MatchStrategy    `json:"match_strategy,omitempty"`
	Confidence         float64          `json:"confidence"`
	RequiresReview     bool             `json:"requires_review"`
	ReviewReason       string           `json:"review_reason,omitempty"`
	MatchedGSIDs       []domain.GSID    `json:"matched_gsids,omitempty"`
	PreviousCenterID   *domain.CenterID `json:"previous_center_id,omitempty"`
	NewCenterID        *domain.CenterID `json:"new_center_id,omitempty"`
	ValidationWarnings []string         `json:"validation_warnings,omitempty"`
	Error              string           `json:"error,omitempty"`
}
