package handler

import (
	"time"

	"gsid-registry/internal/identity/models"
)

// BatchResponse is the HTTP response for POST /identity/register/batch.
type BatchResponse struct {
	Decisions []models.Decision `json:"decisions"`
	Total     int               `json:"total"`
	Errors    int               `json:"errors"`
}

// FromDecisions wraps per-item decisions with batch totals.
func FromDecisions(decisions []models.Decision) *BatchResponse {
	errs := 0
	for _, d := range decisions {
		if d.Action == models.ActionError {
			errs++
		}
	}
	return &BatchResponse{Decisions: decisions, Total: len(decisions), Errors: errs}
}

// ReviewQueueResponse is the HTTP response for GET /identity/review-queue.
type ReviewQueueResponse struct {
	Cases []models.ReviewCase `json:"cases"`
	Total int                 `json:"total"`
}

// IdentityResponse is the HTTP view of an identity record.
type IdentityResponse struct {
	GSID             string    `json:"gsid"`
	CenterID         int       `json:"center_id"`
	RegistrationYear *int      `json:"registration_year,omitempty"`
	Control          bool      `json:"control"`
	Withdrawn        bool      `json:"withdrawn"`
	FlaggedForReview bool      `json:"flagged_for_review"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// FromIdentity converts a domain identity to its HTTP view.
func FromIdentity(identity *models.Identity) *IdentityResponse {
	return &IdentityResponse{
		GSID:             identity.GSID.String(),
		CenterID:         int(identity.CenterID),
		RegistrationYear: identity.RegistrationYear,
		Control:          identity.Control,
		Withdrawn:        identity.Withdrawn,
		FlaggedForReview: identity.FlaggedForReview,
		UpdatedAt:        identity.UpdatedAt,
	}
}
