package handler

import (
	"strings"

	"gsid-registry/internal/identity/models"
	"gsid-registry/pkg/domain"
	dErrors "gsid-registry/pkg/domain-errors"
)

// maxBatchSize bounds one batch request; larger imports go through repeated
// calls so a single transaction stays short.
const maxBatchSize = 500

// RegisterRequest is the HTTP request body for POST /identity/register.
// CenterName is an alternative to CenterID for callers that only know the
// center's display name; the handler resolves it against the directory.
type RegisterRequest struct {
	CenterID         int    `json:"center_id"`
	CenterName       string `json:"center_name,omitempty"`
	LocalSubjectID   string `json:"local_subject_id"`
	IdentifierType   string `json:"identifier_type,omitempty"`
	RegistrationYear *int   `json:"registration_year,omitempty"`
	Control          bool   `json:"control,omitempty"`
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.CenterID < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "center_id must be non-negative")
	}
	r.LocalSubjectID = strings.TrimSpace(r.LocalSubjectID)
	if r.LocalSubjectID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "local_subject_id is required")
	}
	if len(r.LocalSubjectID) > 128 {
		return dErrors.New(dErrors.CodeInvalidInput, "local_subject_id must be at most 128 characters")
	}
	return nil
}

// Domain converts the body into the engine's request type. The authenticated
// actor is attached by the service from context.
func (r *RegisterRequest) Domain() models.RegisterRequest {
	return models.RegisterRequest{
		CenterID:         domain.CenterID(r.CenterID),
		LocalSubjectID:   r.LocalSubjectID,
		IdentifierType:   domain.IdentifierType(r.IdentifierType),
		RegistrationYear: r.RegistrationYear,
		Control:          r.Control,
	}
}

// BatchRequest is the HTTP request body for POST /identity/register/batch.
type BatchRequest struct {
	Items []RegisterRequest `json:"items"`
}

// Validate checks batch shape only; per-item problems surface as per-item
// error decisions, not as a rejected request.
func (r *BatchRequest) Validate() error {
	if r == nil || len(r.Items) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "items must not be empty")
	}
	if len(r.Items) > maxBatchSize {
		return dErrors.Newf(dErrors.CodeInvalidInput, "batch exceeds %d items", maxBatchSize)
	}
	return nil
}

// Domain converts the batch into engine requests.
func (r *BatchRequest) Domain() []models.RegisterRequest {
	out := make([]models.RegisterRequest, len(r.Items))
	for i := range r.Items {
		out[i] = r.Items[i].Domain()
	}
	return out
}

// CandidateRequest is one identifier in a multi-candidate registration.
type CandidateRequest struct {
	LocalSubjectID string `json:"local_subject_id"`
	IdentifierType string `json:"identifier_type,omitempty"`
}

// SubjectRequest is the HTTP request body for POST /identity/subjects.
type SubjectRequest struct {
	CenterID   int                `json:"center_id"`
	CenterName string             `json:"center_name,omitempty"`
	Candidates []CandidateRequest `json:"candidates"`
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *SubjectRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.CenterID < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "center_id must be non-negative")
	}
	if len(r.Candidates) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "candidates must not be empty")
	}
	for i := range r.Candidates {
		r.Candidates[i].LocalSubjectID = strings.TrimSpace(r.Candidates[i].LocalSubjectID)
		if r.Candidates[i].LocalSubjectID == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "candidate local_subject_id is required")
		}
	}
	return nil
}

// Domain converts the body into the engine's request type.
func (r *SubjectRequest) Domain() models.SubjectRequest {
	candidates := make([]models.Candidate, len(r.Candidates))
	for i, c := range r.Candidates {
		candidates[i] = models.Candidate{
			LocalSubjectID: c.LocalSubjectID,
			IdentifierType: domain.IdentifierType(c.IdentifierType),
		}
	}
	return models.SubjectRequest{
		CenterID:   domain.CenterID(r.CenterID),
		Candidates: candidates,
	}
}

// ResolveReviewRequest is the HTTP request body for
// POST /identity/review/{gsid}/resolve.
type ResolveReviewRequest struct {
	ReviewedBy string `json:"reviewed_by"`
	Notes      string `json:"notes,omitempty"`
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *ResolveReviewRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.ReviewedBy = strings.TrimSpace(r.ReviewedBy)
	if r.ReviewedBy == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "reviewed_by is required")
	}
	return nil
}

// UpdateCenterRequest is the HTTP request body for PUT /identity/{gsid}/center.
type UpdateCenterRequest struct {
	CenterID int `json:"center_id"`
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *UpdateCenterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.CenterID <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "center_id must be a known, non-zero center")
	}
	return nil
}
