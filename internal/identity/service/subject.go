package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gsid-registry/internal/identity/models"
	"gsid-registry/pkg/domain"
	dErrors "gsid-registry/pkg/domain-errors"
	"gsid-registry/pkg/platform/sentinel"
	"gsid-registry/pkg/requestcontext"
)

// candidateMatch records one lookup hit: which candidate matched, the identity
// it matched, and (for mapping hits) the matched row's own center. Alias
// hits are center-free.
type candidateMatch struct {
	candidate models.Candidate
	gsid      domain.GSID
	center    domain.CenterID
	viaAlias  bool
}

// RegisterSubject resolves a set of candidate identifiers as one subject.
// Matching ignores centers; the matched rows' centers then drive the
// conflict/promotion branches.
func (s *Service) RegisterSubject(ctx context.Context, req models.SubjectRequest) (models.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "identity.RegisterSubject")
	defer span.End()
	start := time.Now()

	if req.CenterID < 0 {
		return models.Decision{}, dErrors.New(dErrors.CodeBadRequest, "center_id must be non-negative")
	}
	if len(req.Candidates) == 0 {
		return models.Decision{}, dErrors.New(dErrors.CodeBadRequest, "at least one candidate identifier is required")
	}
	if req.CreatedBy == "" {
		req.CreatedBy = requestcontext.Actor(ctx)
	}
	for i := range req.Candidates {
		req.Candidates[i].LocalSubjectID = strings.TrimSpace(req.Candidates[i].LocalSubjectID)
		if req.Candidates[i].IdentifierType == "" {
			req.Candidates[i].IdentifierType = domain.IdentifierTypePrimary
		}
	}
	inputID := joinCandidates(req.Candidates)

	// Validate every candidate up front; any error-severity rejection stops
	// the whole request before any store mutation.
	var warnings []string
	rejected := false
	for _, c := range req.Candidates {
		res := s.validator.Validate(c.LocalSubjectID, c.IdentifierType)
		for _, w := range res.Warnings {
			warnings = append(warnings, fmt.Sprintf("%s: %s", c.LocalSubjectID, w))
		}
		if !res.Valid {
			rejected = true
		}
	}
	if rejected {
		decision := models.Decision{
			Action:             models.ActionReviewRequired,
			MatchStrategy:      models.StrategyValidationFailed,
			Confidence:         0,
			RequiresReview:     true,
			ReviewReason:       "one or more candidate identifiers failed validation",
			ValidationWarnings: warnings,
		}
		if err := s.store.AppendLogEntry(ctx, logEntryFor(req.CenterID, inputID, req.CreatedBy, decision)); err != nil {
			s.logger.ErrorContext(ctx, "audit entry for rejected candidates failed", "error", err)
		}
		s.finishDecision(ctx, req.CenterID, inputID, req.CreatedBy, decision, start)
		return decision, nil
	}

	var decision models.Decision
	apply := func(ctx context.Context) error {
		d, err := s.applySubject(ctx, req, inputID)
		if err != nil {
			return err
		}
		decision = d
		return nil
	}
	err := s.store.RunInTx(ctx, apply)
	if errors.Is(err, sentinel.ErrConflict) {
		err = s.store.RunInTx(ctx, apply)
	}
	if err != nil {
		return models.Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "subject resolution failed")
	}
	decision.ValidationWarnings = warnings

	s.finishDecision(ctx, req.CenterID, inputID, req.CreatedBy, decision, start)
	return decision, nil
}

func (s *Service) applySubject(ctx context.Context, req models.SubjectRequest, inputID string) (models.Decision, error) {
	matches, distinct, err := s.collectMatches(ctx, req.Candidates)
	if err != nil {
		return models.Decision{}, err
	}

	var decision models.Decision
	switch len(distinct) {
	case 0:
		decision, err = s.createSubject(ctx, req)
	case 1:
		decision, err = s.resolveSingleSubjectMatch(ctx, req, matches, distinct[0])
	default:
		decision, err = s.flagMultipleMatches(ctx, distinct)
	}
	if err != nil {
		return models.Decision{}, err
	}

	if err := s.store.AppendLogEntry(ctx, logEntryFor(req.CenterID, inputID, req.CreatedBy, decision)); err != nil {
		return models.Decision{}, err
	}
	return decision, nil
}

// collectMatches performs the center-ignoring lookup for every candidate and
// returns all hits plus the distinct matched GSIDs in first-encounter order.
func (s *Service) collectMatches(ctx context.Context, candidates []models.Candidate) ([]candidateMatch, []domain.GSID, error) {
	var matches []candidateMatch
	var distinct []domain.GSID
	seen := make(map[domain.GSID]bool)
	record := func(m candidateMatch) {
		matches = append(matches, m)
		if !seen[m.gsid] {
			seen[m.gsid] = true
			distinct = append(distinct, m.gsid)
		}
	}

	for _, c := range candidates {
		rows, err := s.store.FindMappings(ctx, c.LocalSubjectID, c.IdentifierType)
		if err != nil {
			return nil, nil, err
		}
		for _, row := range rows {
			record(candidateMatch{candidate: c, gsid: row.GSID, center: row.CenterID})
		}
		if len(rows) > 0 {
			continue
		}
		alias, err := s.store.FindAlias(ctx, c.LocalSubjectID)
		switch {
		case err == nil:
			record(candidateMatch{candidate: c, gsid: alias.GSID, viaAlias: true})
		case errors.Is(err, sentinel.ErrNotFound):
		default:
			return nil, nil, err
		}
	}
	return matches, distinct, nil
}

func (s *Service) createSubject(ctx context.Context, req models.SubjectRequest) (models.Decision, error) {
	newGSID, err := s.generator.Generate()
	if err != nil {
		return models.Decision{}, err
	}
	identity := &models.Identity{GSID: newGSID, CenterID: req.CenterID}
	if insertErr := s.store.InsertIdentity(ctx, identity); errors.Is(insertErr, sentinel.ErrConflict) {
		replacement, genErr := s.generator.Generate()
		if genErr != nil {
			return models.Decision{}, genErr
		}
		identity.GSID = replacement
		if retryErr := s.store.InsertIdentity(ctx, identity); retryErr != nil {
			return models.Decision{}, dErrors.Wrap(retryErr, dErrors.CodeInternal, "gsid collision persisted after retry")
		}
		newGSID = replacement
	} else if insertErr != nil {
		return models.Decision{}, insertErr
	}

	if err := s.linkCandidates(ctx, req, newGSID); err != nil {
		return models.Decision{}, err
	}
	return models.Decision{
		GSID:          newGSID,
		Action:        models.ActionCreateNew,
		MatchStrategy: models.StrategyNoMatch,
		Confidence:    1.0,
	}, nil
}

// resolveSingleSubjectMatch applies the one-match branch in its fixed order:
// cross-center conflict, center promotion, withdrawn check, then linking.
func (s *Service) resolveSingleSubjectMatch(ctx context.Context, req models.SubjectRequest, matches []candidateMatch, matched domain.GSID) (models.Decision, error) {
	if req.CenterID.IsKnown() {
		for _, m := range matches {
			if !m.viaAlias && m.center.IsKnown() && m.center != req.CenterID {
				reason := fmt.Sprintf("identifier already registered under center %d, request came from center %d", m.center, req.CenterID)
				if err := s.store.SetReviewFlag(ctx, matched, reason); err != nil {
					return models.Decision{}, err
				}
				return models.Decision{
					GSID:           matched,
					Action:         models.ActionReviewRequired,
					MatchStrategy:  models.StrategyCrossCenterConflict,
					Confidence:     1.0,
					RequiresReview: true,
					ReviewReason:   reason,
				}, nil
			}
		}
		if promoted, decision, err := s.promoteIfUnknownCenter(ctx, req, matches, matched); err != nil {
			return models.Decision{}, err
		} else if promoted {
			return decision, nil
		}
	}

	identity, err := s.store.GetIdentity(ctx, matched)
	if err != nil {
		return models.Decision{}, err
	}
	if identity.Withdrawn {
		reason := "matched identity is withdrawn"
		if err := s.store.SetReviewFlag(ctx, matched, reason); err != nil {
			return models.Decision{}, err
		}
		return models.Decision{
			GSID:           matched,
			Action:         models.ActionReviewRequired,
			MatchStrategy:  models.StrategyExactWithdrawn,
			Confidence:     1.0,
			RequiresReview: true,
			ReviewReason:   reason,
		}, nil
	}

	if err := s.linkCandidates(ctx, req, matched); err != nil {
		return models.Decision{}, err
	}
	return models.Decision{
		GSID:          matched,
		Action:        models.ActionLinkExisting,
		MatchStrategy: models.StrategyExactMatch,
		Confidence:    1.0,
	}, nil
}

// promoteIfUnknownCenter rewrites mappings held by the reserved Unknown
// center onto the requesting center. Promotion is strictly one-directional;
// the store refuses anything else.
func (s *Service) promoteIfUnknownCenter(ctx context.Context, req models.SubjectRequest, matches []candidateMatch, matched domain.GSID) (bool, models.Decision, error) {
	promoted := false
	for _, m := range matches {
		if m.viaAlias || m.center != domain.CenterUnknown {
			continue
		}
		if err := s.store.PromoteMappingCenter(ctx, m.candidate.LocalSubjectID, m.candidate.IdentifierType, req.CenterID); err != nil {
			return false, models.Decision{}, err
		}
		promoted = true
	}
	if !promoted {
		return false, models.Decision{}, nil
	}

	identity, err := s.store.GetIdentity(ctx, matched)
	if err != nil {
		return false, models.Decision{}, err
	}
	if identity.CenterID == domain.CenterUnknown {
		if err := s.store.UpdateIdentityCenter(ctx, matched, req.CenterID); err != nil {
			return false, models.Decision{}, err
		}
	}
	if err := s.linkCandidates(ctx, req, matched); err != nil {
		return false, models.Decision{}, err
	}

	previous := domain.CenterUnknown
	next := req.CenterID
	return true, models.Decision{
		GSID:             matched,
		Action:           models.ActionCenterPromoted,
		MatchStrategy:    models.StrategyExactMatch,
		Confidence:       1.0,
		PreviousCenterID: &previous,
		NewCenterID:      &next,
	}, nil
}

func (s *Service) flagMultipleMatches(ctx context.Context, distinct []domain.GSID) (models.Decision, error) {
	listed := make([]string, len(distinct))
	for i, g := range distinct {
		listed[i] = g.String()
	}
	sort.Strings(listed)
	reason := fmt.Sprintf("candidates matched %d distinct identities: %s", len(distinct), strings.Join(listed, ", "))
	for _, g := range distinct {
		if err := s.store.SetReviewFlag(ctx, g, reason); err != nil {
			return models.Decision{}, err
		}
	}
	return models.Decision{
		Action:         models.ActionReviewRequired,
		MatchStrategy:  models.StrategyMultipleGSIDConflict,
		Confidence:     0.5,
		RequiresReview: true,
		ReviewReason:   reason,
		MatchedGSIDs:   distinct,
	}, nil
}

// linkCandidates inserts a mapping for every candidate not yet present under
// the requesting center.
func (s *Service) linkCandidates(ctx context.Context, req models.SubjectRequest, target domain.GSID) error {
	inserted := make(map[models.Candidate]bool)
	for _, c := range req.Candidates {
		if inserted[c] {
			continue
		}
		inserted[c] = true
		_, err := s.store.GetMapping(ctx, req.CenterID, c.LocalSubjectID, c.IdentifierType)
		if err == nil {
			continue
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		if err := s.store.InsertMapping(ctx, &models.LocalIdentifier{
			CenterID:       req.CenterID,
			LocalSubjectID: c.LocalSubjectID,
			IdentifierType: c.IdentifierType,
			GSID:           target,
		}); err != nil {
			return err
		}
	}
	return nil
}

func joinCandidates(candidates []models.Candidate) string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.LocalSubjectID
	}
	return strings.Join(ids, ",")
}
