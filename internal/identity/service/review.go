package service

import (
	"context"
	"errors"

	"gsid-registry/internal/identity/models"
	"gsid-registry/pkg/domain"
	dErrors "gsid-registry/pkg/domain-errors"
	"gsid-registry/pkg/platform/sentinel"
	"gsid-registry/pkg/requestcontext"
)

// ListReviewQueue returns every identity currently flagged for review,
// together with the local identifiers pointing at it.
func (s *Service) ListReviewQueue(ctx context.Context) ([]models.ReviewCase, error) {
	ctx, span := s.tracer.Start(ctx, "identity.ListReviewQueue")
	defer span.End()

	cases, err := s.store.ListReviewCases(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list review queue failed")
	}
	return cases, nil
}

// ResolveReview clears the review flag on an identity and stamps reviewer
// attribution onto its pending review log entries. Withdrawn status is
// untouched: resolving a review never un-withdraws a subject.
func (s *Service) ResolveReview(ctx context.Context, gsidValue, reviewedBy, notes string) error {
	ctx, span := s.tracer.Start(ctx, "identity.ResolveReview")
	defer span.End()

	if reviewedBy == "" {
		return dErrors.New(dErrors.CodeBadRequest, "reviewed_by is required")
	}
	g := domain.GSID(gsidValue)

	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.ClearReviewFlag(ctx, g, notes); err != nil {
			return err
		}
		return s.store.AnnotateLogEntries(ctx, g, reviewedBy, notes, requestcontext.Now(ctx))
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "identity %s not found", gsidValue)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "resolve review failed")
	}

	s.metrics.ObserveReviewResolved()
	s.logger.InfoContext(ctx, "review resolved",
		"gsid", gsidValue,
		"reviewed_by", reviewedBy,
	)
	return nil
}
