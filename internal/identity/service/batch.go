package service

import (
	"context"
	"errors"
	"time"

	"gsid-registry/internal/identity/models"
	dErrors "gsid-registry/pkg/domain-errors"
	"gsid-registry/pkg/platform/sentinel"
)

// RegisterBatch resolves every request inside a single transaction. Each item
// runs under its own savepoint so a failing item rolls back alone; the rest
// of the batch commits. The returned error is non-nil only when the enclosing
// transaction itself cannot run.
func (s *Service) RegisterBatch(ctx context.Context, reqs []models.RegisterRequest) ([]models.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "identity.RegisterBatch")
	defer span.End()
	start := time.Now()

	decisions := make([]models.Decision, len(reqs))
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		for i := range reqs {
			decisions[i] = s.registerBatchItem(ctx, &reqs[i])
		}
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "batch resolution failed")
	}

	for i, d := range decisions {
		s.metrics.ObserveBatchItem(d.Action == models.ActionError)
		s.finishDecision(ctx, reqs[i].CenterID, reqs[i].LocalSubjectID, reqs[i].CreatedBy, d, start)
	}
	return decisions, nil
}

// registerBatchItem normalizes and resolves one batch member under a
// savepoint. Failures are converted into an error decision and recorded in
// the resolution log of the enclosing transaction.
func (s *Service) registerBatchItem(ctx context.Context, req *models.RegisterRequest) models.Decision {
	if err := normalizeRegister(req, ctx); err != nil {
		return s.batchItemError(ctx, req, err)
	}

	result := s.validator.Validate(req.LocalSubjectID, req.IdentifierType)
	if !result.Valid {
		decision := validationFailedDecision(result)
		if err := s.store.AppendLogEntry(ctx, logEntryFor(req.CenterID, req.LocalSubjectID, req.CreatedBy, decision)); err != nil {
			s.logger.ErrorContext(ctx, "audit entry for rejected batch item failed", "error", err)
		}
		return decision
	}

	var decision models.Decision
	apply := func(ctx context.Context) error {
		d, err := s.applyRegister(ctx, *req)
		if err != nil {
			return err
		}
		decision = d
		return nil
	}
	err := s.store.Savepoint(ctx, apply)
	if errors.Is(err, sentinel.ErrConflict) {
		err = s.store.Savepoint(ctx, apply)
	}
	if err != nil {
		return s.batchItemError(ctx, req, err)
	}
	decision.ValidationWarnings = result.Warnings
	return decision
}

// batchItemError builds the error decision for a rolled-back item and leaves
// an audit trace in the still-open enclosing transaction.
func (s *Service) batchItemError(ctx context.Context, req *models.RegisterRequest, cause error) models.Decision {
	decision := models.Decision{
		Action: models.ActionError,
		Error:  dErrors.Message(cause),
	}
	if err := s.store.AppendLogEntry(ctx, logEntryFor(req.CenterID, req.LocalSubjectID, req.CreatedBy, decision)); err != nil {
		s.logger.ErrorContext(ctx, "audit entry for failed batch item failed", "error", err)
	}
	s.logger.WarnContext(ctx, "batch item rolled back",
		"center_id", req.CenterID,
		"local_subject_id", req.LocalSubjectID,
		"error", cause,
	)
	return decision
}
