// Package service implements the identity resolution engine: the decision
// logic that maps incoming (center, local identifier, type) tuples onto
// canonical global identities.
//
// The engine is stateless; all synchronization is delegated to the store's
// transactional guarantees. Uniqueness constraints are the authoritative race
// guards: a conflicting insert is a signal to re-resolve, not an error.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"gsid-registry/internal/audit"
	"gsid-registry/internal/identity/gsid"
	identitymetrics "gsid-registry/internal/identity/metrics"
	"gsid-registry/internal/identity/models"
	"gsid-registry/internal/identity/store"
	"gsid-registry/internal/identity/validate"
	"gsid-registry/pkg/domain"
	dErrors "gsid-registry/pkg/domain-errors"
	"gsid-registry/pkg/platform/sentinel"
	"gsid-registry/pkg/requestcontext"
)

// AuditPublisher fans decision events out to the audit pipeline.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the resolution engine.
type Service struct {
	store     store.TxStore
	generator *gsid.Generator
	validator *validate.Validator
	logger    *slog.Logger
	metrics   *identitymetrics.Metrics
	audit     AuditPublisher
	tracer    trace.Tracer
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *identitymetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditPublisher attaches the decision event publisher.
func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.audit = p }
}

// New constructs the engine. Store, generator, and validator are required;
// metrics and audit publishing are optional.
func New(st store.TxStore, generator *gsid.Generator, validator *validate.Validator, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:     st,
		generator: generator,
		validator: validator,
		logger:    logger,
		tracer:    otel.Tracer("gsid-registry/identity"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register resolves one (center, local identifier, type) tuple.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (models.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "identity.Register")
	defer span.End()
	start := time.Now()

	if err := normalizeRegister(&req, ctx); err != nil {
		return models.Decision{}, err
	}

	screened := s.validator.Validate(req.LocalSubjectID, req.IdentifierType)
	if !screened.Valid {
		decision := validationFailedDecision(screened)
		if err := s.store.AppendLogEntry(ctx, logEntryFor(req.CenterID, req.LocalSubjectID, req.CreatedBy, decision)); err != nil {
			s.logger.ErrorContext(ctx, "audit entry for rejected identifier failed", "error", err)
		}
		s.finishDecision(ctx, req.CenterID, req.LocalSubjectID, req.CreatedBy, decision, start)
		return decision, nil
	}

	var decision models.Decision
	apply := func(ctx context.Context) error {
		d, err := s.applyRegister(ctx, req)
		if err != nil {
			return err
		}
		decision = d
		return nil
	}
	err := s.store.RunInTx(ctx, apply)
	if errors.Is(err, sentinel.ErrConflict) {
		// Lost a race to a concurrent registration; the winner's row now
		// exists, so one re-resolution falls through to link_existing.
		err = s.store.RunInTx(ctx, apply)
	}
	if err != nil {
		return models.Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "resolution failed")
	}
	decision.ValidationWarnings = screened.Warnings

	s.finishDecision(ctx, req.CenterID, req.LocalSubjectID, req.CreatedBy, decision, start)
	return decision, nil
}

func normalizeRegister(req *models.RegisterRequest, ctx context.Context) error {
	req.LocalSubjectID = strings.TrimSpace(req.LocalSubjectID)
	if req.IdentifierType == "" {
		req.IdentifierType = domain.IdentifierTypePrimary
	}
	if req.CenterID < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "center_id must be non-negative")
	}
	if req.CreatedBy == "" {
		req.CreatedBy = requestcontext.Actor(ctx)
	}
	return nil
}

// applyRegister performs the single-candidate lookup chain and its mutations.
// It must run inside a transaction; conflicts bubble up for the caller's
// single re-resolution.
func (s *Service) applyRegister(ctx context.Context, req models.RegisterRequest) (models.Decision, error) {
	var decision models.Decision

	mapping, err := s.store.GetMapping(ctx, req.CenterID, req.LocalSubjectID, req.IdentifierType)
	switch {
	case err == nil:
		decision, err = s.decideOnMatch(ctx, mapping.GSID, models.StrategyExact, models.StrategyExactWithdrawn, 1.0)
		if err != nil {
			return models.Decision{}, err
		}

	case errors.Is(err, sentinel.ErrNotFound):
		alias, aliasErr := s.store.FindAlias(ctx, req.LocalSubjectID)
		switch {
		case aliasErr == nil:
			decision, err = s.decideOnMatch(ctx, alias.GSID, models.StrategyAlias, models.StrategyAliasWithdrawn, 0.95)
			if err != nil {
				return models.Decision{}, err
			}
			if decision.Action == models.ActionLinkExisting {
				// An alias hit has no mapping row yet; create one so the next
				// registration resolves exactly.
				if err := s.store.InsertMapping(ctx, &models.LocalIdentifier{
					CenterID:       req.CenterID,
					LocalSubjectID: req.LocalSubjectID,
					IdentifierType: req.IdentifierType,
					GSID:           alias.GSID,
				}); err != nil {
					return models.Decision{}, err
				}
			}

		case errors.Is(aliasErr, sentinel.ErrNotFound):
			created, createErr := s.createIdentity(ctx, req)
			if createErr != nil {
				return models.Decision{}, createErr
			}
			decision = models.Decision{
				GSID:          created,
				Action:        models.ActionCreateNew,
				MatchStrategy: models.StrategyNoMatch,
				Confidence:    1.0,
			}

		default:
			return models.Decision{}, aliasErr
		}

	default:
		return models.Decision{}, err
	}

	if err := s.store.AppendLogEntry(ctx, logEntryFor(req.CenterID, req.LocalSubjectID, req.CreatedBy, decision)); err != nil {
		return models.Decision{}, err
	}
	return decision, nil
}

// decideOnMatch turns a matched GSID into a decision, routing withdrawn
// identities into review. A withdrawn match is never silently linked.
func (s *Service) decideOnMatch(ctx context.Context, matched domain.GSID, linked, withdrawn models.MatchStrategy, confidence float64) (models.Decision, error) {
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
			MatchStrategy:  withdrawn,
			Confidence:     1.0,
			RequiresReview: true,
			ReviewReason:   reason,
		}, nil
	}
	return models.Decision{
		GSID:          matched,
		Action:        models.ActionLinkExisting,
		MatchStrategy: linked,
		Confidence:    confidence,
	}, nil
}

// createIdentity inserts a new identity and its first mapping. On the
// astronomically rare GSID collision it generates exactly one replacement
// before giving up.
func (s *Service) createIdentity(ctx context.Context, req models.RegisterRequest) (domain.GSID, error) {
	newGSID, err := s.generator.Generate()
	if err != nil {
		return "", err
	}
	identity := &models.Identity{
		GSID:             newGSID,
		CenterID:         req.CenterID,
		RegistrationYear: req.RegistrationYear,
		Control:          req.Control,
	}
	if insertErr := s.store.InsertIdentity(ctx, identity); errors.Is(insertErr, sentinel.ErrConflict) {
		replacement, genErr := s.generator.Generate()
		if genErr != nil {
			return "", genErr
		}
		identity.GSID = replacement
		if retryErr := s.store.InsertIdentity(ctx, identity); retryErr != nil {
			return "", dErrors.Wrap(retryErr, dErrors.CodeInternal, "gsid collision persisted after retry")
		}
		newGSID = replacement
	} else if insertErr != nil {
		return "", insertErr
	}

	if err := s.store.InsertMapping(ctx, &models.LocalIdentifier{
		CenterID:       req.CenterID,
		LocalSubjectID: req.LocalSubjectID,
		IdentifierType: req.IdentifierType,
		GSID:           newGSID,
	}); err != nil {
		return "", err
	}
	return newGSID, nil
}

// UpdateCenter reassigns an identity's center. Not-found is reported
// distinctly from server faults.
func (s *Service) UpdateCenter(ctx context.Context, gsidValue string, newCenter domain.CenterID) (*models.Identity, error) {
	if !newCenter.IsKnown() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "center_id must be a known, non-zero center")
	}
	g := domain.GSID(gsidValue)
	if err := s.store.UpdateIdentityCenter(ctx, g, newCenter); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "identity %s not found", gsidValue)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update center failed")
	}
	identity, err := s.store.GetIdentity(ctx, g)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "reload identity failed")
	}
	return identity, nil
}

// HealthStatus reports service and store health.
type HealthStatus struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// Health checks store connectivity. It is the only unauthenticated operation.
func (s *Service) Health(ctx context.Context) HealthStatus {
	if err := s.store.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "store health check failed", "error", err)
		return HealthStatus{Status: "unhealthy", Store: "disconnected"}
	}
	return HealthStatus{Status: "healthy", Store: "connected"}
}

func validationFailedDecision(screened validate.Result) models.Decision {
	return models.Decision{
		Action:             models.ActionReviewRequired,
		MatchStrategy:      models.StrategyValidationFailed,
		Confidence:         0,
		RequiresReview:     true,
		ReviewReason:       "identifier failed validation",
		ValidationWarnings: screened.Warnings,
	}
}

func logEntryFor(centerID domain.CenterID, localID, createdBy string, decision models.Decision) *models.ResolutionLogEntry {
	return &models.ResolutionLogEntry{
		InputCenterID:  centerID,
		InputLocalID:   localID,
		MatchedGSID:    decision.GSID,
		Action:         decision.Action,
		MatchStrategy:  decision.MatchStrategy,
		Confidence:     decision.Confidence,
		RequiresReview: decision.RequiresReview,
		ReviewReason:   decision.ReviewReason,
		CreatedBy:      createdBy,
	}
}

// finishDecision records metrics and emits the best-effort audit event.
func (s *Service) finishDecision(ctx context.Context, centerID domain.CenterID, localID, actor string, decision models.Decision, start time.Time) {
	s.metrics.ObserveDecision(string(decision.Action), string(decision.MatchStrategy), time.Since(start))
	s.emitAudit(ctx, centerID, localID, actor, decision)
}

func (s *Service) emitAudit(ctx context.Context, centerID domain.CenterID, localID, actor string, decision models.Decision) {
	if s.audit == nil {
		return
	}
	event := audit.Event{
		Action:         string(decision.Action),
		MatchStrategy:  string(decision.MatchStrategy),
		GSID:           decision.GSID.String(),
		CenterID:       int(centerID),
		LocalSubjectID: localID,
		RequiresReview: decision.RequiresReview,
		ReviewReason:   decision.ReviewReason,
		Actor:          actor,
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		// Best effort: an unpublished audit event never unwinds a decision,
		// but operators need to see the gap.
		s.metrics.ObserveAuditFailure()
		s.logger.ErrorContext(ctx, "audit event emission failed",
			"action", event.Action,
			"local_subject_id", event.LocalSubjectID,
			"error", err,
		)
	}
}
