// Package handler wires the registry's HTTP endpoints to the resolution
// engine. It is a thin translation layer: decode, validate shape, delegate,
// encode.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gsid-registry/internal/center/match"
	"gsid-registry/internal/identity/models"
	"gsid-registry/pkg/domain"
	dErrors "gsid-registry/pkg/domain-errors"
	"gsid-registry/pkg/platform/httputil"
	"gsid-registry/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mock_service.go -package=mocks

// Service defines the resolution operations the HTTP layer depends on.
type Service interface {
	Register(ctx context.Context, req models.RegisterRequest) (models.Decision, error)
	RegisterBatch(ctx context.Context, reqs []models.RegisterRequest) ([]models.Decision, error)
	RegisterSubject(ctx context.Context, req models.SubjectRequest) (models.Decision, error)
	ListReviewQueue(ctx context.Context) ([]models.ReviewCase, error)
	ResolveReview(ctx context.Context, gsid, reviewedBy, notes string) error
	UpdateCenter(ctx context.Context, gsid string, center domain.CenterID) (*models.Identity, error)
}

// Handler wires identity endpoints to the resolution service.
type Handler struct {
	service Service
	logger  *slog.Logger
	matcher *match.Matcher
}

// Option configures optional handler collaborators.
type Option func(*Handler)

// WithCenterMatcher enables center_name resolution against the directory.
func WithCenterMatcher(m *match.Matcher) Option {
	return func(h *Handler) { h.matcher = m }
}

// New constructs an identity handler with its dependencies.
func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// resolveCenter maps an optional center_name onto a directory id. An explicit
// center_id always wins.
func (h *Handler) resolveCenter(centerID int, centerName string) (int, error) {
	if centerName == "" || centerID != 0 {
		return centerID, nil
	}
	if h.matcher == nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "center_name resolution is not configured")
	}
	c, _, ok := h.matcher.Match(centerName)
	if !ok {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "unknown center name %q", centerName)
	}
	return c.ID, nil
}

// Register mounts identity endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/identity/register", h.HandleRegister)
	r.Post("/identity/register/batch", h.HandleRegisterBatch)
	r.Post("/identity/subjects", h.HandleRegisterSubject)
	r.Get("/identity/review-queue", h.HandleReviewQueue)
	r.Post("/identity/review/{gsid}/resolve", h.HandleResolveReview)
	r.Put("/identity/{gsid}/center", h.HandleUpdateCenter)
}

// HandleRegister handles POST /identity/register requests.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	centerID, err := h.resolveCenter(req.CenterID, req.CenterName)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req.CenterID = centerID

	decision, err := h.service.Register(ctx, req.Domain())
	if err != nil {
		h.logger.ErrorContext(ctx, "registration failed",
			"request_id", requestID,
			"center_id", req.CenterID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "identifier registered",
		"request_id", requestID,
		"center_id", req.CenterID,
		"action", decision.Action,
		"match_strategy", decision.MatchStrategy,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, statusForDecision(decision), decision)
}

// HandleRegisterBatch handles POST /identity/register/batch requests.
func (h *Handler) HandleRegisterBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[BatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	for i := range req.Items {
		centerID, err := h.resolveCenter(req.Items[i].CenterID, req.Items[i].CenterName)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		req.Items[i].CenterID = centerID
	}

	decisions, err := h.service.RegisterBatch(ctx, req.Domain())
	if err != nil {
		h.logger.ErrorContext(ctx, "batch registration failed",
			"request_id", requestID,
			"items", len(req.Items),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := FromDecisions(decisions)
	h.logger.InfoContext(ctx, "batch registered",
		"request_id", requestID,
		"items", resp.Total,
		"errors", resp.Errors,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleRegisterSubject handles POST /identity/subjects requests.
func (h *Handler) HandleRegisterSubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[SubjectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	centerID, err := h.resolveCenter(req.CenterID, req.CenterName)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req.CenterID = centerID

	decision, err := h.service.RegisterSubject(ctx, req.Domain())
	if err != nil {
		h.logger.ErrorContext(ctx, "subject registration failed",
			"request_id", requestID,
			"center_id", req.CenterID,
			"candidates", len(req.Candidates),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "subject registered",
		"request_id", requestID,
		"center_id", req.CenterID,
		"action", decision.Action,
		"match_strategy", decision.MatchStrategy,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, statusForDecision(decision), decision)
}

// HandleReviewQueue handles GET /identity/review-queue requests.
func (h *Handler) HandleReviewQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cases, err := h.service.ListReviewQueue(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "review queue listing failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ReviewQueueResponse{Cases: cases, Total: len(cases)})
}

// HandleResolveReview handles POST /identity/review/{gsid}/resolve requests.
func (h *Handler) HandleResolveReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	gsid := chi.URLParam(r, "gsid")

	req, ok := httputil.DecodeAndPrepare[ResolveReviewRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.ResolveReview(ctx, gsid, req.ReviewedBy, req.Notes); err != nil {
		h.logger.ErrorContext(ctx, "review resolution failed",
			"request_id", requestID,
			"gsid", gsid,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "review resolved",
		"request_id", requestID,
		"gsid", gsid,
		"reviewed_by", req.ReviewedBy,
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "resolved", "gsid": gsid})
}

// HandleUpdateCenter handles PUT /identity/{gsid}/center requests.
func (h *Handler) HandleUpdateCenter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	gsid := chi.URLParam(r, "gsid")

	req, ok := httputil.DecodeAndPrepare[UpdateCenterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	identity, err := h.service.UpdateCenter(ctx, gsid, domain.CenterID(req.CenterID))
	if err != nil {
		h.logger.ErrorContext(ctx, "center update failed",
			"request_id", requestID,
			"gsid", gsid,
			"center_id", req.CenterID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromIdentity(identity))
}

// statusForDecision maps a decision outcome to its HTTP status: a freshly
// minted identity is a 201, everything else resolves an existing state.
func statusForDecision(d models.Decision) int {
	if d.Action == models.ActionCreateNew {
		return http.StatusCreated
	}
	return http.StatusOK
}
